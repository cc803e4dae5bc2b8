package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certservice "veritag/internal/certificate/service"
	verifservice "veritag/internal/verification/service"
)

func TestCertificatePayloadShape(t *testing.T) {
	payload := Certificate(certservice.PublicCertificate{
		DisplayID:    "VT-2026-ABCDEF2345",
		Brand:        "Horologe",
		Model:        "Mariner 40",
		Category:     "watch",
		Status:       "verified",
		VerifiedDate: "2026-03-14",
		Confidence:   0.91,
	})

	assert.Equal(t, map[string]any{
		"displayId":    "VT-2026-ABCDEF2345",
		"brand":        "Horologe",
		"model":        "Mariner 40",
		"category":     "watch",
		"status":       "verified",
		"verifiedDate": "2026-03-14",
		"confidence":   0.91,
	}, payload)
}

func TestSessionStartOmitsTokenOnRejection(t *testing.T) {
	payload := SessionStart(verifservice.StartResult{Passed: false, Brand: "Horologe", Confidence: 0.4})

	_, hasToken := payload["sessionToken"]
	assert.False(t, hasToken)
	assert.Equal(t, false, payload["passed"])
}

func TestSessionStartCarriesTokenThroughSanitizer(t *testing.T) {
	payload := SessionStart(verifservice.StartResult{
		SessionToken: "vts_k2jH8s-xPqW3mDf5tRv7nYb1cLz9gQe4uAi6oEw0sXh",
		Passed:       true,
		Brand:        "Horologe",
		Confidence:   0.85,
	})

	// The session token is the one secret that is public by contract; the
	// sanitizer must not eat it.
	assert.Equal(t, "vts_k2jH8s-xPqW3mDf5tRv7nYb1cLz9gQe4uAi6oEw0sXh", payload["sessionToken"])
}

func TestOutcomeNestsCertificateOnPass(t *testing.T) {
	payload := Outcome(verifservice.Outcome{
		Passed:     true,
		Confidence: 0.875,
		Certificate: &certservice.PublicCertificate{
			DisplayID: "VT-2026-QRSTUV2345",
			Brand:     "Horologe",
			Status:    "verified",
		},
	})

	cert, ok := payload["certificate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VT-2026-QRSTUV2345", cert["displayId"])
}

func TestOutcomeOmitsCertificateOnFail(t *testing.T) {
	payload := Outcome(verifservice.Outcome{Passed: false, Confidence: 0.55})

	_, hasCert := payload["certificate"]
	assert.False(t, hasCert)
}
