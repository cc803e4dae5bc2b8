// Package boundary builds the outbound public payloads. Every shape is
// constructed from explicit fields (never by serializing a domain struct) and
// then run through the sanitizer, so a future field added to a domain type
// cannot leak by default.
package boundary

import (
	"time"

	certmodels "veritag/internal/certificate/models"
	certservice "veritag/internal/certificate/service"
	"veritag/internal/sanitize"
	verifservice "veritag/internal/verification/service"
)

// Certificate formats the public certificate shape.
func Certificate(view certservice.PublicCertificate) map[string]any {
	return seal(map[string]any{
		"displayId":    view.DisplayID,
		"brand":        view.Brand,
		"model":        view.Model,
		"category":     view.Category,
		"status":       view.Status,
		"verifiedDate": view.VerifiedDate,
		"confidence":   view.Confidence,
	})
}

// SessionStart formats the product-phase response. The raw session token is
// part of the public contract here and nowhere else.
func SessionStart(res verifservice.StartResult) map[string]any {
	payload := map[string]any{
		"brand":      res.Brand,
		"passed":     res.Passed,
		"confidence": res.Confidence,
	}
	if res.Passed {
		payload["sessionToken"] = res.SessionToken
	}
	return seal(payload)
}

// Outcome formats the certificate-phase response.
func Outcome(outcome verifservice.Outcome) map[string]any {
	payload := map[string]any{
		"passed":     outcome.Passed,
		"confidence": outcome.Confidence,
	}
	if outcome.Certificate != nil {
		payload["certificate"] = Certificate(*outcome.Certificate)
	}
	return seal(payload)
}

// AdminTransfer formats the operator response after a transfer. It carries
// the freshly rotated public identifier so the new tag can be produced, and
// nothing about the previous identity.
func AdminTransfer(cert *certmodels.Certificate) map[string]any {
	return seal(map[string]any{
		"certificateId": cert.InternalID.String(),
		"publicId":      cert.PublicID,
		"status":        string(cert.Verification.Status),
		"version":       cert.Version,
	})
}

// AdminBurn formats the operator response after a burn.
func AdminBurn(res certservice.BurnResult) map[string]any {
	return seal(map[string]any{
		"txRef":    res.TxRef,
		"burnedAt": res.BurnedAt.UTC().Format(time.RFC3339),
	})
}

// seal runs the payload through the sanitizer and falls back to the generic
// processing-error shape when the result is not a JSON object.
func seal(payload map[string]any) map[string]any {
	out, ok := sanitize.Sanitize(payload).(map[string]any)
	if !ok {
		return sanitize.Fallback()
	}
	return out
}
