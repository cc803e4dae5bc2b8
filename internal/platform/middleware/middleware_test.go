package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritag/internal/jwttoken"
	"veritag/pkg/requestcontext"
)

func TestRecoveryWritesProcessingError(t *testing.T) {
	handler := Recovery(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom: owner=alice wallet=0xdeadbeef")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scan/product", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "processing error", body["error"])
	// Nothing from the panic value may surface.
	assert.NotContains(t, rec.Body.String(), "wallet")
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDHonorsInboundHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "upstream-id-1", seen)
}

func TestClientMetadataEnrichesContext(t *testing.T) {
	var ip, device string
	handler := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		device = requestcontext.Device(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", ip)
	assert.NotEqual(t, "unknown", device)
}

func TestRequireAdminRejectsMissingToken(t *testing.T) {
	validator := jwttoken.NewService("key", "veritag", "veritag-admin")
	handler := RequireAdmin(validator, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/certificates/x/burn", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminAcceptsValidToken(t *testing.T) {
	validator := jwttoken.NewService("key", "veritag", "veritag-admin")
	token, err := validator.GenerateAdminToken("ops@example.test", time.Hour)
	require.NoError(t, err)

	var subject string
	handler := RequireAdmin(validator, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = requestcontext.AdminSubject(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/certificates/x/burn", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "ops@example.test", subject)
}

func TestScanRateLimitThrottlesPerIP(t *testing.T) {
	handler := ClientMetadata(ScanRateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	status := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/scan/product", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, status("198.51.100.7"))
	assert.Equal(t, http.StatusOK, status("198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, status("198.51.100.7"))
	// A different client is unaffected.
	assert.Equal(t, http.StatusOK, status("198.51.100.8"))
}
