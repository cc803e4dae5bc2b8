package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"veritag/pkg/requestcontext"
)

// ClientMetadata extracts client IP, User-Agent and a parsed device summary
// into the request context for audit enrichment. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithClientIP(ctx, clientIPFromRequest(r))

		ua := r.Header.Get("User-Agent")
		ctx = requestcontext.WithUserAgent(ctx, ua)
		ctx = requestcontext.WithDevice(ctx, deviceSummary(ua))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deviceSummary condenses the User-Agent into "browser/os/platform" for
// audit events. Unknown agents come back as "unknown".
func deviceSummary(ua string) string {
	if ua == "" {
		return "unknown"
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	parts := make([]string, 0, 3)
	for _, p := range []string{browser, parsed.OS(), parsed.Platform()} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "/")
}

// clientIPFromRequest resolves the real client IP behind proxies.
func clientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		// Strip the port; IPv6 is bracketed so LastIndex is safe.
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
