// Package sanitize implements the outbound redaction pass that every payload
// crosses before leaving the service. It removes fields named in a fixed
// private-field taxonomy and redacts sensitive substrings in string values,
// over arbitrarily shaped data.
//
// The traversal is a depth-bounded visitor over the tagged union of
// {scalar, list, map} that JSON-shaped business data decodes into. It does
// not reflect over arbitrary structs; formatters hand it maps and slices.
package sanitize

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// depthObserved records the deepest nesting level visited per pass. A payload
// that starts brushing MaxDepth is a payload about to lose redaction coverage.
var depthObserved = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "veritag_sanitize_depth",
	Help:    "Deepest nesting level visited per sanitize pass",
	Buckets: prometheus.LinearBuckets(0, 4, 7),
})

// Redacted is the fixed marker substituted for sensitive substrings.
const Redacted = "[REDACTED]"

// MaxDepth bounds traversal. Subtrees nested deeper are returned unmodified
// rather than risking unbounded recursion; 24 levels is far beyond any real
// payload this service emits.
const MaxDepth = 24

// privateKeySubstrings is the private-field taxonomy. Any map key containing
// one of these (case-insensitive) is dropped from the output entirely.
var privateKeySubstrings = []string{
	"owner",
	"wallet",
	"history",
	"provenance",
	"transfer",
	"serial",
	"tracking",
	"password",
	"secret",
	"credential",
	"private",
}

// internalMarkerPrefixes drop keys following the internal-field naming
// convention regardless of the rest of the name.
var internalMarkerPrefixes = []string{"_", "internal"}

// sensitivePatterns match substrings that must never appear in an outbound
// string value, wherever the string sits in the payload.
var sensitivePatterns = []*regexp.Regexp{
	// Ledger address shapes.
	regexp.MustCompile(`0x[0-9a-fA-F]{40}`),
	// Long hex-like tokens (hashes, tx refs, raw token ids).
	regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
	// Long digit runs (IMEI, tracking numbers, raw references).
	regexp.MustCompile(`\d{10,}`),
	// Manufacturer serial shapes.
	regexp.MustCompile(`(?i)\b(?:SN|SER)[-:]?[A-Z0-9]{5,}\b`),
}

// Sanitize returns a copy of v with taxonomy keys removed and sensitive
// substrings redacted. It never panics outward: on an internal fault it
// returns the generic processing-error value instead of partially sanitized
// data.
func Sanitize(v any) (out any) {
	defer func() {
		if recover() != nil {
			out = Fallback()
		}
	}()
	deepest := 0
	defer func() { depthObserved.Observe(float64(deepest)) }()
	return walk(v, 0, &deepest, make(map[uintptr]struct{}))
}

// Fallback is the minimal safe value returned when sanitization itself fails.
func Fallback() map[string]any {
	return map[string]any{"success": false, "error": "processing error"}
}

// RedactString applies the sensitive patterns to a single string.
func RedactString(s string) string {
	for _, re := range sensitivePatterns {
		s = re.ReplaceAllString(s, Redacted)
	}
	return s
}

// IsPrivateKey reports whether a map key falls in the private-field taxonomy.
func IsPrivateKey(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range internalMarkerPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, sub := range privateKeySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// walk visits one node. inPath holds the container pointers on the current
// traversal path; hitting one again means the structure is cyclic and the
// subtree is returned as-is so traversal terminates.
func walk(v any, depth int, deepest *int, inPath map[uintptr]struct{}) any {
	if depth > *deepest {
		*deepest = depth
	}
	if depth >= MaxDepth {
		return v
	}

	switch node := v.(type) {
	case map[string]any:
		ptr := reflect.ValueOf(node).Pointer()
		if _, cyclic := inPath[ptr]; cyclic {
			return v
		}
		inPath[ptr] = struct{}{}
		defer delete(inPath, ptr)

		out := make(map[string]any, len(node))
		for key, value := range node {
			if IsPrivateKey(key) {
				continue
			}
			out[key] = walk(value, depth+1, deepest, inPath)
		}
		return out

	case map[string]string:
		out := make(map[string]string, len(node))
		for key, value := range node {
			if IsPrivateKey(key) {
				continue
			}
			out[key] = RedactString(value)
		}
		return out

	case []any:
		if len(node) == 0 {
			return node
		}
		ptr := reflect.ValueOf(node).Pointer()
		if _, cyclic := inPath[ptr]; cyclic {
			return v
		}
		inPath[ptr] = struct{}{}
		defer delete(inPath, ptr)

		out := make([]any, len(node))
		for i, value := range node {
			out[i] = walk(value, depth+1, deepest, inPath)
		}
		return out

	case []string:
		out := make([]string, len(node))
		for i, value := range node {
			out[i] = RedactString(value)
		}
		return out

	case string:
		return RedactString(node)

	default:
		// Numbers, booleans, times, nil: nothing to redact.
		return v
	}
}
