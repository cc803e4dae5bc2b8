// Package identifier produces the two kinds of identifiers the service hands
// out: human-scannable public certificate identifiers, and opaque session
// capability tokens. Both draw from crypto/rand; public identifiers are
// additionally collision-checked against the store because their short,
// scannable suffix makes collisions a real (if small) probability, not a
// negligible one.
package identifier

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"

	dErrors "veritag/pkg/domain-errors"
)

const (
	publicIDPrefix = "VT"
	suffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I: scanned by humans
	suffixLength   = 10

	sessionTokenPrefix = "vts_"
	sessionTokenBytes  = 32

	maxCollisionRetries = 5
)

// PublicIDChecker answers whether a candidate public identifier is already
// bound to a certificate. Implemented by the certificate store.
type PublicIDChecker interface {
	ExistsPublicID(ctx context.Context, publicID string) (bool, error)
}

// Generator issues public identifiers and session tokens.
type Generator struct {
	checker PublicIDChecker
	clock   func() time.Time
}

// New constructs a Generator. checker may be nil only for display-time
// identifiers that are never persisted or looked up.
func New(checker PublicIDChecker) *Generator {
	return &Generator{checker: checker, clock: time.Now}
}

// NewPublicID returns a fresh unique public identifier of the form
// VT-<year>-<suffix>. Candidates colliding with a stored identifier are
// re-drawn; persistent collision after several attempts is reported as an
// internal error rather than silently reusing an identity.
func (g *Generator) NewPublicID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		candidate, err := g.newCandidate()
		if err != nil {
			return "", err
		}
		if g.checker == nil {
			return candidate, nil
		}
		exists, err := g.checker.ExistsPublicID(ctx, candidate)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "public id uniqueness check failed")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInternal, "public id space exhausted after retries")
}

// NewDisplayID returns a presentation-only identifier in the public format.
// It is never persisted and never collision-checked; it exists so repeated
// reads of the same certificate do not present a stable correlation handle.
func (g *Generator) NewDisplayID() (string, error) {
	return g.newCandidate()
}

func (g *Generator) newCandidate() (string, error) {
	suffix := make([]byte, suffixLength)
	alphabetSize := big.NewInt(int64(len(suffixAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "entropy source unavailable")
		}
		suffix[i] = suffixAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%d-%s", publicIDPrefix, g.clock().Year(), suffix), nil
}

// NewSessionToken returns an opaque, non-enumerable capability token for a
// verification session. At 256 bits of entropy collisions are probabilistic
// only; the token is never displayed or printed on a physical tag.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "entropy source unavailable")
	}
	return sessionTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSessionToken derives the store key for a session token. Sessions are
// stored under the hash so a dump of the session store cannot be replayed
// against the API.
func HashSessionToken(token string) string {
	sum := sha3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
