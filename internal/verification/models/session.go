// Package models holds the verification session domain types.
package models

import "time"

// Phase is a session's position in the two-phase verification flow.
type Phase string

const (
	// PhaseProductVerified means the product scan passed and the session is
	// waiting for the certificate phase.
	PhaseProductVerified Phase = "product_verified"
	// PhaseConsumed means the certificate phase claimed the session. A
	// session is consumed exactly once regardless of the phase's outcome.
	PhaseConsumed Phase = "consumed"
	// PhaseExpired means the TTL elapsed before the certificate phase.
	PhaseExpired Phase = "expired"
)

// Findings carries what the product phase learned. Features hold raw
// collaborator output and must never be serialized outward.
type Findings struct {
	Brand      string            `json:"brand"`
	Confidence float64           `json:"confidence"`
	Features   map[string]string `json:"features,omitempty"`
}

// Session is one short-lived, single-use verification session. It is keyed
// and stored by the hash of its capability token; the raw token exists only
// in the response that created the session.
type Session struct {
	TokenHash string    `json:"token_hash"`
	Phase     Phase     `json:"phase"`
	Findings  Findings  `json:"findings"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session's TTL has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
