// Package ports defines the interfaces the verification flow consumes.
package ports

import (
	"context"
	"time"

	"veritag/internal/verification/models"
	"veritag/pkg/platform/audit"
)

// ScoreResult is the product-phase collaborator's verdict.
type ScoreResult struct {
	Passed     bool
	Confidence float64
	Brand      string
}

// Scorer authenticates a product image. Single attempt, timeout-bounded by
// the adapter; failures wrap sentinel.ErrUnavailable.
type Scorer interface {
	Score(ctx context.Context, image []byte) (ScoreResult, error)
}

// ExtractResult is the certificate-phase collaborator's reading of the
// physical certificate. Fields hold raw extracted identifiers (serials,
// document numbers) and must never leave the verification service.
type ExtractResult struct {
	Confidence float64
	Fields     map[string]string
}

// Extractor reads a certificate document image. Same contract as Scorer.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (ExtractResult, error)
}

// SessionStore persists verification sessions under their token hash.
//
// Consume is an atomic check-and-mark: the first caller wins the session and
// every later caller fails. Error contract: unknown hash →
// sentinel.ErrNotFound; TTL elapsed → sentinel.ErrExpired (the session is
// discarded); already consumed → sentinel.ErrAlreadyUsed.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session, ttl time.Duration) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error)
}

// AuditPublisher emits audit events for scan activity.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
