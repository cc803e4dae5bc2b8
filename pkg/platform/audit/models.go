// Package audit is the private retention channel for lifecycle history.
// Every identity rotation, burn, and scan decision is recorded here with its
// full detail; nothing in this package is ever serialized into a public
// response. The sanitizer guarantee holds precisely because history lives
// here and only here.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryProvenance covers identity rotations and ownership changes.
	// These are the privately retained counterpart of the public
	// unlinkability guarantee and carry the longest retention.
	CategoryProvenance EventCategory = "provenance"

	// CategorySecurity covers events relevant to abuse monitoring:
	// session replays, lock conflicts, rejected scans.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine events useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// CertificateID is the internal certificate key the event concerns.
	CertificateID string
	Action        string
	Decision      string
	Reason        string

	// Rotation detail. Private by construction: these fields exist so an
	// operator can reconstruct provenance; they never reach a response.
	PrevPublicID string
	NewPublicID  string
	PrevOwnerRef string
	NewOwnerRef  string
	LedgerRef    string

	// Request enrichment from middleware.
	RequestID string
	ClientIP  string
	UserAgent string
	Device    string
}

type AuditEvent string

const (
	EventCertificateMinted      AuditEvent = "certificate_minted"
	EventCertificateTransferred AuditEvent = "certificate_transferred"
	EventCertificateBurned      AuditEvent = "certificate_burned"

	EventScanSessionStarted  AuditEvent = "scan_session_started"
	EventScanSessionConsumed AuditEvent = "scan_session_consumed"
	EventScanSessionExpired  AuditEvent = "scan_session_expired"
	EventScanRejected        AuditEvent = "scan_rejected"

	EventTransferConflict AuditEvent = "transfer_conflict"
)

// Store persists audit events. Implementations must treat the log as
// append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCertificate(ctx context.Context, certificateID string) ([]Event, error)
}

// MultiStore fans a single append out to several stores (e.g. local memory
// plus a Kafka sink). Reads come from the first store.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiStore) ListByCertificate(ctx context.Context, certificateID string) ([]Event, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].ListByCertificate(ctx, certificateID)
}
