package models

import (
	"fmt"
	"time"

	id "veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
)

// VerificationStatus is the lifecycle status carried in a certificate's
// verification record.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusFailed   VerificationStatus = "failed"
	StatusBurned   VerificationStatus = "burned"
)

// ProductInfo is immutable business data, always safe to expose.
type ProductInfo struct {
	Brand    string
	Model    string
	Category string
}

// VerificationRecord holds the current confidence and status. It is
// overwritten, not appended, on each (re)verification.
type VerificationRecord struct {
	Status     VerificationStatus
	Confidence float64
	VerifiedAt time.Time
}

// TokenBinding is the current ledger identity of the certificate. It rotates
// together with PublicID on every ownership change.
type TokenBinding struct {
	TokenID  string
	TxRef    string
	Contract string
	Network  string
}

// HistoryEntry records one prior identity of the certificate. History is
// append-only and internal-only: no code path serializes it outward.
type HistoryEntry struct {
	PrevPublicID string
	PrevOwnerRef id.AccountID
	Timestamp    time.Time
	LedgerRef    string
}

// Certificate is one authenticated item's current proof-of-ownership record.
//
// PublicID is unique across all certificates at any instant and is replaced
// atomically with TokenBinding on every mint and transfer, so no external
// observer can link the current identity to a prior one. The linkage lives
// only in History.
type Certificate struct {
	InternalID   id.CertificateID
	PublicID     string
	OwnerRef     id.AccountID
	Product      ProductInfo
	Verification VerificationRecord
	Token        TokenBinding
	History      []HistoryEntry

	// Version supports optimistic concurrency at the store boundary.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsMinted reports whether a ledger token is bound.
func (c *Certificate) IsMinted() bool {
	return c.Token.TokenID != ""
}

// IsBurned reports whether the certificate reached its terminal state.
func (c *Certificate) IsBurned() bool {
	return c.Verification.Status == StatusBurned
}

// EnsureMutable rejects mutation of a burned certificate. Burn is terminal.
func (c *Certificate) EnsureMutable() error {
	if c.IsBurned() {
		return fmt.Errorf("certificate %s is burned: %w", c.InternalID, sentinel.ErrInvalidState)
	}
	return nil
}

// Rotate replaces the public identity and ownership in one step, appending
// the displaced identity to History. Callers persist the result with a
// version-checked put so the rotation is atomic from every observer's
// perspective.
func (c *Certificate) Rotate(newPublicID string, newOwner id.AccountID, newToken TokenBinding, now time.Time) error {
	if err := c.EnsureMutable(); err != nil {
		return err
	}
	c.History = append(c.History, HistoryEntry{
		PrevPublicID: c.PublicID,
		PrevOwnerRef: c.OwnerRef,
		Timestamp:    now,
		LedgerRef:    newToken.TxRef,
	})
	c.PublicID = newPublicID
	c.OwnerRef = newOwner
	c.Token = newToken
	c.UpdatedAt = now
	return nil
}

// MarkBurned moves the certificate to its terminal state.
func (c *Certificate) MarkBurned(txRef string, now time.Time) error {
	if err := c.EnsureMutable(); err != nil {
		return err
	}
	c.History = append(c.History, HistoryEntry{
		PrevPublicID: c.PublicID,
		PrevOwnerRef: c.OwnerRef,
		Timestamp:    now,
		LedgerRef:    txRef,
	})
	c.Verification.Status = StatusBurned
	c.UpdatedAt = now
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's record.
func (c *Certificate) Clone() *Certificate {
	out := *c
	out.History = make([]HistoryEntry, len(c.History))
	copy(out.History, c.History)
	return &out
}
