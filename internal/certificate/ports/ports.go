// Package ports defines the interfaces the certificate lifecycle consumes.
// Interfaces live here because they are implemented across packages (stores,
// adapters, fakes) and consumed by the service.
package ports

import (
	"context"

	"veritag/internal/certificate/models"
	id "veritag/pkg/domain"
	"veritag/pkg/platform/audit"
)

// Store is the persistent-entity adapter for certificates.
//
// Error contract: Get returns sentinel.ErrNotFound for unknown keys; Put
// returns sentinel.ErrConflict when expectedVersion does not match the stored
// version (another writer won); infrastructure failures are wrapped errors.
type Store interface {
	Get(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)

	// GetByPublicID resolves the stored, authoritative public identifier.
	// Display-time identifiers are not resolvable by design.
	GetByPublicID(ctx context.Context, publicID string) (*models.Certificate, error)

	// Put persists the certificate when its stored version still equals
	// expectedVersion, then bumps the version. expectedVersion 0 means the
	// record must not exist yet.
	Put(ctx context.Context, cert *models.Certificate, expectedVersion int) error

	ExistsPublicID(ctx context.Context, publicID string) (bool, error)
}

// MintReceipt is the ledger's answer to a mint or transfer request.
type MintReceipt struct {
	TokenID  string
	TxRef    string
	Contract string
	Network  string
}

// BurnReceipt is the ledger's answer to a burn request.
type BurnReceipt struct {
	TxRef string
}

// Ledger is the external token-issuance collaborator. Every method is a
// single attempt; retry policy belongs to the adapter behind this interface,
// never to the lifecycle service. Failures and timeouts surface as errors
// wrapping sentinel.ErrUnavailable.
type Ledger interface {
	Mint(ctx context.Context, ownerRef id.AccountID, metadata map[string]string) (MintReceipt, error)
	Transfer(ctx context.Context, oldTokenID string, newOwnerRef id.AccountID, metadata map[string]string) (MintReceipt, error)
	Burn(ctx context.Context, tokenID string) (BurnReceipt, error)
}

// AuditPublisher emits audit events for lifecycle operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
