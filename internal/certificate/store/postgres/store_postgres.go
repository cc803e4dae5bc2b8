// Package postgres persists certificates in PostgreSQL. History rows live in
// a child table that is strictly append-only; no query in this package, and
// no public read path anywhere, joins history into an outbound shape.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"veritag/internal/certificate/models"
	id "veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
)

// Schema is the DDL this store expects. Kept here so integration tests and
// deploy tooling share one definition.
const Schema = `
CREATE TABLE IF NOT EXISTS certificates (
	internal_id  UUID PRIMARY KEY,
	public_id    TEXT NOT NULL UNIQUE,
	owner_ref    UUID NOT NULL,
	brand        TEXT NOT NULL,
	model        TEXT NOT NULL,
	category     TEXT NOT NULL,
	status       TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	verified_at  TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	token_id     TEXT NOT NULL DEFAULT '',
	tx_ref       TEXT NOT NULL DEFAULT '',
	contract     TEXT NOT NULL DEFAULT '',
	network      TEXT NOT NULL DEFAULT '',
	version      INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS certificate_history (
	id              BIGSERIAL PRIMARY KEY,
	certificate_id  UUID NOT NULL REFERENCES certificates(internal_id) ON DELETE CASCADE,
	prev_public_id  TEXT NOT NULL,
	prev_owner_ref  UUID NOT NULL,
	ts              TIMESTAMPTZ NOT NULL,
	ledger_ref      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_certificate_history_cert
	ON certificate_history (certificate_id, id);
`

// Store is a PostgreSQL-backed certificate store.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a PostgreSQL certificate store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	cert, err := s.selectCertificate(ctx, `WHERE internal_id = $1`, uuid.UUID(certID))
	if err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *Store) GetByPublicID(ctx context.Context, publicID string) (*models.Certificate, error) {
	cert, err := s.selectCertificate(ctx, `WHERE public_id = $1`, publicID)
	if err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *Store) ExistsPublicID(ctx context.Context, publicID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificates WHERE public_id = $1)`, publicID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists public id: %w", err)
	}
	return exists, nil
}

// Put commits the certificate under optimistic concurrency and appends any
// new history rows in the same transaction, so identity rotation is atomic.
func (s *Store) Put(ctx context.Context, cert *models.Certificate, expectedVersion int) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newVersion := expectedVersion + 1
	if expectedVersion == 0 {
		err = s.insert(ctx, tx, cert, newVersion)
	} else {
		err = s.update(ctx, tx, cert, expectedVersion, newVersion)
	}
	if err != nil {
		return err
	}

	if err := s.appendHistory(ctx, tx, cert); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit put: %w", err)
	}
	cert.Version = newVersion
	return nil
}

func (s *Store) insert(ctx context.Context, tx pgx.Tx, cert *models.Certificate, version int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO certificates
			(internal_id, public_id, owner_ref, brand, model, category,
			 status, confidence, verified_at, token_id, tx_ref, contract, network,
			 version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		uuid.UUID(cert.InternalID), cert.PublicID, uuid.UUID(cert.OwnerRef),
		cert.Product.Brand, cert.Product.Model, cert.Product.Category,
		string(cert.Verification.Status), cert.Verification.Confidence, cert.Verification.VerifiedAt,
		cert.Token.TokenID, cert.Token.TxRef, cert.Token.Contract, cert.Token.Network,
		version, cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, tx pgx.Tx, cert *models.Certificate, expectedVersion, newVersion int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE certificates SET
			public_id = $2, owner_ref = $3,
			status = $4, confidence = $5, verified_at = $6,
			token_id = $7, tx_ref = $8, contract = $9, network = $10,
			version = $11, updated_at = $12
		WHERE internal_id = $1 AND version = $13`,
		uuid.UUID(cert.InternalID), cert.PublicID, uuid.UUID(cert.OwnerRef),
		string(cert.Verification.Status), cert.Verification.Confidence, cert.Verification.VerifiedAt,
		cert.Token.TokenID, cert.Token.TxRef, cert.Token.Contract, cert.Token.Network,
		newVersion, cert.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM certificates WHERE internal_id = $1)`,
			uuid.UUID(cert.InternalID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("resolve put failure: %w", err)
		}
		if !exists {
			return fmt.Errorf("certificate %s: %w", cert.InternalID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("certificate %s expected version %d: %w",
			cert.InternalID, expectedVersion, sentinel.ErrConflict)
	}
	return nil
}

// appendHistory inserts only the entries beyond what is already stored; the
// history table never sees updates or deletes.
func (s *Store) appendHistory(ctx context.Context, tx pgx.Tx, cert *models.Certificate) error {
	var stored int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM certificate_history WHERE certificate_id = $1`,
		uuid.UUID(cert.InternalID),
	).Scan(&stored); err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	if stored > len(cert.History) {
		return fmt.Errorf("history shrank for %s: %w", cert.InternalID, sentinel.ErrInvalidState)
	}
	for _, entry := range cert.History[stored:] {
		if _, err := tx.Exec(ctx, `
			INSERT INTO certificate_history
				(certificate_id, prev_public_id, prev_owner_ref, ts, ledger_ref)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.UUID(cert.InternalID), entry.PrevPublicID, uuid.UUID(entry.PrevOwnerRef),
			entry.Timestamp, entry.LedgerRef,
		); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}
	return nil
}

func (s *Store) selectCertificate(ctx context.Context, where string, arg any) (*models.Certificate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT internal_id, public_id, owner_ref, brand, model, category,
		       status, confidence, verified_at, token_id, tx_ref, contract, network,
		       version, created_at, updated_at
		FROM certificates `+where, arg)

	var (
		cert       models.Certificate
		internalID uuid.UUID
		ownerRef   uuid.UUID
		status     string
	)
	err := row.Scan(
		&internalID, &cert.PublicID, &ownerRef,
		&cert.Product.Brand, &cert.Product.Model, &cert.Product.Category,
		&status, &cert.Verification.Confidence, &cert.Verification.VerifiedAt,
		&cert.Token.TokenID, &cert.Token.TxRef, &cert.Token.Contract, &cert.Token.Network,
		&cert.Version, &cert.CreatedAt, &cert.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("certificate: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select certificate: %w", err)
	}
	cert.InternalID = id.CertificateID(internalID)
	cert.OwnerRef = id.AccountID(ownerRef)
	cert.Verification.Status = models.VerificationStatus(status)
	return &cert, nil
}

func (s *Store) loadHistory(ctx context.Context, cert *models.Certificate) error {
	rows, err := s.pool.Query(ctx, `
		SELECT prev_public_id, prev_owner_ref, ts, ledger_ref
		FROM certificate_history
		WHERE certificate_id = $1
		ORDER BY id`,
		uuid.UUID(cert.InternalID))
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry    models.HistoryEntry
			ownerRef uuid.UUID
		)
		if err := rows.Scan(&entry.PrevPublicID, &ownerRef, &entry.Timestamp, &entry.LedgerRef); err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		entry.PrevOwnerRef = id.AccountID(ownerRef)
		cert.History = append(cert.History, entry)
	}
	return rows.Err()
}
