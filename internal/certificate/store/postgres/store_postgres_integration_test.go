//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritag/internal/certificate/models"
	"veritag/internal/certificate/store/postgres"
	id "veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	_, err := s.pg.Pool.Exec(s.ctx, postgres.Schema)
	s.Require().NoError(err)
	s.store = postgres.New(s.pg.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(s.ctx, `TRUNCATE certificate_history, certificates`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newCertificate(publicID string) *models.Certificate {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Certificate{
		InternalID: id.NewCertificateID(),
		PublicID:   publicID,
		OwnerRef:   id.NewAccountID(),
		Product:    models.ProductInfo{Brand: "Horologe", Model: "Mariner 40", Category: "watch"},
		Verification: models.VerificationRecord{
			Status:     models.StatusVerified,
			Confidence: 0.93,
			VerifiedAt: now,
		},
		Token:     models.TokenBinding{TokenID: "tok-1", TxRef: "tx-1", Contract: "ct-1", Network: "testnet"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestPutAndGetRoundTrip() {
	cert := s.newCertificate("VT-2026-ABCDEF2345")

	s.Require().NoError(s.store.Put(s.ctx, cert, 0))
	s.Equal(1, cert.Version)

	got, err := s.store.Get(s.ctx, cert.InternalID)
	s.Require().NoError(err)
	s.Equal(cert.PublicID, got.PublicID)
	s.Equal(cert.OwnerRef, got.OwnerRef)
	s.Equal(cert.Product, got.Product)
	s.Equal(cert.Token, got.Token)
	s.Equal(models.StatusVerified, got.Verification.Status)
	s.InDelta(0.93, got.Verification.Confidence, 1e-9)
	s.Equal(1, got.Version)
	s.Empty(got.History)
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(s.ctx, id.NewCertificateID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.GetByPublicID(s.ctx, "VT-2026-ZZZZZZZZZZ")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestVersionConflictRejected() {
	cert := s.newCertificate("VT-2026-CONFLICT22")
	s.Require().NoError(s.store.Put(s.ctx, cert, 0))

	stale := cert.Clone()
	stale.Verification.Confidence = 0.5

	s.Require().NoError(s.store.Put(s.ctx, cert, 1))
	err := s.store.Put(s.ctx, stale, 1)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateOfMissingCertificateIsNotFound() {
	cert := s.newCertificate("VT-2026-NEVERMADE2")
	err := s.store.Put(s.ctx, cert, 3)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRotationSwapsPublicIndexAndAppendsHistory() {
	cert := s.newCertificate("VT-2026-OLDID23456")
	s.Require().NoError(s.store.Put(s.ctx, cert, 0))

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(cert.Rotate("VT-2026-NEWID23456", id.NewAccountID(),
		models.TokenBinding{TokenID: "tok-2", TxRef: "tx-2", Contract: "ct-1", Network: "testnet"}, now))
	s.Require().NoError(s.store.Put(s.ctx, cert, 1))

	got, err := s.store.GetByPublicID(s.ctx, "VT-2026-NEWID23456")
	s.Require().NoError(err)
	s.Require().Len(got.History, 1)
	s.Equal("VT-2026-OLDID23456", got.History[0].PrevPublicID)
	s.Equal("tx-2", got.History[0].LedgerRef)

	// The retired identity must not resolve.
	_, err = s.store.GetByPublicID(s.ctx, "VT-2026-OLDID23456")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExistsPublicID() {
	cert := s.newCertificate("VT-2026-EXISTS2345")
	s.Require().NoError(s.store.Put(s.ctx, cert, 0))

	ok, err := s.store.ExistsPublicID(s.ctx, "VT-2026-EXISTS2345")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.ExistsPublicID(s.ctx, "VT-2026-MISSING234")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresStoreSuite) TestHistorySurvivesMultipleRotations() {
	cert := s.newCertificate("VT-2026-GEN2345678")
	s.Require().NoError(s.store.Put(s.ctx, cert, 0))

	for i, next := range []string{"VT-2026-GENB234567", "VT-2026-GENC234567"} {
		now := time.Now().UTC().Truncate(time.Microsecond)
		s.Require().NoError(cert.Rotate(next, id.NewAccountID(),
			models.TokenBinding{TokenID: "tok", TxRef: "tx", Contract: "ct", Network: "testnet"}, now))
		s.Require().NoError(s.store.Put(s.ctx, cert, i+1))
	}

	got, err := s.store.Get(s.ctx, cert.InternalID)
	s.Require().NoError(err)
	s.Require().Len(got.History, 2)
	s.Equal("VT-2026-GEN2345678", got.History[0].PrevPublicID)
	s.Equal("VT-2026-GENB234567", got.History[1].PrevPublicID)
}
