//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritag/internal/verification/models"
	redisstore "veritag/internal/verification/store/redis"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/testutil/containers"
)

type RedisSessionStoreSuite struct {
	suite.Suite
	ctx   context.Context
	rc    *containers.RedisContainer
	store *redisstore.Store
}

func TestRedisSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisSessionStoreSuite))
}

func (s *RedisSessionStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.rc = containers.NewRedisContainer(s.T())
	s.store = redisstore.New(s.rc.Client)
}

func (s *RedisSessionStoreSuite) SetupTest() {
	s.Require().NoError(s.rc.FlushAll(s.ctx))
}

func (s *RedisSessionStoreSuite) newSession(hash string, ttl time.Duration) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		TokenHash: hash,
		Phase:     models.PhaseProductVerified,
		Findings:  models.Findings{Brand: "Horologe", Confidence: 0.88},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s *RedisSessionStoreSuite) TestCreateConsumeRoundTrip() {
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("h1", 5*time.Minute), 5*time.Minute))

	got, err := s.store.Consume(s.ctx, "h1", time.Now().UTC())
	s.Require().NoError(err)
	s.Equal("Horologe", got.Findings.Brand)
	s.Equal(models.PhaseConsumed, got.Phase)
}

func (s *RedisSessionStoreSuite) TestDoubleConsumeIsAlreadyUsed() {
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("h1", 5*time.Minute), 5*time.Minute))

	_, err := s.store.Consume(s.ctx, "h1", time.Now().UTC())
	s.Require().NoError(err)

	_, err = s.store.Consume(s.ctx, "h1", time.Now().UTC())
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *RedisSessionStoreSuite) TestUnknownHashIsNotFound() {
	_, err := s.store.Consume(s.ctx, "missing", time.Now().UTC())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisSessionStoreSuite) TestServerSideExpiry() {
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("h1", time.Second), time.Second))

	time.Sleep(1500 * time.Millisecond)

	// Redis deleted the key; the session reads as unknown.
	_, err := s.store.Consume(s.ctx, "h1", time.Now().UTC())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisSessionStoreSuite) TestDuplicateCreateRejected() {
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("h1", 5*time.Minute), 5*time.Minute))
	err := s.store.Create(s.ctx, s.newSession("h1", 5*time.Minute), 5*time.Minute)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}
