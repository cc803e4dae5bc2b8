// Package redis stores verification sessions in Redis so every node of a
// deployment sees the same single-use semantics.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veritag/internal/verification/models"
	"veritag/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix  = "vsn:tok:"
	consumedKeyPrefix = "vsn:used:"
)

// Store keeps sessions under their token hash with a server-side TTL. The
// single-use guarantee rides on GETDEL: whichever caller's GETDEL returns
// the value owns the session; a tombstone key distinguishes replays from
// unknown tokens for the rest of the TTL window.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Create(ctx context.Context, session *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKeyPrefix+session.TokenHash, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %v: %w", err, sentinel.ErrUnavailable)
	}
	if !ok {
		return fmt.Errorf("session %q: %w", session.TokenHash, sentinel.ErrConflict)
	}
	return nil
}

func (s *Store) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error) {
	payload, err := s.client.GetDel(ctx, sessionKeyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		used, uerr := s.client.Exists(ctx, consumedKeyPrefix+tokenHash).Result()
		if uerr != nil {
			return nil, fmt.Errorf("check consumed marker: %v: %w", uerr, sentinel.ErrUnavailable)
		}
		if used > 0 {
			return nil, fmt.Errorf("session: %w", sentinel.ErrAlreadyUsed)
		}
		// TTL expiry in Redis deletes the key outright, so a long-expired
		// session is indistinguishable from an unknown one here.
		return nil, fmt.Errorf("session: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume session: %v: %w", err, sentinel.ErrUnavailable)
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Expired(now) {
		return nil, fmt.Errorf("session: %w", sentinel.ErrExpired)
	}

	session.Phase = models.PhaseConsumed
	remaining := time.Until(session.ExpiresAt)
	if remaining > 0 {
		if err := s.client.Set(ctx, consumedKeyPrefix+tokenHash, "1", remaining).Err(); err != nil {
			return nil, fmt.Errorf("mark session consumed: %v: %w", err, sentinel.ErrUnavailable)
		}
	}
	return &session, nil
}
