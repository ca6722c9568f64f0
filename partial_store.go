package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const partialAuthKeyPrefix = "partial_auth:"

var errPartialAuthBackend = errors.New("partial auth backend unavailable")

type partialAuthRecord struct {
	PrincipalID string    `json:"principal_id"`
	IssuedAt    time.Time `json:"issued_at"`
}

// partialAuthStore stages the handshake between a correct password and a
// completed second factor. Entries are single-use: Take removes the entry in
// the same round trip that reads it, so a replayed token observes a miss.
type partialAuthStore struct {
	redis     redis.UniversalClient
	opTimeout time.Duration
}

func newPartialAuthStore(redisClient redis.UniversalClient, opTimeout time.Duration) *partialAuthStore {
	return &partialAuthStore{redis: redisClient, opTimeout: opTimeout}
}

func (s *partialAuthStore) key(token string) string {
	return partialAuthKeyPrefix + token
}

func (s *partialAuthStore) Save(ctx context.Context, token string, rec partialAuthRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.redis.Set(opCtx, s.key(token), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPartialAuthBackend, err)
	}
	return nil
}

// Take consumes the entry. A missing or expired entry reports ErrSessionExpired.
func (s *partialAuthStore) Take(ctx context.Context, token string) (*partialAuthRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	data, err := s.redis.GetDel(opCtx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", errPartialAuthBackend, err)
	}

	rec := &partialAuthRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, ErrSessionExpired
	}
	return rec, nil
}

// Restore re-stages a consumed entry so a failed code submission does not burn
// the whole handshake window.
func (s *partialAuthStore) Restore(ctx context.Context, token string, rec *partialAuthRecord, ttl time.Duration) error {
	remaining := ttl - time.Since(rec.IssuedAt)
	if remaining <= 0 {
		return nil
	}
	return s.Save(ctx, token, *rec, remaining)
}
