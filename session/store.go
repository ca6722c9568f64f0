package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("session: redis unavailable")

// ErrNotFound is returned when no metadata exists for a session identifier.
var ErrNotFound = errors.New("session: not found")

// ErrInvalidTTL is returned when a revocation is requested with a non-positive lifetime.
var ErrInvalidTTL = errors.New("session: ttl must be positive")

const (
	sessionKeyPrefix   = "session:"
	blacklistKeyPrefix = "blacklisted_token:"
)

// Store defines a public type used by authcore APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	rdb       redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// NewStore describes the newstore operation and its observable behavior.
//
// NewStore may return an error when input validation, dependency calls, or security checks fail.
// NewStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewStore(rdb redis.UniversalClient, prefix string, opTimeout time.Duration) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("session: redis client is required")
	}
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &Store{rdb: rdb, prefix: prefix, opTimeout: opTimeout}, nil
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionKeyPrefix + sessionID
}

func (s *Store) blacklistKey(sessionID string) string {
	return s.prefix + blacklistKeyPrefix + sessionID
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Record describes the record operation and its observable behavior.
//
// Record may return an error when input validation, dependency calls, or security checks fail.
// Record does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.SessionID == "" || rec.PrincipalID == "" {
		return errors.New("session: session id and principal id are required")
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Set(opCtx, s.key(rec.SessionID), blob, ttl).Err(); err != nil {
		return errors.Join(ErrRedisUnavailable, err)
	}
	return nil
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	blob, err := s.rdb.Get(opCtx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrRedisUnavailable, err)
	}

	rec := &Record{}
	if err := json.Unmarshal(blob, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Drop removes session metadata. Dropping an absent session is not an error.
//
// Drop does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Drop(ctx context.Context, sessionID string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Del(opCtx, s.key(sessionID)).Err(); err != nil {
		return errors.Join(ErrRedisUnavailable, err)
	}
	return nil
}

// Blacklist marks a session identifier revoked for ttl. Revoking an already
// revoked identifier refreshes the entry and is not an error.
//
// Blacklist may return an error when input validation, dependency calls, or security checks fail.
// Blacklist does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Blacklist(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return errors.New("session: session id is required")
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Set(opCtx, s.blacklistKey(sessionID), "true", ttl).Err(); err != nil {
		return errors.Join(ErrRedisUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether a session identifier has been revoked.
// When Redis cannot answer, the error is surfaced so callers can fail closed.
//
// IsBlacklisted may return an error when input validation, dependency calls, or security checks fail.
// IsBlacklisted does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) IsBlacklisted(ctx context.Context, sessionID string) (bool, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.rdb.Exists(opCtx, s.blacklistKey(sessionID)).Result()
	if err != nil {
		return false, errors.Join(ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
