package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const mfaSetupKeyPrefix = "mfa_setup:"

var errMFASetupBackend = errors.New("mfa setup backend unavailable")

// mfaSetupRecord stages a generated secret and its plaintext backup codes
// between beginSetup and confirmSetup. Nothing is durably persisted until the
// principal proves possession of the secret.
type mfaSetupRecord struct {
	Secret      string    `json:"secret"`
	BackupCodes []string  `json:"backup_codes"`
	CreatedAt   time.Time `json:"created_at"`
}

type mfaSetupStore struct {
	redis     redis.UniversalClient
	opTimeout time.Duration
}

func newMFASetupStore(redisClient redis.UniversalClient, opTimeout time.Duration) *mfaSetupStore {
	return &mfaSetupStore{redis: redisClient, opTimeout: opTimeout}
}

func (s *mfaSetupStore) key(principalID string) string {
	return mfaSetupKeyPrefix + principalID
}

func (s *mfaSetupStore) Save(ctx context.Context, principalID string, rec mfaSetupRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.redis.Set(opCtx, s.key(principalID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errMFASetupBackend, err)
	}
	return nil
}

// Get returns the staged entry. A missing or expired entry reports ErrSetupExpired.
func (s *mfaSetupStore) Get(ctx context.Context, principalID string) (*mfaSetupRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	data, err := s.redis.Get(opCtx, s.key(principalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSetupExpired
		}
		return nil, fmt.Errorf("%w: %v", errMFASetupBackend, err)
	}

	rec := &mfaSetupRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, ErrSetupExpired
	}
	return rec, nil
}

func (s *mfaSetupStore) Delete(ctx context.Context, principalID string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.redis.Del(opCtx, s.key(principalID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errMFASetupBackend, err)
	}
	return nil
}
