package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt operates on at most 72 bytes of input.
const maxInputBytes = 72

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Cost is the bcrypt work factor applied to login passwords.
	Cost int
	// BackupCodeCost is the lower work factor applied to MFA backup codes,
	// which are high-entropy and verified in batches.
	BackupCodeCost int
}

// Hasher defines a public type used by authcore APIs.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Hasher struct {
	config Config
}

// NewHasher describes the newhasher operation and its observable behavior.
//
// NewHasher may return an error when input validation, dependency calls, or security checks fail.
// NewHasher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, errors.New("password: cost out of range")
	}
	if cfg.BackupCodeCost < bcrypt.MinCost || cfg.BackupCodeCost > bcrypt.MaxCost {
		return nil, errors.New("password: backup code cost out of range")
	}
	return &Hasher{config: cfg}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password: empty input")
	}
	if len(plain) > maxInputBytes {
		return "", errors.New("password: input exceeds 72 bytes")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.config.Cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// HashBackupCode describes the hashbackupcode operation and its observable behavior.
//
// HashBackupCode may return an error when input validation, dependency calls, or security checks fail.
// HashBackupCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) HashBackupCode(code string) (string, error) {
	if code == "" {
		return "", errors.New("password: empty input")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(code), h.config.BackupCodeCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plain matches the stored digest. A malformed digest
// is reported as a mismatch, not an error, so callers stay fail-closed.
//
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) Verify(plain, digest string) bool {
	if plain == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// NeedsUpgrade reports whether the stored digest was produced with a lower
// work factor than the currently configured login cost.
func (h *Hasher) NeedsUpgrade(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false
	}
	return cost < h.config.Cost
}
