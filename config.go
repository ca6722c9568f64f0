package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Password PasswordConfig
	MFA      MFAConfig
	Cache    CacheConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	SecretKey  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	// Cost is the bcrypt work factor applied to account passwords.
	Cost int
	// BackupCodeCost is the bcrypt work factor applied to backup codes.
	// High-cardinality, short-lived secrets tolerate a lower factor to
	// bound the CPU spent on the parallel verification race.
	BackupCodeCost int
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig defines a public type used by authcore APIs.
//
// MFAConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFAConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"

	BackupCodeCount  int
	BackupCodeExpiry time.Duration
	// BackupCodeCandidates caps how many unused codes a single verification
	// call fetches and races.
	BackupCodeCandidates int
	// VerifyWorkers bounds the goroutines performing CPU-bound digest
	// comparisons (passwords and backup codes).
	VerifyWorkers int

	SetupTTL       time.Duration
	PartialAuthTTL time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig defines a public type used by authcore APIs.
//
// CacheConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CacheConfig struct {
	// OpTimeout caps every cache round trip. Operations that exceed it are
	// reported as unavailable, never silently treated as a miss.
	OpTimeout time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authcore",
		},
		Session: SessionConfig{
			RedisPrefix: "",
		},
		Password: PasswordConfig{
			Cost:           12,
			BackupCodeCost: 8,
		},
		MFA: MFAConfig{
			Issuer:               "authcore",
			Digits:               6,
			Period:               30,
			Skew:                 1,
			Algorithm:            "SHA1",
			BackupCodeCount:      10,
			BackupCodeExpiry:     365 * 24 * time.Hour,
			BackupCodeCandidates: 15,
			VerifyWorkers:        4,
			SetupTTL:             10 * time.Minute,
			PartialAuthTTL:       5 * time.Minute,
		},
		Cache: CacheConfig{
			OpTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

const minSecretKeyBytes = 32

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if len(c.Token.SecretKey) < minSecretKeyBytes {
		return errors.New("token secret key must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}
	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("password cost out of bcrypt range")
	}
	if c.Password.BackupCodeCost < 4 || c.Password.BackupCodeCost > 31 {
		return errors.New("backup code cost out of bcrypt range")
	}
	if c.MFA.Digits < 6 || c.MFA.Digits > 8 {
		return errors.New("totp digits must be 6..8")
	}
	if c.MFA.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 2 {
		return errors.New("totp skew must be 0..2 steps")
	}
	switch c.MFA.Algorithm {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported totp algorithm")
	}
	if c.MFA.BackupCodeCount < 1 || c.MFA.BackupCodeCount > 32 {
		return errors.New("backup code count must be 1..32")
	}
	if c.MFA.BackupCodeExpiry <= 0 {
		return errors.New("backup code expiry must be positive")
	}
	if c.MFA.BackupCodeCandidates < 1 {
		return errors.New("backup code candidate limit must be positive")
	}
	if c.MFA.VerifyWorkers < 1 {
		return errors.New("verify worker count must be positive")
	}
	if c.MFA.SetupTTL <= 0 || c.MFA.PartialAuthTTL <= 0 {
		return errors.New("mfa staging TTLs must be positive")
	}
	if c.Cache.OpTimeout <= 0 {
		return errors.New("cache operation timeout must be positive")
	}
	return nil
}
