package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/craftsec/authcore/internal/audit"
)

// PrincipalRecord is the full account record returned by [PrincipalStore].
// It carries the credential hash, MFA state, role label, and account flags.
type PrincipalRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	MFAEnabled   bool
	MFASecret    string
	IsActive     bool
	IsVerified   bool
	LastLoginAt  *time.Time
}

// BackupCodeRecord stores the one-way hash of a single recovery code.
// The plaintext is never persisted.
type BackupCodeRecord struct {
	ID          string
	PrincipalID string
	CodeHash    string
	IsUsed      bool
	UsedAt      *time.Time
	UsedFrom    string
	GeneratedAt time.Time
	ExpiresAt   time.Time
}

// PrincipalStore is the primary interface that callers must implement to
// integrate authcore with their user database. It covers account lookup,
// MFA secret management, and backup-code storage.
type PrincipalStore interface {
	// Lookups report a missing account with an error wrapping
	// [ErrPrincipalNotFound] or with a nil record and nil error. Any other
	// error is treated as an unavailable backend and surfaced as
	// [ErrStorageUnavailable] on authenticated operations.
	GetPrincipalByEmail(ctx context.Context, email string) (*PrincipalRecord, error)
	GetPrincipalByID(ctx context.Context, principalID string) (*PrincipalRecord, error)
	TouchLogin(ctx context.Context, principalID string, at time.Time) error

	// EnableMFA persists the shared secret, the hashed backup codes, and the
	// enabled flag in one transaction. DisableMFA clears the secret and
	// deletes every backup-code row for the principal.
	EnableMFA(ctx context.Context, principalID, secret string, codes []BackupCodeRecord) error
	DisableMFA(ctx context.Context, principalID string) error

	UnusedBackupCodes(ctx context.Context, principalID string, limit int) ([]BackupCodeRecord, error)
	CountBackupCodes(ctx context.Context, principalID string) (total, used int, err error)
	ReplaceBackupCodes(ctx context.Context, principalID string, codes []BackupCodeRecord) error

	// ConsumeBackupCode flips a single row from unused to used, guarded so
	// that only one concurrent caller can win for a given row. It reports
	// false when the row was already consumed.
	ConsumeBackupCode(ctx context.Context, codeID, origin string, at time.Time) (bool, error)
}

// PrincipalSummary is the caller-facing slice of a principal returned with
// successful authentication results.
type PrincipalSummary struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	MFAEnabled bool   `json:"mfa_enabled"`
	IsVerified bool   `json:"is_verified"`
}

// AuthResult is returned on successful authentication. ExpiresIn is the
// access-token lifetime in seconds.
type AuthResult struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	Principal    PrincipalSummary `json:"principal"`
}

// LoginOutcome tags the two non-error results a login can produce.
type LoginOutcome uint8

const (
	// LoginSucceeded is an exported constant or variable used by the authentication engine.
	LoginSucceeded LoginOutcome = iota
	// LoginMFAPending is an exported constant or variable used by the authentication engine.
	LoginMFAPending
)

// LoginResult is returned by [Engine.Login]. Callers branch on Outcome:
// LoginSucceeded carries Auth, LoginMFAPending carries PartialAuthToken.
type LoginResult struct {
	Outcome          LoginOutcome
	Auth             *AuthResult
	PartialAuthToken string
}

// MFASetupResult holds the staged shared secret, its provisioning encodings,
// and the plaintext backup codes. It is returned exactly once, at setup time.
type MFASetupResult struct {
	Secret          string
	ProvisioningURI string
	QRCodePNG       string
	BackupCodes     []string
}

// BackupCodesInfo reports backup-code consumption for a principal.
type BackupCodesInfo struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// AuditEvent is re-exported so integrators can consume events without
// importing the internal package.
type AuditEvent = internalaudit.Event

// AuditSink is re-exported so integrators can supply custom sinks.
type AuditSink = internalaudit.Sink

// NewAuditChannelSink returns a sink backed by a buffered channel.
func NewAuditChannelSink(buffer int) *internalaudit.ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewAuditJSONSink returns a sink writing one JSON event per line.
func NewAuditJSONSink(w io.Writer) AuditSink {
	return internalaudit.NewJSONWriterSink(w)
}
