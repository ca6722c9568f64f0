package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind defines a public type used by authcore APIs.
//
// Kind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Kind string

const (
	// KindAccess is an exported constant or variable used by the authentication engine.
	KindAccess Kind = "access"
	// KindRefresh is an exported constant or variable used by the authentication engine.
	KindRefresh Kind = "refresh"
)

var (
	// ErrExpired is an exported constant or variable used by the authentication engine.
	ErrExpired = errors.New("token: expired")
	// ErrMalformed is an exported constant or variable used by the authentication engine.
	ErrMalformed = errors.New("token: malformed or tampered")
	// ErrKindMismatch is an exported constant or variable used by the authentication engine.
	ErrKindMismatch = errors.New("token: kind mismatch")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SecretKey  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Claims defines a public type used by authcore APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	PrincipalID string `json:"user_id"`
	Role        string `json:"role"`
	TokenKind   Kind   `json:"type"`
	MFAEnabled  bool   `json:"mfa_enabled,omitempty"`
	IsVerified  bool   `json:"is_verified,omitempty"`
	jwt.RegisteredClaims
}

// SessionID returns the token's unique identifier (the jti claim).
func (c *Claims) SessionID() string {
	return c.ID
}

// Manager defines a public type used by authcore APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, errors.New("token: secret key is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("token: refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issued defines a public type used by authcore APIs.
//
// Issued instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Issued struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// CreateAccess describes the createaccess operation and its observable behavior.
//
// CreateAccess may return an error when input validation, dependency calls, or security checks fail.
// CreateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Entries in extra are merged into the token payload as-is. Registered claim
// names and the manager's own wire fields cannot be shadowed; colliding extra
// entries are dropped.
func (m *Manager) CreateAccess(principalID, role string, extra map[string]any) (Issued, error) {
	return m.create(KindAccess, principalID, role, extra, m.config.AccessTTL)
}

// CreateRefresh describes the createrefresh operation and its observable behavior.
//
// CreateRefresh may return an error when input validation, dependency calls, or security checks fail.
// CreateRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) CreateRefresh(principalID, role string) (Issued, error) {
	return m.create(KindRefresh, principalID, role, nil, m.config.RefreshTTL)
}

func (m *Manager) create(kind Kind, principalID, role string, extra map[string]any, ttl time.Duration) (Issued, error) {
	if principalID == "" {
		return Issued{}, errors.New("token: principal id is required")
	}

	now := time.Now()
	expires := now.Add(ttl)
	id := uuid.NewString()

	claims := jwt.MapClaims{
		"user_id": principalID,
		"role":    role,
		"type":    string(kind),
		"jti":     id,
		"sub":     principalID,
		"exp":     jwt.NewNumericDate(expires),
		"iat":     jwt.NewNumericDate(now),
	}
	if m.config.Issuer != "" {
		claims["iss"] = m.config.Issuer
	}
	for name, value := range extra {
		if _, taken := claims[name]; taken {
			continue
		}
		claims[name] = value
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.config.SecretKey)
	if err != nil {
		return Issued{}, err
	}

	return Issued{Token: signed, SessionID: id, ExpiresAt: expires}, nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Verify(tokenStr string, want Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.SecretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.ID == "" || claims.PrincipalID == "" {
		return nil, ErrMalformed
	}
	if claims.TokenKind != want {
		return nil, ErrKindMismatch
	}

	return claims, nil
}

// PeekID describes the peekid operation and its observable behavior.
//
// PeekID may return an error when input validation, dependency calls, or security checks fail.
// PeekID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// PeekID extracts the jti claim WITHOUT verifying the signature or expiry.
// Callers must only use the result for best-effort cleanup, never for granting access.
func (m *Manager) PeekID(tokenStr string) (string, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return "", ErrMalformed
	}
	if claims.ID == "" {
		return "", ErrMalformed
	}
	return claims.ID, nil
}
