package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftsec/authcore/internal"
	internalaudit "github.com/craftsec/authcore/internal/audit"
	"github.com/craftsec/authcore/password"
	"github.com/craftsec/authcore/rbac"
	"github.com/craftsec/authcore/session"
	"github.com/craftsec/authcore/token"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	tokens     *token.Manager
	sessions   *session.Store
	hasher     *password.Hasher
	totp       *totpManager
	partial    *partialAuthStore
	setup      *mfaSetupStore
	resolver   *rbac.Resolver
	principals PrincipalStore
	gate       *internal.WorkGate
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
}

// Deps carries the external collaborators the engine is wired with at startup.
//
// Deps instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Deps struct {
	Redis      redis.UniversalClient
	Principals PrincipalStore
	RBAC       rbac.Store
	AuditSink  AuditSink
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Redis == nil {
		return nil, errors.New("authcore: redis client is required")
	}
	if deps.Principals == nil {
		return nil, errors.New("authcore: principal store is required")
	}
	if deps.RBAC == nil {
		return nil, errors.New("authcore: rbac store is required")
	}

	tokens, err := token.NewManager(token.Config{
		SecretKey:  cfg.Token.SecretKey,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewStore(deps.Redis, cfg.Session.RedisPrefix, cfg.Cache.OpTimeout)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Cost:           cfg.Password.Cost,
		BackupCodeCost: cfg.Password.BackupCodeCost,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     cfg,
		tokens:     tokens,
		sessions:   sessions,
		hasher:     hasher,
		totp:       newTOTPManager(cfg.MFA),
		partial:    newPartialAuthStore(deps.Redis, cfg.Cache.OpTimeout),
		setup:      newMFASetupStore(deps.Redis, cfg.Cache.OpTimeout),
		principals: deps.Principals,
		gate:       internal.NewWorkGate(cfg.MFA.VerifyWorkers),
		metrics:    NewMetrics(cfg.Metrics),
	}
	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, deps.AuditSink)
	e.resolver = rbac.NewResolver(deps.RBAC, func(principalID, permission string, err error) {
		e.metricInc(MetricStorageUnavailable)
		e.emitAudit(context.Background(), auditEventPermissionDenied, false, principalID, "", ErrStorageUnavailable, func() map[string]string {
			return map[string]string{"permission": permission, "cause": err.Error()}
		})
	})

	return e, nil
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func summaryOf(p *PrincipalRecord) PrincipalSummary {
	return PrincipalSummary{
		ID:         p.ID,
		Email:      p.Email,
		Role:       p.Role,
		MFAEnabled: p.MFAEnabled,
		IsVerified: p.IsVerified,
	}
}

// loadPrincipal separates a backend fault from a genuine miss. Store
// implementations report a missing account with an error wrapping
// ErrPrincipalNotFound or with a nil record; any other error means the
// backend could not answer, which callers must not confuse with absence.
func (e *Engine) loadPrincipal(ctx context.Context, principalID string) (*PrincipalRecord, error) {
	principal, err := e.principals.GetPrincipalByID(ctx, principalID)
	switch {
	case errors.Is(err, ErrPrincipalNotFound):
		return nil, ErrPrincipalNotFound
	case err != nil:
		e.metricInc(MetricStorageUnavailable)
		return nil, errors.Join(ErrStorageUnavailable, err)
	case principal == nil:
		return nil, ErrPrincipalNotFound
	}
	return principal, nil
}

func (e *Engine) mintAuthResult(ctx context.Context, p *PrincipalRecord) (*AuthResult, error) {
	access, err := e.tokens.CreateAccess(p.ID, p.Role, map[string]any{
		"mfa_enabled": p.MFAEnabled,
		"is_verified": p.IsVerified,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.CreateRefresh(p.ID, p.Role)
	if err != nil {
		return nil, err
	}

	// Session metadata is best effort. A failed write degrades introspection,
	// not authentication.
	rec := session.Record{
		SessionID:   access.SessionID,
		PrincipalID: p.ID,
		Role:        p.Role,
		Origin:      clientOriginFromContext(ctx),
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   access.ExpiresAt,
	}
	if err := e.sessions.Record(ctx, rec); err != nil {
		e.metricInc(MetricStorageUnavailable)
		log.Print("authcore: session metadata write failed")
	}

	return &AuthResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "bearer",
		ExpiresIn:    int64(e.config.Token.AccessTTL.Seconds()),
		Principal:    summaryOf(p),
	}, nil
}
