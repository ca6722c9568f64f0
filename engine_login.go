package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/craftsec/authcore/internal"
	"github.com/craftsec/authcore/rbac"
	"github.com/craftsec/authcore/session"
	"github.com/craftsec/authcore/token"
)

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Login never reveals whether the email exists: lookup misses and password
// mismatches both surface as ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	return e.login(ctx, email, plainPassword, "")
}

// LoginWithCode describes the loginwithcode operation and its observable behavior.
//
// LoginWithCode may return an error when input validation, dependency calls, or security checks fail.
// LoginWithCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The second factor is supplied inline, so a successful call mints tokens
// directly instead of suspending into the partial handshake. The code may be
// time-based or a backup code; this is the only login path that accepts
// backup codes. Accounts without MFA ignore the code.
func (e *Engine) LoginWithCode(ctx context.Context, email, plainPassword, code string) (*LoginResult, error) {
	return e.login(ctx, email, plainPassword, code)
}

func (e *Engine) login(ctx context.Context, email, plainPassword, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if email == "" || plainPassword == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	principal, err := e.principals.GetPrincipalByEmail(ctx, email)
	if err != nil || principal == nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrPrincipalNotFound, nil)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.verifyPassword(ctx, plainPassword, principal.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if !principal.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	if principal.MFAEnabled {
		if code == "" {
			partialToken, err := internal.NewOpaqueToken()
			if err != nil {
				return nil, err
			}
			rec := partialAuthRecord{PrincipalID: principal.ID, IssuedAt: time.Now().UTC()}
			if err := e.partial.Save(ctx, partialToken, rec, e.config.MFA.PartialAuthTTL); err != nil {
				e.metricInc(MetricStorageUnavailable)
				return nil, errors.Join(ErrStorageUnavailable, err)
			}

			e.metricInc(MetricMFALoginRequired)
			e.emitAudit(ctx, auditEventMFARequired, true, principal.ID, "", nil, nil)
			return &LoginResult{Outcome: LoginMFAPending, PartialAuthToken: partialToken}, nil
		}

		ok, err := e.verifyCode(ctx, principal, code, true)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.metricInc(MetricMFALoginFailure)
			e.emitAudit(ctx, auditEventMFALoginFailure, false, principal.ID, "", ErrMFACodeInvalid, nil)
			return nil, ErrMFACodeInvalid
		}

		auth, err := e.mintAuthResult(ctx, principal)
		if err != nil {
			return nil, err
		}
		e.touchLogin(ctx, principal.ID)

		e.metricInc(MetricMFALoginSuccess)
		e.emitAudit(ctx, auditEventMFALoginSuccess, true, principal.ID, "", nil, nil)
		return &LoginResult{Outcome: LoginSucceeded, Auth: auth}, nil
	}

	auth, err := e.mintAuthResult(ctx, principal)
	if err != nil {
		return nil, err
	}
	e.touchLogin(ctx, principal.ID)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, principal.ID, "", nil, nil)
	return &LoginResult{Outcome: LoginSucceeded, Auth: auth}, nil
}

// CompleteMFALogin describes the completemfalogin operation and its observable behavior.
//
// CompleteMFALogin may return an error when input validation, dependency calls, or security checks fail.
// CompleteMFALogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Backup codes are not accepted here. A principal who lost the authenticator
// submits the backup code inline via [Engine.LoginWithCode], where its
// consumption is audited.
func (e *Engine) CompleteMFALogin(ctx context.Context, partialToken, code string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.partial.Take(ctx, partialToken)
	if err != nil {
		if errors.Is(err, errPartialAuthBackend) {
			e.metricInc(MetricStorageUnavailable)
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
		e.metricInc(MetricMFALoginFailure)
		e.emitAudit(ctx, auditEventMFALoginFailure, false, "", "", ErrSessionExpired, nil)
		return nil, ErrSessionExpired
	}

	principal, err := e.loadPrincipal(ctx, rec.PrincipalID)
	if err != nil {
		if !errors.Is(err, ErrStorageUnavailable) {
			e.metricInc(MetricMFALoginFailure)
		}
		return nil, err
	}
	if !principal.IsActive {
		return nil, ErrAccountInactive
	}

	ok, err := e.verifyTOTPOnly(principal, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Re-stage the handshake so one mistyped code does not force a fresh
		// password login within the TTL window.
		if restoreErr := e.partial.Restore(ctx, partialToken, rec, e.config.MFA.PartialAuthTTL); restoreErr != nil {
			e.metricInc(MetricStorageUnavailable)
			log.Print("authcore: partial auth re-stage failed after rejected code")
		}
		e.metricInc(MetricMFALoginFailure)
		e.emitAudit(ctx, auditEventMFALoginFailure, false, principal.ID, "", ErrMFACodeInvalid, nil)
		return nil, ErrMFACodeInvalid
	}

	auth, err := e.mintAuthResult(ctx, principal)
	if err != nil {
		return nil, err
	}
	e.touchLogin(ctx, principal.ID)

	e.metricInc(MetricMFALoginSuccess)
	e.emitAudit(ctx, auditEventMFALoginSuccess, true, principal.ID, "", nil, nil)
	return auth, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The presented refresh token is revoked BEFORE new tokens are minted. If the
// revocation write fails the rotation is aborted, so a token can never spawn
// two descendants.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.verifyToken(refreshToken, token.KindRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return nil, err
	}

	revoked, err := e.sessions.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricStorageUnavailable)
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	if revoked {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.PrincipalID, claims.ID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	principal, err := e.loadPrincipal(ctx, claims.PrincipalID)
	if err != nil {
		if !errors.Is(err, ErrStorageUnavailable) {
			e.metricInc(MetricRefreshFailure)
		}
		return nil, err
	}
	if !principal.IsActive {
		return nil, ErrAccountInactive
	}

	if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
		if err := e.sessions.Blacklist(ctx, claims.ID, remaining); err != nil {
			e.metricInc(MetricStorageUnavailable)
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
	}
	e.metricInc(MetricTokenRevoked)

	auth, err := e.mintAuthResult(ctx, principal)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, principal.ID, claims.ID, nil, nil)
	return auth, nil
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// When the revocation list cannot be consulted, Validate denies with
// ErrStorageUnavailable rather than accepting a possibly revoked token.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*token.Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.verifyToken(accessToken, token.KindAccess)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, err
	}

	revoked, err := e.sessions.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricStorageUnavailable)
		e.emitAudit(ctx, auditEventValidateFailure, false, claims.PrincipalID, claims.ID, ErrStorageUnavailable, nil)
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	if revoked {
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventValidateFailure, false, claims.PrincipalID, claims.ID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	e.metricInc(MetricValidateSuccess)
	return claims, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Revocation writes are best effort: a failed blacklist write means the token
// stays valid until natural expiry, which is an accepted degradation. An
// already-expired token needs no revocation entry at all.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	var principalID, sessionID string
	for _, tok := range []struct {
		value string
		kind  token.Kind
	}{
		{accessToken, token.KindAccess},
		{refreshToken, token.KindRefresh},
	} {
		if tok.value == "" {
			continue
		}
		claims, err := e.verifyToken(tok.value, tok.kind)
		if err != nil {
			// Expired or malformed tokens are already unusable. Nothing to revoke.
			continue
		}
		if principalID == "" {
			principalID = claims.PrincipalID
		}
		if tok.kind == token.KindAccess {
			sessionID = claims.ID
		}

		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			if err := e.sessions.Blacklist(ctx, claims.ID, remaining); err != nil {
				e.metricInc(MetricStorageUnavailable)
				log.Print("authcore: blacklist write failed during logout")
				continue
			}
			e.metricInc(MetricTokenRevoked)
		}
		if err := e.sessions.Drop(ctx, claims.ID); err != nil {
			e.metricInc(MetricStorageUnavailable)
			log.Print("authcore: session drop failed during logout")
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, principalID, sessionID, nil, nil)
	return nil
}

// Authorize describes the authorize operation and its observable behavior.
//
// Authorize may return an error when input validation, dependency calls, or security checks fail.
// Authorize does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authorize(ctx context.Context, accessToken, permission string, rt rbac.ResourceType, resourceID string) (*token.Claims, error) {
	claims, err := e.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if !e.resolver.HasPermission(ctx, claims.PrincipalID, permission, rt, resourceID) {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventPermissionDenied, false, claims.PrincipalID, claims.ID, ErrPermissionDenied, func() map[string]string {
			return map[string]string{
				"permission":    permission,
				"resource_type": string(rt),
				"resource_id":   resourceID,
			}
		})
		return nil, ErrPermissionDenied
	}

	e.metricInc(MetricPermissionGranted)
	return claims, nil
}

// HasPermission answers a bare permission query for an already authenticated
// principal, bypassing token checks. Storage failures resolve to deny.
func (e *Engine) HasPermission(ctx context.Context, principalID, permission string, rt rbac.ResourceType, resourceID string) bool {
	if e == nil {
		return false
	}
	granted := e.resolver.HasPermission(ctx, principalID, permission, rt, resourceID)
	if granted {
		e.metricInc(MetricPermissionGranted)
	} else {
		e.metricInc(MetricPermissionDenied)
	}
	return granted
}

// Session returns the metadata recorded for an access token's session id.
func (e *Engine) Session(ctx context.Context, sessionID string) (*session.Record, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	return rec, nil
}

func (e *Engine) verifyToken(raw string, kind token.Kind) (*token.Claims, error) {
	claims, err := e.tokens.Verify(raw, kind)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, token.ErrExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenInvalid
	}
}

// verifyPassword runs the CPU-bound digest comparison through the work gate
// so a burst of logins cannot starve the scheduler.
func (e *Engine) verifyPassword(ctx context.Context, plain, digest string) (bool, error) {
	if err := e.gate.Acquire(ctx); err != nil {
		return false, err
	}
	defer e.gate.Release()
	return e.hasher.Verify(plain, digest), nil
}

func (e *Engine) touchLogin(ctx context.Context, principalID string) {
	if err := e.principals.TouchLogin(ctx, principalID, time.Now().UTC()); err != nil {
		e.metricInc(MetricStorageUnavailable)
		log.Print("authcore: login bookkeeping update failed")
	}
}
