package authcore

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/craftsec/authcore/internal"
)

const (
	backupCodeLength = 8
	qrImageSize      = 256
)

// BeginMFASetup describes the beginmfasetup operation and its observable behavior.
//
// BeginMFASetup may return an error when input validation, dependency calls, or security checks fail.
// BeginMFASetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Nothing is durably persisted here. The generated secret and plaintext backup
// codes are staged in the cache under a short TTL and committed only by
// [Engine.ConfirmMFASetup]. The plaintext codes are returned exactly once.
func (e *Engine) BeginMFASetup(ctx context.Context, principalID, currentPassword string) (*MFASetupResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	principal, err := e.loadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if principal.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	ok, err := e.verifyPassword(ctx, currentPassword, principal.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	_, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	codes := make([]string, e.config.MFA.BackupCodeCount)
	for i := range codes {
		code, err := internal.NewBackupCode(backupCodeLength)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}

	uri := e.totp.ProvisionURI(secretBase32, principal.Email)
	png, err := qrcode.Encode(uri, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, err
	}

	rec := mfaSetupRecord{
		Secret:      secretBase32,
		BackupCodes: codes,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.setup.Save(ctx, principalID, rec, e.config.MFA.SetupTTL); err != nil {
		e.metricInc(MetricStorageUnavailable)
		return nil, errors.Join(ErrStorageUnavailable, err)
	}

	e.metricInc(MetricMFASetupBegun)
	e.emitAudit(ctx, auditEventMFASetupRequested, true, principalID, "", nil, nil)

	return &MFASetupResult{
		Secret:          secretBase32,
		ProvisioningURI: uri,
		QRCodePNG:       "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		BackupCodes:     codes,
	}, nil
}

// ConfirmMFASetup describes the confirmmfasetup operation and its observable behavior.
//
// ConfirmMFASetup may return an error when input validation, dependency calls, or security checks fail.
// ConfirmMFASetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The submitted code proves the authenticator holds the staged secret. Only
// then are the enabled flag, the secret, and the hashed backup codes persisted,
// in one store transaction.
func (e *Engine) ConfirmMFASetup(ctx context.Context, principalID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	staged, err := e.setup.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, errMFASetupBackend) {
			e.metricInc(MetricStorageUnavailable)
			return errors.Join(ErrStorageUnavailable, err)
		}
		return ErrSetupExpired
	}

	ok, _, err := e.totp.VerifyCode(staged.Secret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(ctx, auditEventMFALoginFailure, false, principalID, "", ErrMFACodeInvalid, nil)
		return ErrMFACodeInvalid
	}

	records, err := e.hashBackupCodes(ctx, principalID, staged.BackupCodes)
	if err != nil {
		return err
	}

	if err := e.principals.EnableMFA(ctx, principalID, staged.Secret, records); err != nil {
		e.metricInc(MetricStorageUnavailable)
		return errors.Join(ErrStorageUnavailable, err)
	}

	if err := e.setup.Delete(ctx, principalID); err != nil {
		e.metricInc(MetricStorageUnavailable)
		log.Print("authcore: staged setup cleanup failed after commit")
	}

	e.metricInc(MetricMFASetupConfirmed)
	e.emitAudit(ctx, auditEventMFAEnabled, true, principalID, "", nil, nil)
	return nil
}

// VerifyMFACode describes the verifymfacode operation and its observable behavior.
//
// VerifyMFACode may return an error when input validation, dependency calls, or security checks fail.
// VerifyMFACode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The time-based code is checked first. When it fails and checkBackup is set,
// verification falls through to the single-use backup codes.
func (e *Engine) VerifyMFACode(ctx context.Context, principalID, code string, checkBackup bool) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}

	principal, err := e.loadPrincipal(ctx, principalID)
	if err != nil {
		return false, err
	}

	return e.verifyCode(ctx, principal, code, checkBackup)
}

func (e *Engine) verifyCode(ctx context.Context, principal *PrincipalRecord, code string, checkBackup bool) (bool, error) {
	if !principal.MFAEnabled || principal.MFASecret == "" {
		return false, ErrMFANotEnabled
	}

	ok, _, err := e.totp.VerifyCode(principal.MFASecret, code, time.Now())
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if !checkBackup {
		return false, nil
	}

	return e.verifyBackupCode(ctx, principal.ID, code)
}

func (e *Engine) verifyTOTPOnly(principal *PrincipalRecord, code string) (bool, error) {
	if !principal.MFAEnabled || principal.MFASecret == "" {
		return false, ErrMFANotEnabled
	}
	ok, _, err := e.totp.VerifyCode(principal.MFASecret, code, time.Now())
	if err != nil {
		return false, err
	}
	return ok, nil
}

// DisableMFA describes the disablemfa operation and its observable behavior.
//
// DisableMFA may return an error when input validation, dependency calls, or security checks fail.
// DisableMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Disabling requires the current password AND a valid current code, either
// time-based or backup. Disabling twice reports ErrMFANotEnabled the second
// time.
func (e *Engine) DisableMFA(ctx context.Context, principalID, currentPassword, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	principal, err := e.loadPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	if !principal.MFAEnabled {
		return ErrMFANotEnabled
	}

	ok, err := e.verifyPassword(ctx, currentPassword, principal.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	ok, err = e.verifyCode(ctx, principal, code, true)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMFACodeInvalid
	}

	if err := e.principals.DisableMFA(ctx, principalID); err != nil {
		e.metricInc(MetricStorageUnavailable)
		return errors.Join(ErrStorageUnavailable, err)
	}

	e.metricInc(MetricMFADisabled)
	e.emitAudit(ctx, auditEventMFADisabled, true, principalID, "", nil, nil)
	return nil
}

// RegenerateBackupCodes describes the regeneratebackupcodes operation and its observable behavior.
//
// RegenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// RegenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// All prior codes, used or not, are discarded. Requires the current password
// only.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, principalID, currentPassword string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	principal, err := e.loadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !principal.MFAEnabled {
		return nil, ErrMFANotEnabled
	}

	ok, err := e.verifyPassword(ctx, currentPassword, principal.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	codes := make([]string, e.config.MFA.BackupCodeCount)
	for i := range codes {
		code, err := internal.NewBackupCode(backupCodeLength)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}

	records, err := e.hashBackupCodes(ctx, principalID, codes)
	if err != nil {
		return nil, err
	}
	if err := e.principals.ReplaceBackupCodes(ctx, principalID, records); err != nil {
		e.metricInc(MetricStorageUnavailable)
		return nil, errors.Join(ErrStorageUnavailable, err)
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, principalID, "", nil, nil)
	return codes, nil
}

// BackupCodesStatus describes the backupcodesstatus operation and its observable behavior.
//
// BackupCodesStatus may return an error when input validation, dependency calls, or security checks fail.
// BackupCodesStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BackupCodesStatus(ctx context.Context, principalID string) (*BackupCodesInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	principal, err := e.loadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !principal.MFAEnabled {
		return nil, ErrMFANotEnabled
	}

	total, used, err := e.principals.CountBackupCodes(ctx, principalID)
	if err != nil {
		e.metricInc(MetricStorageUnavailable)
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	return &BackupCodesInfo{Total: total, Used: used, Remaining: total - used}, nil
}

func (e *Engine) hashBackupCodes(ctx context.Context, principalID string, codes []string) ([]BackupCodeRecord, error) {
	now := time.Now().UTC()
	records := make([]BackupCodeRecord, 0, len(codes))
	for _, code := range codes {
		if err := e.gate.Acquire(ctx); err != nil {
			return nil, err
		}
		digest, err := e.hasher.HashBackupCode(internal.CanonicalizeBackupCode(code))
		e.gate.Release()
		if err != nil {
			return nil, err
		}
		records = append(records, BackupCodeRecord{
			PrincipalID: principalID,
			CodeHash:    digest,
			GeneratedAt: now,
			ExpiresAt:   now.Add(e.config.MFA.BackupCodeExpiry),
		})
	}
	return records, nil
}
