package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBeginMFASetupStagesWithoutPersisting(t *testing.T) {
	cfg := testConfig()
	e, principals, _, _, done := newTestEngine(t, cfg)
	defer done()
	ctx := context.Background()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")

	setup, err := e.BeginMFASetup(ctx, "p1", "hunter2hunter2")
	if err != nil {
		t.Fatalf("begin setup: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("expected a staged secret")
	}
	if len(setup.BackupCodes) != cfg.MFA.BackupCodeCount {
		t.Fatalf("expected %d backup codes, got %d", cfg.MFA.BackupCodeCount, len(setup.BackupCodes))
	}
	for _, code := range setup.BackupCodes {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("backup code %q not in XXXX-XXXX form", code)
		}
	}
	if !strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("provisioning URI %q", setup.ProvisioningURI)
	}
	if !strings.HasPrefix(setup.QRCodePNG, "data:image/png;base64,") {
		t.Fatal("expected PNG data URI")
	}

	// Nothing durable yet.
	p, err := principals.GetPrincipalByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get principal: %v", err)
	}
	if p.MFAEnabled || p.MFASecret != "" {
		t.Fatalf("setup must not persist before confirmation: %+v", p)
	}
}

func TestBeginMFASetupRequiresPassword(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")

	if _, err := e.BeginMFASetup(context.Background(), "p1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := e.BeginMFASetup(context.Background(), "missing", "hunter2hunter2"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestBeginMFASetupRejectsWhenAlreadyEnabled(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")
	enableMFAFor(t, e, "p1", "hunter2hunter2")

	if _, err := e.BeginMFASetup(context.Background(), "p1", "hunter2hunter2"); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("expected ErrMFAAlreadyEnabled, got %v", err)
	}
}

func TestConfirmMFASetupPersistsInOneStep(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")
	setup, err := e.BeginMFASetup(ctx, "p1", "hunter2hunter2")
	if err != nil {
		t.Fatalf("begin setup: %v", err)
	}

	if err := e.ConfirmMFASetup(ctx, "p1", "000000"); !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected ErrMFACodeInvalid for wrong code, got %v", err)
	}

	code, err := e.totp.CodeAt(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("code at: %v", err)
	}
	if err := e.ConfirmMFASetup(ctx, "p1", code); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	p, err := principals.GetPrincipalByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get principal: %v", err)
	}
	if !p.MFAEnabled || p.MFASecret != setup.Secret {
		t.Fatalf("expected durable MFA state, got %+v", p)
	}

	info, err := e.BackupCodesStatus(ctx, "p1")
	if err != nil {
		t.Fatalf("backup codes status: %v", err)
	}
	if info.Total != e.config.MFA.BackupCodeCount || info.Remaining != info.Total {
		t.Fatalf("unexpected backup code info %+v", info)
	}

	// The staged entry is gone.
	if err := e.ConfirmMFASetup(ctx, "p1", code); !errors.Is(err, ErrSetupExpired) {
		t.Fatalf("expected ErrSetupExpired after commit, got %v", err)
	}
}

func TestConfirmMFASetupExpiresWithTTL(t *testing.T) {
	e, principals, _, mr, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")
	setup, err := e.BeginMFASetup(ctx, "p1", "hunter2hunter2")
	if err != nil {
		t.Fatalf("begin setup: %v", err)
	}

	mr.FastForward(11 * time.Minute)

	code, err := e.totp.CodeAt(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("code at: %v", err)
	}
	if err := e.ConfirmMFASetup(ctx, "p1", code); !errors.Is(err, ErrSetupExpired) {
		t.Fatalf("expected ErrSetupExpired, got %v", err)
	}
}

func TestVerifyMFACodeTOTPAndBackupFallthrough(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")
	secret, backupCodes := enableMFAFor(t, e, "p1", "hunter2hunter2")

	code, err := e.totp.CodeAt(secret, time.Now())
	if err != nil {
		t.Fatalf("code at: %v", err)
	}
	ok, err := e.VerifyMFACode(ctx, "p1", code, true)
	if err != nil || !ok {
		t.Fatalf("totp verify: ok=%v err=%v", ok, err)
	}

	ok, err = e.VerifyMFACode(ctx, "p1", backupCodes[2], true)
	if err != nil || !ok {
		t.Fatalf("backup verify: ok=%v err=%v", ok, err)
	}

	// Reuse of the consumed code fails.
	ok, err = e.VerifyMFACode(ctx, "p1", backupCodes[2], true)
	if err != nil {
		t.Fatalf("reuse verify: %v", err)
	}
	if ok {
		t.Fatal("a backup code must never verify twice")
	}

	info, err := e.BackupCodesStatus(ctx, "p1")
	if err != nil {
		t.Fatalf("backup codes status: %v", err)
	}
	if info.Used != 1 || info.Remaining != info.Total-1 {
		t.Fatalf("unexpected backup code info %+v", info)
	}

	// checkBackup=false never touches backup codes.
	ok, err = e.VerifyMFACode(ctx, "p1", backupCodes[3], false)
	if err != nil {
		t.Fatalf("verify without backup: %v", err)
	}
	if ok {
		t.Fatal("backup code must not verify when fallthrough is disabled")
	}
}

func TestVerifyMFACodeRequiresEnabledMFA(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")

	if _, err := e.VerifyMFACode(context.Background(), "p1", "123456", true); !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("expected ErrMFANotEnabled, got %v", err)
	}
}

func TestMFAOperationsFailClosedOnStorageFault(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")
	enableMFAFor(t, e, "p1", "hunter2hunter2")

	principals.mu.Lock()
	principals.failWith = errors.New("db gone")
	principals.mu.Unlock()

	// A failing account lookup is a backend fault, never a missing account.
	checks := []struct {
		name string
		call func() error
	}{
		{"begin setup", func() error {
			_, err := e.BeginMFASetup(ctx, "p1", "hunter2hunter2")
			return err
		}},
		{"verify code", func() error {
			_, err := e.VerifyMFACode(ctx, "p1", "123456", true)
			return err
		}},
		{"disable", func() error {
			return e.DisableMFA(ctx, "p1", "hunter2hunter2", "123456")
		}},
		{"regenerate", func() error {
			_, err := e.RegenerateBackupCodes(ctx, "p1", "hunter2hunter2")
			return err
		}},
		{"status", func() error {
			_, err := e.BackupCodesStatus(ctx, "p1")
			return err
		}},
	}
	for _, check := range checks {
		err := check.call()
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("%s: expected ErrStorageUnavailable, got %v", check.name, err)
		}
		if errors.Is(err, ErrPrincipalNotFound) {
			t.Fatalf("%s: a backend fault must not report a missing account", check.name)
		}
	}
}

func TestDisableMFARequiresPasswordAndCode(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")
	secret, backupCodes := enableMFAFor(t, e, "p1", "hunter2hunter2")

	code, err := e.totp.CodeAt(secret, time.Now())
	if err != nil {
		t.Fatalf("code at: %v", err)
	}

	if err := e.DisableMFA(ctx, "p1", "wrong password", code); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := e.DisableMFA(ctx, "p1", "hunter2hunter2", "000000"); !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected ErrMFACodeInvalid, got %v", err)
	}

	// A backup code is an acceptable second factor for disabling.
	if err := e.DisableMFA(ctx, "p1", "hunter2hunter2", backupCodes[0]); err != nil {
		t.Fatalf("disable with backup code: %v", err)
	}

	p, err := principals.GetPrincipalByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get principal: %v", err)
	}
	if p.MFAEnabled || p.MFASecret != "" {
		t.Fatalf("expected cleared MFA state, got %+v", p)
	}

	// Second disable is a definitive no-op error.
	if err := e.DisableMFA(ctx, "p1", "hunter2hunter2", backupCodes[1]); !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("expected ErrMFANotEnabled, got %v", err)
	}
}

func TestRegenerateBackupCodesDiscardsOldBatch(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")
	_, oldCodes := enableMFAFor(t, e, "p1", "hunter2hunter2")

	// Spend one old code first.
	ok, err := e.VerifyMFACode(ctx, "p1", oldCodes[0], true)
	if err != nil || !ok {
		t.Fatalf("spend old code: ok=%v err=%v", ok, err)
	}

	newCodes, err := e.RegenerateBackupCodes(ctx, "p1", "hunter2hunter2")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(newCodes) != e.config.MFA.BackupCodeCount {
		t.Fatalf("expected %d fresh codes, got %d", e.config.MFA.BackupCodeCount, len(newCodes))
	}

	info, err := e.BackupCodesStatus(ctx, "p1")
	if err != nil {
		t.Fatalf("backup codes status: %v", err)
	}
	if info.Used != 0 || info.Total != e.config.MFA.BackupCodeCount {
		t.Fatalf("regeneration must drop all prior rows: %+v", info)
	}

	// Old codes are gone for good.
	ok, err = e.VerifyMFACode(ctx, "p1", oldCodes[1], true)
	if err != nil {
		t.Fatalf("verify old code: %v", err)
	}
	if ok {
		t.Fatal("codes from a discarded batch must not verify")
	}
}

func TestRegenerateBackupCodesRequiresMFA(t *testing.T) {
	e, principals, _, _, done := newTestEngine(t, testConfig())
	defer done()

	seedPrincipal(t, e, principals, "p1", "p1@example.com", "hunter2hunter2")

	if _, err := e.RegenerateBackupCodes(context.Background(), "p1", "hunter2hunter2"); !errors.Is(err, ErrMFANotEnabled) {
		t.Fatalf("expected ErrMFANotEnabled, got %v", err)
	}
}
