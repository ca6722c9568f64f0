package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/craftsec/authcore/rbac"
)

var errFakeNotFound = fmt.Errorf("fake: %w", ErrPrincipalNotFound)

// fakePrincipals is an in-memory PrincipalStore with the same conditional
// consume semantics a relational store provides.
type fakePrincipals struct {
	mu         sync.Mutex
	records    map[string]*PrincipalRecord
	codes      map[string]*BackupCodeRecord
	touched    map[string]time.Time
	nextCodeID int

	failWith error
}

func newFakePrincipals() *fakePrincipals {
	return &fakePrincipals{
		records: make(map[string]*PrincipalRecord),
		codes:   make(map[string]*BackupCodeRecord),
		touched: make(map[string]time.Time),
	}
}

func (f *fakePrincipals) add(p PrincipalRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.records[p.ID] = &cp
}

func (f *fakePrincipals) GetPrincipalByEmail(_ context.Context, email string) (*PrincipalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, p := range f.records {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakePrincipals) GetPrincipalByID(_ context.Context, id string) (*PrincipalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.records[id]
	if !ok {
		return nil, errFakeNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePrincipals) TouchLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

func (f *fakePrincipals) EnableMFA(_ context.Context, id, secret string, codes []BackupCodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.records[id]
	if !ok {
		return errFakeNotFound
	}
	p.MFAEnabled = true
	p.MFASecret = secret
	f.deleteCodesLocked(id)
	f.insertCodesLocked(id, codes)
	return nil
}

func (f *fakePrincipals) DisableMFA(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.records[id]
	if !ok {
		return errFakeNotFound
	}
	p.MFAEnabled = false
	p.MFASecret = ""
	f.deleteCodesLocked(id)
	return nil
}

func (f *fakePrincipals) UnusedBackupCodes(_ context.Context, id string, limit int) ([]BackupCodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	now := time.Now()
	var out []BackupCodeRecord
	for _, c := range f.codes {
		if c.PrincipalID != id || c.IsUsed || !c.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePrincipals) CountBackupCodes(_ context.Context, id string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, used int
	for _, c := range f.codes {
		if c.PrincipalID != id {
			continue
		}
		total++
		if c.IsUsed {
			used++
		}
	}
	return total, used, nil
}

func (f *fakePrincipals) ReplaceBackupCodes(_ context.Context, id string, codes []BackupCodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCodesLocked(id)
	f.insertCodesLocked(id, codes)
	return nil
}

func (f *fakePrincipals) ConsumeBackupCode(_ context.Context, codeID, origin string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[codeID]
	if !ok || c.IsUsed {
		return false, nil
	}
	c.IsUsed = true
	c.UsedAt = &at
	c.UsedFrom = origin
	return true, nil
}

func (f *fakePrincipals) deleteCodesLocked(principalID string) {
	for id, c := range f.codes {
		if c.PrincipalID == principalID {
			delete(f.codes, id)
		}
	}
}

func (f *fakePrincipals) insertCodesLocked(principalID string, codes []BackupCodeRecord) {
	for i := range codes {
		c := codes[i]
		if c.ID == "" {
			f.nextCodeID++
			c.ID = fmt.Sprintf("%s-code-%d", principalID, f.nextCodeID)
		}
		c.PrincipalID = principalID
		f.codes[c.ID] = &c
	}
}

type fakeRBAC struct {
	assignments map[string][]rbac.Assignment
	grants      map[string][]string
}

func (f *fakeRBAC) ActiveAssignments(_ context.Context, principalID string) ([]rbac.Assignment, error) {
	return f.assignments[principalID], nil
}

func (f *fakeRBAC) PermissionNames(_ context.Context, roleIDs []string) ([]string, error) {
	var names []string
	for _, id := range roleIDs {
		names = append(names, f.grants[id]...)
	}
	return names, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SecretKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.AccessTTL = time.Minute
	cfg.Token.RefreshTTL = time.Hour
	// MinCost keeps the suite fast.
	cfg.Password.Cost = bcrypt.MinCost
	cfg.Password.BackupCodeCost = bcrypt.MinCost
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakePrincipals, *fakeRBAC, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	principals := newFakePrincipals()
	store := &fakeRBAC{
		assignments: make(map[string][]rbac.Assignment),
		grants:      make(map[string][]string),
	}

	engine, err := New(cfg, Deps{
		Redis:      rdb,
		Principals: principals,
		RBAC:       store,
	})
	if err != nil {
		mr.Close()
		t.Fatalf("new engine: %v", err)
	}

	return engine, principals, store, mr, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func seedPrincipal(t *testing.T, e *Engine, principals *fakePrincipals, id, email, plainPassword string) {
	t.Helper()
	digest, err := e.hasher.Hash(plainPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	principals.add(PrincipalRecord{
		ID:           id,
		Email:        email,
		PasswordHash: digest,
		Role:         "member",
		IsActive:     true,
		IsVerified:   true,
	})
}

// enableMFAFor drives the real two-phase setup so tests exercise the same
// staging path production uses. Returns the secret and plaintext backup codes.
func enableMFAFor(t *testing.T, e *Engine, principalID, plainPassword string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := e.BeginMFASetup(ctx, principalID, plainPassword)
	if err != nil {
		t.Fatalf("begin mfa setup: %v", err)
	}
	code, err := e.totp.CodeAt(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("code at: %v", err)
	}
	if err := e.ConfirmMFASetup(ctx, principalID, code); err != nil {
		t.Fatalf("confirm mfa setup: %v", err)
	}
	return setup.Secret, setup.BackupCodes
}
