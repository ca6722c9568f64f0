package authcore

import (
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SecretKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestDefaultConfigNeedsOnlyASecret(t *testing.T) {
	if err := DefaultConfig().Validate(); err == nil {
		t.Fatal("defaults without a secret key must not validate")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("defaults plus a secret should validate, got %v", err)
	}
}

func TestConfigValidateBounds(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "secret key too short",
			mutate: func(c *Config) {
				c.Token.SecretKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh shorter than access",
			mutate: func(c *Config) {
				c.Token.AccessTTL = time.Hour
				c.Token.RefreshTTL = time.Minute
			},
			wantValid: false,
		},
		{
			name: "refresh equal to access",
			mutate: func(c *Config) {
				c.Token.AccessTTL = time.Hour
				c.Token.RefreshTTL = time.Hour
			},
			wantValid: true,
		},
		{
			name: "password cost below bcrypt floor",
			mutate: func(c *Config) {
				c.Password.Cost = 3
			},
			wantValid: false,
		},
		{
			name: "backup code cost above bcrypt ceiling",
			mutate: func(c *Config) {
				c.Password.BackupCodeCost = 32
			},
			wantValid: false,
		},
		{
			name: "totp digits eight",
			mutate: func(c *Config) {
				c.MFA.Digits = 8
			},
			wantValid: true,
		},
		{
			name: "totp digits nine",
			mutate: func(c *Config) {
				c.MFA.Digits = 9
			},
			wantValid: false,
		},
		{
			name: "totp period zero",
			mutate: func(c *Config) {
				c.MFA.Period = 0
			},
			wantValid: false,
		},
		{
			name: "totp skew negative",
			mutate: func(c *Config) {
				c.MFA.Skew = -1
			},
			wantValid: false,
		},
		{
			name: "totp skew too wide",
			mutate: func(c *Config) {
				c.MFA.Skew = 3
			},
			wantValid: false,
		},
		{
			name: "totp algorithm sha512",
			mutate: func(c *Config) {
				c.MFA.Algorithm = "SHA512"
			},
			wantValid: true,
		},
		{
			name: "totp algorithm md5",
			mutate: func(c *Config) {
				c.MFA.Algorithm = "MD5"
			},
			wantValid: false,
		},
		{
			name: "backup code count zero",
			mutate: func(c *Config) {
				c.MFA.BackupCodeCount = 0
			},
			wantValid: false,
		},
		{
			name: "backup code count above cap",
			mutate: func(c *Config) {
				c.MFA.BackupCodeCount = 33
			},
			wantValid: false,
		},
		{
			name: "backup code expiry zero",
			mutate: func(c *Config) {
				c.MFA.BackupCodeExpiry = 0
			},
			wantValid: false,
		},
		{
			name: "candidate limit zero",
			mutate: func(c *Config) {
				c.MFA.BackupCodeCandidates = 0
			},
			wantValid: false,
		},
		{
			name: "verify workers zero",
			mutate: func(c *Config) {
				c.MFA.VerifyWorkers = 0
			},
			wantValid: false,
		},
		{
			name: "setup ttl zero",
			mutate: func(c *Config) {
				c.MFA.SetupTTL = 0
			},
			wantValid: false,
		},
		{
			name: "partial auth ttl zero",
			mutate: func(c *Config) {
				c.MFA.PartialAuthTTL = 0
			},
			wantValid: false,
		},
		{
			name: "cache op timeout zero",
			mutate: func(c *Config) {
				c.Cache.OpTimeout = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}
