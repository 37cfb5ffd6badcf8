package goSession

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt audience blank invalid",
			mutate: func(c *Config) {
				c.JWT.Audience = "   "
			},
			wantValid: false,
		},
		{
			name: "jwt max future iat invalid negative",
			mutate: func(c *Config) {
				c.JWT.MaxFutureIAT = -time.Second
			},
			wantValid: false,
		},
		{
			name: "jwt signing hs512 valid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "hs512"
			},
			wantValid: true,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "jwt short secret invalid",
			mutate: func(c *Config) {
				c.JWT.Secret = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "ed25519 without keys invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "validity zero invalid",
			mutate: func(c *Config) {
				c.JWT.Validity = 0
			},
			wantValid: false,
		},
		{
			name: "refresh buffer equal to validity invalid",
			mutate: func(c *Config) {
				c.JWT.Validity = 10 * time.Minute
				c.Cache.RefreshBuffer = 10 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "refresh buffer zero valid",
			mutate: func(c *Config) {
				c.Cache.RefreshBuffer = 0
			},
			wantValid: true,
		},
		{
			name: "refresh buffer negative invalid",
			mutate: func(c *Config) {
				c.Cache.RefreshBuffer = -time.Second
			},
			wantValid: false,
		},
		{
			name: "max entries zero invalid",
			mutate: func(c *Config) {
				c.Cache.MaxEntries = 0
			},
			wantValid: false,
		},
		{
			name: "hard ttl negative invalid",
			mutate: func(c *Config) {
				c.Cache.HardTTL = -time.Minute
			},
			wantValid: false,
		},
		{
			name: "shards above max invalid",
			mutate: func(c *Config) {
				c.Cache.Shards = 1024
			},
			wantValid: false,
		},
		{
			name: "eviction fifo valid",
			mutate: func(c *Config) {
				c.Cache.Eviction = "fifo"
			},
			wantValid: true,
		},
		{
			name: "eviction lfu invalid",
			mutate: func(c *Config) {
				c.Cache.Eviction = "lfu"
			},
			wantValid: false,
		},
		{
			name: "audit enabled zero buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "throttle enabled zero attempts invalid",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
				c.Throttle.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "throttle disabled ignores fields",
			mutate: func(c *Config) {
				c.Throttle.MaxAttempts = 0
				c.Throttle.Cooldown = 0
			},
			wantValid: true,
		},
		{
			name: "validation mode inherit invalid",
			mutate: func(c *Config) {
				c.ValidationMode = ModeInherit
			},
			wantValid: false,
		},
		{
			name: "validation mode strict valid",
			mutate: func(c *Config) {
				c.ValidationMode = ModeStrict
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestBuildRejectsSigningConfigWithErrCodec(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = nil }},
		{name: "short secret", mutate: func(c *Config) { c.JWT.Secret = []byte("short") }},
		{name: "unsupported method", mutate: func(c *Config) { c.JWT.SigningMethod = "rs256" }},
		{name: "ed25519 public key only", mutate: func(c *Config) {
			c.JWT.SigningMethod = "ed25519"
			c.JWT.Secret = nil
			c.JWT.PublicKey = pub
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New().WithConfig(cfg).Build()
			if !errors.Is(err, ErrCodec) {
				t.Fatalf("expected ErrCodec, got %v", err)
			}
		})
	}

	t.Run("default config without secret", func(t *testing.T) {
		_, err := New().WithConfig(DefaultConfig()).Build()
		if !errors.Is(err, ErrCodec) {
			t.Fatalf("expected ErrCodec, got %v", err)
		}
	})

	t.Run("ed25519 private key issues", func(t *testing.T) {
		cfg := testConfig()
		cfg.JWT.SigningMethod = "ed25519"
		cfg.JWT.Secret = nil
		cfg.JWT.PrivateKey = priv
		e, err := New().WithConfig(cfg).Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		defer e.Close()
		if _, err := e.GetOrCreate(t.Context(), "john"); err != nil {
			t.Fatalf("get or create: %v", err)
		}
	})
}

func TestParseValidationMode(t *testing.T) {
	cases := map[string]ValidationMode{
		"":         ModeJWTOnly,
		"jwt_only": ModeJWTOnly,
		"JWT-Only": ModeJWTOnly,
		" strict ": ModeStrict,
	}
	for in, want := range cases {
		got, err := ParseValidationMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseValidationMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseValidationMode("hybrid"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestValidationModeValues(t *testing.T) {
	if ModeInherit != -1 || ModeJWTOnly != 1 || ModeStrict != 2 {
		t.Fatalf("unexpected mode values: %d %d %d", ModeInherit, ModeJWTOnly, ModeStrict)
	}
	if ModeStrict.String() != "strict" || ValidationMode(9).String() != "unknown" {
		t.Fatal("unexpected mode names")
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	secret := append([]byte(nil), testSecret...)
	b := New().WithSecret(secret)
	secret[0] ^= 0xff

	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
	if e.config.JWT.Secret[0] != testSecret[0] {
		t.Fatal("engine config aliases caller secret")
	}
}

func TestBuildRejectsThrottleWithoutRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.Enabled = true

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected build error without redis client")
	}
}
