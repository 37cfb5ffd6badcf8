package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokencache"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override fields; Builder.Build validates a private copy.
type Config struct {
	JWT            JWTConfig
	Cache          CacheConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	Throttle       ThrottleConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing.
//
// Secret is the shared HMAC key for the hs* methods and must be at least 32
// bytes. PrivateKey and PublicKey are used by ed25519.
type JWTConfig struct {
	SigningMethod string // "hs256" (default), "hs384", "hs512", "ed25519"
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Validity      time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig configures the token lifecycle cache.
//
// RefreshBuffer is the window before expiry in which a cached token is
// replaced instead of returned. HardTTL bounds every entry regardless of the
// refresh policy; zero means the token validity.
type CacheConfig struct {
	MaxEntries    int
	HardTTL       time.Duration
	RefreshBuffer time.Duration
	Shards        int
	SweepInterval time.Duration
	Eviction      string // "lru" (default) or "fifo"
}

/*
====================================
AUDIT / METRICS / THROTTLE CONFIG
====================================
*/

// AuditConfig controls asynchronous audit event delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the verification latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ThrottleConfig limits failed logins per identity (and optionally per
// client IP) using Redis counters. Enabling it requires Builder.WithRedis.
type ThrottleConfig struct {
	Enabled          bool
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
	KeyPrefix        string
}

// ValidationMode selects how Authenticate treats a bearer token.
type ValidationMode int

const (
	// ModeInherit uses the Engine's configured mode. Only meaningful per call.
	ModeInherit ValidationMode = -1

	// ModeJWTOnly accepts any authentic, unexpired token.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally requires the token to be the one currently
	// cached for its subject, so logout and refresh revoke older tokens.
	ModeStrict
)

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeJWTOnly:
		return "jwt_only"
	case ModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseValidationMode accepts "jwt_only" (or "jwt-only") and "strict".
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jwt_only", "jwt-only", "jwtonly":
		return ModeJWTOnly, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeJWTOnly, fmt.Errorf("unknown validation mode %q", s)
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the defaults: HS256, 24h validity, 5m refresh buffer,
// 10000 cached identities. The signing secret must still be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodHS256),
			Validity:      24 * time.Hour,
			MaxFutureIAT:  10 * time.Minute,
		},
		Cache: CacheConfig{
			MaxEntries:    tokencache.DefaultMaxEntries,
			RefreshBuffer: 5 * time.Minute,
			Shards:        tokencache.DefaultShards,
			SweepInterval: tokencache.DefaultSweepInterval,
			Eviction:      string(tokencache.EvictLRU),
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Throttle: ThrottleConfig{
			Enabled:     false,
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
			KeyPrefix:   "gs:",
		},
		ValidationMode: ModeJWTOnly,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error. It checks the same
// constraints the codec and cache enforce, so errors surface before Build
// allocates anything. Signing errors wrap ErrCodec.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.Validity <= 0 {
		return fmt.Errorf("%w: JWT Validity must be > 0", ErrCodec)
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256, jwt.MethodHS384, jwt.MethodHS512:
		if len(c.JWT.Secret) < jwt.MinSecretLength {
			return fmt.Errorf("%w: JWT Secret must be at least %d bytes", ErrCodec, jwt.MinSecretLength)
		}
	case jwt.MethodEd25519:
		// The Engine issues tokens, so a verify-only key set is not enough.
		if len(c.JWT.PrivateKey) == 0 {
			return fmt.Errorf("%w: ed25519 requires PrivateKey", ErrCodec)
		}
	default:
		return fmt.Errorf("%w: unsupported JWT signing method %q", ErrCodec, c.JWT.SigningMethod)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return fmt.Errorf("%w: JWT Leeway must be within [0, 2m]", ErrCodec)
	}
	if c.JWT.MaxFutureIAT < 0 {
		return fmt.Errorf("%w: JWT MaxFutureIAT must be >= 0", ErrCodec)
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return fmt.Errorf("%w: JWT Audience must not be blank", ErrCodec)
	}

	// Cache
	if c.Cache.MaxEntries <= 0 {
		return errors.New("Cache MaxEntries must be > 0")
	}
	if c.Cache.HardTTL < 0 {
		return errors.New("Cache HardTTL must be >= 0")
	}
	if c.Cache.RefreshBuffer < 0 {
		return errors.New("Cache RefreshBuffer must be >= 0")
	}
	if c.Cache.RefreshBuffer >= c.JWT.Validity {
		return errors.New("Cache RefreshBuffer must be shorter than JWT Validity")
	}
	if c.Cache.Shards < 1 || c.Cache.Shards > tokencache.MaxShards {
		return fmt.Errorf("Cache Shards must be within [1, %d]", tokencache.MaxShards)
	}
	if _, err := tokencache.ParseEvictionPolicy(c.Cache.Eviction); err != nil {
		return fmt.Errorf("Cache Eviction: %w", err)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			return errors.New("Throttle MaxAttempts must be > 0")
		}
		if c.Throttle.Cooldown <= 0 {
			return errors.New("Throttle Cooldown must be > 0")
		}
	}

	// Validation mode
	if c.ValidationMode != ModeJWTOnly && c.ValidationMode != ModeStrict {
		return errors.New("ValidationMode must be ModeJWTOnly or ModeStrict")
	}

	return nil
}
