package goSession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	internalflows "github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokencache"
	"github.com/rs/zerolog"
)

// Engine issues, caches and verifies session tokens. It is safe for
// concurrent use. Build one with [New].
type Engine struct {
	config    Config
	codec     *jwt.Codec
	cache     *tokencache.Cache
	resolver  IdentityResolver
	throttle  *rate.Limiter
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	log       zerolog.Logger
	now       func() time.Time
	closed    atomic.Bool
	closeOnce sync.Once
}

// Close stops the cache sweeper, drops every cached token and drains the
// audit queue. Token operations keep working afterwards in degraded form:
// tokens are issued but not cached. Login and RefreshToken return
// ErrEngineClosed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.cache != nil {
			e.cache.Close()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped returns the number of audit events discarded because the
// dispatcher buffer was full. It is zero when audit is disabled.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// CacheStats returns token cache activity counters.
func (e *Engine) CacheStats() CacheStats {
	if e == nil || e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// Validity is the lifetime of every issued token.
func (e *Engine) Validity() time.Duration {
	return e.config.JWT.Validity
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
TOKEN LIFECYCLE
====================================
*/

// GetOrCreate returns identity's cached token while it is fresh, and
// otherwise issues and caches a new one.
func (e *Engine) GetOrCreate(ctx context.Context, identity string) (*TokenResult, error) {
	return e.GetOrCreateWithClaims(ctx, identity, nil)
}

// GetOrCreateWithClaims is GetOrCreate with private claims for a newly
// issued token. Claims are ignored when the cached token is returned.
func (e *Engine) GetOrCreateWithClaims(ctx context.Context, identity string, claims map[string]any) (*TokenResult, error) {
	res, err := e.getOrCreate(ctx, identity, claims)
	if err != nil {
		return nil, err
	}
	return tokenResult(res), nil
}

// Refresh replaces identity's cached token with a newly issued one,
// whatever its state.
func (e *Engine) Refresh(ctx context.Context, identity string) (*TokenResult, error) {
	return e.RefreshWithClaims(ctx, identity, nil)
}

// RefreshWithClaims is Refresh with private claims for the new token.
func (e *Engine) RefreshWithClaims(ctx context.Context, identity string, claims map[string]any) (*TokenResult, error) {
	res, err := e.refresh(ctx, identity, claims)
	if err != nil {
		return nil, err
	}
	return tokenResult(res), nil
}

// Invalidate drops identity's cached token and reports whether one existed.
// The token itself stays verifiable until it expires; only strict-mode
// authentication rejects it.
func (e *Engine) Invalidate(ctx context.Context, identity string) bool {
	if e == nil || e.cache == nil {
		return false
	}
	if e.closed.Load() {
		e.metricInc(MetricCacheUnavailable)
		return false
	}
	existed := e.cache.Invalidate(ctx, identity)
	if existed {
		e.metricInc(MetricTokenInvalidated)
		e.emitAudit(ctx, auditEventTokenInvalidated, true, identity, "", nil, nil)
	}
	return existed
}

// HasValidToken reports whether identity has a cached, unexpired token.
// The refresh buffer is not considered.
func (e *Engine) HasValidToken(identity string) bool {
	if e == nil || e.cache == nil {
		return false
	}
	return e.cache.HasValidToken(identity)
}

// TokenState classifies identity's cached token without changing it.
func (e *Engine) TokenState(identity string) (TokenState, error) {
	if e == nil || e.cache == nil {
		return StateAbsent, ErrEngineNotReady
	}
	_, state, err := e.cache.Lookup(identity)
	return state, err
}

/*
====================================
TOKEN VERIFICATION
====================================
*/

// Verify checks a token's signature, structure and expiry. For an expired
// but authentic token the decoded content is returned together with
// ErrTokenExpired.
func (e *Engine) Verify(token string) (*VerifiedToken, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	return e.codec.Verify(token)
}

// Classify is Verify as a single tagged value.
func (e *Engine) Classify(token string) TokenOutcome {
	if e == nil || e.codec == nil {
		return TokenOutcome{Status: StatusMalformed, Err: ErrEngineNotReady}
	}
	return e.codec.Classify(token)
}

// IsValidFor reports whether token is authentic, unexpired and issued to
// identity. Subjects compare case-sensitively.
func (e *Engine) IsValidFor(token, identity string) bool {
	if e == nil || e.codec == nil {
		return false
	}
	return e.codec.IsValidFor(token, identity)
}

// GetExpiry returns the expiry of an authentic token, expired or not.
func (e *Engine) GetExpiry(token string) (time.Time, error) {
	if e == nil || e.codec == nil {
		return time.Time{}, ErrEngineNotReady
	}
	return e.codec.Expiry(token)
}

/*
====================================
SESSION FLOWS
====================================
*/

// Login verifies credentials and returns the user's current token. A fresh
// cached token is returned as is (Cached=true); otherwise a new one is
// issued. Credentials are verified on every call.
func (e *Engine) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	res, err := internalflows.RunLogin(ctx, creds.UserID, creds.Password, e.loginFlowDeps())
	if err != nil {
		return nil, err
	}

	msg := MessageNewToken
	if res.Token.Cached {
		msg = MessageCachedToken
	}
	return e.loginResult(res, msg), nil
}

// Logout drops the identity's cached token and reports whether a session
// existed.
func (e *Engine) Logout(ctx context.Context, identity string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	return internalflows.RunLogout(ctx, identity, e.logoutFlowDeps())
}

// RefreshToken reloads the identity from the resolver and issues a new
// token, replacing the cached one.
func (e *Engine) RefreshToken(ctx context.Context, identity string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	res, err := internalflows.RunRefresh(ctx, identity, e.refreshFlowDeps())
	if err != nil {
		return nil, err
	}
	return e.loginResult(res, MessageRefreshedToken), nil
}

// Authenticate verifies a bearer token for a request. routeMode overrides the
// configured validation mode; pass ModeInherit to use it.
//
// Every rejection wraps ErrUnauthorized; the precise cause is wrapped as
// well for logging.
func (e *Engine) Authenticate(ctx context.Context, token string, routeMode ValidationMode) (*AuthResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	res := internalflows.RunAuthenticate(ctx, token, int(routeMode), e.authenticateFlowDeps())
	log := e.logger(ctx)

	switch res.Failure {
	case internalflows.AuthenticateFailureNone:
	case internalflows.AuthenticateFailureMissingToken:
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingToken)
	case internalflows.AuthenticateFailureInvalidRouteMode:
		return nil, ErrInvalidRouteMode
	case internalflows.AuthenticateFailureRevoked:
		log.Warn().Str("reason", "revoked").Msg("rejected bearer token")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenRevoked)
	default:
		log.Warn().Err(res.Err).Str("reason", jwt.StatusOf(res.Err).String()).Msg("rejected bearer token")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, res.Err)
	}

	mode, _ := e.resolveRouteMode(routeMode)
	if res.Degraded {
		log.Error().Err(ErrCacheUnavailable).Str("identity", res.Token.Subject).Msg("strict validation degraded to signature checks")
		mode = ModeJWTOnly
	}
	return &AuthResult{
		UserID:    res.Token.Subject,
		Roles:     rolesFromClaims(res.Token.Claims),
		TokenID:   res.Token.TokenID,
		IssuedAt:  res.Token.IssuedAt,
		ExpiresAt: res.Token.ExpiresAt,
		Mode:      mode,
	}, nil
}

/*
====================================
INTERNALS
====================================
*/

func (e *Engine) getOrCreate(ctx context.Context, identity string, claims map[string]any) (tokencache.Result, error) {
	if e == nil || e.cache == nil {
		return tokencache.Result{}, ErrEngineNotReady
	}
	res, err := e.cache.GetOrCreate(ctx, identity, claims)
	if err != nil {
		if !errors.Is(err, ErrEmptyIdentity) {
			e.metricInc(MetricTokenIssueFailure)
		}
		return res, err
	}
	e.recordAcquire(ctx, identity, res, false)
	return res, nil
}

func (e *Engine) refresh(ctx context.Context, identity string, claims map[string]any) (tokencache.Result, error) {
	if e == nil || e.cache == nil {
		return tokencache.Result{}, ErrEngineNotReady
	}
	res, err := e.cache.Refresh(ctx, identity, claims)
	if err != nil {
		if !errors.Is(err, ErrEmptyIdentity) {
			e.metricInc(MetricTokenIssueFailure)
		}
		return res, err
	}
	e.recordAcquire(ctx, identity, res, true)
	return res, nil
}

func (e *Engine) recordAcquire(ctx context.Context, identity string, res tokencache.Result, forced bool) {
	if !res.Stored {
		e.metricInc(MetricCacheUnavailable)
	}
	if res.Cached {
		e.metricInc(MetricTokenReused)
		e.emitAudit(ctx, auditEventTokenReused, true, identity, res.Entry.TokenID, nil, nil)
		return
	}

	e.metricInc(MetricTokenIssued)
	event := auditEventTokenIssued
	if forced {
		e.metricInc(MetricTokenRefreshed)
		event = auditEventTokenRefreshed
	} else {
		switch res.Previous {
		case StateStale:
			e.metricInc(MetricTokenReplacedStale)
		case StateExpired:
			e.metricInc(MetricTokenReplacedExpired)
		}
	}
	e.emitAudit(ctx, event, true, identity, res.Entry.TokenID, nil, func() map[string]string {
		return map[string]string{
			"previous": res.Previous.String(),
			"stored":   boolLabel(res.Stored),
		}
	})
}

func (e *Engine) onEvict(_ string, reason tokencache.EvictReason) {
	switch reason {
	case tokencache.EvictCapacity:
		e.metricInc(MetricCacheEvictedCapacity)
	case tokencache.EvictTTL:
		e.metricInc(MetricCacheEvictedTTL)
	case tokencache.EvictExpired:
		e.metricInc(MetricCacheEvictedExpired)
	}
}

func (e *Engine) loginResult(res *internalflows.LoginResult, msg string) *LoginResult {
	entry := res.Token.Entry
	return &LoginResult{
		Token:     entry.Token,
		TokenType: TokenType,
		UserID:    res.Principal.Identity,
		Roles:     append([]string(nil), res.Principal.Roles...),
		ExpiresIn: entry.RemainingSeconds(e.now()),
		ExpiresAt: entry.ExpiresAt,
		Cached:    res.Token.Cached,
		Message:   msg,
	}
}

func (e *Engine) resolveRouteMode(routeMode ValidationMode) (ValidationMode, error) {
	mode, ok := internalflows.ResolveRouteMode(int(routeMode), int(e.config.ValidationMode), internalflows.ModeResolverConfig{
		ModeInherit: int(ModeInherit),
		ModeJWTOnly: int(ModeJWTOnly),
		ModeStrict:  int(ModeStrict),
	})
	if !ok {
		return 0, ErrInvalidRouteMode
	}
	return ValidationMode(mode), nil
}

// logger prefers a request-scoped logger attached to ctx.
func (e *Engine) logger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &e.log
}

func tokenResult(res tokencache.Result) *TokenResult {
	return &TokenResult{
		Token:     res.Entry.Token,
		TokenID:   res.Entry.TokenID,
		IssuedAt:  res.Entry.IssuedAt,
		ExpiresAt: res.Entry.ExpiresAt,
		Previous:  res.Previous,
		Cached:    res.Cached,
		Stored:    res.Stored,
	}
}

// rolesFromClaims reads the roles claim, which decodes from JSON as []any.
func rolesFromClaims(claims map[string]any) []string {
	switch v := claims["roles"].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
