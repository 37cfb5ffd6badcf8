package goSession

import (
	"context"
	"errors"
	"fmt"

	internalflows "github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/tokencache"
)

func (e *Engine) flowCommon() internalflows.Common {
	return internalflows.Common{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAuditFlow,
		Now:       e.now,
	}
}

func (e *Engine) emitAuditFlow(ctx context.Context, event string, success bool, userID, tokenID string, err error, meta func() map[string]string) {
	e.emitAudit(ctx, event, success, userID, tokenID, err, meta)
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Common:      e.flowCommon(),
		GetOrCreate: e.getOrCreate,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			LoginThrottled: int(MetricLoginThrottled),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess: auditEventLoginSuccess,
			LoginFailed:  auditEventLoginFailed,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			Throttled:          ErrLoginThrottled,
		},
	}
	if e.throttle != nil {
		e.attachThrottle(&deps)
	}
	if e.resolver != nil {
		deps.ResolveIdentity = func(ctx context.Context, userID, password string) (internalflows.Principal, error) {
			p, err := e.resolver.ResolveIdentity(ctx, Credentials{UserID: userID, Password: password})
			if err != nil {
				if !errors.Is(err, ErrInvalidCredentials) {
					e.logger(ctx).Error().Err(err).Str("identity", userID).Msg("identity resolution failed")
				}
				return internalflows.Principal{}, err
			}
			return internalflows.Principal{Identity: p.Identity, Roles: p.Roles}, nil
		}
	}
	return deps
}

// attachThrottle wires the Redis throttle into login. Redis failures are
// logged and the login proceeds unthrottled.
func (e *Engine) attachThrottle(deps *internalflows.LoginDeps) {
	deps.CheckThrottle = func(ctx context.Context, userID string) error {
		err := e.throttle.Check(ctx, userID, clientIPFromContext(ctx))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, rate.ErrRateLimited):
			e.logger(ctx).Warn().Str("identity", userID).Msg("login throttled")
			return fmt.Errorf("%w: %w", ErrLoginThrottled, err)
		default:
			e.logger(ctx).Error().Err(err).Msg("login throttle check failed")
			return nil
		}
	}
	deps.RecordFailure = func(ctx context.Context, userID string) {
		err := e.throttle.RecordFailure(ctx, userID, clientIPFromContext(ctx))
		if err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger(ctx).Error().Err(err).Msg("login throttle record failed")
		}
	}
	deps.ResetThrottle = func(ctx context.Context, userID string) {
		if err := e.throttle.Reset(ctx, userID); err != nil {
			e.logger(ctx).Error().Err(err).Msg("login throttle reset failed")
		}
	}
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	deps := internalflows.LogoutDeps{
		Common:       e.flowCommon(),
		MetricLogout: int(MetricLogout),
		EventLogout:  auditEventLogout,
		ErrNotReady:  ErrEngineNotReady,
	}
	if e.cache != nil {
		deps.Invalidate = e.Invalidate
	}
	return deps
}

func (e *Engine) refreshFlowDeps() internalflows.RefreshDeps {
	deps := internalflows.RefreshDeps{
		Common:        e.flowCommon(),
		Refresh:       e.refresh,
		MetricSuccess: int(MetricRefreshSuccess),
		MetricFailure: int(MetricRefreshFailure),
		ErrNotReady:   ErrEngineNotReady,
	}
	if e.resolver != nil {
		deps.LookupIdentity = func(ctx context.Context, identity string) (internalflows.Principal, error) {
			p, err := e.resolver.LookupIdentity(ctx, identity)
			if err != nil {
				return internalflows.Principal{}, err
			}
			return internalflows.Principal{Identity: p.Identity, Roles: p.Roles}, nil
		}
	}
	return deps
}

func (e *Engine) authenticateFlowDeps() internalflows.AuthenticateDeps {
	return internalflows.AuthenticateDeps{
		Common: e.flowCommon(),
		Verify: e.codec.Verify,
		ResolveRouteMode: func(mode int) (int, error) {
			resolved, err := e.resolveRouteMode(ValidationMode(mode))
			return int(resolved), err
		},
		Lookup: func(identity string) (tokencache.Entry, tokencache.State, error) {
			if e.cache == nil {
				return tokencache.Entry{}, tokencache.StateAbsent, ErrCacheUnavailable
			}
			return e.cache.Lookup(identity)
		},
		ModeStrict:          int(ModeStrict),
		ErrCacheUnavailable: ErrCacheUnavailable,
		EventRejected:       auditEventTokenRejected,
		Metrics: internalflows.AuthenticateMetrics{
			Success:          int(MetricVerifySuccess),
			Expired:          int(MetricVerifyExpired),
			Malformed:        int(MetricVerifyMalformed),
			SignatureInvalid: int(MetricVerifySignatureInvalid),
			Revoked:          int(MetricVerifyRevoked),
			CacheUnavailable: int(MetricCacheUnavailable),
		},
	}
}
