package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goSession/tokencache"
)

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	LoginThrottled int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess string
	LoginFailed  string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	Throttled          error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Common
	ResolveIdentity func(ctx context.Context, userID, password string) (Principal, error)
	GetOrCreate     TokenFunc

	// Optional failed-attempt throttle. CheckThrottle returns Errors.Throttled
	// when the caller is over budget; other errors are ignored.
	CheckThrottle func(ctx context.Context, userID string) error
	RecordFailure func(ctx context.Context, userID string)
	ResetThrottle func(ctx context.Context, userID string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// LoginResult is the flow-local login outcome.
type LoginResult struct {
	Principal Principal
	Token     tokencache.Result
}

// RunLogin resolves credentials and returns the identity's current token,
// issuing one when the cache has no fresh entry. Credentials are checked on
// every call, cached token or not.
func RunLogin(ctx context.Context, userID, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.ResolveIdentity == nil || deps.GetOrCreate == nil {
		return nil, deps.Errors.EngineNotReady
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || password == "" {
		deps.inc(deps.Metrics.LoginFailure)
		deps.audit(ctx, deps.Events.LoginFailed, false, userID, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "missing_credentials"}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, userID); err != nil && errors.Is(err, deps.Errors.Throttled) {
			deps.inc(deps.Metrics.LoginThrottled)
			deps.audit(ctx, deps.Events.LoginFailed, false, userID, "", err, func() map[string]string {
				return map[string]string{"reason": "throttled"}
			})
			return nil, err
		}
	}

	principal, err := deps.ResolveIdentity(ctx, userID, password)
	if err != nil {
		reason := "backend_error"
		if errors.Is(err, deps.Errors.InvalidCredentials) {
			reason = "invalid_credentials"
			deps.inc(deps.Metrics.LoginFailure)
			if deps.RecordFailure != nil {
				deps.RecordFailure(ctx, userID)
			}
		}
		deps.audit(ctx, deps.Events.LoginFailed, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}
	if principal.Identity == "" {
		principal.Identity = userID
	}
	if deps.ResetThrottle != nil {
		deps.ResetThrottle(ctx, userID)
	}

	res, err := deps.GetOrCreate(ctx, principal.Identity, ClaimsFor(principal))
	if err != nil {
		deps.audit(ctx, deps.Events.LoginFailed, false, principal.Identity, "", err, func() map[string]string {
			return map[string]string{"reason": "issue_failed"}
		})
		return nil, err
	}

	deps.inc(deps.Metrics.LoginSuccess)
	deps.audit(ctx, deps.Events.LoginSuccess, true, principal.Identity, res.Entry.TokenID, nil, func() map[string]string {
		return map[string]string{
			"cached":   boolString(res.Cached),
			"previous": res.Previous.String(),
		}
	})

	return &LoginResult{Principal: principal, Token: res}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
