package flows

import (
	"context"
)

// RefreshDeps captures forced-refresh dependencies.
type RefreshDeps struct {
	Common
	LookupIdentity func(ctx context.Context, identity string) (Principal, error)
	Refresh        TokenFunc

	MetricSuccess int
	MetricFailure int
	ErrNotReady   error
}

// RunRefresh reloads the principal, so role changes reach the new token, and
// replaces the cached token unconditionally.
func RunRefresh(ctx context.Context, identity string, deps RefreshDeps) (*LoginResult, error) {
	if deps.LookupIdentity == nil || deps.Refresh == nil {
		return nil, deps.ErrNotReady
	}

	principal, err := deps.LookupIdentity(ctx, identity)
	if err != nil {
		deps.inc(deps.MetricFailure)
		return nil, err
	}
	if principal.Identity == "" {
		principal.Identity = identity
	}

	res, err := deps.Refresh(ctx, principal.Identity, ClaimsFor(principal))
	if err != nil {
		deps.inc(deps.MetricFailure)
		return nil, err
	}
	deps.inc(deps.MetricSuccess)
	return &LoginResult{Principal: principal, Token: res}, nil
}
