package flows

import (
	"context"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Common
	Invalidate func(ctx context.Context, identity string) bool

	MetricLogout int
	EventLogout  string
	ErrNotReady  error
}

// RunLogout drops the identity's cached token and reports whether there was one.
func RunLogout(ctx context.Context, identity string, deps LogoutDeps) (bool, error) {
	if deps.Invalidate == nil {
		return false, deps.ErrNotReady
	}
	existed := deps.Invalidate(ctx, identity)
	deps.inc(deps.MetricLogout)
	deps.audit(ctx, deps.EventLogout, true, identity, "", nil, func() map[string]string {
		return map[string]string{"had_session": boolString(existed)}
	})
	return existed, nil
}
