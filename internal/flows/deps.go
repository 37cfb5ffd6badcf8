package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/tokencache"
)

// Principal is the flow-local view of a resolved identity.
type Principal struct {
	Identity string
	Roles    []string
}

// AuditFunc emits one audit event. meta is evaluated only when auditing is on.
type AuditFunc func(ctx context.Context, event string, success bool, userID, tokenID string, err error, meta func() map[string]string)

// TokenFunc is GetOrCreate or Refresh on the lifecycle cache, with the
// engine's issuance metrics and audit already attached.
type TokenFunc func(ctx context.Context, identity string, claims map[string]any) (tokencache.Result, error)

// Common holds the hooks every flow uses.
type Common struct {
	MetricInc func(int)
	EmitAudit AuditFunc
	Now       func() time.Time
}

func (c Common) inc(id int) {
	if c.MetricInc != nil {
		c.MetricInc(id)
	}
}

func (c Common) audit(ctx context.Context, event string, success bool, userID, tokenID string, err error, meta func() map[string]string) {
	if c.EmitAudit != nil {
		c.EmitAudit(ctx, event, success, userID, tokenID, err, meta)
	}
}

// ClaimsFor builds the private claims carried by every issued token.
func ClaimsFor(p Principal) map[string]any {
	if len(p.Roles) == 0 {
		return nil
	}
	roles := make([]string, len(p.Roles))
	copy(roles, p.Roles)
	return map[string]any{"roles": roles}
}
