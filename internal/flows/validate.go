package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokencache"
)

// ModeResolverConfig allows host packages to resolve route/engine validation
// modes without importing host package-specific enums.
type ModeResolverConfig struct {
	ModeInherit int
	ModeJWTOnly int
	ModeStrict  int
}

// ResolveRouteMode resolves a route mode override against the engine default.
func ResolveRouteMode(routeMode, engineMode int, cfg ModeResolverConfig) (int, bool) {
	switch routeMode {
	case cfg.ModeInherit:
		switch engineMode {
		case cfg.ModeJWTOnly, cfg.ModeStrict:
			return engineMode, true
		default:
			return 0, false
		}
	case cfg.ModeJWTOnly:
		return cfg.ModeJWTOnly, true
	case cfg.ModeStrict:
		return cfg.ModeStrict, true
	default:
		return 0, false
	}
}

// AuthenticateFailureKind classifies authentication failures for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureMissingToken
	AuthenticateFailureInvalidRouteMode
	AuthenticateFailureToken
	AuthenticateFailureRevoked
)

// AuthenticateResult returns either the verified token or a classified failure.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	Token   *jwt.Verified
	// Degraded is true when strict mode fell back to signature-only checks
	// because the cache was unavailable.
	Degraded bool
}

// AuthenticateMetrics carries metric IDs used by the authenticate flow.
type AuthenticateMetrics struct {
	Success          int
	Expired          int
	Malformed        int
	SignatureInvalid int
	Revoked          int
	CacheUnavailable int
}

// AuthenticateDeps captures bearer-token validation dependencies.
type AuthenticateDeps struct {
	Common
	Verify              func(string) (*jwt.Verified, error)
	ResolveRouteMode    func(int) (int, error)
	Lookup              func(identity string) (tokencache.Entry, tokencache.State, error)
	ModeStrict          int
	ErrCacheUnavailable error
	EventRejected       string
	Metrics             AuthenticateMetrics
}

// RunAuthenticate verifies a bearer token. In strict mode the token must
// also be the one currently cached for its subject, so tokens superseded by
// logout or refresh stop working before they expire.
func RunAuthenticate(ctx context.Context, tokenStr string, routeMode int, deps AuthenticateDeps) AuthenticateResult {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return AuthenticateResult{Failure: AuthenticateFailureMissingToken}
	}

	effectiveMode, err := deps.ResolveRouteMode(routeMode)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInvalidRouteMode, Err: err}
	}

	verified, err := deps.Verify(tokenStr)
	if err != nil {
		switch jwt.StatusOf(err) {
		case jwt.StatusExpired:
			deps.inc(deps.Metrics.Expired)
		case jwt.StatusSignatureInvalid:
			deps.inc(deps.Metrics.SignatureInvalid)
		default:
			deps.inc(deps.Metrics.Malformed)
		}
		deps.audit(ctx, deps.EventRejected, false, "", "", err, func() map[string]string {
			return map[string]string{"status": jwt.StatusOf(err).String()}
		})
		return AuthenticateResult{Failure: AuthenticateFailureToken, Err: err}
	}

	if effectiveMode != deps.ModeStrict {
		deps.inc(deps.Metrics.Success)
		return AuthenticateResult{Token: verified}
	}

	entry, state, err := deps.Lookup(verified.Subject)
	if err != nil {
		if deps.ErrCacheUnavailable != nil && errors.Is(err, deps.ErrCacheUnavailable) {
			deps.inc(deps.Metrics.CacheUnavailable)
			deps.inc(deps.Metrics.Success)
			return AuthenticateResult{Token: verified, Degraded: true}
		}
		return AuthenticateResult{Failure: AuthenticateFailureRevoked, Err: err}
	}
	if state == tokencache.StateAbsent || entry.TokenID != verified.TokenID {
		deps.inc(deps.Metrics.Revoked)
		deps.audit(ctx, deps.EventRejected, false, verified.Subject, verified.TokenID, nil, func() map[string]string {
			return map[string]string{"status": "revoked"}
		})
		return AuthenticateResult{Failure: AuthenticateFailureRevoked}
	}

	deps.inc(deps.Metrics.Success)
	return AuthenticateResult{Token: verified}
}
