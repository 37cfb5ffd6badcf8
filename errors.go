package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokencache"
)

var (
	// ErrInvalidCredentials is returned for an unknown user and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityUnavailable reports a credential backend that could not be reached.
	ErrIdentityUnavailable = errors.New("identity backend unavailable")
	// ErrEngineNotReady is returned by operations on an Engine missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEngineClosed is returned by Login after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrUnauthorized is returned by Authenticate for any unusable bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingToken is returned by Authenticate for an empty bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrTokenRevoked is returned by strict-mode Authenticate for an authentic
	// token that is no longer the identity's cached token.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrLoginThrottled is returned by Login once an identity or client IP
	// has exhausted its failed-attempt budget.
	ErrLoginThrottled = errors.New("too many failed login attempts")
	// ErrInvalidRouteMode is returned by Authenticate for an unknown validation mode.
	ErrInvalidRouteMode = errors.New("invalid route validation mode")
)

// Token and cache errors are defined next to the components that produce
// them and re-exported here so callers only need this package.
var (
	// ErrTokenMalformed reports a token that cannot be decoded.
	ErrTokenMalformed = jwt.ErrTokenMalformed
	// ErrTokenSignatureInvalid reports a token that failed signature checks.
	ErrTokenSignatureInvalid = jwt.ErrTokenSignatureInvalid
	// ErrTokenExpired reports an authentic token past its expiry.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrCodec reports a signing configuration that cannot be used.
	ErrCodec = jwt.ErrCodec
	// ErrCacheUnavailable reports a closed token cache.
	ErrCacheUnavailable = tokencache.ErrCacheUnavailable
	// ErrEmptyIdentity is returned for operations on the empty identity.
	ErrEmptyIdentity = tokencache.ErrEmptyIdentity
)

// IsTokenError reports whether err is one of the token verification errors.
// Transports map all of them to the same unauthorized response.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenSignatureInvalid) ||
		errors.Is(err, ErrTokenExpired)
}
