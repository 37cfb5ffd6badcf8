// Package goSession issues signed session tokens, keeps at most one live token
// per identity in a bounded in-memory cache, and verifies tokens presented on
// later requests.
//
// A cached token is returned unchanged while it is fresh. Once it enters the
// refresh buffer before its expiry, or expires, the next request replaces it.
// Logout drops the cached entry; RefreshToken replaces it unconditionally.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Token signing lives in jwt, the lifecycle cache in
// tokencache, password hashing in password, and flow orchestration and audit
// dispatch under internal/.
//
// # What this package must NOT do
//
//   - Expose the cache, codec or dispatcher directly.
//   - Return a cached token without verifying the caller's credentials.
//   - Import any sub-package that re-imports goSession (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path. In ModeJWTOnly it performs one signature
// check and no cache access; ModeStrict adds one shard-locked map lookup.
package goSession
