// Package middleware exposes HTTP middleware that authenticates bearer tokens
// through goSession.Engine.
//
// # Guards
//
//   - [Guard]: uses the mode passed in, or the Engine default for ModeInherit.
//   - [RequireJWTOnly]: signature and expiry checks only.
//   - [RequireStrict]: additionally requires the token to be the subject's cached token.
//
// Each guard reads the Authorization header, calls Engine.Authenticate and
// injects the result into the request context.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly.
//   - Tell clients why a token was rejected.
package middleware
