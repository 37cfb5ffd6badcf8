// Package flows contains the request flows behind the root Engine: login,
// logout, forced refresh and bearer-token authentication.
//
// # Architecture boundaries
//
// Each flow receives a Deps struct of plain functions and IDs assembled by
// the Engine, so this package never imports goSession. Token storage belongs
// to tokencache and signing to jwt; flows only sequence calls and decide
// which metrics and audit events fire.
//
// # What this package must NOT do
//
//   - Hold state between calls.
//   - Skip credential verification because a token is already cached.
//   - Put encoded tokens or passwords into audit metadata.
package flows
