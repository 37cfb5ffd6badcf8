// Package jwt issues and verifies signed session tokens.
//
// A [Codec] stamps each token with subject, issued-at, expiry and a random
// token ID, and classifies verification failures as malformed, signature
// invalid or expired. Expired tokens that are otherwise authentic still
// expose their claims so callers can tell them apart from forgeries.
package jwt
