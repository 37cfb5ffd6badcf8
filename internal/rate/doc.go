// Package rate throttles failed logins with Redis fixed-window counters.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit. Keys, under the configured prefix:
//   - lf:<len>:<identity>  failures per identity
//   - lfi:<ip>             failures per client IP (optional)
//
// A successful login clears only the identity counter.
package rate
