// Package credentials provides goSession.IdentityResolver implementations
// backed by a user directory.
//
//   - [MemoryDirectory]: in-process map, used for tests and the demo users.
//   - [FileDirectory]: JSON file, reloaded on change via fsnotify.
//   - [RedisDirectory]: one Redis hash per user.
//
// All three verify passwords through a password.Hasher and spend a dummy
// verification on unknown users, so a missing account and a wrong password
// cost the same and return goSession.ErrInvalidCredentials.
package credentials
