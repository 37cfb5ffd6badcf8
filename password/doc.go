// Package password hashes and verifies user passwords.
//
// New hashes are Argon2id PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes ($2a$, $2b$, $2y$) are accepted for verification through
// [Chain], and are reported by NeedsUpgrade so callers can re-hash after a
// successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Log plaintext passwords.
package password
