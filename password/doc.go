// Package password implements credential hashing and verification with
// Argon2id as the primary scheme and bcrypt accepted for legacy hashes.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stored bcrypt hashes ($2a$, $2b$, $2y$) still verify but are reported by
// [Hasher.NeedsUpgrade] so callers can transparently re-hash on the next
// successful login. Any other prefix is an unrecognized format and fails hard
// with [ErrUnknownFormat]; it is never treated as a mismatch.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authkit package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
