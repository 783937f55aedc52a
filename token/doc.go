// Package token issues and verifies the HS256 access/refresh token pair used
// by the authentication engine.
//
// # Claims
//
// Every token carries the registered claims (sub, iss, aud, iat, exp, jti)
// plus email, role, and token_type. The token_type claim is checked on every
// verification so a refresh token can never pass where an access token is
// expected, and vice versa.
//
// # Keys
//
// Access and refresh tokens are signed with distinct secrets. When no refresh
// secret is configured one is derived from the access secret with HMAC-SHA256
// over a fixed label, so the two lineages stay cryptographically separate.
//
// # What this package must NOT do
//
//   - Store tokens or track revocation — [Fingerprint] exists so callers can
//     key revocation state without retaining raw tokens.
//   - Import any other authkit package.
package token
