// Package authkit is the authentication and session-security core of a
// membership/e-commerce backend: password credential hashing, JWT access and
// refresh token issuance and verification, token revocation, login rate
// limiting with lockout escalation, and TOTP multi-factor verification.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the auth core only. Business persistence (users, orders, posts,
// campaigns) lives outside; the engine reaches it exclusively through the
// [PrincipalStore] interface, which is read-only except for password-hash
// upgrades. Route handlers, email delivery, and payment integration are host
// concerns and consume the engine through [Engine.Login], [Engine.Refresh],
// [Engine.Logout], [Engine.Authenticate], and the middleware package.
//
// # State model
//
// Token verification is pure and stateless: a token's signature validity never
// depends on store state. The revocation store and the login rate limiter hold
// process-local mutable state behind reader/writer locks; both support an
// optional shared Redis tier for multi-instance deployments, but the
// single-process in-memory maps remain the default.
//
// # Performance contract
//
// Authenticate is the hot path: one shared-lock revocation read plus a pure
// signature verification, and the principal store is consulted only after all
// cryptographic checks pass. Argon2 hashing is deliberately expensive and runs
// through a bounded semaphore so a login storm cannot starve token
// verification.
package authkit
