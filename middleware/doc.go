// Package middleware exposes HTTP adapters for guarding routes with
// authkit.Engine token validation.
//
// # Guards
//
//   - [Guard] — verifies the bearer access token on every request.
//   - [RequireRole] — Guard plus a role check on the validated principal.
//
// Each guard reads the Authorization header, calls Engine.Authenticate, and
// injects the validated result into the request context, where handlers can
// recover it with [AuthResultFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// Engine.Authenticate. Rejections are a uniform 401 so that callers cannot
// distinguish a bad signature from a revoked or expired token. The single
// exception is a banned account, which maps to 403.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access the revocation store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject.
package middleware
