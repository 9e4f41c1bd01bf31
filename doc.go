// Package identity provides password authentication, signed credential
// tokens, and role-based request gating for HTTP services.
//
// Registration and login:
//   - Auther implements the Authenticator interface over a Users repository.
//     Register validates the payload, hashes the password, creates the user
//     inside a transaction, and returns the sanitized user plus a signed
//     token. Login verifies the identifier/password pair through an
//     IdentityProvider and never reveals whether a handle exists.
//   - Users resolve by email, username, E.164 phone number, or id; the
//     table's unique constraints are the authority on duplicate handles.
//
// Tokens:
//   - TokenService signs and validates HS256 JWTs carrying the user's id,
//     role, and handle. Validation pins the signing method, checks the
//     issuer, and distinguishes expired tokens from malformed ones.
//
// Request gating:
//   - The middleware/guard package intercepts every request, matches it
//     against a route policy table (public, authenticated, or role-gated),
//     and rejects with generic 401/403 envelopes before handlers run.
//     GET /health always bypasses the gate.
//
// Errors cross the HTTP boundary through ErrorTranslator, which maps the
// typed errors raised here onto a stable JSON envelope without leaking
// internal detail outside development mode.
package identity
