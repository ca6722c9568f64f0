// Package session provides Redis-backed session metadata and token revocation
// for authentication hot paths.
//
// # Key layout
//
// Session metadata lives under "session:{jti}" as a JSON blob with a TTL equal
// to the access-token lifetime. Revoked token identifiers live under
// "blacklisted_token:{jti}" with a TTL equal to the revoked token's remaining
// lifetime, so revocation entries expire together with the tokens they void.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Record] model. It
// does NOT interpret signed tokens, evaluate permissions, or enforce
// authentication policy — those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authcore, token, or rbac (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext credentials in [Record] fields.
package session
