// Package authcore provides the access-control core for a multi-tenant
// project-management backend: JWT access/refresh token lifecycle, a
// Redis-backed revocation and session registry, a TOTP + backup-code MFA
// engine with a partial-authentication handshake, and a resource-scoped
// role/permission resolver.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through [New].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Config], the storage
// interfaces ([PrincipalStore]), and value types ([LoginResult], [AuthResult],
// [MFASetupResult]). HTTP routing, request validation, and process bootstrap
// are the caller's responsibility; durable persistence is reached only through
// the storage interfaces (a gorm-backed reference implementation lives in
// store/gormstore).
//
// # What this package must NOT do
//
//   - Parse HTTP requests or expose transport concerns in its public API.
//   - Treat an unavailable cache as "not revoked": revocation checks fail
//     closed.
//   - Persist plaintext secrets. Backup codes and passwords are stored only
//     as adaptive one-way digests.
package authcore
