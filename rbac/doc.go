// Package rbac implements a resource-scoped role and permission model and a
// fail-closed resolver answering "does principal P hold permission N on resource R".
//
// # Scope model
//
// Role assignments bind a principal to a role either system-wide or against a
// concrete resource (an organization or a project). System-scoped grants apply
// to every request; resource-scoped grants apply only to the exact resource
// they name. System-scoped requests never widen to resource-scoped grants.
//
// # Architecture boundaries
//
// This package owns scope matching and permission resolution. It does NOT load
// rows itself — a caller-supplied [Store] does — and it never issues or
// inspects tokens.
//
// # What this package must NOT do
//
//   - Import authcore, token, or session (no upward imports).
//   - Infer hierarchy between organization and project scope.
//   - Treat a storage failure as a grant.
package rbac
