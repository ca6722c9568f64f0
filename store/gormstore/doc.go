// Package gormstore is a GORM-backed reference implementation of the
// authcore.PrincipalStore and rbac.Store interfaces. It targets any dialect
// GORM supports; tests run it against SQLite.
package gormstore
