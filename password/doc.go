// Package password provides bcrypt credential hashing and verification with
// separate work factors for login passwords and MFA backup codes.
package password
