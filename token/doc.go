// Package token manages signed-token issuance and verification using a configured
// HMAC secret and strict validation semantics suitable for low-latency authentication paths.
package token
