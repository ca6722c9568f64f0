package internal

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strings"
)

// BackupCodeAlphabet matches the character set backup codes are minted from.
const BackupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const opaqueTokenBytes = 32

// NewOpaqueToken returns a URL-safe random handle for partial-authentication
// challenges. It is not a signed token; possession is the only claim it makes.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewBackupCode returns a backup code of length random characters drawn from
// [BackupCodeAlphabet], formatted in 4-character groups ("XXXX-XXXX").
func NewBackupCode(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(BackupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n.Int64()])
	}
	return FormatBackupCode(b.String()), nil
}

// FormatBackupCode groups a raw code into 4-character segments.
func FormatBackupCode(code string) string {
	if len(code) <= 4 {
		return code
	}

	var b strings.Builder
	for i, r := range code {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CanonicalizeBackupCode strips separators and whitespace and upper-cases a
// user-submitted code so stored digests compare against a stable form.
func CanonicalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}
