package authkit

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"strings"
)

// backupCodeAlphabet omits visually ambiguous characters (0/O, 1/I).
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateBackupCodes(count, length int) (codes []string, hashes []string, err error) {
	codes = make([]string, 0, count)
	hashes = make([]string, 0, count)
	for i := 0; i < count; i++ {
		raw, err := newBackupCode(length)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, formatBackupCode(raw))
		hashes = append(hashes, backupCodeHash(raw))
	}
	return codes, hashes, nil
}

func newBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func formatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

func canonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

func backupCodeHash(code string) string {
	sum := sha256.Sum256([]byte(canonicalizeBackupCode(code)))
	return hex.EncodeToString(sum[:])
}

// verifyBackupCode scans every stored hash even after a match so attempt
// timing does not depend on which slot the code occupies. Returns the index
// of the matching hash, or -1. Consuming the matched slot is the caller's
// responsibility.
func verifyBackupCode(code string, hashes []string) int {
	candidate := []byte(backupCodeHash(code))

	match := -1
	for i, stored := range hashes {
		if subtle.ConstantTimeCompare(candidate, []byte(stored)) == 1 && match == -1 {
			match = i
		}
	}
	return match
}
