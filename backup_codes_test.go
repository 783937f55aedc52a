package authkit

import (
	"strings"
	"testing"
)

func TestGenerateBackupCodes(t *testing.T) {
	codes, hashes, err := generateBackupCodes(10, 8)
	if err != nil {
		t.Fatalf("generateBackupCodes: %v", err)
	}
	if len(codes) != 10 || len(hashes) != 10 {
		t.Fatalf("got %d codes, %d hashes, want 10 each", len(codes), len(hashes))
	}

	seen := map[string]bool{}
	for i, code := range codes {
		parts := strings.Split(code, "-")
		if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
			t.Fatalf("code %q not in XXXX-XXXX shape", code)
		}
		for _, r := range parts[0] + parts[1] {
			if !strings.ContainsRune(backupCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true

		if len(hashes[i]) != 64 {
			t.Fatalf("hash %d has length %d, want 64", i, len(hashes[i]))
		}
	}
}

func TestVerifyBackupCode(t *testing.T) {
	codes, hashes, err := generateBackupCodes(10, 8)
	if err != nil {
		t.Fatalf("generateBackupCodes: %v", err)
	}

	if idx := verifyBackupCode(codes[0], hashes); idx != 0 {
		t.Fatalf("first code matched index %d, want 0", idx)
	}
	if idx := verifyBackupCode(codes[7], hashes); idx != 7 {
		t.Fatalf("eighth code matched index %d, want 7", idx)
	}
	if idx := verifyBackupCode("ZZZZ-ZZZZ", hashes); idx != -1 {
		t.Fatalf("bogus code matched index %d", idx)
	}
}

func TestVerifyBackupCodeNormalization(t *testing.T) {
	codes, hashes, err := generateBackupCodes(3, 8)
	if err != nil {
		t.Fatalf("generateBackupCodes: %v", err)
	}

	variants := []string{
		strings.ToLower(codes[1]),
		strings.ReplaceAll(codes[1], "-", ""),
		"  " + codes[1] + "  ",
		strings.ReplaceAll(codes[1], "-", " "),
	}
	for _, v := range variants {
		if idx := verifyBackupCode(v, hashes); idx != 1 {
			t.Fatalf("variant %q matched index %d, want 1", v, idx)
		}
	}
}
