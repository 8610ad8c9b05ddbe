package files

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint computes a BLAKE2b-256 digest of the file at path,
// returned as a lowercase hex string. Reports record the fingerprint of
// the survey file they were generated from so that a report can always
// be traced back to the exact input data.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for fingerprint: %w", err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("failed to init digest: %w", err)
	}

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read file for fingerprint: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
