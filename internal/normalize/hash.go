package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// FileDigest returns the hex-encoded SHA-256 and byte size of the file at
// path. The digest is recorded with every run so results can be traced
// back to the exact input.
func FileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open file for digest: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("digest file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
