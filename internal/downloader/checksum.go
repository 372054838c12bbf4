package downloader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

const checksumPrefix = "sha256="

// ErrChecksumMismatch is returned when a package does not match its pinned digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// checksumFromFragment extracts a "#sha256=<hex>" pin. Other fragments are ignored.
func checksumFromFragment(loc *url.URL) (string, error) {
	digest, ok := strings.CutPrefix(loc.Fragment, checksumPrefix)
	if !ok {
		return "", nil
	}
	digest = strings.ToLower(digest)
	if b, err := hex.DecodeString(digest); err != nil || len(b) != sha256.Size {
		return "", fmt.Errorf("malformed sha256 pin %q", digest)
	}
	return digest, nil
}

// verifyChecksum compares the sha256 of the file at path with expected.
func verifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening package for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("computing checksum: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}
