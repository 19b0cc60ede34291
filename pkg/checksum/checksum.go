package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Reader returns the hex encoded SHA-256 digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File returns the hex encoded SHA-256 digest of the file content.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// State hashes the concatenation of the content of all given files, joined
// by delimiter. Files that do not exist are skipped, they don't contribute
// to the digest at all.
func State(paths []string, delimiter string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
		if _, err := io.WriteString(h, delimiter); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
