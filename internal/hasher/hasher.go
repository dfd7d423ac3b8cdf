// Package hasher provides streaming SHA-256 hashing over files and byte
// ranges, bounding memory use on large files.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"ardiex/internal/apperr"
)

// ChunkSize is the read buffer size used when streaming a file through the
// hasher. Kept well above the delta codec's block size so a full-file hash
// doesn't become the bottleneck on large trees.
const ChunkSize = 64 * 1024

// HashFile computes the hex-encoded SHA-256 of the file at path, streaming
// it in ChunkSize reads rather than loading the whole file into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperr.New(apperr.Io, "hasher.hash_file", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", apperr.New(apperr.Io, "hasher.hash_file", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes computes the hex-encoded SHA-256 of an in-memory byte slice.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashReader computes the hex-encoded SHA-256 of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", apperr.New(apperr.Io, "hasher.hash_reader", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
