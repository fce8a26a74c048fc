package sec

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest is the hex BLAKE2b-256 checksum of data, used as an ETag and in
// request logs.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
