package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// HexLength is the length of a fingerprint string: a SHA-256 digest
// truncated to its first 16 bytes, hex encoded.
const HexLength = 32

// Fingerprint derives the content key for a blob of raw image bytes.
// Identical bytes always produce the same key; the truncation keeps
// storage keys and file names short while collisions stay negligible.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:HexLength/2])
}
