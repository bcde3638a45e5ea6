package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// ComputeHash digests the envelope "<type> <size>\x00" followed by the
// content. Identical content under different types yields different ids.
func ComputeHash(t Type, content []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", t, len(content))
	h.Write(content)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// rawDigest converts a 40-hex id to its 20 raw bytes for tree rows.
func rawDigest(h Hash) ([]byte, error) {
	return hex.DecodeString(string(h))
}

// hashFromRaw is the inverse of rawDigest.
func hashFromRaw(b []byte) Hash {
	return Hash(hex.EncodeToString(b))
}
