package project

import (
	"crypto/sha256"
)

// Digest is a fixed 256-bit content hash.
type Digest [32]byte

// HashContent digests a source file's bytes.
func HashContent(content []byte) Digest {
	return sha256.Sum256(content)
}

// Combine builds an aggregate hash H(first || rest...). Callers must pass
// deps in a deterministic order.
func Combine(first Digest, rest ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(first[:])
	for _, d := range rest {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
