// Package selector is the stand-in for "the hashing primitive used to
// compute 4-byte method selectors from textual signatures" (spec.md
// §1, §6). The hash is pre-standardization Keccak-256, not FIPS
// SHA3-256 (spec.md §9) — golang.org/x/crypto/sha3's
// NewLegacyKeccak256 is exactly that variant.
package selector

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Hasher computes the function-selector hash this module needs. The
// binder computes selectors (spec.md §4.D) through this interface so
// tests can substitute a fixture without linking real Keccak; the ABI
// emitter copies the binder's selectors, and the translator carries a
// Hasher but emits storage slot hashing as the sha3_32 pseudo-opcode
// without calling it.
type Hasher interface {
	// Keccak256 returns the 32-byte digest of data.
	Keccak256(data []byte) [32]byte
}

type keccak struct{}

func (keccak) Keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Default wraps golang.org/x/crypto/sha3's legacy Keccak-256.
var Default Hasher = keccak{}

// FunctionSelector returns the 4-byte big-endian prefix of
// Keccak-256(signature), interpreted as an unsigned 32-bit integer,
// per spec.md §4.D and §6's "Bit-exact compatibility surfaces".
func FunctionSelector(h Hasher, signature string) uint32 {
	digest := h.Keccak256([]byte(signature))
	return binary.BigEndian.Uint32(digest[:4])
}
