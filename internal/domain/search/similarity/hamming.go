package similarity

import "math/bits"

// HashBits is the width of every perceptual hash.
const HashBits = 64

// Hamming returns the bit agreement of two hashes rescaled to 0..100.
func Hamming(h1, h2 uint64) float64 {
	diff := bits.OnesCount64(h1 ^ h2)
	return float64(HashBits-diff) * (100.0 / HashBits)
}

// Hashes holds the five perceptual hashes stored per record.
type Hashes struct {
	Average    uint64
	Difference uint64
	Wavelet    uint64
	Perceptual uint64
	Color      uint64
}

// Get returns the hash selected by a single-hash mode.
func (h Hashes) Get(m Mode) uint64 {
	switch m {
	case Average:
		return h.Average
	case Difference:
		return h.Difference
	case Wavelet:
		return h.Wavelet
	case Perceptual:
		return h.Perceptual
	case Color:
		return h.Color
	default:
		return 0
	}
}
