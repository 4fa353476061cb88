// Package hypercube provides the packed bit-vector used for agent states and
// codewords, plus the error classes shared by the simulation packages.
package hypercube

import (
	"fmt"
	"math/bits"
	"strings"
)

const wordBits = 64

// Vector is a D-bit vector packed into 64-bit words. Bit i lives in
// words[i/64] at position i%64. Bits at positions >= D are always zero.
type Vector struct {
	dim   int
	words []uint64
}

// WordsFor returns the number of uint64 words needed to hold d bits.
func WordsFor(d int) int {
	return (d + wordBits - 1) / wordBits
}

// NewVector returns the all-zero vector of dimension d.
func NewVector(d int) Vector {
	if d < 0 {
		d = 0
	}
	return Vector{dim: d, words: make([]uint64, WordsFor(d))}
}

// FromBits builds a vector from a slice of 0/1 values.
func FromBits(b []uint8) (Vector, error) {
	v := NewVector(len(b))
	for i, x := range b {
		switch x {
		case 0:
		case 1:
			v.words[i/wordBits] |= 1 << (uint(i) % wordBits)
		default:
			return Vector{}, fmt.Errorf("%w: bit %d has value %d", ErrInvariant, i, x)
		}
	}
	return v, nil
}

// ParseVector parses a string of '0' and '1' characters, most significant
// position first as written (index 0 is the leftmost character).
// Spaces, commas and underscores are ignored.
func ParseVector(s string) (Vector, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', '_':
			return -1
		}
		return r
	}, s)
	if clean == "" {
		return Vector{}, fmt.Errorf("%w: empty bit string", ErrConfig)
	}

	v := NewVector(len(clean))
	for i, r := range clean {
		switch r {
		case '0':
		case '1':
			v.words[i/wordBits] |= 1 << (uint(i) % wordBits)
		default:
			return Vector{}, fmt.Errorf("%w: invalid character %q in bit string %q", ErrConfig, r, s)
		}
	}
	return v, nil
}

// Dim returns the number of bits.
func (v Vector) Dim() int { return v.dim }

// Bit returns the value (0 or 1) of bit i.
func (v Vector) Bit(i int) uint8 {
	v.checkIndex(i)
	return uint8(v.words[i/wordBits] >> (uint(i) % wordBits) & 1)
}

// Flip toggles bit i in place.
func (v Vector) Flip(i int) {
	v.checkIndex(i)
	v.words[i/wordBits] ^= 1 << (uint(i) % wordBits)
}

// Xor adds other into v modulo 2, in place.
func (v Vector) Xor(other Vector) error {
	if v.dim != other.dim {
		return fmt.Errorf("%w: vector length %d does not match %d", ErrConfig, other.dim, v.dim)
	}
	for i, w := range other.words {
		v.words[i] ^= w
	}
	return nil
}

// Weight returns the Hamming weight.
func (v Vector) Weight() int {
	n := 0
	for _, w := range v.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Distance returns the Hamming distance between v and other.
func (v Vector) Distance(other Vector) (int, error) {
	if v.dim != other.dim {
		return 0, fmt.Errorf("%w: vector length %d does not match %d", ErrConfig, other.dim, v.dim)
	}
	n := 0
	for i, w := range v.words {
		n += bits.OnesCount64(w ^ other.words[i])
	}
	return n, nil
}

// Equal reports whether v and other have the same dimension and bits.
func (v Vector) Equal(other Vector) bool {
	if v.dim != other.dim {
		return false
	}
	for i, w := range v.words {
		if other.words[i] != w {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	words := make([]uint64, len(v.words))
	copy(words, v.words)
	return Vector{dim: v.dim, words: words}
}

// Bits unpacks the vector into a slice of 0/1 values.
func (v Vector) Bits() []uint8 {
	out := make([]uint8, v.dim)
	for i := range out {
		out[i] = uint8(v.words[i/wordBits] >> (uint(i) % wordBits) & 1)
	}
	return out
}

// String renders the vector as a bit string, index 0 first.
func (v Vector) String() string {
	var b strings.Builder
	b.Grow(v.dim)
	for i := 0; i < v.dim; i++ {
		if v.words[i/wordBits]>>(uint(i)%wordBits)&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Validate checks that no bit above the dimension is set.
func (v Vector) Validate() error {
	if len(v.words) != WordsFor(v.dim) {
		return fmt.Errorf("%w: %d words for %d bits", ErrInvariant, len(v.words), v.dim)
	}
	if r := v.dim % wordBits; r != 0 {
		if v.words[len(v.words)-1]>>uint(r) != 0 {
			return fmt.Errorf("%w: bits set beyond dimension %d", ErrInvariant, v.dim)
		}
	}
	return nil
}

// Randomize overwrites v with uniform random bits drawn from src.
func (v Vector) Randomize(src interface{ Uint64() uint64 }) {
	for i := range v.words {
		v.words[i] = src.Uint64()
	}
	if r := v.dim % wordBits; r != 0 && len(v.words) > 0 {
		v.words[len(v.words)-1] &= (1 << uint(r)) - 1
	}
}

func (v Vector) checkIndex(i int) {
	if i < 0 || i >= v.dim {
		panic(fmt.Sprintf("hypercube: bit index %d out of range [0,%d)", i, v.dim))
	}
}
