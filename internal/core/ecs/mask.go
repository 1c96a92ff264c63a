package ecs

import "math/bits"

const (
	bitsPerWord = 64

	// MaskWords is the number of 64-bit words backing a Mask.
	MaskWords = 4

	// MaxKinds is the maximum number of component kinds a Registry can hold.
	MaxKinds = MaskWords * bitsPerWord
)

// KindID is the bit index assigned to a component kind at registration.
type KindID uint8

// Mask is a fixed-capacity bitset with one bit per registered component kind.
// The zero Mask marks a dead or empty entity slot.
type Mask [MaskWords]uint64

// MaskOf builds a mask with the given kind bits set.
func MaskOf(ids ...KindID) Mask {
	var m Mask
	for _, id := range ids {
		m[id>>6] |= 1 << (id & 63)
	}
	return m
}

func (m Mask) Has(id KindID) bool {
	return m[id>>6]&(1<<(id&63)) != 0
}

// With returns a copy of m with the bit for id set.
func (m Mask) With(id KindID) Mask {
	m[id>>6] |= 1 << (id & 63)
	return m
}

// Without returns a copy of m with the bit for id cleared.
func (m Mask) Without(id KindID) Mask {
	m[id>>6] &^= 1 << (id & 63)
	return m
}

func (m Mask) IsZero() bool {
	return m == Mask{}
}

// Contains reports whether every bit of sub is also set in m.
func (m Mask) Contains(sub Mask) bool {
	for i := range m {
		if m[i]&sub[i] != sub[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether m and o share at least one bit.
func (m Mask) Intersects(o Mask) bool {
	for i := range m {
		if m[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

func (m Mask) And(o Mask) Mask {
	for i := range m {
		m[i] &= o[i]
	}
	return m
}

func (m Mask) Or(o Mask) Mask {
	for i := range m {
		m[i] |= o[i]
	}
	return m
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// ForEach calls fn for every set bit in ascending order.
func (m Mask) ForEach(fn func(KindID)) {
	for wi, w := range m {
		for w != 0 {
			pos := bits.TrailingZeros64(w)
			fn(KindID(wi*bitsPerWord + pos))
			w &^= 1 << pos
		}
	}
}
