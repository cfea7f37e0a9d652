// Package cryptorand adapts crypto/rand to math/rand's Source64, so
// deck shuffles and room IDs can come from the OS entropy pool while
// the rest of the code keeps taking a *rand.Rand. Hands are hidden
// information, so shuffle order shouldn't be predictable from a seed.
package cryptorand

import (
	"crypto/rand"
	"encoding/binary"
)

func NewSource() Source {
	return Source{}
}

type Source struct{}

func (Source) Uint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (s Source) Int63() int64 {
	return int64(s.Uint64() &^ (1 << 63))
}

// Seed is a no-op, the entropy pool isn't seedable.
func (Source) Seed(int64) {}
