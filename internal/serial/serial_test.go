package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewer32Basic(t *testing.T) {
	cases := [...]struct {
		a, b uint32
		want bool
	}{
		{1, 0, true},
		{0, 1, false},
		{0, 0, false},
		{0, 0xFFFFFFFF, true},          // wraps past zero
		{0xFFFFFFFF, 0, false},
		{0x80000000, 0, false},         // exactly half the range: treated as not-newer
		{0x7FFFFFFF, 0, true},
	}
	for _, c := range cases {
		got := Newer32(c.a, c.b)
		assert.Equalf(t, c.want, got, "Newer32(%#x, %#x)", c.a, c.b)
	}
}

// TestNewer32StraddlesWrap is property P1: for serials straddling 2^32,
// the ordering implied by Newer32 must match the ordering of the
// unbounded integer sequence that produced them, as long as no two
// serials in the compared pair are more than 2^31 apart (the usual
// wrap-aware-comparison precondition).
func TestNewer32StraddlesWrap(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Uint32().Draw(t, "base")
		delta := rapid.Int32Range(1, 1<<30).Draw(t, "delta")
		newer := base + uint32(delta)
		assert.True(t, Newer32(newer, base), "newer=%#x should be newer than base=%#x", newer, base)
		assert.False(t, Newer32(base, newer), "base=%#x should not be newer than newer=%#x", base, newer)
	})
}

func TestPending32(t *testing.T) {
	assert.Equal(t, uint32(0), Pending32(5, 5))
	assert.Equal(t, uint32(3), Pending32(8, 5))
	// Wrap-aware: sent has wrapped past completed.
	assert.Equal(t, uint32(2), Pending32(1, 0xFFFFFFFF))
}
