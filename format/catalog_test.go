package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xr24 FourCC = 0x34325258

type fakeDriver struct {
	desc Descriptor
}

func (f fakeDriver) SupportedFourCCs() []FourCC { return []FourCC{xr24} }

func (f fakeDriver) Descriptor(fourcc FourCC) (Descriptor, bool) {
	if fourcc != xr24 {
		return Descriptor{}, false
	}
	return f.desc, true
}

type fakeServer struct {
	window []Modifier
	screen []Modifier
	err    error
}

func (s fakeServer) WindowModifiers(FourCC, uint32) ([]Modifier, error) { return s.window, s.err }
func (s fakeServer) ScreenModifiers(FourCC) ([]Modifier, error)         { return s.screen, s.err }

func newCatalog(renderable []Modifier) *Catalog {
	return Build(fakeDriver{desc: Descriptor{FourCC: xr24, Renderable: renderable}})
}

func TestSelectDirect(t *testing.T) {
	c := newCatalog([]Modifier{1, 2, 3})
	sel, err := c.Select(xr24, 1, fakeServer{window: []Modifier{2, 3, 4}}, false)
	require.NoError(t, err)
	assert.Equal(t, Direct, sel.Mode)
	assert.Equal(t, []Modifier{2, 3}, sel.Candidates)
}

func TestSelectDirectServerBlit(t *testing.T) {
	c := newCatalog([]Modifier{1, 2})
	sel, err := c.Select(xr24, 1, fakeServer{window: nil, screen: []Modifier{2, 9}}, false)
	require.NoError(t, err)
	assert.Equal(t, DirectServerBlit, sel.Mode)
	assert.Equal(t, []Modifier{2}, sel.Candidates)
}

func TestSelectOffloadWhenNoScreenMatchButCanOffload(t *testing.T) {
	c := newCatalog([]Modifier{5})
	sel, err := c.Select(xr24, 1, fakeServer{window: nil, screen: []Modifier{9}}, true)
	require.NoError(t, err)
	assert.Equal(t, Offload, sel.Mode)
	assert.Equal(t, Linear, sel.IntermediateModifier)
	assert.Equal(t, []Modifier{5}, sel.Candidates)
}

// TestSelectOffloadPreferredOverServerBlit verifies step 3's "and the
// client cannot offload" guard: a PRIME-capable client skips the
// server-blit path entirely and goes straight to offload, even though a
// common screen modifier exists.
func TestSelectOffloadPreferredOverServerBlit(t *testing.T) {
	c := newCatalog([]Modifier{1, 2})
	sel, err := c.Select(xr24, 1, fakeServer{window: nil, screen: []Modifier{2}}, true)
	require.NoError(t, err)
	assert.Equal(t, Offload, sel.Mode)
}

func TestSelectFails(t *testing.T) {
	c := newCatalog([]Modifier{1})
	_, err := c.Select(xr24, 1, fakeServer{window: nil, screen: []Modifier{9}}, false)
	assert.ErrorIs(t, err, ErrNoCommonModifier)
}

func TestSelectUnknownFourCC(t *testing.T) {
	c := newCatalog([]Modifier{1})
	_, err := c.Select(0xdeadbeef, 1, fakeServer{}, false)
	assert.Error(t, err)
}
