// Package format implements the format & modifier catalog (SPEC_FULL.md
// §4.1): it intersects the driver's renderable/external-only DRM format
// modifier lists with the server's per-window and per-screen lists, and
// decides whether a window presents directly, via a server-side blit, or
// through an offloaded ("PRIME") linear intermediate.
package format

import (
	"errors"
	"fmt"
)

// FourCC is a 32-bit DRM pixel format code, e.g. 0x34325258 for "XR24".
type FourCC uint32

// Modifier is a 64-bit DRM format modifier describing tiling/swizzle
// layout, interpreted by the GPU driver.
type Modifier uint64

// Linear is the universally-supported, un-tiled modifier. Every driver
// and every server is expected to accept it; it is the required
// fallback for the offloaded intermediate (SPEC_FULL.md §4.1 step 4).
const Linear Modifier = 0

// DepthBPP maps a fourcc to the (depth, bits-per-pixel) pair the X11
// pixmap/DRI3 machinery needs wherever a FourCC has to be expressed in
// core-protocol terms, mirroring original_source's
// EplFormatInfo::depth/bpp fields. Only the fourccs this adapter
// actually advertises need an entry; an unknown fourcc falls back to
// the common depth-24/bpp-32 case.
func DepthBPP(fourcc FourCC) (depth, bpp int) {
	switch fourcc {
	case 0x34324752: // DRM_FORMAT_RG24 style unused placeholder, never advertised
		return 24, 24
	case 0x34325241: // AR24 (ARGB8888)
		return 32, 32
	case 0x30335241: // AR30 (ARGB2101010)
		return 30, 32
	default: // XR24 (XRGB8888) and anything else with an ignored high byte
		return 24, 32
	}
}

// Descriptor is an immutable per-fourcc record populated once at
// display initialization (SPEC_FULL.md §3 "Format descriptor").
type Descriptor struct {
	FourCC           FourCC
	BitsPerPixel     int
	ChannelWidths    [4]uint8 // R, G, B, A
	ChannelOffsets   [4]uint8
	Renderable       []Modifier // driver can render into buffers using these
	ExternalOnly     []Modifier // driver can only import/consume these
}

// DriverFormats is satisfied by the host GPU driver (out of scope,
// SPEC_FULL.md §4.7): it reports every fourcc it can import as a
// dma-buf and, per fourcc, the renderable vs. external-only modifier
// split.
type DriverFormats interface {
	SupportedFourCCs() []FourCC
	Descriptor(fourcc FourCC) (Descriptor, bool)
}

// ConfigTranslator is satisfied by the EGLConfig machinery (out of
// scope, SPEC_FULL.md §4.7); format never calls it, it only documents
// the shape a real implementation needs: mapping an EGLConfig to the
// FourCC this catalog should select for.
type ConfigTranslator interface {
	FourCCForConfig(config uintptr) (FourCC, error)
}

// ServerQuery is satisfied by the DRI3 protocol client (dri3 package):
// it reports the modifiers the X server supports for a given fourcc, at
// window and screen granularity.
type ServerQuery interface {
	WindowModifiers(fourcc FourCC, window uint32) ([]Modifier, error)
	ScreenModifiers(fourcc FourCC) ([]Modifier, error)
}

// Catalog holds the descriptors populated for a display.
type Catalog struct {
	byFourCC map[FourCC]Descriptor
}

// Build populates a Catalog from everything the driver reports.
func Build(drv DriverFormats) *Catalog {
	c := &Catalog{byFourCC: make(map[FourCC]Descriptor)}
	for _, fcc := range drv.SupportedFourCCs() {
		if d, ok := drv.Descriptor(fcc); ok {
			c.byFourCC[fcc] = d
		}
	}
	return c
}

// Descriptor returns the descriptor for fourcc, if known.
func (c *Catalog) Descriptor(fourcc FourCC) (Descriptor, bool) {
	d, ok := c.byFourCC[fourcc]
	return d, ok
}

// Mode identifies how a window will present its buffers.
type Mode int

const (
	// Direct means the back buffer's pixmap is presented as-is; the
	// server consumes the driver's renderable modifier directly.
	Direct Mode = iota
	// DirectServerBlit means the back buffer is presented as-is, but
	// the compositor is expected to re-tile it on the GPU when
	// compositing (server-side blit), because the window didn't
	// advertise the modifier but the screen does.
	DirectServerBlit
	// Offload means this window requires a GPU-local blit into a
	// linear intermediate before presentation (PRIME cross-GPU path).
	Offload
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case DirectServerBlit:
		return "direct-server-blit"
	case Offload:
		return "offload"
	default:
		return "unknown"
	}
}

// Selection is the outcome of running the catalog algorithm for one
// window.
type Selection struct {
	Mode Mode
	// Candidates is the set of modifiers that are valid for the back
	// buffer; the allocator (gbmalloc) is free to choose among them.
	// Once chosen, every subsequent buffer in the pool is forced to
	// that one modifier (SPEC_FULL.md §4.1 "Tie-breaks").
	Candidates []Modifier
	// IntermediateModifier is Linear whenever Mode == Offload, and
	// meaningless otherwise.
	IntermediateModifier Modifier
}

// ErrNoCommonModifier means no renderable modifier is acceptable to
// either the window or the screen, and the client is not permitted to
// offload.
var ErrNoCommonModifier = errors.New("format: no modifier acceptable to driver and server")

// Select runs the SPEC_FULL.md §4.1 algorithm for a single window.
func (c *Catalog) Select(fourcc FourCC, window uint32, sq ServerQuery, canOffload bool) (Selection, error) {
	d, ok := c.Descriptor(fourcc)
	if !ok {
		return Selection{}, fmt.Errorf("format: no descriptor for fourcc %#x", uint32(fourcc))
	}

	winMods, err := sq.WindowModifiers(fourcc, window)
	if err != nil {
		return Selection{}, fmt.Errorf("format: querying window modifiers: %w", err)
	}
	if common := intersect(d.Renderable, winMods); len(common) > 0 {
		return Selection{Mode: Direct, Candidates: common}, nil
	}

	screenMods, err := sq.ScreenModifiers(fourcc)
	if err != nil {
		return Selection{}, fmt.Errorf("format: querying screen modifiers: %w", err)
	}
	if common := intersect(d.Renderable, screenMods); len(common) > 0 && !canOffload {
		return Selection{Mode: DirectServerBlit, Candidates: common}, nil
	}

	if canOffload {
		if len(d.Renderable) == 0 {
			return Selection{}, ErrNoCommonModifier
		}
		return Selection{
			Mode:                 Offload,
			Candidates:           d.Renderable,
			IntermediateModifier: Linear,
		}, nil
	}

	return Selection{}, ErrNoCommonModifier
}

// WindowResolver adapts a Catalog plus a live ServerQuery to the
// presentation engine's ModifierResolver seam (SPEC_FULL.md §4.5.2:
// re-checking the modifier after a SUBOPTIMAL_COPY report), fixed to
// one window and offload mode for its lifetime.
type WindowResolver struct {
	Catalog *Catalog
	Query   ServerQuery
	Window  uint32
	Offload bool
}

// ResolveModifier re-runs the selection algorithm for fourcc against
// the window's current server-reported modifiers and returns the first
// acceptable candidate for the direct pool's render target. This is
// always a renderable modifier, even when Select settles on Offload
// mode (Candidates is d.Renderable there, never the intermediate's
// Linear fallback) — the direct pool's buffers are rendered into and
// GPU-blitted from, never presented directly, so they must stay on a
// modifier the driver can render to. r.Offload is fixed at
// WindowResolver construction time and never changes here: a window
// not created under offload cannot be promoted into it by a later
// re-check (SPEC_FULL.md §9 Open Question 2) and simply fails with
// ErrNoCommonModifier if neither Direct nor DirectServerBlit still
// applies.
func (r WindowResolver) ResolveModifier(fourcc uint32, width, height int) (uint64, error) {
	sel, err := r.Catalog.Select(FourCC(fourcc), r.Window, r.Query, r.Offload)
	if err != nil {
		return 0, err
	}
	if len(sel.Candidates) == 0 {
		return 0, ErrNoCommonModifier
	}
	return uint64(sel.Candidates[0]), nil
}

// intersect returns the elements common to both slices, preserving the
// order of a.
func intersect(a, b []Modifier) []Modifier {
	set := make(map[Modifier]struct{}, len(b))
	for _, m := range b {
		set[m] = struct{}{}
	}
	var out []Modifier
	for _, m := range a {
		if _, ok := set[m]; ok {
			out = append(out, m)
		}
	}
	return out
}
