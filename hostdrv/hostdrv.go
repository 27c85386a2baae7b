// Package hostdrv declares the host GPU driver's entry-point surface
// (SPEC_FULL.md §4.7 "Driver entry-point loader", out of scope: this
// package only specifies the shape the real driver satisfies, describing
// a GPU without implementing one). It also hosts the two callbacks the
// driver is allowed to invoke back into this library
// (UpdateCallback/DamageCallback, SPEC_FULL.md §4.6) as methods on
// *swapchain.Window; this package itself only defines their function
// pointer types and the surface the driver fills in.
package hostdrv

import "errors"

// ErrNoDriver means the host never filled in the required entry
// points before the adapter tried to use them.
var ErrNoDriver = errors.New("hostdrv: entry point not set")

// ColorBufferToken is the driver-opaque handle a color buffer carries
// (SPEC_FULL.md §3 "driver-opaque color-buffer token"). This package
// never interprets it.
type ColorBufferToken any

// SurfaceToken is the driver-opaque handle returned by CreateSurface.
type SurfaceToken any

// UpdateFunc is invoked before rendering to the current surface; it
// must not call any driver API (SPEC_FULL.md §4.6 "Update callback").
type UpdateFunc func(surf SurfaceToken)

// DamageFunc is invoked after single-buffered or front-buffer-modified
// rendering, with an optional GPU completion fence fd (-1 if none);
// it must not call the driver API at all (SPEC_FULL.md §4.6 "Damage
// callback").
type DamageFunc func(surf SurfaceToken, fenceFD int)

// Entry is the set of function pointers the host driver installs at
// load time (SPEC_FULL.md §4.7, §6 "Driver interface exposed
// upward"). Every field is nil until the driver fills it in; this
// adapter never provides a default implementation.
type Entry struct {
	// ImportColorBuffer wraps an existing dma-buf fd as a
	// driver-opaque color buffer token.
	ImportColorBuffer func(fd int, width, height int, fourcc uint32, stride, offset uint32, modifier uint64) (ColorBufferToken, error)

	// AllocColorBuffer allocates a new color buffer of its own
	// accord; sysmemForced requests a non-GPU-local (system memory)
	// allocation when true.
	AllocColorBuffer func(width, height int, fourcc uint32, sysmemForced bool) (ColorBufferToken, error)

	// ExportColorBuffer returns a dma-buf fd for a driver-allocated
	// color buffer (used to hand an AllocColorBuffer result to DRI3
	// PixmapFromBuffers).
	ExportColorBuffer func(tok ColorBufferToken) (fd int, stride, offset uint32, modifier uint64, err error)

	// Free releases a color buffer token.
	Free func(tok ColorBufferToken)

	// CreateSurface creates the driver-side surface object and
	// installs update/damage callbacks, given the initial color
	// buffer set.
	CreateSurface func(width, height int, buffers []ColorBufferToken, update UpdateFunc, damage DamageFunc) (SurfaceToken, error)

	// SetColorBuffers replaces a surface's color buffer set, e.g.
	// after a reallocation (SPEC_FULL.md §4.5.2 "a single 'set color
	// buffers' call"). Per SPEC_FULL.md §9 Open Question 1, the driver
	// guarantees this call never tries to take the driver's own
	// winsys lock, so it is safe to call while holding the window
	// mutex (see DESIGN.md).
	SetColorBuffers func(surf SurfaceToken, buffers []ColorBufferToken) error

	// Copy performs a GPU blit from src to dst, used to populate the
	// linear intermediate in offload mode (SPEC_FULL.md §4.5 step 3).
	Copy func(dst, src ColorBufferToken) error

	// Version reports the driver's entry-point ABI version.
	Version func() (major, minor int)
}

// Valid reports whether every required field has been installed.
func (e *Entry) Valid() bool {
	return e != nil &&
		e.ImportColorBuffer != nil &&
		e.AllocColorBuffer != nil &&
		e.ExportColorBuffer != nil &&
		e.Free != nil &&
		e.CreateSurface != nil &&
		e.SetColorBuffers != nil &&
		e.Copy != nil &&
		e.Version != nil
}

// PixmapSurface is the out-of-scope single-buffer surface kind
// (SPEC_FULL.md §4.7 "Pixmap surfaces"): simpler than a window
// surface because it never rotates buffers, only ever uses implicit
// sync or a CPU wait on a fence fd (spec.md §4.6 "For pixmap surfaces
// ... it uses implicit sync or a CPU wait on the FD"). Declared as an
// interface stub; this repository's hard core is window surfaces.
type PixmapSurface interface {
	Damage(fenceFD int) error
	Destroy()
}
