// Package colorbuf implements the per-window color-buffer pool
// (SPEC_FULL.md §4.3): a bounded, lazily-grown set of shareable color
// buffers recycled on release notification. The bookkeeping style
// (parallel slices tracking per-entry state with an LRU-ish reuse
// discipline) follows a Vulkan swapchain's image/semaphore tracking,
// generalized from a fixed image count to the presentation engine's
// IDLE/IN_USE/IDLE_NOTIFIED state machine (SPEC_FULL.md §3).
package colorbuf

import (
	"errors"
	"sync"

	"github.com/gpuwsi/eglx11/gbmalloc"
)

// Status is a color buffer's place in the release/recycle state
// machine (SPEC_FULL.md §3).
type Status int

const (
	// IDLE means the client may render into this buffer immediately.
	IDLE Status = iota
	// InUse means a presentation request referencing this buffer has
	// been sent and no release notification has been received.
	InUse
	// IdleNotified means the server reported the buffer as idle but the
	// client has not yet waited on its implicit fence. Only reachable
	// under the implicit-sync regime; explicit sync collapses straight
	// to IDLE.
	IdleNotified
)

func (s Status) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case InUse:
		return "IN_USE"
	case IdleNotified:
		return "IDLE_NOTIFIED"
	default:
		return "unknown"
	}
}

// Allocator is satisfied by gbmalloc.Device: the kernel allocator
// object a color buffer wraps.
type Allocator interface {
	CreateWithModifiers2(width, height int, fourcc uint32, modifiers []uint64) (BufferObject, error)
}

// BufferObject is satisfied by *gbmalloc.BufferObject.
type BufferObject interface {
	FD() (int, error)
	Stride() uint32
	Offset() uint32
	Modifier() uint64
	Destroy()
}

// GBMAllocator adapts a *gbmalloc.Device to the Allocator interface:
// gbmalloc returns its own concrete *BufferObject, so this wrapper is
// the seam that lets Pool depend on an interface instead of the
// concrete cgo type (mirroring drmsync's kernelOps seam).
type GBMAllocator struct{ Dev *gbmalloc.Device }

// CreateWithModifiers2 implements Allocator.
func (a GBMAllocator) CreateWithModifiers2(width, height int, fourcc uint32, modifiers []uint64) (BufferObject, error) {
	return a.Dev.CreateWithModifiers2(width, height, fourcc, modifiers)
}

// DriverToken is the opaque "driver color-buffer token" from
// SPEC_FULL.md §3/§4.7 — the out-of-scope driver's handle for whatever
// it associates with a color buffer (texture, image object, etc).
// colorbuf never interprets it, only stores and forwards it.
type DriverToken any

// Timeline is the subset of *drmsync.Timeline a color buffer needs
// (SPEC_FULL.md §3 "optional timeline"). Declared as an interface, not
// the concrete type, so swapchain's tests can drive the explicit-sync
// path with an in-memory fake instead of a real kernel syncobj.
type Timeline interface {
	AcquirePoint() uint64
	ReleasePoint() uint64
	AttachFence(fenceFD int) error
	SignalNext() error
	ExportFenceFD() (int, error)
	Handle() uint32
	XID() uint32
	Destroy()
}

// ErrAlloc wraps kernel-allocator or DRI3 failures during buffer
// creation (SPEC_FULL.md §4.5 "Fails with ALLOC_FAILURE").
var ErrAlloc = errors.New("colorbuf: allocation failure")

// PixmapFreer releases a server-side pixmap XID once its buffer is torn
// down (SPEC_FULL.md §5 "GPU-allocator objects ... are released exactly
// once on buffer free"); satisfied directly by *dri3.Client. A Pool
// with no freer set (e.g. in tests that never assign a Pixmap) simply
// skips this step.
type PixmapFreer interface {
	FreePixmap(pixmap uint32) error
}

// Buffer is one color buffer record (SPEC_FULL.md §3 "Color buffer").
type Buffer struct {
	bo       BufferObject
	Token    DriverToken
	Pixmap   uint32 // server-side XID, 0 until first present
	FD       int    // exported dma-buf fd; -1 unless kept for linear/implicit use
	Timeline Timeline

	status     Status
	lastSerial uint32
}

// Status returns the buffer's current state.
func (b *Buffer) Status() Status { return b.status }

// LastSerial returns the presentation serial that last referenced this
// buffer. Only meaningful when Status() != IDLE (SPEC_FULL.md §3).
func (b *Buffer) LastSerial() uint32 { return b.lastSerial }

// Modifier reports the modifier the allocator actually used.
func (b *Buffer) Modifier() uint64 { return b.bo.Modifier() }

// Stride/Offset report the allocator-chosen plane-0 layout, needed for
// PixmapFromBuffers.
func (b *Buffer) Stride() uint32 { return b.bo.Stride() }
func (b *Buffer) Offset() uint32 { return b.bo.Offset() }

// ExportFD returns a freshly duplicated dma-buf fd for the buffer's
// allocator object, suitable for a one-shot consuming request such as
// DRI3 PixmapFromBuffers (SPEC_FULL.md §4.5 step 4).
func (b *Buffer) ExportFD() (int, error) { return b.bo.FD() }

// destroy releases the buffer's allocator object and timeline. It does
// not touch the server-side pixmap XID: Pool.DestroyAll frees that
// through its PixmapFreer first, since colorbuf has no X connection of
// its own.
func (b *Buffer) destroy() {
	if b.Timeline != nil {
		b.Timeline.Destroy()
	}
	b.bo.Destroy()
}

// Pool is a per-window bounded set of color buffers with lazy growth
// and LRU-biased recycling (SPEC_FULL.md §4.3). One Pool instance
// covers either the direct-present list or the linear-intermediate
// list for a window; swapchain.Window holds two.
type Pool struct {
	mu        sync.Mutex
	alloc     Allocator
	freer     PixmapFreer
	cap       int
	width     int
	height    int
	fourcc    uint32
	modifiers []uint64
	bufs      []*Buffer // ordered; index 0 is the LRU candidate
}

// DefaultDirectCap and DefaultIntermediateCap are the pool-size limits
// from SPEC_FULL.md §3/§4.3.
const (
	DefaultDirectCap       = 4
	DefaultIntermediateCap = 2
)

// NewPool creates an empty pool bound to alloc, sized at width×height
// for fourcc, constrained to modifiers (the allocator picks among
// them; every subsequent buffer reuses whichever modifier the first
// allocation settled on — SPEC_FULL.md §4.1 "Tie-breaks").
func NewPool(alloc Allocator, cap, width, height int, fourcc uint32, modifiers []uint64) *Pool {
	return &Pool{
		alloc:     alloc,
		cap:       cap,
		width:     width,
		height:    height,
		fourcc:    fourcc,
		modifiers: modifiers,
	}
}

// SetPixmapFreer arms freer for subsequent DestroyAll calls. Separate
// from NewPool since the window that owns a Pool learns its DRI3
// client at construction time but wires the two together once both
// exist (swapchain.New).
func (p *Pool) SetPixmapFreer(freer PixmapFreer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freer = freer
}

// Len reports how many buffers currently exist in the pool (for
// property P3, pool boundedness).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bufs)
}

// Cap reports the pool's configured maximum.
func (p *Pool) Cap() int { return p.cap }

// AcquireIdle returns an IDLE buffer other than exclude if one exists,
// without allocating. The returned buffer is left in IDLE state; the
// caller transitions it to IN_USE once a present is actually sent
// (SPEC_FULL.md §4.5 "Free-buffer acquisition").
func (p *Pool) AcquireIdle(exclude *Buffer) (*Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.bufs {
		if b == exclude {
			continue
		}
		if b.status == IDLE {
			return b, true
		}
	}
	return nil, false
}

// Grow allocates a new buffer if the pool has not yet reached its cap,
// returning it in IDLE state (SPEC_FULL.md §4.3 "Allocation policy").
func (p *Pool) Grow(token DriverToken) (*Buffer, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bufs) >= p.cap {
		return nil, false, nil
	}
	bo, err := p.alloc.CreateWithModifiers2(p.width, p.height, p.fourcc, p.modifiers)
	if err != nil {
		return nil, false, errors.Join(ErrAlloc, err)
	}
	b := &Buffer{bo: bo, Token: token, FD: -1, status: IDLE}
	p.bufs = append(p.bufs, b)
	if len(p.bufs) == 1 {
		p.modifiers = []uint64{bo.Modifier()}
	}
	return b, true, nil
}

// NotInUse reports whether every buffer other than exclude is IDLE
// (used by reallocation to decide it is safe to free everything).
func (p *Pool) NotInUse(exclude *Buffer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.bufs {
		if b == exclude {
			continue
		}
		if b.status != IDLE {
			return false
		}
	}
	return true
}

// MarkInUse transitions b to IN_USE with the given presentation serial
// (SPEC_FULL.md §3 "state machine for a buffer").
func (p *Pool) MarkInUse(b *Buffer, serial uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b.status = InUse
	b.lastSerial = serial
}

// NotifyIdle implements the IdleNotify transition: find the buffer
// whose pixmap XID and last serial match, move it to IDLE_NOTIFIED, and
// push it to the tail of the pool for LRU reuse (SPEC_FULL.md §4.3
// "Recycling policy", §4.4 event table). Returns false if no buffer
// matched (the event referred to a buffer this pool no longer tracks).
func (p *Pool) NotifyIdle(pixmap, serial uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range p.bufs {
		if b.Pixmap == pixmap && b.lastSerial == serial && b.status == InUse {
			b.status = IdleNotified
			p.bufs = append(append(p.bufs[:i:i], p.bufs[i+1:]...), b)
			return true
		}
	}
	return false
}

// MarkIdleDirect transitions b straight to IDLE, the explicit-sync
// collapse of IDLE_NOTIFIED (SPEC_FULL.md §3 "Under explicit sync the
// third state collapses into IDLE"), and moves it to the tail.
func (p *Pool) MarkIdleDirect(b *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b.status = IDLE
	p.moveToTailLocked(b)
}

// PromoteIdleNotified transitions an IDLE_NOTIFIED buffer to IDLE once
// its implicit fence has actually been observed satisfied (dma-buf
// POLLOUT, or a finish-regime wait) — SPEC_FULL.md §4.5 "Free-buffer
// acquisition", implicit branch.
func (p *Pool) PromoteIdleNotified(b *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b.status = IDLE
}

// NonIdle returns every buffer not currently IDLE, for the caller to
// wait on (timeline wait-available, or dma-buf poll).
func (p *Pool) NonIdle() []*Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Buffer, 0, len(p.bufs))
	for _, b := range p.bufs {
		if b.status != IDLE {
			out = append(out, b)
		}
	}
	return out
}

// PromoteIdleNotifiedByPixmap transitions the IDLE_NOTIFIED buffer
// matching pixmap straight to IDLE without requiring the caller to hold
// a *Buffer, for regimes where the completion event alone already
// proves the buffer safe to reuse (SPEC_FULL.md §4.5 "Free-buffer
// acquisition": explicit sync and the finish fallback both collapse
// IDLE_NOTIFIED immediately; only implicit sync needs a separate
// dma-buf poll first).
func (p *Pool) PromoteIdleNotifiedByPixmap(pixmap uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.bufs {
		if b.Pixmap == pixmap && b.status == IdleNotified {
			b.status = IDLE
			return true
		}
	}
	return false
}

// IdleNotifiedWithFD returns every IDLE_NOTIFIED buffer that carries an
// exported dma-buf fd, for the implicit-sync poll set.
func (p *Pool) IdleNotifiedWithFD() []*Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Buffer, 0, len(p.bufs))
	for _, b := range p.bufs {
		if b.status == IdleNotified && b.FD >= 0 {
			out = append(out, b)
		}
	}
	return out
}

func (p *Pool) moveToTailLocked(b *Buffer) {
	for i, cur := range p.bufs {
		if cur == b {
			p.bufs = append(append(p.bufs[:i:i], p.bufs[i+1:]...), b)
			return
		}
	}
}

// DestroyAll releases every buffer in the pool (window destroy or
// reallocation, SPEC_FULL.md §3 "freed when the window is destroyed or
// reallocated"). The caller must have already ensured every buffer is
// IDLE (NotInUse) or is tearing the window down entirely.
func (p *Pool) DestroyAll() {
	p.mu.Lock()
	bufs := p.bufs
	freer := p.freer
	p.bufs = nil
	p.mu.Unlock()
	for _, b := range bufs {
		if freer != nil && b.Pixmap != 0 {
			freer.FreePixmap(b.Pixmap)
		}
		b.destroy()
	}
}

// Reconfigure updates the pool's target size/format for a subsequent
// Grow, used by reallocation (SPEC_FULL.md §4.5.2). Call only after
// DestroyAll.
func (p *Pool) Reconfigure(width, height int, fourcc uint32, modifiers []uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width, p.height = width, height
	p.fourcc = fourcc
	p.modifiers = modifiers
}
