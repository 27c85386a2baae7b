package swapchain

import (
	"errors"
	"sync"

	"github.com/gpuwsi/eglx11/colorbuf"
	"github.com/gpuwsi/eglx11/hostdrv"
	"github.com/gpuwsi/eglx11/internal/xlog"
)

// ErrDestroyed is returned by any operation attempted on a window whose
// native X window has already been torn down (SPEC_FULL.md §4.4 "sticky
// destroyed flag").
var ErrDestroyed = errors.New("swapchain: window destroyed")

// Config is the immutable-after-creation state a Window is built from
// (SPEC_FULL.md §4.1 "Surface creation / config selection").
type Config struct {
	Native     uint32 // native X window XID
	Width      int
	Height     int
	FourCC     uint32
	Modifier   uint64
	Offload    bool // PRIME: render GPU differs from the display GPU
	Regime     Regime
	DirectCap  int
	IntermCap  int
	TargetCRTC uint32
}

// Window is the per-surface presentation engine state (SPEC_FULL.md §3
// "Window state"). All mutable fields are guarded by mu; the
// re-entrancy counter lets the driver's own callbacks re-enter Swap's
// critical section without deadlocking, returning early instead
// (SPEC_FULL.md §4.6).
type Window struct {
	native     uint32
	regime     Regime
	offload    bool
	targetCRTC uint32

	driver  *hostdrv.Entry
	surface hostdrv.SurfaceToken

	present PresentSender
	pixmaps PixmapEnsurer
	fences  FenceSource
	implsyn ImplicitSyncer
	events  EventSource
	poller  DmaBufPoller
	mods    ModifierResolver
	ids     PixmapIDAllocator
	tlwait  TimelineWaiter

	log xlog.Logger

	mu        sync.Mutex
	reentrant int

	width, height int
	fourcc        uint32
	modifier      uint64

	direct *colorbuf.Pool
	interm *colorbuf.Pool // nil unless offload

	front, back *colorbuf.Buffer
	intermBuf   *colorbuf.Buffer // offload scratch buffer, nil otherwise

	interval int

	lastSentSerial      uint32
	lastCompletedSerial uint32
	lastCompletedMSC    uint64

	destroyed     bool
	needsModCheck bool
	pendingResize *ConfigureNotify
}

// Deps bundles a Window's out-of-scope collaborators, gathered here so
// New's signature does not grow every time the swap path needs a new
// seam.
type Deps struct {
	Driver       *hostdrv.Entry
	Present      PresentSender
	Pixmaps      PixmapEnsurer
	Fences       FenceSource
	Implicit     ImplicitSyncer // used only when Config.Regime == Implicit
	Events       EventSource
	Allocator    colorbuf.Allocator
	IDs          PixmapIDAllocator
	Poller       DmaBufPoller     // defaults to DefaultDmaBufPoller if nil
	Modifiers    ModifierResolver // nil keeps the current modifier across reallocation
	TimelineWait TimelineWaiter   // used only when Config.Regime == Explicit
	Logger       xlog.Logger      // xlog.Discard if nil
}

// New builds a Window and its two buffer pools, without yet allocating
// any color buffer (SPEC_FULL.md §4.1: buffers are grown lazily on
// first acquisition).
func New(cfg Config, deps Deps) (*Window, error) {
	if !deps.Driver.Valid() {
		return nil, hostdrv.ErrNoDriver
	}
	log := deps.Logger
	if log == nil {
		log = xlog.Discard
	}
	poller := deps.Poller
	if poller == nil {
		poller = DefaultDmaBufPoller
	}
	directCap := cfg.DirectCap
	if directCap == 0 {
		directCap = colorbuf.DefaultDirectCap
	}
	w := &Window{
		native:     cfg.Native,
		regime:     cfg.Regime,
		offload:    cfg.Offload,
		targetCRTC: cfg.TargetCRTC,
		driver:     deps.Driver,
		present:    deps.Present,
		pixmaps:    deps.Pixmaps,
		fences:     deps.Fences,
		implsyn:    deps.Implicit,
		events:     deps.Events,
		poller:     poller,
		mods:       deps.Modifiers,
		ids:        deps.IDs,
		tlwait:     deps.TimelineWait,
		log:        log,
		width:      cfg.Width,
		height:     cfg.Height,
		fourcc:     cfg.FourCC,
		modifier:   cfg.Modifier,
		interval:   1,
		direct:     colorbuf.NewPool(deps.Allocator, directCap, cfg.Width, cfg.Height, cfg.FourCC, []uint64{cfg.Modifier}),
	}
	if cfg.Offload {
		intermCap := cfg.IntermCap
		if intermCap == 0 {
			intermCap = colorbuf.DefaultIntermediateCap
		}
		// The offloaded intermediate always uses the linear modifier
		// (SPEC_FULL.md §4.1 step 4: "Linear is ... the required
		// fallback for the offloaded intermediate"), independent of
		// whatever modifier the direct pool's render target uses.
		w.interm = colorbuf.NewPool(deps.Allocator, intermCap, cfg.Width, cfg.Height, cfg.FourCC, []uint64{0})
	}
	if freer, ok := deps.Pixmaps.(colorbuf.PixmapFreer); ok {
		w.direct.SetPixmapFreer(freer)
		if w.interm != nil {
			w.interm.SetPixmapFreer(freer)
		}
	}
	return w, nil
}

// Native returns the window's X XID.
func (w *Window) Native() uint32 { return w.native }

// Regime returns the synchronization strategy selected for this window.
func (w *Window) Regime() Regime { return w.regime }

// Destroyed reports whether the native window has already been torn
// down (SPEC_FULL.md §4.4 ConfigureNotify with the destroy bit set).
func (w *Window) Destroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

// Dimensions returns the window's current width/height.
func (w *Window) Dimensions() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// SetInterval records the requested swap interval (SPEC_FULL.md §4.5
// "target MSC computation"); 0 drops the MSC target, so each present
// aims at the next MSC (see targetMSCLocked).
func (w *Window) SetInterval(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 0 {
		n = 0
	}
	w.interval = n
}

// AttachSurface stores the driver-side surface token created for this
// window (SPEC_FULL.md §4.7 CreateSurface), so the callbacks and swap
// path can reference it.
func (w *Window) AttachSurface(tok hostdrv.SurfaceToken) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.surface = tok
}

// Destroy tears down both buffer pools and marks the window destroyed,
// idempotently (SPEC_FULL.md §4.1 "Destruction", property P5).
func (w *Window) Destroy() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	w.front, w.back, w.intermBuf = nil, nil, nil
	w.mu.Unlock()

	w.direct.DestroyAll()
	if w.interm != nil {
		w.interm.DestroyAll()
	}
	if w.events != nil {
		if c, ok := w.events.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// enter acquires the window's critical section, returning false without
// blocking if the calling goroutine is already inside it (the
// re-entrancy guard the driver's own callback invocation relies on,
// SPEC_FULL.md §4.6 "must not itself try to re-enter Swap").
//
// This emulates a recursive mutex with a plain sync.Mutex plus a
// counter rather than relying on OS-level recursive-lock semantics,
// since the only re-entry this package needs to handle is a single
// same-goroutine nested call from inside Swap's own driver callbacks.
func (w *Window) enter() bool {
	w.mu.Lock()
	if w.reentrant > 0 {
		w.mu.Unlock()
		return false
	}
	w.reentrant++
	return true // mu stays locked; caller must call leave()
}

func (w *Window) leave() {
	w.reentrant--
	w.mu.Unlock()
}
