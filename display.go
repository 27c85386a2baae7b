//go:build linux

package eglx11

import (
	"fmt"
	"sync"

	"github.com/gpuwsi/eglx11/dri3"
	"github.com/gpuwsi/eglx11/drmsync"
	"github.com/gpuwsi/eglx11/envflags"
	"github.com/gpuwsi/eglx11/errdefs"
	"github.com/gpuwsi/eglx11/format"
	"github.com/gpuwsi/eglx11/gbmalloc"
	"github.com/gpuwsi/eglx11/hostdrv"
	"github.com/gpuwsi/eglx11/internal/xlog"
	"github.com/gpuwsi/eglx11/present"
	"github.com/gpuwsi/eglx11/xcbconn"
)

var log = xlog.For("eglx11")

// dpyListMu guards the process-wide display registry (SPEC_FULL.md §5).
var (
	dpyListMu sync.Mutex
	displays  = map[string]*Display{}
)

// Display is one X11 connection's worth of platform state: the
// extension clients negotiated once per connection, the format
// catalog they feed, and the surfaces created against it.
type Display struct {
	name string
	env  envflags.Settings

	conn    xcbconn.Conn
	dri3    *dri3.Client
	present *present.Client
	drm     *drmsync.Device
	gbm     *gbmalloc.Device
	catalog *format.Catalog

	driver *hostdrv.Entry
	sink   errdefs.ErrorSink

	initMu      sync.RWMutex
	initialized bool

	surfMu   sync.RWMutex
	surfaces map[uint32]*Surface
}

// GetDisplay returns the Display registered for name, creating an
// unopened one if this is the first request for it (SPEC_FULL.md §5:
// "further calls with the same native display must return the same
// instance", mirroring driver.Drivers()'s single-registration-per-name
// contract).
func GetDisplay(name string) *Display {
	if name == "" {
		name = envflags.Resolve().Display
	}
	dpyListMu.Lock()
	defer dpyListMu.Unlock()
	if d, ok := displays[name]; ok {
		return d
	}
	d := &Display{name: name, surfaces: make(map[uint32]*Surface)}
	displays[name] = d
	return d
}

// Initialize opens the X connection and the DRI3/Present/GBM/DRM
// state that hangs off it, and builds the format catalog from the
// host driver's reported formats (SPEC_FULL.md §4.1, §6). Repeated
// calls after a successful Initialize are no-ops, matching
// driver.Driver.Open's "further calls ... have no effect" contract.
func (d *Display) Initialize(driver *hostdrv.Entry, sink errdefs.ErrorSink, drv format.DriverFormats) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()
	if d.initialized {
		return nil
	}
	if !driver.Valid() {
		return hostdrv.ErrNoDriver
	}

	env := envflags.Resolve()
	conn, err := xcbconn.Open(d.name)
	if err != nil {
		errdefs.Report(sink, errdefs.ErrNotInitialized, "eglx11: opening X connection %q: %v", d.name, err)
		return fmt.Errorf("eglx11: opening X connection: %w", err)
	}

	dri3cl, err := dri3.Open(conn)
	if err != nil {
		conn.Close()
		errdefs.Report(sink, errdefs.ErrNotInitialized, "eglx11: DRI3 negotiation: %v", err)
		return fmt.Errorf("eglx11: DRI3 negotiation: %w", err)
	}
	presentCl, err := present.Open(conn)
	if err != nil {
		conn.Close()
		errdefs.Report(sink, errdefs.ErrNotInitialized, "eglx11: Present negotiation: %v", err)
		return fmt.Errorf("eglx11: Present negotiation: %w", err)
	}

	drmFD, err := dri3cl.OpenDevice(conn.RootWindow())
	if err != nil {
		conn.Close()
		errdefs.Report(sink, errdefs.ErrAllocFailure, "eglx11: DRI3 Open device: %v", err)
		return fmt.Errorf("eglx11: DRI3 Open device: %w", err)
	}
	gbm, err := gbmalloc.NewDevice(drmFD)
	if err != nil {
		conn.Close()
		errdefs.Report(sink, errdefs.ErrAllocFailure, "eglx11: GBM device: %v", err)
		return fmt.Errorf("eglx11: GBM device: %w", err)
	}

	d.conn = conn
	d.dri3 = dri3cl
	d.present = presentCl
	d.drm = drmsync.NewDevice(drmFD)
	d.gbm = gbm
	d.catalog = format.Build(drv)
	d.driver = driver
	d.sink = sink
	d.env = env
	d.initialized = true
	log.Info("display initialized", "name", d.name, "offload", env.PrimeRenderOffload)
	return nil
}

// Name returns the native display name this Display was opened
// against.
func (d *Display) Name() string { return d.name }

// addSurface registers surf under window, returning an error if the
// window already has a surface (one EGLSurface per native window,
// SPEC_FULL.md §4.1).
func (d *Display) addSurface(window uint32, surf *Surface) error {
	d.surfMu.Lock()
	defer d.surfMu.Unlock()
	if _, exists := d.surfaces[window]; exists {
		return fmt.Errorf("eglx11: window %#x already has a surface", window)
	}
	d.surfaces[window] = surf
	return nil
}

func (d *Display) removeSurface(window uint32) {
	d.surfMu.Lock()
	defer d.surfMu.Unlock()
	delete(d.surfaces, window)
}

// Surfaces returns every live surface on this display. The returned
// slice becomes stale after further CreateWindowSurface/Destroy calls,
// matching wsi.Windows()'s documented staleness contract.
func (d *Display) Surfaces() []*Surface {
	d.surfMu.RLock()
	defer d.surfMu.RUnlock()
	if len(d.surfaces) == 0 {
		return nil
	}
	out := make([]*Surface, 0, len(d.surfaces))
	for _, s := range d.surfaces {
		out = append(out, s)
	}
	return out
}
