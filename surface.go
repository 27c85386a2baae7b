//go:build linux

package eglx11

import (
	"fmt"

	"github.com/gpuwsi/eglx11/colorbuf"
	"github.com/gpuwsi/eglx11/drmsync"
	"github.com/gpuwsi/eglx11/errdefs"
	"github.com/gpuwsi/eglx11/format"
	"github.com/gpuwsi/eglx11/present"
	"github.com/gpuwsi/eglx11/swapchain"
)

// Surface is the root package's handle on one native window's
// presentation engine (SPEC_FULL.md §4.7 "Top-level library
// bookkeeping of displays/surfaces"): it owns the Present event pump
// and delegates everything else to *swapchain.Window.
type Surface struct {
	dpy    *Display
	native uint32
	win    *swapchain.Window
	pump   *present.Pump
}

// WindowSurfaceConfig is what a caller (the EGL entry points, out of
// scope here) must resolve before asking for a window surface: the
// native window XID, the pixel format chosen for the EGLConfig, and
// the host driver's fence source for this context (SPEC_FULL.md §4.5.1
// "flush, create a native-fence sync").
type WindowSurfaceConfig struct {
	Native                     uint32
	Width, Height              int
	FourCC                     uint32
	Fences                     swapchain.FenceSource
	DriverSupportsExplicitSync bool
	TargetCRTC                 uint32
}

// CreateWindowSurface runs the format/modifier negotiation (§4.1), the
// sync-regime selection (§4.5.1), and the Present event-stream setup
// (§4.6) for one native window, then builds its swapchain.Window and
// its initial surface (§4.7 CreateSurface).
func (d *Display) CreateWindowSurface(cfg WindowSurfaceConfig) (*Surface, error) {
	d.initMu.RLock()
	initialized := d.initialized
	d.initMu.RUnlock()
	if !initialized {
		return nil, errdefs.ErrNotInitialized
	}

	sel, err := d.catalog.Select(format.FourCC(cfg.FourCC), cfg.Native, d.dri3, d.env.PrimeRenderOffload)
	if err != nil {
		errdefs.Report(d.sink, errdefs.ErrBadMatch, "eglx11: format/modifier negotiation for window %#x: %v", cfg.Native, err)
		return nil, fmt.Errorf("eglx11: format/modifier negotiation: %w", err)
	}
	// Candidates is never empty on a successful Selection (format.Select
	// only returns Direct/DirectServerBlit/Offload once it has found at
	// least one acceptable modifier); the render target always uses the
	// first one, per SPEC_FULL.md §4.1 "Tie-breaks".
	modifier := uint64(sel.Candidates[0])

	caps, err := d.present.QueryCapabilities(cfg.Native)
	if err != nil {
		errdefs.Report(d.sink, errdefs.ErrNotInitialized, "eglx11: Present QueryCapabilities for window %#x: %v", cfg.Native, err)
		return nil, fmt.Errorf("eglx11: Present QueryCapabilities: %w", err)
	}
	syncobjCap := caps&present.CapabilitySyncobj != 0
	regime := swapchain.SelectRegime(
		cfg.DriverSupportsExplicitSync,
		d.drm.HasTimelineCap(),
		syncobjCap,
		syncobjCap,
		!swapchain.ImplicitSyncProbeDisabled(),
		d.drm.IsNVIDIA(),
	)

	eventID, queue, err := present.RegisterEvents(d.conn, cfg.Native)
	if err != nil {
		errdefs.Report(d.sink, errdefs.ErrNotInitialized, "eglx11: registering Present events for window %#x: %v", cfg.Native, err)
		return nil, fmt.Errorf("eglx11: registering Present events: %w", err)
	}
	eventMask := present.EventMaskConfigureNotify | present.EventMaskCompleteNotify | present.EventMaskIdleNotify
	if err := d.present.SelectInput(eventID, cfg.Native, eventMask); err != nil {
		queue.Close()
		errdefs.Report(d.sink, errdefs.ErrNotInitialized, "eglx11: Present SelectInput for window %#x: %v", cfg.Native, err)
		return nil, fmt.Errorf("eglx11: Present SelectInput: %w", err)
	}
	pump := present.NewPump(queue)

	win, err := swapchain.New(swapchain.Config{
		Native:     cfg.Native,
		Width:      cfg.Width,
		Height:     cfg.Height,
		FourCC:     cfg.FourCC,
		Modifier:   modifier,
		Offload:    sel.Mode == format.Offload,
		Regime:     regime,
		TargetCRTC: cfg.TargetCRTC,
	}, swapchain.Deps{
		Driver:       d.driver,
		Present:      present.Sender{Client: d.present},
		Pixmaps:      d.dri3,
		Fences:       cfg.Fences,
		Implicit:     drmsync.ImplicitSyncer{},
		Events:       present.EventSource{Pump: pump},
		Allocator:    colorbuf.GBMAllocator{Dev: d.gbm},
		IDs:          d.conn,
		Modifiers:    format.WindowResolver{Catalog: d.catalog, Query: d.dri3, Window: cfg.Native, Offload: sel.Mode == format.Offload},
		TimelineWait: d.drm,
		Logger:       log,
	})
	if err != nil {
		pump.Close()
		return nil, err
	}

	if err := win.CreateSurface(); err != nil {
		pump.Close()
		return nil, fmt.Errorf("eglx11: CreateSurface: %w", err)
	}

	surf := &Surface{dpy: d, native: cfg.Native, win: win, pump: pump}
	if err := d.addSurface(cfg.Native, surf); err != nil {
		win.Destroy()
		return nil, err
	}
	log.Info("window surface created", "window", cfg.Native, "mode", sel.Mode, "regime", regime)
	return surf, nil
}

// Swap runs one presentation cycle (SPEC_FULL.md §4.5).
func (s *Surface) Swap() error { return s.win.Swap() }

// SetInterval records the requested swap interval (SPEC_FULL.md §4.5
// "target MSC computation").
func (s *Surface) SetInterval(n int) { s.win.SetInterval(n) }

// Destroyed reports whether the native window has already been torn
// down server-side.
func (s *Surface) Destroyed() bool { return s.win.Destroyed() }

// Destroy tears the surface down and unregisters it from its display.
func (s *Surface) Destroy() {
	s.win.Destroy()
	s.dpy.removeSurface(s.native)
}
