// Package swapchain is the per-window presentation engine (SPEC_FULL.md
// §4.5): buffer-pool rotation under three alternative synchronization
// regimes, driven by Present extension events and re-entered by the
// host driver's update/damage callbacks. Its shape (Next/Present/
// Recreate, a sticky "broken" flag, per-image sync bookkeeping) follows
// a Vulkan swapchain's lifecycle, generalized from a fixed image count
// to the resize-aware, PRIME-aware design this adapter needs.
package swapchain

import "sync/atomic"

// Regime is the synchronization strategy selected once per window at
// creation time and immutable thereafter (SPEC_FULL.md §4.5.1, §9
// "Three sync regimes as variants").
type Regime int

const (
	// Explicit uses kernel DRM timeline syncobjs shared with the
	// server via DRI3/Present, the preferred regime.
	Explicit Regime = iota
	// Implicit plugs a completion fence into the presented buffer's
	// dma-buf via DMA_BUF_IOCTL_IMPORT_SYNC_FILE.
	Implicit
	// Finish performs a CPU stall before every present.
	Finish
)

func (r Regime) String() string {
	switch r {
	case Explicit:
		return "explicit"
	case Implicit:
		return "implicit"
	case Finish:
		return "finish"
	default:
		return "unknown"
	}
}

// implicitSyncDisabled is the once-probed, process-wide flag from
// SPEC_FULL.md §4.5.1: "A once-probed flag disables the
// import-sync-file path process-wide after the first
// ENOTTY/EBADF/ENOSYS." It outlives any single window.
var implicitSyncDisabled atomic.Bool

// DisableImplicitSyncProbe trips the process-wide flag. Called by a
// window whose ImplicitSyncer returns an error for which
// drmsync.IsUnsupported reports true.
func DisableImplicitSyncProbe() { implicitSyncDisabled.Store(true) }

// ImplicitSyncProbeDisabled reports whether some window has already
// observed the kernel reject the import-sync-file ioctl.
func ImplicitSyncProbeDisabled() bool { return implicitSyncDisabled.Load() }

// resetImplicitSyncProbeForTest restores the probe flag to its initial
// state, for use by tests only; nothing else clears the flag, so it is
// otherwise sticky for the life of the process.
func resetImplicitSyncProbeForTest() { implicitSyncDisabled.Store(false) }

// SelectRegime implements the SPEC_FULL.md §4.5.1 availability checks,
// given what the caller already knows about the driver, kernel, and
// server. Explicit is preferred, then implicit, then the CPU-stall
// fallback.
func SelectRegime(driverSupportsExplicitSync, kernelSupportsTimelineSyncobjs, serverSupportsSyncobjPresent, windowSupportsSyncobjCapability bool, kernelSupportsImportSyncFile, serverIsNVIDIA bool) Regime {
	if driverSupportsExplicitSync && kernelSupportsTimelineSyncobjs && serverSupportsSyncobjPresent && windowSupportsSyncobjCapability {
		return Explicit
	}
	if kernelSupportsImportSyncFile && !serverIsNVIDIA && !ImplicitSyncProbeDisabled() {
		return Implicit
	}
	return Finish
}
