package swapchain

import (
	"fmt"

	"github.com/gpuwsi/eglx11/colorbuf"
	"github.com/gpuwsi/eglx11/drmsync"
	"github.com/gpuwsi/eglx11/hostdrv"
)

// UpdateCallback satisfies hostdrv.UpdateFunc: it runs just before the
// driver renders into the current surface and only ensures a back
// buffer is attached; it does not reallocate the pools after a resize
// (that happens in Swap). When no IDLE buffer exists and the pool is
// below its cap, attaching one calls the driver's AllocColorBuffer
// (and Free if the pool does not grow). A re-entrant call (the driver invoking this from
// inside Swap) returns immediately, matching the re-entrancy guard
// every other entry point uses.
func (w *Window) UpdateCallback(hostdrv.SurfaceToken) {
	if !w.enter() {
		return
	}
	defer w.leave()
	if w.destroyed || w.back != nil {
		return
	}
	b, err := w.acquireFreeLocked(w.direct, w.front, false)
	if err != nil {
		w.log.Warn("update callback: acquiring back buffer", "err", err)
		return
	}
	w.back = b
}

// DamageCallback satisfies hostdrv.DamageFunc: it fires after
// single-buffered or front-buffer-modified rendering and presents
// whatever buffer was just touched immediately, using the completion
// fence the driver already produced rather than requesting a new one
// (SPEC_FULL.md §4.6 "Damage callback"). fenceFD is -1 when the driver
// has no fence to offer.
func (w *Window) DamageCallback(_ hostdrv.SurfaceToken, fenceFD int) {
	if !w.enter() {
		return
	}
	defer w.leave()
	if w.destroyed {
		return
	}
	buf := w.front
	if buf == nil {
		buf = w.back
	}
	if buf == nil {
		return
	}
	if err := w.presentDamagedLocked(buf, fenceFD); err != nil {
		w.log.Warn("damage callback: present failed", "err", err)
	}
}

// presentDamagedLocked is Swap's presentation half without the
// reallocation or buffer-rotation steps: damage events present the
// same buffer repeatedly in place (SPEC_FULL.md §4.6).
func (w *Window) presentDamagedLocked(buf *colorbuf.Buffer, fenceFD int) error {
	if err := w.ensurePixmapLocked(buf); err != nil {
		return err
	}

	var acquireXID, releaseXID uint32
	var acquirePoint, releasePoint uint64

	switch w.regime {
	case Explicit:
		if buf.Timeline == nil {
			return fmt.Errorf("swapchain: explicit-sync buffer has no timeline")
		}
		acquirePoint = buf.Timeline.AcquirePoint()
		releasePoint = buf.Timeline.ReleasePoint()
		var syncErr error
		if fenceFD >= 0 {
			syncErr = buf.Timeline.AttachFence(fenceFD)
		} else {
			syncErr = buf.Timeline.SignalNext()
		}
		if syncErr != nil {
			return syncErr
		}
		acquireXID, releaseXID = buf.Timeline.XID(), buf.Timeline.XID()
	case Implicit:
		if fenceFD >= 0 {
			if bufFD, err := buf.ExportFD(); err == nil {
				if ierr := w.implsyn.ImportSyncFile(bufFD, fenceFD); ierr != nil {
					if drmsync.IsUnsupported(ierr) {
						DisableImplicitSyncProbe()
					}
				}
			}
		}
	case Finish:
		if err := w.fences.Finish(); err != nil {
			return err
		}
	}

	if err := w.waitOutstandingLocked(); err != nil {
		return err
	}

	sentSerial := w.lastSentSerial + 1
	targetMSC, divisor, remainder := w.targetMSCLocked()

	var err error
	if w.regime == Explicit {
		err = w.present.PixmapSynced(w.native, buf.Pixmap, sentSerial, w.targetCRTC,
			acquireXID, releaseXID, acquirePoint, releasePoint, 0, targetMSC, divisor, remainder)
	} else {
		err = w.present.Pixmap(w.native, buf.Pixmap, sentSerial, w.targetCRTC, 0, targetMSC, divisor, remainder)
	}
	if err != nil {
		return fmt.Errorf("swapchain: damage present request: %w", err)
	}
	w.lastSentSerial = sentSerial
	return nil
}
