package swapchain

import (
	"fmt"

	"github.com/gpuwsi/eglx11/colorbuf"
	"github.com/gpuwsi/eglx11/drmsync"
	"github.com/gpuwsi/eglx11/format"
	"github.com/gpuwsi/eglx11/internal/serial"
)

// maxOutstandingPresents bounds how many presentation requests may be
// in flight at once before Swap blocks for completions, keeping the
// client from racing arbitrarily far ahead of the compositor
// (SPEC_FULL.md §4.5 "outstanding-presents threshold").
const maxOutstandingPresents = 2

// Swap runs the presentation step (SPEC_FULL.md §4.5): ready the
// presented buffer's pixmap and synchronization, send the
// PresentPixmap(Synced) request, reallocate if a resize or modifier
// re-check is pending, then rotate buffers for the next frame.
//
// Re-entered from the calling goroutine (the driver invoking
// UpdateCallback/DamageCallback from inside this very call) returns
// immediately instead of deadlocking or double-presenting
// (SPEC_FULL.md §4.6).
func (w *Window) Swap() error {
	if !w.enter() {
		return nil
	}
	defer w.leave()

	if w.destroyed {
		return ErrDestroyed
	}
	if w.back == nil {
		b, err := w.acquireFreeLocked(w.direct, w.front, false)
		if err != nil {
			return err
		}
		w.back = b
	}

	toPresent := w.back
	pool := w.direct
	if w.offload {
		interm, err := w.acquireFreeLocked(w.interm, w.intermBuf, true)
		if err != nil {
			return err
		}
		// The direct-pool render target is never itself presented in
		// offload mode, but it still needs exclusivity for the
		// duration of the blit (property P2).
		w.direct.MarkInUse(w.back, w.lastSentSerial)
		copyErr := w.driver.Copy(interm.Token, w.back.Token)
		w.direct.MarkIdleDirect(w.back)
		if copyErr != nil {
			return fmt.Errorf("swapchain: offload copy: %w", copyErr)
		}
		w.intermBuf = interm
		toPresent = interm
		pool = w.interm
	}

	if err := w.ensurePixmapLocked(toPresent); err != nil {
		return err
	}

	acquireXID, releaseXID, acquirePoint, releasePoint, err := w.synchronizeLocked(toPresent)
	if err != nil {
		return err
	}

	if err := w.waitOutstandingLocked(); err != nil {
		return err
	}

	sentSerial := w.lastSentSerial + 1
	targetMSC, divisor, remainder := w.targetMSCLocked()

	if w.regime == Explicit {
		err = w.present.PixmapSynced(w.native, toPresent.Pixmap, sentSerial, w.targetCRTC,
			acquireXID, releaseXID, acquirePoint, releasePoint,
			0, targetMSC, divisor, remainder)
	} else {
		err = w.present.Pixmap(w.native, toPresent.Pixmap, sentSerial, w.targetCRTC,
			0, targetMSC, divisor, remainder)
	}
	if err != nil {
		return fmt.Errorf("swapchain: present request: %w", err)
	}
	w.lastSentSerial = sentSerial
	pool.MarkInUse(toPresent, sentSerial)

	reallocated, err := w.maybeReallocateLocked()
	if err != nil {
		return err
	}
	if w.destroyed {
		return nil
	}
	if reallocated {
		// reallocateLocked already destroyed every buffer, including
		// toPresent, and reset w.front/back/intermBuf to nil: there is
		// nothing left to rotate. The next Swap (or UpdateCallback) call
		// lazily acquires a fresh back buffer from the rebuilt pool.
		return nil
	}

	if w.offload {
		// The front buffer concept is meaningless in offload mode: the
		// client always renders into the same back buffer and only the
		// linear intermediate rotates, so back is left as-is.
		return nil
	}

	w.front = toPresent
	nextBack, err := w.acquireFreeLocked(w.direct, toPresent, false)
	if err != nil {
		return err
	}
	w.back = nextBack
	return nil
}

// ensurePixmapLocked wraps buf's allocator object as a server-side
// pixmap the first time it is presented (SPEC_FULL.md §4.5 step 4);
// later presentations of the same buffer reuse the existing XID.
func (w *Window) ensurePixmapLocked(buf *colorbuf.Buffer) error {
	if buf.Pixmap != 0 {
		return nil
	}
	fd, err := buf.ExportFD()
	if err != nil {
		return fmt.Errorf("swapchain: exporting buffer fd: %w", err)
	}
	pixmap := w.ids.GenerateID()
	depth, bpp := format.DepthBPP(format.FourCC(w.fourcc))
	if err := w.pixmaps.PixmapFromBuffers(pixmap, w.native, fd, w.width, w.height, buf.Stride(), buf.Offset(), depth, bpp, buf.Modifier()); err != nil {
		return fmt.Errorf("swapchain: PixmapFromBuffers: %w", err)
	}
	buf.Pixmap = pixmap
	return nil
}

// synchronizeLocked synchronizes the end of rendering into buf
// according to the window's regime, returning the acquire/release
// syncobj XID and timeline points an explicit-sync PixmapSynced request
// needs (zero in the other two regimes) — SPEC_FULL.md §4.5.1.
func (w *Window) synchronizeLocked(buf *colorbuf.Buffer) (acquireXID, releaseXID uint32, acquirePoint, releasePoint uint64, err error) {
	switch w.regime {
	case Explicit:
		if buf.Timeline == nil {
			return 0, 0, 0, 0, fmt.Errorf("swapchain: explicit-sync buffer has no timeline")
		}
		acquirePoint = buf.Timeline.AcquirePoint()
		releasePoint = buf.Timeline.ReleasePoint()
		fenceFD, ferr := w.fences.ExportFence()
		if ferr != nil {
			// No fence available: signal without one so the timeline
			// still advances and the server is not left waiting on a
			// point that will never arrive (SPEC_FULL.md §4.2).
			if serr := buf.Timeline.SignalNext(); serr != nil {
				return 0, 0, 0, 0, serr
			}
		} else if aerr := buf.Timeline.AttachFence(fenceFD); aerr != nil {
			return 0, 0, 0, 0, aerr
		}
		xid := buf.Timeline.XID()
		return xid, xid, acquirePoint, releasePoint, nil

	case Implicit:
		fenceFD, ferr := w.fences.ExportFence()
		if ferr != nil {
			return 0, 0, 0, 0, nil
		}
		if buf.FD < 0 {
			bufFD, ferr2 := buf.ExportFD()
			if ferr2 != nil {
				return 0, 0, 0, 0, nil
			}
			// Kept on the buffer so free-buffer acquisition can poll it
			// once the buffer is IDLE_NOTIFIED (promoteSignaledLocked).
			buf.FD = bufFD
		}
		if ierr := w.implsyn.ImportSyncFile(buf.FD, fenceFD); ierr != nil {
			if drmsync.IsUnsupported(ierr) {
				DisableImplicitSyncProbe()
			}
			w.log.Warn("implicit sync import failed", "err", ierr)
		}
		return 0, 0, 0, 0, nil

	default: // Finish
		if ferr := w.fences.Finish(); ferr != nil {
			return 0, 0, 0, 0, ferr
		}
		return 0, 0, 0, 0, nil
	}
}

// waitOutstandingLocked blocks until fewer than maxOutstandingPresents
// requests are unaccounted for, so a slow compositor throttles the
// client instead of letting it race arbitrarily far ahead.
func (w *Window) waitOutstandingLocked() error {
	const waitTimeoutMillis = 100
	for serial.Pending32(w.lastSentSerial, w.lastCompletedSerial) >= maxOutstandingPresents {
		if w.destroyed {
			return ErrDestroyed
		}
		w.blockForEventLocked(waitTimeoutMillis)
	}
	return nil
}

// targetMSCLocked computes the PresentPixmap target-MSC triple from
// the window's swap interval (SPEC_FULL.md §4.5 "target MSC
// computation"). PresentPixmap only takes an absolute MSC target, not
// one relative to the previous present, and waiting for the previous
// request to complete before computing the target would stall the
// client; instead the target is anchored to the most recent
// PresentCompleteNotify MSC and advanced by the number of presents
// still in flight, which is correct as long as the frame rate keeps
// pace with the refresh rate. Interval 0 sends target 0 with divisor 1,
// which the server reads as "the next MSC"; no async option is set, so
// the present still waits for vblank.
func (w *Window) targetMSCLocked() (targetMSC, divisor, remainder uint64) {
	if w.interval <= 0 {
		return 0, 1, 0
	}
	numPending := uint64(serial.Pending32(w.lastSentSerial, w.lastCompletedSerial))
	return w.lastCompletedMSC + (numPending+1)*uint64(w.interval), 1, 0
}
