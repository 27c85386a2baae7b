package swapchain

import "github.com/gpuwsi/eglx11/colorbuf"

// acquireFreeLocked implements the free-buffer acquisition algorithm
// (SPEC_FULL.md §4.5 "Free-buffer acquisition"): drain queued events,
// take an already-IDLE buffer if one exists, otherwise grow the pool if
// it has not reached its cap, otherwise wait — regime-specifically —
// for one to become available, re-checking the destroyed flag on every
// iteration (property P6, resize/destroy convergence). The caller must
// hold w.mu.
func (w *Window) acquireFreeLocked(pool *colorbuf.Pool, exclude *colorbuf.Buffer, sysmemForced bool) (*colorbuf.Buffer, error) {
	w.drainEventsLocked()
	if w.destroyed {
		return nil, ErrDestroyed
	}
	if b, ok := pool.AcquireIdle(exclude); ok {
		return b, nil
	}

	tok, err := w.driver.AllocColorBuffer(w.width, w.height, w.fourcc, sysmemForced)
	if err != nil {
		return nil, err
	}
	b, grown, err := pool.Grow(tok)
	if err != nil {
		w.driver.Free(tok)
		return nil, err
	}
	if grown {
		return b, nil
	}
	w.driver.Free(tok)

	const waitTimeoutMillis = 100
	for !w.destroyed {
		switch w.regime {
		case Explicit:
			w.waitTimelineLocked(pool, waitTimeoutMillis)
		case Implicit:
			w.promoteSignaledLocked(pool)
		}
		if b, ok := pool.AcquireIdle(exclude); ok {
			return b, nil
		}
		switch w.regime {
		case Explicit:
			// The kernel wait above already blocked up to
			// waitTimeoutMillis; just drain whatever Present events
			// queued up meanwhile (e.g. a destroying ConfigureNotify)
			// instead of blocking on the event source a second time.
			w.drainEventsLocked()
		case Finish:
			w.fences.Finish()
			w.blockForEventLocked(waitTimeoutMillis)
		default: // Implicit
			w.blockForEventLocked(waitTimeoutMillis)
		}
	}
	return nil, ErrDestroyed
}

// waitTimelineLocked blocks up to timeoutMillis on a kernel syncobj
// timeline-wait-available across every non-idle buffer in pool, then
// promotes whichever one reached its release point straight to IDLE
// (SPEC_FULL.md §4.5 "Free-buffer acquisition", explicit branch). A
// buffer's current Timeline.AcquirePoint() is the point its last
// presentation's release fence was attached at (synchronizeLocked bumps
// the timeline to exactly that value before sending), so it doubles as
// the "has this buffer's work completed" wait target. A nil
// w.tlwait or an empty non-idle set is a no-op.
func (w *Window) waitTimelineLocked(pool *colorbuf.Pool, timeoutMillis int) {
	if w.tlwait == nil {
		return
	}
	nonIdle := pool.NonIdle()
	if len(nonIdle) == 0 {
		return
	}
	handles := make([]uint32, len(nonIdle))
	points := make([]uint64, len(nonIdle))
	for i, b := range nonIdle {
		if b.Timeline == nil {
			return
		}
		handles[i] = b.Timeline.Handle()
		points[i] = b.Timeline.AcquirePoint()
	}
	res, err := w.tlwait.TimelineWaitAvailable(handles, points, int64(timeoutMillis)*1_000_000)
	if err != nil {
		w.log.Warn("timeline wait-available failed", "err", err)
		return
	}
	if res.TimedOut || res.FirstSignaled < 0 || res.FirstSignaled >= len(nonIdle) {
		return
	}
	pool.MarkIdleDirect(nonIdle[res.FirstSignaled])
}

// promoteSignaledLocked polls every IDLE_NOTIFIED buffer's dma-buf fd
// and promotes the ones whose implicit fence has signaled, the
// implicit-regime half of free-buffer acquisition.
func (w *Window) promoteSignaledLocked(pool *colorbuf.Pool) {
	for _, b := range pool.IdleNotifiedWithFD() {
		signaled, err := w.poller.PollWritable(b.FD, 0)
		if err != nil {
			w.log.Warn("dma-buf poll failed", "fd", b.FD, "err", err)
			continue
		}
		if signaled {
			pool.PromoteIdleNotifiedByPixmap(b.Pixmap)
		}
	}
}
