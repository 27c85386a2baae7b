package swapchain

import "github.com/gpuwsi/eglx11/internal/serial"

// drainEventsLocked consumes every event already queued on the
// window's event source without blocking, applying each to the
// window/pool state (SPEC_FULL.md §4.4 "Contract": events are
// delivered in order, at least once, and must be drained before Swap
// can reason about buffer availability). The caller must hold w.mu.
func (w *Window) drainEventsLocked() {
	if w.events == nil {
		return
	}
	for {
		ev, ok := w.events.PollNonBlocking()
		if !ok {
			return
		}
		w.applyEventLocked(ev)
	}
}

// blockForEventLocked waits up to timeoutMillis for a single event and
// applies it, then drains anything else already queued. The caller
// must hold w.mu; the lock stays held across the wait, so another
// goroutine entering this window blocks until the wait ends.
func (w *Window) blockForEventLocked(timeoutMillis int) {
	if w.events == nil {
		return
	}
	if ev, ok := w.events.BlockUntilEvent(timeoutMillis); ok {
		w.applyEventLocked(ev)
	}
	w.drainEventsLocked()
}

func (w *Window) applyEventLocked(ev Event) {
	switch {
	case ev.Configure != nil:
		w.applyConfigureLocked(*ev.Configure)
	case ev.Idle != nil:
		w.applyIdleLocked(*ev.Idle)
	case ev.Complete != nil:
		w.applyCompleteLocked(*ev.Complete)
	}
}

func (w *Window) applyConfigureLocked(c ConfigureNotify) {
	if c.Destroyed {
		w.destroyed = true
		w.log.Info("native window destroyed", "window", w.native)
		return
	}
	if int(c.Width) != w.width || int(c.Height) != w.height {
		cp := c
		w.pendingResize = &cp
	}
}

func (w *Window) applyIdleLocked(idle IdleNotify) {
	pool := w.direct
	if !pool.NotifyIdle(idle.Pixmap, idle.Serial) {
		if w.interm == nil || !w.interm.NotifyIdle(idle.Pixmap, idle.Serial) {
			return
		}
		pool = w.interm
	}
	// Explicit sync and the CPU-finish fallback both already guarantee
	// the buffer is safe to reuse by the time this notification
	// arrives; only implicit sync needs the separate dma-buf poll in
	// acquireFreeLocked (SPEC_FULL.md §4.5 "Free-buffer acquisition").
	if w.regime != Implicit {
		pool.PromoteIdleNotifiedByPixmap(idle.Pixmap)
	}
}

func (w *Window) applyCompleteLocked(c CompleteNotify) {
	if serial.NewerOrEqual32(c.Serial, w.lastCompletedSerial) {
		w.lastCompletedSerial = c.Serial
		w.lastCompletedMSC = c.MSC
	}
	// SPEC_FULL.md §9 Open Question 2: in offload mode the server
	// always reports SUBOPTIMAL_COPY because the presented pixmap never
	// matches the display GPU's preferred modifier by construction, so
	// that signal is meaningless there and a modifier re-check only
	// triggers when this window is not already forcing PRIME copies.
	if c.Suboptimal && !w.offload {
		w.needsModCheck = true
	}
}
