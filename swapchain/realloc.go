package swapchain

// maybeReallocateLocked implements the reallocation step of Swap
// (SPEC_FULL.md §4.5.2): a pending resize or a SUBOPTIMAL_COPY-driven
// modifier re-check both retire every existing buffer and rebuild the
// pools at the new geometry/format. It first drains queued events so a
// resize or destroy delivered since the last drain is seen. The caller
// must hold w.mu and call this after the current presentation request
// has been sent; reallocateLocked excludes that just-presented buffer
// (w.back, or w.intermBuf in offload mode) from its "everything idle"
// wait, since the server has not released it yet.
// The returned bool reports whether a reallocation actually ran, so the
// caller knows w.front/w.back/w.intermBuf were just reset to nil and
// must not be re-pointed at a buffer that reallocation already
// destroyed.
func (w *Window) maybeReallocateLocked() (bool, error) {
	w.drainEventsLocked()
	if w.destroyed || (w.pendingResize == nil && !w.needsModCheck) {
		return false, nil
	}

	width, height := w.width, w.height
	if w.pendingResize != nil {
		width, height = int(w.pendingResize.Width), int(w.pendingResize.Height)
	}

	modifier := w.modifier
	if w.needsModCheck && w.mods != nil {
		if m, err := w.mods.ResolveModifier(w.fourcc, width, height); err == nil {
			modifier = m
		} else {
			w.log.Warn("modifier re-check failed, keeping current modifier", "err", err)
		}
	}

	w.pendingResize = nil
	w.needsModCheck = false

	if width == w.width && height == w.height && modifier == w.modifier {
		return false, nil
	}
	if err := w.reallocateLocked(width, height, modifier); err != nil {
		return false, err
	}
	return true, nil
}

// reallocateLocked waits for both pools to drain (apart from the
// just-presented w.back / w.intermBuf), destroys every buffer,
// reconfigures the pools at the new geometry/modifier, and informs the
// driver via a single SetColorBuffers call (SPEC_FULL.md §4.5.2 "a
// single 'set color buffers' call").
func (w *Window) reallocateLocked(width, height int, modifier uint64) error {
	const waitTimeoutMillis = 100
	for !w.direct.NotInUse(w.back) || (w.interm != nil && !w.interm.NotInUse(w.intermBuf)) {
		if w.destroyed {
			return ErrDestroyed
		}
		w.blockForEventLocked(waitTimeoutMillis)
	}

	w.direct.DestroyAll()
	w.direct.Reconfigure(width, height, w.fourcc, []uint64{modifier})
	if w.interm != nil {
		// The intermediate is always linear (modifier 0), independent of
		// whatever modifier the direct pool just resolved to — see
		// DESIGN.md's bugfix note and the matching construction in
		// New (SPEC_FULL.md §4.1 step 4).
		w.interm.DestroyAll()
		w.interm.Reconfigure(width, height, w.fourcc, []uint64{0})
	}

	w.front, w.back, w.intermBuf = nil, nil, nil
	w.width, w.height, w.modifier = width, height, modifier

	if w.surface != nil {
		if err := w.driver.SetColorBuffers(w.surface, nil); err != nil {
			return err
		}
	}
	return nil
}
