package swapchain

import "github.com/gpuwsi/eglx11/hostdrv"

// CreateSurface acquires the initial back buffer and asks the driver
// to create its surface object around it, installing this window's
// UpdateCallback/DamageCallback (SPEC_FULL.md §4.7 CreateSurface).
// Call once, after New, before the first Swap.
func (w *Window) CreateSurface() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	initial, err := w.acquireFreeLocked(w.direct, nil, false)
	if err != nil {
		return err
	}
	surf, err := w.driver.CreateSurface(w.width, w.height, []hostdrv.ColorBufferToken{initial.Token}, w.UpdateCallback, w.DamageCallback)
	if err != nil {
		return err
	}
	w.surface = surf
	w.back = initial
	return nil
}
