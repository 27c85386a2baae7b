//go:build linux

package present

import "github.com/gpuwsi/eglx11/swapchain"

// EventSource adapts a *Pump to swapchain.EventSource, translating
// this package's decoded event union into swapchain's own copy of it
// (the two packages deliberately don't share the type so swapchain can
// stay free of any cgo-adjacent import, SPEC_FULL.md §2 package
// layout).
type EventSource struct{ Pump *Pump }

func (e EventSource) PollNonBlocking() (swapchain.Event, bool) {
	ev, ok := e.Pump.PollNonBlocking()
	if !ok {
		return swapchain.Event{}, false
	}
	return translate(ev), true
}

func (e EventSource) BlockUntilEvent(timeoutMillis int) (swapchain.Event, bool) {
	ev, ok := e.Pump.BlockUntilEvent(timeoutMillis)
	if !ok {
		return swapchain.Event{}, false
	}
	return translate(ev), true
}

// Close satisfies the optional io.Closer-shaped seam swapchain.Window
// probes for at Destroy.
func (e EventSource) Close() { e.Pump.Close() }

func translate(ev Event) swapchain.Event {
	switch {
	case ev.Configure != nil:
		return swapchain.Event{Configure: &swapchain.ConfigureNotify{
			Width:     ev.Configure.Width,
			Height:    ev.Configure.Height,
			Destroyed: ev.Configure.Destroyed(),
		}}
	case ev.Idle != nil:
		return swapchain.Event{Idle: &swapchain.IdleNotify{
			Pixmap: ev.Idle.Pixmap,
			Serial: ev.Idle.Serial,
		}}
	case ev.Complete != nil:
		return swapchain.Event{Complete: &swapchain.CompleteNotify{
			Serial:     ev.Complete.Serial,
			MSC:        ev.Complete.MSC,
			Suboptimal: ev.Complete.Suboptimal(),
		}}
	default:
		return swapchain.Event{}
	}
}
