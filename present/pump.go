//go:build linux

package present

// #cgo pkg-config: xcb xcb-present
// #include <xcb/xcb.h>
// #include <xcb/present.h>
import "C"

import (
	"unsafe"

	"github.com/gpuwsi/eglx11/xcbconn"
)

// Present's extension event codes, read out of the generic event's
// evtype field (SPEC_FULL.md §4.6, grounded on x11-window.c's
// HandlePresentEvent dispatch switch).
const (
	EvtypeConfigureNotify = C.XCB_PRESENT_CONFIGURE_NOTIFY
	EvtypeCompleteNotify  = C.XCB_PRESENT_COMPLETE_NOTIFY
	EvtypeIdleNotify      = C.XCB_PRESENT_IDLE_NOTIFY
)

// ConfigureNotify carries the window's server-reported geometry
// (SPEC_FULL.md §4.6 "Resize handling").
type ConfigureNotify struct {
	Width, Height         uint16
	PixmapWidth, PixmapHeight uint16
	PixmapFlags           uint32
}

// Destroyed reports the window-destroyed flag (SPEC_FULL.md §4.6).
func (c ConfigureNotify) Destroyed() bool { return c.PixmapFlags&WindowDestroyedFlag != 0 }

// IdleNotify reports that the server is done with a pixmap it had not
// already acknowledged through explicit sync (SPEC_FULL.md §4.3
// "IDLE_NOTIFIED").
type IdleNotify struct {
	Pixmap uint32
	Serial uint32
}

// CompleteNotify reports a presentation completing, with its serial,
// MSC/UST pair, and the completion mode (SPEC_FULL.md §4.6).
type CompleteNotify struct {
	Serial uint32
	MSC    uint64
	UST    uint64
	Mode   uint8
}

// Suboptimal reports the force_prime/SUBOPTIMAL_COPY signal (SPEC_FULL.md
// §9 Open Question 2).
func (c CompleteNotify) Suboptimal() bool { return uint32(c.Mode) == CompleteModeSuboptimalCopy }

// Event is the decoded union of the three Present event kinds this
// adapter cares about. Exactly one of the pointer fields is non-nil.
type Event struct {
	Configure *ConfigureNotify
	Idle      *IdleNotify
	Complete  *CompleteNotify
}

// Pump decodes raw GenericEvents from a window's special event queue
// into Events (SPEC_FULL.md §4.6 "event pump").
type Pump struct {
	queue xcbconn.SpecialEventQueue
}

// NewPump wraps queue, which the caller obtained via
// present.RegisterEvents after SelectInput.
func NewPump(queue xcbconn.SpecialEventQueue) *Pump { return &Pump{queue: queue} }

// PollNonBlocking returns the next decoded event without blocking, or
// ok=false if none is queued.
func (p *Pump) PollNonBlocking() (Event, bool) {
	ge, ok := p.queue.Poll()
	if !ok {
		return Event{}, false
	}
	return decode(ge), true
}

// BlockUntilEvent blocks up to timeoutMillis (negative: indefinitely)
// for the next event.
func (p *Pump) BlockUntilEvent(timeoutMillis int) (Event, bool) {
	ge, ok := p.queue.Wait(timeoutMillis)
	if !ok {
		return Event{}, false
	}
	return decode(ge), true
}

// Close releases the underlying special event queue.
func (p *Pump) Close() { p.queue.Close() }

func decode(ge xcbconn.GenericEvent) Event {
	if len(ge.Data) == 0 {
		return Event{}
	}
	p := unsafe.Pointer(&ge.Data[0])
	switch ge.EventType {
	case EvtypeConfigureNotify:
		evt := (*C.xcb_present_configure_notify_event_t)(p)
		return Event{Configure: &ConfigureNotify{
			Width:        uint16(evt.width),
			Height:       uint16(evt.height),
			PixmapWidth:  uint16(evt.pixmap_width),
			PixmapHeight: uint16(evt.pixmap_height),
			PixmapFlags:  uint32(evt.pixmap_flags),
		}}
	case EvtypeIdleNotify:
		evt := (*C.xcb_present_idle_notify_event_t)(p)
		return Event{Idle: &IdleNotify{
			Pixmap: uint32(evt.pixmap),
			Serial: uint32(evt.serial),
		}}
	case EvtypeCompleteNotify:
		evt := (*C.xcb_present_complete_notify_event_t)(p)
		return Event{Complete: &CompleteNotify{
			Serial: uint32(evt.serial),
			MSC:    uint64(evt.msc),
			UST:    uint64(evt.ust),
			Mode:   uint8(evt.mode),
		}}
	default:
		return Event{}
	}
}
