//go:build linux

package present

// #cgo pkg-config: xcb xcb-present
// #include <xcb/xcb.h>
// #include <xcb/present.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gpuwsi/eglx11/xcbconn"
)

// specialQueue is the libxcb-backed xcbconn.SpecialEventQueue for the
// Present extension (SPEC_FULL.md §4.6, grounded on x11-window.c's
// xcb_register_for_special_xge/xcb_poll_for_special_event pairing,
// which keeps Present's events out of the main xcb_wait_for_event
// queue that a host toolkit may also be draining).
type specialQueue struct {
	c   *C.xcb_connection_t
	se  *C.xcb_special_event_t
}

// RegisterEvents arms Present event delivery for window and returns the
// event ID to pass to SelectInput along with the queue to poll it with.
func RegisterEvents(conn xcbconn.Conn, window uint32) (eventID uint32, queue xcbconn.SpecialEventQueue, err error) {
	raw, ok := conn.(xcbconn.RawConn)
	if !ok {
		return 0, nil, fmt.Errorf("present: connection does not expose a raw xcb handle")
	}
	c := (*C.xcb_connection_t)(raw.Raw())

	id := uint32(C.xcb_generate_id(c))
	var stamp C.uint32_t
	se := C.xcb_register_for_special_xge(c, &C.xcb_present_id, C.uint32_t(id), &stamp)
	if se == nil {
		return 0, nil, fmt.Errorf("present: xcb_register_for_special_xge failed")
	}
	return id, &specialQueue{c: c, se: se}, nil
}

func (q *specialQueue) Poll() (xcbconn.GenericEvent, bool) {
	ev := C.xcb_poll_for_special_event(q.c, q.se)
	if ev == nil {
		return xcbconn.GenericEvent{}, false
	}
	defer C.free(unsafe.Pointer(ev))
	return toGeneric(ev), true
}

func (q *specialQueue) Wait(timeoutMillis int) (xcbconn.GenericEvent, bool) {
	// libxcb's special-event API has no built-in timeout, so a bounded
	// wait polls the connection's file descriptor for readability and
	// then reads whatever arrived with Poll. A negative timeout is the
	// common "block forever" case used during steady-state presentation
	// wait loops.
	if timeoutMillis < 0 {
		ev := C.xcb_wait_for_special_event(q.c, q.se)
		if ev == nil {
			return xcbconn.GenericEvent{}, false
		}
		defer C.free(unsafe.Pointer(ev))
		return toGeneric(ev), true
	}
	if ev, ok := q.Poll(); ok {
		return ev, true
	}
	fds := []unix.PollFd{{Fd: int32(C.xcb_get_file_descriptor(q.c)), Events: unix.POLLIN}}
	if n, err := unix.Poll(fds, timeoutMillis); err != nil || n == 0 {
		return xcbconn.GenericEvent{}, false
	}
	return q.Poll()
}

func (q *specialQueue) Close() {
	if q.se != nil {
		C.xcb_unregister_for_special_event(q.c, q.se)
		q.se = nil
	}
}

func toGeneric(ev *C.xcb_generic_event_t) xcbconn.GenericEvent {
	ge := (*C.xcb_ge_generic_event_t)(unsafe.Pointer(ev))
	// XGE events carry extra trailing words beyond the 32-byte base
	// header, sized by the length field (in 4-byte units); the Present
	// event structs (configure/idle/complete notify) all live in that
	// trailing region.
	total := 32 + int(ge.length)*4
	data := C.GoBytes(unsafe.Pointer(ev), C.int(total))
	return xcbconn.GenericEvent{
		ExtOpcode: uint8(ge.extension),
		EventType: uint16(ge.event_type),
		Data:      data,
	}
}

var _ xcbconn.SpecialEventQueue = (*specialQueue)(nil)
