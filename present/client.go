//go:build linux

// Package present is the Present X extension client (SPEC_FULL.md
// §4.1): it negotiates capabilities for a window, posts
// PresentPixmap/PresentPixmapSynced requests, and decodes the
// ConfigureNotify/IdleNotify/CompleteNotify event stream. It is
// grounded on original_source's x11-window.c: CreateSurface's
// capability/SelectInput dance and SendPresentPixmap's request
// construction.
package present

// #cgo pkg-config: xcb xcb-present
// #include <xcb/xcb.h>
// #include <xcb/present.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/gpuwsi/eglx11/xcbconn"
)

// Capability bits, mirrored from xcb/present.h (SPEC_FULL.md §3
// "present_capabilities").
const (
	CapabilityAsync        uint32 = C.XCB_PRESENT_CAPABILITY_ASYNC
	CapabilityFence        uint32 = C.XCB_PRESENT_CAPABILITY_FENCE
	CapabilityUST          uint32 = C.XCB_PRESENT_CAPABILITY_UST
	CapabilitySyncobj      uint32 = 1 << 4 // XCB_PRESENT_CAPABILITY_SYNCOBJ, newer than this vendored header
)

// Option bits for Pixmap/PixmapSynced requests.
const (
	OptionNone   uint32 = 0
	OptionAsync  uint32 = C.XCB_PRESENT_OPTION_ASYNC
	OptionCopy   uint32 = C.XCB_PRESENT_OPTION_COPY
	OptionUST    uint32 = C.XCB_PRESENT_OPTION_UST
)

// EventMask bits for SelectInput.
const (
	EventMaskConfigureNotify uint32 = C.XCB_PRESENT_EVENT_MASK_CONFIGURE_NOTIFY
	EventMaskCompleteNotify  uint32 = C.XCB_PRESENT_EVENT_MASK_COMPLETE_NOTIFY
	EventMaskIdleNotify      uint32 = C.XCB_PRESENT_EVENT_MASK_IDLE_NOTIFY
)

// CompleteModeSuboptimalCopy flags a PresentCompleteNotify whose
// content had to be copied because the pixmap's format/modifier was
// not optimal for direct scanout (SPEC_FULL.md §4.6, Open Question 2:
// "force_prime ... SUBOPTIMAL_COPY").
const CompleteModeSuboptimalCopy uint32 = C.XCB_PRESENT_COMPLETE_MODE_SUBOPTIMAL_COPY

// WindowDestroyedFlag is set in a ConfigureNotify's pixmap_flags when
// the window itself has been destroyed server-side.
const WindowDestroyedFlag uint32 = 1 // PRESENT_WINDOW_DESTROYED_FLAG

// Client wraps the Present extension state for one window.
type Client struct {
	c *C.xcb_connection_t
}

// Open wraps conn for Present requests; Present has no meaningful
// per-connection version gate beyond QueryVersion succeeding at all
// (SPEC_FULL.md §4.1).
func Open(conn xcbconn.Conn) (*Client, error) {
	raw, ok := conn.(xcbconn.RawConn)
	if !ok {
		return nil, fmt.Errorf("present: connection does not expose a raw xcb handle")
	}
	c := (*C.xcb_connection_t)(raw.Raw())

	cookie := C.xcb_present_query_version(c, 1, 2)
	reply := C.xcb_present_query_version_reply(c, cookie, nil)
	if reply == nil {
		return nil, fmt.Errorf("present: extension unsupported")
	}
	C.free(unsafe.Pointer(reply))
	return &Client{c: c}, nil
}

// QueryCapabilities returns the window's present_capabilities bitmask
// (SPEC_FULL.md §3, grounded on x11-window.c's presentCapsReply).
func (cl *Client) QueryCapabilities(window uint32) (uint32, error) {
	cookie := C.xcb_present_query_capabilities(cl.c, C.uint32_t(window))
	var xerr *C.xcb_generic_error_t
	reply := C.xcb_present_query_capabilities_reply(cl.c, cookie, &xerr)
	if reply == nil {
		if xerr != nil {
			C.free(unsafe.Pointer(xerr))
		}
		return 0, fmt.Errorf("present: QueryCapabilities failed")
	}
	caps := uint32(reply.capabilities)
	C.free(unsafe.Pointer(reply))
	return caps, nil
}

// SelectInput arms eventID to deliver eventMask's events for window
// (SPEC_FULL.md §4.6, grounded on x11-window.c: "send the
// PresentSelectInput event first ... so we don't miss any events").
func (cl *Client) SelectInput(eventID, window uint32, eventMask uint32) error {
	cookie := C.xcb_present_select_input_checked(cl.c, C.uint32_t(eventID), C.uint32_t(window), C.uint32_t(eventMask))
	if xerr := C.xcb_request_check(cl.c, cookie); xerr != nil {
		C.free(unsafe.Pointer(xerr))
		return fmt.Errorf("present: SelectInput failed")
	}
	return nil
}

// DeselectInput disarms a previously-selected event stamp, matching
// x11-window.c's teardown: "xcb_present_select_input_checked(..., 0)".
func (cl *Client) DeselectInput(eventID, window uint32) error {
	return cl.SelectInput(eventID, window, 0)
}

// PixmapArgs holds the PresentPixmap/PresentPixmapSynced request
// parameters that the swap-chain actually varies (SPEC_FULL.md §4.5
// step 6); fields left unset take the zero value used by
// x11-window.c's SendPresentPixmap (no update/offset regions, no
// legacy fences when unused).
type PixmapArgs struct {
	Window     uint32
	Pixmap     uint32
	Serial     uint32
	TargetCRTC uint32
	Options    uint32
	TargetMSC  uint64
	Divisor    uint64
	Remainder  uint64
}

// Pixmap sends a legacy (non-explicit-sync) PresentPixmap request.
// This is one of the two send-only requests the damage callback is
// allowed to issue (SPEC_FULL.md §4.6): it does not wait for a reply
// or check for a protocol error, matching original_source's
// SendPresentPixmap, which only calls xcb_present_pixmap followed by
// xcb_flush. Errors surface later, asynchronously, through the main X
// error channel rather than here.
func (cl *Client) Pixmap(a PixmapArgs) error {
	C.xcb_present_pixmap(
		cl.c,
		C.xcb_window_t(a.Window), C.xcb_pixmap_t(a.Pixmap), C.uint32_t(a.Serial),
		0, 0, // valid, update regions
		0, 0, // x_off, y_off
		C.uint32_t(a.TargetCRTC),
		0, 0, // wait_fence, idle_fence (legacy XSync fences, unused: explicit sync uses PixmapSynced)
		C.uint32_t(a.Options),
		C.uint64_t(a.TargetMSC), C.uint64_t(a.Divisor), C.uint64_t(a.Remainder),
		0, nil,
	)
	if C.xcb_flush(cl.c) <= 0 {
		return fmt.Errorf("present: Pixmap request: flush failed")
	}
	return nil
}

// PixmapSyncedArgs extends PixmapArgs with the acquire/release syncobj
// XIDs and timeline points explicit sync needs (SPEC_FULL.md §4.5.1,
// grounded on x11-window.c's present_pixmap_synced call).
type PixmapSyncedArgs struct {
	PixmapArgs
	AcquireSyncobj uint32
	ReleaseSyncobj uint32
	AcquirePoint   uint64
	ReleasePoint   uint64
}

// PixmapSynced sends an explicit-sync PresentPixmapSynced request,
// send-only like Pixmap above (SPEC_FULL.md §4.6).
func (cl *Client) PixmapSynced(a PixmapSyncedArgs) error {
	C.xcb_present_pixmap_synced(
		cl.c,
		C.xcb_window_t(a.Window), C.xcb_pixmap_t(a.Pixmap), C.uint32_t(a.Serial),
		0, 0,
		0, 0,
		C.uint32_t(a.TargetCRTC),
		C.uint32_t(a.AcquireSyncobj), C.uint32_t(a.ReleaseSyncobj),
		C.uint64_t(a.AcquirePoint), C.uint64_t(a.ReleasePoint),
		C.uint32_t(a.Options),
		C.uint64_t(a.TargetMSC), C.uint64_t(a.Divisor), C.uint64_t(a.Remainder),
		0, nil,
	)
	if C.xcb_flush(cl.c) <= 0 {
		return fmt.Errorf("present: PixmapSynced request: flush failed")
	}
	return nil
}
