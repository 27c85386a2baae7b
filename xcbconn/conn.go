// Package xcbconn is the Xlib-vs-XCB native-handle wrapper (SPEC_FULL.md
// §4.7, explicitly out of scope per spec.md §1): a thin interface over
// "however the host application connected to the X server", plus one
// concrete implementation built on libxcb. Everything above this
// package (dri3, present) talks to the server only through Conn, so a
// future Xlib-native implementation only has to satisfy this interface.
package xcbconn

import "errors"

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("xcbconn: connection closed")

// Conn is the minimal XCB surface dri3 and present need: generating
// XIDs, flushing queued requests, and exposing the raw connection
// (via RawConn.Raw, implemented by the concrete xcb type) for the
// DRI3/Present extensions' own generated, typed request wrappers.
type Conn interface {
	// RootWindow returns the root window XID of the connection's
	// default screen.
	RootWindow() uint32

	// GenerateID allocates a new XID from the connection's ID range.
	GenerateID() uint32

	// Flush pushes queued requests to the server without waiting for
	// a reply.
	Flush() error

	// Close tears down the connection. Safe to call more than once.
	Close()
}

// SpecialEventQueue delivers GenericEvents for one extension "stamp"
// (e.g. one window's Present event context) in order.
type SpecialEventQueue interface {
	// Poll returns the next queued event without blocking, or
	// (GenericEvent{}, false) if none is queued.
	Poll() (GenericEvent, bool)

	// Wait blocks up to timeoutMillis for the next event. A
	// negative timeout blocks indefinitely.
	Wait(timeoutMillis int) (GenericEvent, bool)

	// Close releases the queue. It does not affect the connection.
	Close()
}

// GenericEvent is a raw XCB GenericEvent payload (32 bytes of standard
// header plus up to the extension's extra words); present.pump decodes
// it according to the Present extension's event codes.
type GenericEvent struct {
	ExtOpcode uint8
	EventType uint16
	Data      []byte
}
