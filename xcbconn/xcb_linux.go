//go:build linux

package xcbconn

// #cgo pkg-config: xcb
// #include <xcb/xcb.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"unsafe"
)

// xcb is the libxcb-backed Conn implementation. It is the only
// concrete implementation this adapter ships (SPEC_FULL.md §4.7: an
// Xlib implementation is out of scope and left as xlibConn, an
// interface-only stub).
type xcb struct {
	c      *C.xcb_connection_t
	screen *C.xcb_screen_t
}

// Open connects to displayName (empty string means $DISPLAY), matching
// the §6 environment-variable contract.
func Open(displayName string) (Conn, error) {
	var cname *C.char
	if displayName != "" {
		cname = C.CString(displayName)
		defer C.free(unsafe.Pointer(cname))
	}
	var screenNum C.int
	c := C.xcb_connect(cname, &screenNum)
	if C.xcb_connection_has_error(c) != 0 {
		if c != nil {
			C.xcb_disconnect(c)
		}
		return nil, fmt.Errorf("xcbconn: xcb_connect failed")
	}

	setup := C.xcb_get_setup(c)
	it := C.xcb_setup_roots_iterator(setup)
	for i := C.int(0); i < screenNum && it.rem > 0; i++ {
		C.xcb_screen_next(&it)
	}
	if it.data == nil {
		C.xcb_disconnect(c)
		return nil, fmt.Errorf("xcbconn: no such screen %d", screenNum)
	}

	return &xcb{c: c, screen: it.data}, nil
}

// Raw returns the underlying xcb_connection_t*, for the dri3 and
// present packages to cast back via cgo: an opaque handle exposed
// across the package boundary without leaking cgo types into the
// public API of either side.
func (x *xcb) Raw() unsafe.Pointer { return unsafe.Pointer(x.c) }

func (x *xcb) RootWindow() uint32 { return uint32(x.screen.root) }

func (x *xcb) GenerateID() uint32 { return uint32(C.xcb_generate_id(x.c)) }

func (x *xcb) Flush() error {
	if C.xcb_flush(x.c) <= 0 {
		return fmt.Errorf("xcbconn: xcb_flush failed")
	}
	return nil
}

func (x *xcb) Close() {
	if x.c != nil {
		C.xcb_disconnect(x.c)
		x.c = nil
	}
}

// RawConn is implemented by Conn values created with Open; it lets
// sibling packages (dri3, present) reach the xcb_connection_t without
// this package exposing cgo types in its public API.
type RawConn interface {
	Raw() unsafe.Pointer
}

var _ RawConn = (*xcb)(nil)
