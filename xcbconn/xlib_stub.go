package xcbconn

import "fmt"

// xlibConn would wrap a connection obtained through Xlib's
// XGetXCBConnection bridge instead of a direct xcb_connect call, for
// host applications that already own an Xlib Display (SPEC_FULL.md
// §4.7: "an Xlib implementation is out of scope"). It is declared here,
// unexported and unused by Open, purely so the seam this package
// defines is visibly two-sided rather than XCB-only; wiring it up to a
// real Display* is future work, not something this adapter needs for
// its own operation.
type xlibConn struct{}

func (xlibConn) RootWindow() uint32 { return 0 }
func (xlibConn) GenerateID() uint32 { return 0 }
func (xlibConn) Flush() error       { return fmt.Errorf("xcbconn: xlib backend not implemented") }
func (xlibConn) Close()             {}

var _ Conn = xlibConn{}
