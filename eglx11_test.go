package eglx11

import (
	"strings"
	"testing"
)

func TestExtensionStringListsPresentOpaque(t *testing.T) {
	s := ExtensionString()
	if !strings.Contains(s, "EGL_EXT_present_opaque") {
		t.Fatalf("ExtensionString() = %q, want it to contain EGL_EXT_present_opaque", s)
	}
}
