//go:build linux

package eglx11

import "testing"

func TestGetDisplayReturnsSameInstanceForSameName(t *testing.T) {
	dpyListMu.Lock()
	delete(displays, "test:99")
	dpyListMu.Unlock()

	a := GetDisplay("test:99")
	b := GetDisplay("test:99")
	if a != b {
		t.Fatalf("GetDisplay returned distinct instances for the same name: %p vs %p", a, b)
	}
}

func TestCreateWindowSurfaceBeforeInitializeFails(t *testing.T) {
	dpyListMu.Lock()
	delete(displays, "test:98")
	dpyListMu.Unlock()

	d := GetDisplay("test:98")
	_, err := d.CreateWindowSurface(WindowSurfaceConfig{Native: 1, Width: 640, Height: 480})
	if err == nil {
		t.Fatal("CreateWindowSurface on an uninitialized display should fail")
	}
}
