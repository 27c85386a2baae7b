// Package eglx11 is the EGL-style external-platform adapter's root
// package: thin display/surface bookkeeping over the per-window
// presentation engine in package swapchain, a process-wide registry
// guarding a map of concrete resources behind a mutex, generalized to
// this adapter's two-level (display, surface) resource tree
// (SPEC_FULL.md §5). This package never renders a pixel; it is loaded
// by a host GPU driver and never runs standalone.
package eglx11

import "strings"

// supportedExtensions lists the EGL extension tokens this adapter's
// window-system integration makes available, independent of whatever
// rendering extensions the host driver advertises on top.
var supportedExtensions = []string{
	"EGL_EXT_present_opaque",
	"EGL_EXT_buffer_age",
	"EGL_KHR_swap_buffers_with_damage",
}

// ExtensionString formats the space-separated EGL extension string
// this adapter contributes (SPEC_FULL.md §4.7 "Extension-string
// construction"). It performs no protocol work; it only reports what
// CreateWindowSurface and Surface.Swap are prepared to do.
func ExtensionString() string {
	return strings.Join(supportedExtensions, " ")
}
