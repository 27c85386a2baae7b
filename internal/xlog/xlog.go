// Package xlog provides the structured logger used throughout the
// presentation engine. Every package that can fail asynchronously (the
// event pump, the swap path, the driver callbacks) logs through here
// instead of the standard log package, so failures surface with the
// window/display they belong to already attached as structured fields.
package xlog

import (
	"os"

	"github.com/charmbracelet/log"
)

// base is the root logger. Individual components derive a scoped logger
// from it with With, rather than constructing their own.
var base = log.NewWithOptions(os.Stderr, log.Options{
	Prefix:          "eglx11",
	ReportTimestamp: true,
})

func init() {
	if lvl := os.Getenv("EGLX11_LOG_LEVEL"); lvl != "" {
		if l, err := log.ParseLevel(lvl); err == nil {
			base.SetLevel(l)
		}
	} else {
		base.SetLevel(log.WarnLevel)
	}
}

// Logger is the interface components depend on; it is satisfied by
// *log.Logger and lets tests substitute a discard logger without
// importing charmbracelet/log directly.
type Logger interface {
	Debug(msg interface{}, kv ...interface{})
	Info(msg interface{}, kv ...interface{})
	Warn(msg interface{}, kv ...interface{})
	Error(msg interface{}, kv ...interface{})
}

// For returns a logger scoped to the given component name, e.g.
// For("swapchain"), with component attached as a structured field.
func For(component string) Logger {
	return base.With("component", component)
}

// Discard is a Logger that drops everything; tests that don't want log
// noise (or that run with -v and would otherwise spam it) pass this to
// components that accept an injected Logger.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debug(interface{}, ...interface{}) {}
func (discard) Info(interface{}, ...interface{})  {}
func (discard) Warn(interface{}, ...interface{})  {}
func (discard) Error(interface{}, ...interface{}) {}
