// Package errdefs is the error-channel plumbing this adapter hands off
// to the host driver. It is deliberately thin: the real classification
// and formatting work happens where the error occurs; this package only
// names the categories the driver's error callback expects (spec.md/
// SPEC_FULL.md §7) and the sink interface used to deliver them.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind identifies the category under which an error is reported to the
// host driver's error channel.
type Kind int

const (
	InvalidConfig Kind = iota
	InvalidNativeWindow
	InvalidNativePixmap
	InvalidAttribute
	NotInitialized
	BadSurface
	BadMatch
	BadAccess
	AllocFailure
	Critical
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case InvalidNativeWindow:
		return "InvalidNativeWindow"
	case InvalidNativePixmap:
		return "InvalidNativePixmap"
	case InvalidAttribute:
		return "InvalidAttribute"
	case NotInitialized:
		return "NotInitialized"
	case BadSurface:
		return "BadSurface"
	case BadMatch:
		return "BadMatch"
	case BadAccess:
		return "BadAccess"
	case AllocFailure:
		return "AllocFailure"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ErrorSink is implemented by the host driver's error channel. Report
// is expected to be safe to call from any thread, including from
// inside the driver's own callback re-entry.
type ErrorSink interface {
	ReportError(kind Kind, message string)
}

// Sentinel errors produced by this package's sibling packages. They are
// wrapped with context via fmt.Errorf("...: %w", ...) and ultimately
// classified back to a Kind at the hostdrv boundary with Classify.
var (
	ErrWindowDestroyed = errors.New("eglx11: native window destroyed")
	ErrAllocFailure    = errors.New("eglx11: allocation failure")
	ErrSyncFailure     = errors.New("eglx11: synchronization failure")
	ErrBadSurface      = errors.New("eglx11: invalid or stale surface")
	ErrBadMatch        = errors.New("eglx11: config/window mismatch")
	ErrNotInitialized  = errors.New("eglx11: display not initialized")
)

// Classify maps a sentinel (or wrapped sentinel) error to the Kind the
// driver's error callback should report. Errors that match none of the
// known sentinels classify as Critical, the same fallback the original
// implementation uses for unexpected allocator/kernel failures.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return Critical
	case errors.Is(err, ErrWindowDestroyed):
		return InvalidNativeWindow
	case errors.Is(err, ErrAllocFailure), errors.Is(err, ErrSyncFailure):
		return AllocFailure
	case errors.Is(err, ErrBadSurface):
		return BadSurface
	case errors.Is(err, ErrBadMatch):
		return BadMatch
	case errors.Is(err, ErrNotInitialized):
		return NotInitialized
	default:
		return Critical
	}
}

// Report formats msg with args and delivers it to sink under the
// classification of err, unless sink is nil (tests that don't care
// about the error channel pass a nil sink).
func Report(sink ErrorSink, err error, msg string, args ...interface{}) {
	if sink == nil {
		return
	}
	sink.ReportError(Classify(err), fmt.Sprintf(msg, args...))
}
