package swapchain

import "github.com/gpuwsi/eglx11/drmsync"

// The interfaces below are the seams between the swap-chain state
// machine and its out-of-scope collaborators (the host driver, the
// DRI3/Present wire clients, the kernel). They are declared in terms
// swapchain itself needs, independent of any cgo type, so the state
// machine can be driven entirely by in-memory fakes in tests — the
// same seam discipline drmsync.KernelOps and colorbuf.Allocator use.

// FenceSource is satisfied by the host driver's fence-export surface
// (SPEC_FULL.md §4.5.1: "flush, create a native-fence sync, dup its
// file descriptor"). ExportFence synchronizes the end of client
// rendering into the current back buffer and returns a fence fd owned
// by the caller; Finish performs the CPU-stall fallback.
type FenceSource interface {
	ExportFence() (fenceFD int, err error)
	Finish() error
}

// ImplicitSyncer plugs a completion fence into a buffer's own dma-buf
// via DMA_BUF_IOCTL_IMPORT_SYNC_FILE (SPEC_FULL.md §6). Implementations
// return an error satisfying drmsync.IsUnsupported when the kernel
// lacks the ioctl, which trips the process-wide probe flag.
type ImplicitSyncer interface {
	ImportSyncFile(bufFD, fenceFD int) error
}

// PixmapEnsurer wraps a color buffer's allocator object as a
// server-side pixmap; satisfied directly by *dri3.Client (SPEC_FULL.md
// §4.5 step 4).
type PixmapEnsurer interface {
	PixmapFromBuffers(pixmap, drawable uint32, fd int, width, height int, stride, offset uint32, depth, bpp int, modifier uint64) error
}

// PixmapIDAllocator hands out a fresh server-side XID, satisfied
// directly by xcbconn.Conn's GenerateID (SPEC_FULL.md §4.5 step 4: a
// new pixmap needs an XID before PixmapFromBuffers can name it).
type PixmapIDAllocator interface {
	GenerateID() uint32
}

// PresentSender posts PresentPixmap/PresentPixmapSynced requests
// (SPEC_FULL.md §4.5 step 7, §4.5.1).
type PresentSender interface {
	Pixmap(window, pixmap, serial, targetCRTC uint32, options uint32, targetMSC, divisor, remainder uint64) error
	PixmapSynced(window, pixmap, serial, targetCRTC, acquireSyncobj, releaseSyncobj uint32, acquirePoint, releasePoint uint64, options uint32, targetMSC, divisor, remainder uint64) error
}

// ConfigureNotify is the decoded geometry/destroy signal (SPEC_FULL.md
// §4.4 event table).
type ConfigureNotify struct {
	Width, Height uint16
	Destroyed     bool
}

// IdleNotify is the decoded buffer-release signal.
type IdleNotify struct {
	Pixmap uint32
	Serial uint32
}

// CompleteNotify is the decoded presentation-completion signal.
type CompleteNotify struct {
	Serial     uint32
	MSC        uint64
	Suboptimal bool
}

// Event is the decoded union of the three Present event kinds; exactly
// one field is non-nil.
type Event struct {
	Configure *ConfigureNotify
	Idle      *IdleNotify
	Complete  *CompleteNotify
}

// ModifierResolver re-queries the server's supported modifier list for
// a format at a given size (SPEC_FULL.md §4.1 "format/modifier
// negotiation"), used when a reallocation is triggered by a
// SUBOPTIMAL_COPY report rather than a plain resize.
type ModifierResolver interface {
	ResolveModifier(fourcc uint32, width, height int) (uint64, error)
}

// TimelineWaiter blocks until at least one of several buffers' kernel
// timelines reaches a given point, satisfied directly by
// *drmsync.Device (SPEC_FULL.md §4.5 "Free-buffer acquisition",
// explicit branch: "kernel syncobj timeline wait-available across
// every non-idle buffer, with a 100 ms timeout").
type TimelineWaiter interface {
	TimelineWaitAvailable(handles []uint32, points []uint64, timeoutNsec int64) (drmsync.WaitResult, error)
}

// DmaBufPoller waits for a dma-buf fd's implicit fence to signal
// (POLLOUT indicates the kernel considers the buffer's exclusive fence
// satisfied), used to promote an IDLE_NOTIFIED buffer to IDLE under the
// implicit-sync regime (SPEC_FULL.md §4.5 "Free-buffer acquisition",
// implicit branch).
type DmaBufPoller interface {
	PollWritable(fd int, timeoutMillis int) (signaled bool, err error)
}

// EventSource is satisfied by present.Pump (through a thin adapter):
// a single reader consuming special-event packets for one window
// (SPEC_FULL.md §4.4 "Contract").
type EventSource interface {
	PollNonBlocking() (Event, bool)
	BlockUntilEvent(timeoutMillis int) (Event, bool)
}
