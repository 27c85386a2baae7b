//go:build linux

package drmsync

import (
	"fmt"
	"sync"
)

// SyncobjImporter hands a local syncobj fd to the X server via DRI3
// ImportSyncobj and returns the XID the server assigned it. Per the
// DRI3 protocol, the server takes ownership of fd: libxcb closes it
// once the request is flushed, so the caller must not close fd itself
// on success (SPEC_FULL.md §5 "Ownership of file descriptors").
type SyncobjImporter interface {
	ImportSyncobj(fd int) (xid uint32, err error)
	FreeSyncobj(xid uint32) error
}

// KernelOps is the subset of Device's behavior Timeline depends on,
// factored out so tests can substitute a fake kernel instead of
// issuing real ioctls.
type KernelOps interface {
	syncobjCreateHandle() (uint32, error)
	syncobjDestroyHandle(handle uint32) error
	handleToFD(handle uint32) (int, error)
	importSyncFile(handle uint32, fd int) error
	exportSyncFile(handle uint32) (int, error)
	transfer(dstHandle uint32, dstPoint uint64, srcHandle uint32, srcPoint uint64) error
	timelineSignal(handle uint32, point uint64) error
}

var _ KernelOps = (*Device)(nil)

// Timeline is the per-color-buffer sync object of SPEC_FULL.md §3: a
// kernel DRM timeline syncobj shared with the X server via DRI3, with a
// monotonically advancing 64-bit point counter.
//
// Once initialized, Handle and XID are immutable for the timeline's
// lifetime; NextPoint only increases (SPEC_FULL.md §3 invariants).
type Timeline struct {
	dev KernelOps
	srv SyncobjImporter

	mu        sync.Mutex
	handle    uint32
	xid       uint32
	nextPoint uint64
}

// NewTimeline creates a kernel syncobj and imports it to the server as
// an XID, using a create-transfer-destroy-on-temp pattern so that a
// failure partway through never leaves a half-initialized timeline
// (SPEC_FULL.md §4.2, grounded in original_source's
// eplX11TimelineInit: SyncobjCreate then SyncobjHandleToFD then the
// DRI3 ImportSyncobj request).
func NewTimeline(dev KernelOps, srv SyncobjImporter) (*Timeline, error) {
	handle, err := dev.syncobjCreateHandle()
	if err != nil {
		return nil, err
	}
	fd, err := dev.handleToFD(handle)
	if err != nil {
		dev.syncobjDestroyHandle(handle)
		return nil, err
	}
	// The server closes fd once the ImportSyncobj request is sent; do
	// not close it here even on failure, matching the X11 DRI3 fd
	// hand-off convention.
	xid, err := srv.ImportSyncobj(fd)
	if err != nil {
		dev.syncobjDestroyHandle(handle)
		return nil, fmt.Errorf("%w: DRI3 ImportSyncobj: %v", ErrAlloc, err)
	}
	return &Timeline{dev: dev, srv: srv, handle: handle, xid: xid}, nil
}

// Handle returns the local kernel syncobj handle.
func (t *Timeline) Handle() uint32 { return t.handle }

// XID returns the server-side syncobj XID.
func (t *Timeline) XID() uint32 { return t.xid }

// AcquirePoint returns the timeline point a presentation request should
// wait on before the driver starts rendering into the buffer.
func (t *Timeline) AcquirePoint() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextPoint
}

// ReleasePoint returns the point the driver's completion fence (or a
// manual signal) will advance the timeline to when rendering finishes;
// it is always AcquirePoint()+1, so release ordering across buffers
// never needs to be compared (SPEC_FULL.md §9 "Per-buffer rather than
// per-window timeline").
func (t *Timeline) ReleasePoint() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextPoint + 1
}

// AttachFence advances the timeline past a GPU completion fence
// exported as fenceFD: it imports the fence into a temporary syncobj
// and transfers it onto this timeline at nextPoint+1, then bumps
// nextPoint by exactly one (SPEC_FULL.md §4.2 "Algorithm"; grounded in
// original_source's eplX11TimelineAttachSyncFD). The temporary object
// means a failed import/transfer never perturbs the timeline.
func (t *Timeline) AttachFence(fenceFD int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attachFenceLocked(fenceFD)
}

func (t *Timeline) attachFenceLocked(fenceFD int) error {
	tmp, err := t.dev.syncobjCreateHandle()
	if err != nil {
		return err
	}
	defer t.dev.syncobjDestroyHandle(tmp)

	if err := t.dev.importSyncFile(tmp, fenceFD); err != nil {
		return err
	}
	if err := t.dev.transfer(t.handle, t.nextPoint+1, tmp, 0); err != nil {
		return err
	}
	t.nextPoint++
	return nil
}

// SignalNext manually signals the next point when no completion fence
// could be produced (fence export failed), so swap-chain progress is
// not blocked on a fence that will never arrive (SPEC_FULL.md §4.2:
// "Signaling without a fence ... manually signals the next point").
func (t *Timeline) SignalNext() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.dev.timelineSignal(t.handle, t.nextPoint+1); err != nil {
		return err
	}
	t.nextPoint++
	return nil
}

// ExportFenceFD extracts the current point as a binary fence suitable
// for a GPU-side wait, via a temporary syncobj so the timeline itself
// is left untouched (SPEC_FULL.md §4.2; grounded in original_source's
// eplX11TimelinePointToSyncFD).
func (t *Timeline) ExportFenceFD() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tmp, err := t.dev.syncobjCreateHandle()
	if err != nil {
		return -1, err
	}
	defer t.dev.syncobjDestroyHandle(tmp)

	if err := t.dev.transfer(tmp, 0, t.handle, t.nextPoint); err != nil {
		return -1, err
	}
	fd, err := t.dev.exportSyncFile(tmp)
	if err != nil {
		return -1, fmt.Errorf("%w: no fence fd available", ErrSync)
	}
	return fd, nil
}

// Destroy frees the server-side XID (which drops the server's
// reference so the kernel handle can be released) and then the local
// kernel handle. Safe to call at most once; the caller owns sequencing
// with the color buffer that held this timeline.
func (t *Timeline) Destroy() {
	if t == nil || t.xid == 0 {
		return
	}
	t.srv.FreeSyncobj(t.xid)
	t.xid = 0
	t.dev.syncobjDestroyHandle(t.handle)
	t.handle = 0
}
