//go:build linux

package drmsync

import "unsafe"

// Kernel ioctl argument structs, laid out to match
// <drm/drm.h> and <linux/dma-buf.h>. Field names follow the kernel's
// snake_case where that avoids ambiguity with this package's own
// (exported) naming.

type syncobjCreate struct {
	handle uint32
	flags  uint32
}

type syncobjDestroy struct {
	handle uint32
	pad    uint32
}

type syncobjHandle struct {
	handle     uint32
	flags      uint32
	fd         int32
	pad        uint32
}

type syncobjTimelineWait struct {
	handles     uint64 // *uint32
	points      uint64 // *uint64
	timeoutNsec int64
	countHandles uint32
	flags       uint32
	firstSignaled uint32
	pad         uint32
	deadlineNsec uint64
}

type syncobjTransfer struct {
	srcHandle uint32
	dstHandle uint32
	srcPoint  uint64
	dstPoint  uint64
	flags     uint32
	pad       uint32
}

type syncobjTimelineArray struct {
	handles      uint64 // *uint32
	points       uint64 // *uint64
	countHandles uint32
	flags        uint32
}

type getCap struct {
	capability uint64
	value      uint64
}

type dmaBufSyncFile struct {
	flags  uint32
	fd     int32
}

const (
	sizeofSyncobjCreate        = unsafe.Sizeof(syncobjCreate{})
	sizeofSyncobjDestroy       = unsafe.Sizeof(syncobjDestroy{})
	sizeofSyncobjHandle        = unsafe.Sizeof(syncobjHandle{})
	sizeofSyncobjTimelineWait  = unsafe.Sizeof(syncobjTimelineWait{})
	sizeofSyncobjTransfer      = unsafe.Sizeof(syncobjTransfer{})
	sizeofSyncobjTimelineArray = unsafe.Sizeof(syncobjTimelineArray{})
	sizeofGetCap               = unsafe.Sizeof(getCap{})
	sizeofDmaBufSyncFile       = unsafe.Sizeof(dmaBufSyncFile{})
)

// Flags for the syncobj ioctls (DRM_SYNCOBJ_* in drm.h).
const (
	syncobjFlagExportSyncFile = 1 << 0
	syncobjFlagImportSyncFile = 1 << 0 // same bit, different ioctl namespace

	syncobjWaitFlagWaitForSubmit = 1 << 1
	syncobjWaitFlagWaitAvailable = 1 << 2

	capSyncobjTimeline = 0x14
)

// dma-buf sync-file ioctl flags (DMA_BUF_SYNC_* in linux/dma-buf.h),
// restricted to the write direction this adapter ever requests.
const dmaBufSyncWrite = 1 << 1
