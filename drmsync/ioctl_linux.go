//go:build linux

package drmsync

// ioctl request-code encoding, per the Linux kernel's <asm-generic/ioctl.h>
// macros (_IOC, _IOW, _IOR, _IOWR). golang.org/x/sys/unix exposes the
// raw Ioctl syscall wrappers but not these request-code constants for
// DRM/dma-buf, so they are computed here the same way the kernel headers
// do, rather than hand-copied as opaque magic numbers.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func iowr(typ, nr, size uintptr) uintptr { return ioc(iocWrite|iocRead, typ, nr, size) }
func iow(typ, nr, size uintptr) uintptr  { return ioc(iocWrite, typ, nr, size) }

const (
	drmIoctlBase   uintptr = 'd'
	dmaBufIoctlBase uintptr = 'b'
)

// DRM syncobj ioctl numbers. Struct sizes come from the struct layouts
// declared alongside each call site; using unsafe.Sizeof keeps the
// encoded size honest if a struct definition changes.
var (
	ioctlSyncobjCreate         = iowr(drmIoctlBase, 0xBF, sizeofSyncobjCreate)
	ioctlSyncobjDestroy        = iowr(drmIoctlBase, 0xC0, sizeofSyncobjDestroy)
	ioctlSyncobjHandleToFD     = iowr(drmIoctlBase, 0xC1, sizeofSyncobjHandle)
	ioctlSyncobjFDToHandle     = iowr(drmIoctlBase, 0xC2, sizeofSyncobjHandle)
	ioctlSyncobjTimelineWait   = iowr(drmIoctlBase, 0xCA, sizeofSyncobjTimelineWait)
	ioctlSyncobjTransfer       = iowr(drmIoctlBase, 0xCC, sizeofSyncobjTransfer)
	ioctlSyncobjTimelineSignal = iowr(drmIoctlBase, 0xCD, sizeofSyncobjTimelineArray)
	ioctlGetCap                = iowr(drmIoctlBase, 0x0C, sizeofGetCap)

	ioctlDmaBufExportSyncFile = iowr(dmaBufIoctlBase, 2, sizeofDmaBufSyncFile)
	ioctlDmaBufImportSyncFile = iow(dmaBufIoctlBase, 3, sizeofDmaBufSyncFile)
)
