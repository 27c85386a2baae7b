//go:build linux

package drmsync

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DmaBufExportSyncFile exports a dma-buf's implicit-sync fence as a
// sync-file fd, for the write direction (SPEC_FULL.md §6:
// DMA_BUF_IOCTL_EXPORT_SYNC_FILE, flags=WRITE).
func DmaBufExportSyncFile(dmaBufFD int) (int, error) {
	arg := dmaBufSyncFile{flags: dmaBufSyncWrite}
	if err := dmaBufIoctl(dmaBufFD, ioctlDmaBufExportSyncFile, unsafe.Pointer(&arg)); err != nil {
		return -1, fmt.Errorf("%w: DMA_BUF_IOCTL_EXPORT_SYNC_FILE: %v", ErrSync, err)
	}
	return int(arg.fd), nil
}

// DmaBufImportSyncFile plugs a sync-file fence into a dma-buf's
// implicit-sync state (SPEC_FULL.md §6:
// DMA_BUF_IOCTL_IMPORT_SYNC_FILE, flags=WRITE).
//
// On failure the returned error wraps both ErrSync and the ioctl's
// errno, so callers can use IsUnsupported to implement the "disable
// process-wide after first failure" rule from SPEC_FULL.md §4.5.1
// without depending on golang.org/x/sys/unix types.
func DmaBufImportSyncFile(dmaBufFD, syncFD int) error {
	arg := dmaBufSyncFile{flags: dmaBufSyncWrite, fd: int32(syncFD)}
	if err := dmaBufIoctl(dmaBufFD, ioctlDmaBufImportSyncFile, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("%w: DMA_BUF_IOCTL_IMPORT_SYNC_FILE: %w", ErrSync, err)
	}
	return nil
}

// IsUnsupported reports whether err indicates the kernel/driver combo
// does not implement the import-sync-file ioctl at all (as opposed to
// a transient failure), matching the ENOTTY/EBADF/ENOSYS triad called
// out in SPEC_FULL.md §4.5.1.
func IsUnsupported(err error) bool {
	return unixErrnoIn(err, unix.ENOTTY, unix.EBADF, unix.ENOSYS)
}

func unixErrnoIn(err error, errnos ...unix.Errno) bool {
	var e unix.Errno
	if !errors.As(err, &e) {
		return false
	}
	for _, want := range errnos {
		if e == want {
			return true
		}
	}
	return false
}

func dmaBufIoctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
