//go:build linux

package swapchain

import "golang.org/x/sys/unix"

// unixPoller implements DmaBufPoller with a plain poll(2) on the
// dma-buf fd, the standard way userspace observes an implicit fence
// without importing it as a sync-file (SPEC_FULL.md §6, implicit-sync
// fallback path).
type unixPoller struct{}

// PollWritable reports whether fd's implicit fence is signaled for
// exclusive (write) access within timeoutMillis.
func (unixPoller) PollWritable(fd int, timeoutMillis int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, timeoutMillis)
	if err != nil {
		return false, err
	}
	return n > 0 && fds[0].Revents&unix.POLLOUT != 0, nil
}

// DefaultDmaBufPoller is used whenever Deps.Poller is left nil for an
// implicit-regime window.
var DefaultDmaBufPoller DmaBufPoller = unixPoller{}
