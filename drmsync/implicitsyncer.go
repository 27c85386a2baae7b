//go:build linux

package drmsync

// ImplicitSyncer satisfies the presentation engine's ImplicitSyncer
// seam directly over DmaBufImportSyncFile; it carries no state because
// the ioctl only needs the two file descriptors passed at each call.
type ImplicitSyncer struct{}

func (ImplicitSyncer) ImportSyncFile(bufFD, fenceFD int) error {
	return DmaBufImportSyncFile(bufFD, fenceFD)
}
