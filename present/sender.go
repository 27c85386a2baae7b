//go:build linux

package present

// Sender adapts *Client's struct-argument Pixmap/PixmapSynced requests
// to the flattened-argument shape the presentation engine's
// PresentSender seam expects, so that package stays free of any cgo
// import while still being satisfied directly by this type.
type Sender struct{ Client *Client }

// Pixmap implements the non-explicit-sync presentation path.
func (s Sender) Pixmap(window, pixmap, serial, targetCRTC uint32, options uint32, targetMSC, divisor, remainder uint64) error {
	return s.Client.Pixmap(PixmapArgs{
		Window:     window,
		Pixmap:     pixmap,
		Serial:     serial,
		TargetCRTC: targetCRTC,
		Options:    options,
		TargetMSC:  targetMSC,
		Divisor:    divisor,
		Remainder:  remainder,
	})
}

// PixmapSynced implements the explicit-sync presentation path.
func (s Sender) PixmapSynced(window, pixmap, serial, targetCRTC, acquireSyncobj, releaseSyncobj uint32, acquirePoint, releasePoint uint64, options uint32, targetMSC, divisor, remainder uint64) error {
	return s.Client.PixmapSynced(PixmapSyncedArgs{
		PixmapArgs: PixmapArgs{
			Window:     window,
			Pixmap:     pixmap,
			Serial:     serial,
			TargetCRTC: targetCRTC,
			Options:    options,
			TargetMSC:  targetMSC,
			Divisor:    divisor,
			Remainder:  remainder,
		},
		AcquireSyncobj: acquireSyncobj,
		ReleaseSyncobj: releaseSyncobj,
		AcquirePoint:   acquirePoint,
		ReleasePoint:   releasePoint,
	})
}
