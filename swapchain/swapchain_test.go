package swapchain

import (
	"errors"
	"testing"

	"github.com/gpuwsi/eglx11/colorbuf"
	"github.com/gpuwsi/eglx11/hostdrv"
)

// --- fakes -------------------------------------------------------------

type fakeBO struct {
	modifier uint64
	fd       int
}

func (f *fakeBO) FD() (int, error) { return f.fd, nil }
func (f *fakeBO) Stride() uint32   { return 256 }
func (f *fakeBO) Offset() uint32   { return 0 }
func (f *fakeBO) Modifier() uint64 { return f.modifier }
func (f *fakeBO) Destroy()         {}

type fakeAlloc struct{ next int }

func (a *fakeAlloc) CreateWithModifiers2(width, height int, fourcc uint32, modifiers []uint64) (colorbuf.BufferObject, error) {
	a.next++
	return &fakeBO{modifier: modifiers[0], fd: 100 + a.next}, nil
}

type fakeTimeline struct {
	acquire, release uint64
	xid              uint32
	attached         int
	signaled         int
}

func (t *fakeTimeline) AcquirePoint() uint64        { return t.acquire }
func (t *fakeTimeline) ReleasePoint() uint64        { return t.release }
func (t *fakeTimeline) AttachFence(int) error       { t.attached++; return nil }
func (t *fakeTimeline) SignalNext() error           { t.signaled++; return nil }
func (t *fakeTimeline) ExportFenceFD() (int, error) { return 7, nil }
func (t *fakeTimeline) Handle() uint32              { return t.xid }
func (t *fakeTimeline) XID() uint32                 { return t.xid }
func (t *fakeTimeline) Destroy()                    {}

type fakeDriver struct {
	tokens int
	copies int
}

func newFakeDriverEntry(d *fakeDriver) *hostdrv.Entry {
	return &hostdrv.Entry{
		ImportColorBuffer: func(int, int, int, uint32, uint32, uint32, uint64) (hostdrv.ColorBufferToken, error) {
			return nil, nil
		},
		AllocColorBuffer: func(width, height int, fourcc uint32, sysmemForced bool) (hostdrv.ColorBufferToken, error) {
			d.tokens++
			return d.tokens, nil
		},
		ExportColorBuffer: func(hostdrv.ColorBufferToken) (int, uint32, uint32, uint64, error) {
			return 1, 0, 0, 0, nil
		},
		Free: func(hostdrv.ColorBufferToken) {},
		CreateSurface: func(width, height int, buffers []hostdrv.ColorBufferToken, update hostdrv.UpdateFunc, damage hostdrv.DamageFunc) (hostdrv.SurfaceToken, error) {
			return "surface", nil
		},
		SetColorBuffers: func(hostdrv.SurfaceToken, []hostdrv.ColorBufferToken) error { return nil },
		Copy: func(dst, src hostdrv.ColorBufferToken) error {
			d.copies++
			return nil
		},
		Version: func() (int, int) { return 1, 0 },
	}
}

type fakeSender struct {
	sent, synced int
	targetMSCs   []uint64
}

func (s *fakeSender) Pixmap(window, pixmap, serial, targetCRTC uint32, options uint32, targetMSC, divisor, remainder uint64) error {
	s.sent++
	s.targetMSCs = append(s.targetMSCs, targetMSC)
	return nil
}

func (s *fakeSender) PixmapSynced(window, pixmap, serial, targetCRTC, acquireSyncobj, releaseSyncobj uint32, acquirePoint, releasePoint uint64, options uint32, targetMSC, divisor, remainder uint64) error {
	s.synced++
	s.targetMSCs = append(s.targetMSCs, targetMSC)
	return nil
}

type fakePixmaps struct {
	next  uint32
	freed []uint32
}

func (p *fakePixmaps) PixmapFromBuffers(pixmap, drawable uint32, fd int, width, height int, stride, offset uint32, depth, bpp int, modifier uint64) error {
	return nil
}

func (p *fakePixmaps) FreePixmap(pixmap uint32) error {
	p.freed = append(p.freed, pixmap)
	return nil
}

type fakeFences struct {
	fenceErr  error
	finishErr error
	finished  int
}

func (f *fakeFences) ExportFence() (int, error) { return 5, f.fenceErr }
func (f *fakeFences) Finish() error              { f.finished++; return f.finishErr }

type fakeImplicit struct{ imports int }

func (f *fakeImplicit) ImportSyncFile(bufFD, fenceFD int) error { f.imports++; return nil }

type fakeEvents struct{ queue []Event }

func (e *fakeEvents) PollNonBlocking() (Event, bool) {
	if len(e.queue) == 0 {
		return Event{}, false
	}
	ev := e.queue[0]
	e.queue = e.queue[1:]
	return ev, true
}

func (e *fakeEvents) BlockUntilEvent(int) (Event, bool) { return e.PollNonBlocking() }

type fakeIDs struct{ next uint32 }

func (f *fakeIDs) GenerateID() uint32 { f.next++; return f.next }

func newTestWindow(t *testing.T, offload bool, regime Regime) (*Window, *fakeSender, *fakeEvents) {
	t.Helper()
	events := &fakeEvents{}
	sender := &fakeSender{}
	w, err := New(Config{
		Native:   1,
		Width:    640,
		Height:   480,
		FourCC:   0x34325258,
		Modifier: 0,
		Offload:  offload,
		Regime:   regime,
	}, Deps{
		Driver:    newFakeDriverEntry(&fakeDriver{}),
		Present:   sender,
		Pixmaps:   &fakePixmaps{},
		Fences:    &fakeFences{},
		Implicit:  &fakeImplicit{},
		Events:    events,
		Allocator: &fakeAlloc{},
		IDs:       &fakeIDs{},
		Logger:    nil,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.CreateSurface(); err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	return w, sender, events
}

// --- scenarios -----------------------------------------------------------

func TestSwapDirectRotatesFrontAndBack(t *testing.T) {
	w, sender, _ := newTestWindow(t, false, Finish)
	back := w.back
	if err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if w.front != back {
		t.Fatalf("front\nhave %p\nwant %p (the presented buffer)", w.front, back)
	}
	if w.back == nil || w.back == w.front {
		t.Fatalf("back must be a distinct buffer from front, got %p vs %p", w.back, w.front)
	}
	if sender.sent != 1 {
		t.Fatalf("Pixmap calls\nhave %d\nwant 1", sender.sent)
	}
}

// TestSwapTargetMSCTracksLastCompletedPlusInterval pins scenario S1:
// with swap interval 1 and each present completing before the next
// swap is issued, three swaps target last_complete_msc+1,+2,+3.
func TestSwapTargetMSCTracksLastCompletedPlusInterval(t *testing.T) {
	w, sender, events := newTestWindow(t, false, Finish)
	for i := 1; i <= 3; i++ {
		if err := w.Swap(); err != nil {
			t.Fatalf("Swap #%d: %v", i, err)
		}
		events.queue = append(events.queue, Event{Complete: &CompleteNotify{
			Serial: w.lastSentSerial,
			MSC:    uint64(i),
		}})
		// Drain the completion before the next swap computes its
		// target, same as a compositor that keeps pace with the client.
		w.drainEventsLocked()
	}
	want := []uint64{1, 2, 3}
	if len(sender.targetMSCs) != len(want) {
		t.Fatalf("targetMSC count\nhave %v\nwant %v", sender.targetMSCs, want)
	}
	for i, v := range want {
		if sender.targetMSCs[i] != v {
			t.Fatalf("targetMSC[%d]\nhave %d\nwant %d", i, sender.targetMSCs[i], v)
		}
	}
}

func TestSwapGrowsPoolUpToCapThenReusesIdle(t *testing.T) {
	w, _, events := newTestWindow(t, false, Finish)

	for i := 0; i < colorbuf.DefaultDirectCap+2; i++ {
		// Complete the previous send so the outstanding-presents throttle
		// in Swap never blocks waiting for a compositor that isn't there.
		if w.lastSentSerial > 0 {
			events.queue = append(events.queue, Event{Complete: &CompleteNotify{
				Serial: w.lastSentSerial,
				MSC:    uint64(i),
			}})
		}
		if w.direct.Len() >= colorbuf.DefaultDirectCap {
			// Simulate the server releasing the oldest in-flight buffer
			// so acquisition can proceed without growing past the cap.
			nonIdle := w.direct.NonIdle()
			if len(nonIdle) > 0 {
				events.queue = append(events.queue, Event{Idle: &IdleNotify{
					Pixmap: nonIdle[0].Pixmap,
					Serial: nonIdle[0].LastSerial(),
				}})
			}
		}
		if err := w.Swap(); err != nil {
			t.Fatalf("Swap #%d: %v", i, err)
		}
		if w.direct.Len() > colorbuf.DefaultDirectCap {
			t.Fatalf("pool grew past cap: %d > %d", w.direct.Len(), colorbuf.DefaultDirectCap)
		}
	}
}

func TestSwapOffloadCopiesIntoIntermediate(t *testing.T) {
	w, sender, _ := newTestWindow(t, true, Finish)
	if err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if w.interm.Len() == 0 {
		t.Fatalf("offload intermediate pool never grew")
	}
	if sender.sent != 1 {
		t.Fatalf("Pixmap calls\nhave %d\nwant 1", sender.sent)
	}
	// The direct-pool render target rotates back to IDLE immediately
	// after the synchronous blit.
	if w.back.Status() != colorbuf.IDLE {
		t.Fatalf("back buffer status\nhave %v\nwant IDLE", w.back.Status())
	}
}

func TestSwapExplicitRegimeAttachesTimelineFence(t *testing.T) {
	w, sender, _ := newTestWindow(t, false, Explicit)
	w.back.Timeline = &fakeTimeline{xid: 9}

	if err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if sender.synced != 1 {
		t.Fatalf("PixmapSynced calls\nhave %d\nwant 1", sender.synced)
	}
	tl := w.front.Timeline.(*fakeTimeline)
	if tl.attached != 1 {
		t.Fatalf("AttachFence calls\nhave %d\nwant 1", tl.attached)
	}
}

func TestSwapExplicitRegimeSignalsWithoutFence(t *testing.T) {
	w, sender, _ := newTestWindow(t, false, Explicit)
	w.back.Timeline = &fakeTimeline{xid: 9}
	w.fences.(*fakeFences).fenceErr = errors.New("fake: no fence available")

	if err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if sender.synced != 1 {
		t.Fatalf("PixmapSynced calls\nhave %d\nwant 1", sender.synced)
	}
	tl := w.front.Timeline.(*fakeTimeline)
	if tl.signaled != 1 {
		t.Fatalf("SignalNext calls\nhave %d\nwant 1", tl.signaled)
	}
}

func TestSwapOnDestroyedWindowFails(t *testing.T) {
	w, _, _ := newTestWindow(t, false, Finish)
	w.Destroy()
	if err := w.Swap(); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Swap on destroyed window\nhave %v\nwant %v", err, ErrDestroyed)
	}
}

func TestSwapReentryReturnsImmediately(t *testing.T) {
	w, sender, _ := newTestWindow(t, false, Finish)
	w.mu.Lock()
	w.reentrant = 1
	w.mu.Unlock()

	if err := w.Swap(); err != nil {
		t.Fatalf("reentrant Swap\nhave %v\nwant nil", err)
	}
	if sender.sent != 0 {
		t.Fatalf("Pixmap calls during re-entry\nhave %d\nwant 0", sender.sent)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	w, _, _ := newTestWindow(t, false, Finish)
	w.Destroy()
	w.Destroy() // must not panic or double-free
	if !w.Destroyed() {
		t.Fatal("window should report destroyed after Destroy")
	}
}

// TestDestroyFreesPresentedPixmaps pins the fix for the pixmap XID leak:
// every buffer a window has actually presented through carries a
// nonzero Pixmap, and Destroy must hand each one to the DRI3 collaborator
// before releasing the buffer's allocator object.
func TestDestroyFreesPresentedPixmaps(t *testing.T) {
	events := &fakeEvents{}
	sender := &fakeSender{}
	pixmaps := &fakePixmaps{}
	w, err := New(Config{
		Native:   1,
		Width:    640,
		Height:   480,
		FourCC:   0x34325258,
		Modifier: 0,
		Regime:   Finish,
	}, Deps{
		Driver:    newFakeDriverEntry(&fakeDriver{}),
		Present:   sender,
		Pixmaps:   pixmaps,
		Fences:    &fakeFences{},
		Implicit:  &fakeImplicit{},
		Events:    events,
		Allocator: &fakeAlloc{},
		IDs:       &fakeIDs{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.CreateSurface(); err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	if err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	presented := w.front.Pixmap
	if presented == 0 {
		t.Fatal("front buffer has no pixmap XID after Swap")
	}

	w.Destroy()

	found := false
	for _, p := range pixmaps.freed {
		if p == presented {
			found = true
		}
	}
	if !found {
		t.Fatalf("freed pixmaps\nhave %v\nwant to include %d", pixmaps.freed, presented)
	}
}

func TestConfigureNotifyResizeTriggersReallocation(t *testing.T) {
	w, _, events := newTestWindow(t, false, Finish)
	events.queue = append(events.queue, Event{Configure: &ConfigureNotify{Width: 1280, Height: 720}})

	if err := w.Swap(); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	width, height := w.Dimensions()
	if width != 1280 || height != 720 {
		t.Fatalf("Dimensions after resize\nhave (%d, %d)\nwant (1280, 720)", width, height)
	}
}

func TestConfigureNotifyDestroyedSetsStickyFlag(t *testing.T) {
	w, _, events := newTestWindow(t, false, Finish)
	events.queue = append(events.queue, Event{Configure: &ConfigureNotify{Destroyed: true}})

	err := w.Swap()
	if !w.Destroyed() {
		t.Fatal("window should be marked destroyed after a ConfigureNotify with Destroyed=true")
	}
	if err != nil && !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Swap after destroy-configure\nhave %v\nwant nil or ErrDestroyed", err)
	}
}

// TestPoolNeverExceedsCap is property P3: the buffer pool never grows
// past its configured cap regardless of acquisition pressure.
func TestPoolNeverExceedsCap(t *testing.T) {
	w, _, events := newTestWindow(t, false, Finish)
	for i := 0; i < 20; i++ {
		if w.lastSentSerial > 0 {
			events.queue = append(events.queue, Event{Complete: &CompleteNotify{
				Serial: w.lastSentSerial,
				MSC:    uint64(i),
			}})
		}
		nonIdle := w.direct.NonIdle()
		if len(nonIdle) > 0 {
			events.queue = append(events.queue, Event{Idle: &IdleNotify{
				Pixmap: nonIdle[0].Pixmap,
				Serial: nonIdle[0].LastSerial(),
			}})
		}
		if err := w.Swap(); err != nil {
			t.Fatalf("Swap #%d: %v", i, err)
		}
		if w.direct.Len() > w.direct.Cap() {
			t.Fatalf("pool exceeded cap: %d > %d", w.direct.Len(), w.direct.Cap())
		}
	}
}
