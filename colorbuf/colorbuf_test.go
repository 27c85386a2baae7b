package colorbuf

import (
	"errors"
	"testing"
)

type fakeBO struct {
	modifier uint64
	fd       int
	destroyed bool
}

func (f *fakeBO) FD() (int, error) { return f.fd, nil }
func (f *fakeBO) Stride() uint32   { return 256 }
func (f *fakeBO) Offset() uint32   { return 0 }
func (f *fakeBO) Modifier() uint64 { return f.modifier }
func (f *fakeBO) Destroy()         { f.destroyed = true }

type fakeAlloc struct {
	fail    bool
	created []*fakeBO
}

func (a *fakeAlloc) CreateWithModifiers2(width, height int, fourcc uint32, modifiers []uint64) (BufferObject, error) {
	if a.fail {
		return nil, errors.New("fake: alloc failed")
	}
	bo := &fakeBO{modifier: modifiers[0], fd: 10 + len(a.created)}
	a.created = append(a.created, bo)
	return bo, nil
}

func TestGrowRespectsCapAndLazyAllocation(t *testing.T) {
	a := &fakeAlloc{}
	p := NewPool(a, 2, 640, 480, 0x34325258, []uint64{0})

	b1, grew, err := p.Grow(nil)
	if err != nil || !grew || b1 == nil {
		t.Fatalf("Grow #1\nhave (%v, %v, %v)\nwant (non-nil, true, nil)", b1, grew, err)
	}
	if b1.Status() != IDLE {
		t.Errorf("new buffer status\nhave %v\nwant IDLE", b1.Status())
	}

	b2, grew, err := p.Grow(nil)
	if err != nil || !grew || b2 == nil {
		t.Fatalf("Grow #2\nhave (%v, %v, %v)\nwant (non-nil, true, nil)", b2, grew, err)
	}

	b3, grew, err := p.Grow(nil)
	if err != nil || grew || b3 != nil {
		t.Fatalf("Grow beyond cap\nhave (%v, %v, %v)\nwant (nil, false, nil)", b3, grew, err)
	}
	if p.Len() != 2 {
		t.Errorf("pool length\nhave %d\nwant 2", p.Len())
	}
}

func TestAcquireIdleExcludesGivenBuffer(t *testing.T) {
	a := &fakeAlloc{}
	p := NewPool(a, 4, 640, 480, 0x34325258, []uint64{0})
	b1, _, _ := p.Grow(nil)
	b2, _, _ := p.Grow(nil)

	got, ok := p.AcquireIdle(b1)
	if !ok || got != b2 {
		t.Fatalf("AcquireIdle(exclude=b1)\nhave (%v, %v)\nwant (b2, true)", got, ok)
	}
}

func TestNotifyIdleTransitionsAndMovesToTail(t *testing.T) {
	a := &fakeAlloc{}
	p := NewPool(a, 4, 640, 480, 0x34325258, []uint64{0})
	b1, _, _ := p.Grow(nil)
	b2, _, _ := p.Grow(nil)
	b1.Pixmap = 100
	b2.Pixmap = 200
	p.MarkInUse(b1, 7)
	p.MarkInUse(b2, 8)

	if !p.NotifyIdle(100, 7) {
		t.Fatal("NotifyIdle(100, 7) returned false, want true")
	}
	if b1.Status() != IdleNotified {
		t.Errorf("b1 status\nhave %v\nwant IDLE_NOTIFIED", b1.Status())
	}
	// b1 should now be at the tail: acquiring an idle buffer other than
	// b1 shouldn't matter here since neither is IDLE yet, but the LRU
	// order is exercised through NonIdle's returned order.
	nonIdle := p.NonIdle()
	if len(nonIdle) != 2 || nonIdle[len(nonIdle)-1] != b1 {
		t.Errorf("non-idle order after NotifyIdle\nhave %v\nwant b1 last", nonIdle)
	}
}

func TestNotifyIdleIgnoresMismatch(t *testing.T) {
	a := &fakeAlloc{}
	p := NewPool(a, 4, 640, 480, 0x34325258, []uint64{0})
	b1, _, _ := p.Grow(nil)
	b1.Pixmap = 100
	p.MarkInUse(b1, 7)

	if p.NotifyIdle(999, 7) {
		t.Fatal("NotifyIdle with wrong pixmap returned true, want false")
	}
	if b1.Status() != InUse {
		t.Errorf("b1 status after mismatched notify\nhave %v\nwant IN_USE", b1.Status())
	}
}

func TestGrowFailurePropagatesAllocError(t *testing.T) {
	a := &fakeAlloc{fail: true}
	p := NewPool(a, 4, 640, 480, 0x34325258, []uint64{0})
	_, _, err := p.Grow(nil)
	if !errors.Is(err, ErrAlloc) {
		t.Fatalf("Grow error\nhave %v\nwant wrapping %v", err, ErrAlloc)
	}
}

func TestDestroyAllReleasesEveryBuffer(t *testing.T) {
	a := &fakeAlloc{}
	p := NewPool(a, 4, 640, 480, 0x34325258, []uint64{0})
	p.Grow(nil)
	p.Grow(nil)
	p.DestroyAll()

	for i, bo := range a.created {
		if !bo.destroyed {
			t.Errorf("buffer object %d not destroyed", i)
		}
	}
	if p.Len() != 0 {
		t.Errorf("pool length after DestroyAll\nhave %d\nwant 0", p.Len())
	}
}

type fakeFreer struct{ freed []uint32 }

func (f *fakeFreer) FreePixmap(pixmap uint32) error {
	f.freed = append(f.freed, pixmap)
	return nil
}

func TestDestroyAllFreesPixmapsThroughFreer(t *testing.T) {
	a := &fakeAlloc{}
	p := NewPool(a, 4, 640, 480, 0x34325258, []uint64{0})
	freer := &fakeFreer{}
	p.SetPixmapFreer(freer)

	b1, _, _ := p.Grow(nil)
	b2, _, _ := p.Grow(nil)
	b1.Pixmap = 100
	b2.Pixmap = 200
	b3, _, _ := p.Grow(nil)
	_ = b3 // never presented, Pixmap stays 0 and must not be freed

	p.DestroyAll()

	want := []uint32{100, 200}
	if len(freer.freed) != len(want) {
		t.Fatalf("freed pixmaps\nhave %v\nwant %v", freer.freed, want)
	}
	for i, v := range want {
		if freer.freed[i] != v {
			t.Errorf("freed[%d]\nhave %d\nwant %d", i, freer.freed[i], v)
		}
	}
}
