//go:build linux

package drmsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakeKernel is an in-memory stand-in for the DRM ioctl surface, so
// Timeline's bookkeeping can be exercised without a real device fd.
type fakeKernel struct {
	nextHandle uint32
	fds        map[uint32]int
	nextFD     int
	points     map[uint32]uint64 // handle -> signaled point (0 for binary "has a fence" markers)
	failCreate bool
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{fds: make(map[uint32]int), points: make(map[uint32]uint64), nextFD: 100}
}

func (k *fakeKernel) syncobjCreateHandle() (uint32, error) {
	if k.failCreate {
		return 0, errors.New("fake: create failed")
	}
	k.nextHandle++
	return k.nextHandle, nil
}

func (k *fakeKernel) syncobjDestroyHandle(handle uint32) error {
	delete(k.points, handle)
	delete(k.fds, handle)
	return nil
}

func (k *fakeKernel) handleToFD(handle uint32) (int, error) {
	k.nextFD++
	k.fds[handle] = k.nextFD
	return k.nextFD, nil
}

func (k *fakeKernel) importSyncFile(handle uint32, fd int) error {
	k.points[handle] = uint64(fd) // arbitrary marker so transfer has something to move
	return nil
}

func (k *fakeKernel) exportSyncFile(handle uint32) (int, error) {
	k.nextFD++
	return k.nextFD, nil
}

func (k *fakeKernel) transfer(dstHandle uint32, dstPoint uint64, srcHandle uint32, srcPoint uint64) error {
	k.points[dstHandle] = k.points[srcHandle]
	return nil
}

func (k *fakeKernel) timelineSignal(handle uint32, point uint64) error {
	k.points[handle] = point
	return nil
}

type fakeServer struct {
	xid      uint32
	freed    []uint32
	failImport bool
}

func (s *fakeServer) ImportSyncobj(fd int) (uint32, error) {
	if s.failImport {
		return 0, errors.New("fake: import failed")
	}
	s.xid++
	return s.xid, nil
}

func (s *fakeServer) FreeSyncobj(xid uint32) error {
	s.freed = append(s.freed, xid)
	return nil
}

func TestNewTimelineImmutableHandleAndXID(t *testing.T) {
	k := newFakeKernel()
	srv := &fakeServer{}
	tl, err := NewTimeline(k, srv)
	require.NoError(t, err)
	h, x := tl.Handle(), tl.XID()
	assert.NotZero(t, h)
	assert.NotZero(t, x)

	require.NoError(t, tl.AttachFence(1))
	assert.Equal(t, h, tl.Handle())
	assert.Equal(t, x, tl.XID())
}

func TestNewTimelineFailureLeavesNothing(t *testing.T) {
	k := newFakeKernel()
	srv := &fakeServer{failImport: true}
	_, err := NewTimeline(k, srv)
	assert.Error(t, err)
	assert.Empty(t, k.fds, "failed NewTimeline must destroy the syncobj it created")
}

func TestAcquireReleasePointsAreAdjacent(t *testing.T) {
	k := newFakeKernel()
	srv := &fakeServer{}
	tl, err := NewTimeline(k, srv)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		acquire := tl.AcquirePoint()
		release := tl.ReleasePoint()
		assert.Equal(t, acquire+1, release)
		require.NoError(t, tl.AttachFence(42))
		assert.Equal(t, release, tl.AcquirePoint(), "counter must advance past the release point after use")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	k := newFakeKernel()
	srv := &fakeServer{}
	tl, err := NewTimeline(k, srv)
	require.NoError(t, err)
	tl.Destroy()
	tl.Destroy() // must not double-free or panic
	assert.Len(t, srv.freed, 1)
}

// TestTimelineMonotonicity is property P4: across any interleaving of
// AttachFence/SignalNext calls, nextPoint is strictly increasing and
// every release point equals the acquire point used for that call,
// plus one.
func TestTimelineMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := newFakeKernel()
		srv := &fakeServer{}
		tl, err := NewTimeline(k, srv)
		require.NoError(t, err)

		ops := rapid.SliceOfN(rapid.Bool(), 1, 50).Draw(t, "ops")
		last := tl.AcquirePoint()
		for _, useFence := range ops {
			acquire := tl.AcquirePoint()
			release := tl.ReleasePoint()
			assert.Equal(t, acquire+1, release)
			assert.GreaterOrEqual(t, acquire, last)

			if useFence {
				require.NoError(t, tl.AttachFence(7))
			} else {
				require.NoError(t, tl.SignalNext())
			}
			assert.Equal(t, release, tl.AcquirePoint())
			last = tl.AcquirePoint()
		}
	})
}
