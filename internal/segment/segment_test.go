package segment

import (
	"testing"
	"time"

	"github.com/streamrig/streamrig/internal/fbb"
	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/machine"
	"github.com/streamrig/streamrig/internal/ring"
	"github.com/streamrig/streamrig/internal/streamstate"
)

func newFbbDesc(numBlocks, blockSize int) *machine.Desc {
	return machine.NewDesc(nil, fbb.New(numBlocks, blockSize), "_fbb")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPumpCopiesDataEndToEnd(t *testing.T) {
	in := newFbbDesc(4, 64)
	out := newFbbDesc(4, 64)

	payload := []byte("hello from the pump")
	if n, status := machine.Write(in, payload, filter.NoBlock); n != len(payload) || status != filter.StatusSuccess {
		t.Fatalf("setup write: n=%d status=%v", n, status)
	}

	seg := New1to1(in, out)
	seg.SetDefaultBufLen(64)

	state := streamstate.NewRef()
	state.Store(streamstate.Running)
	seg.Start(state)

	got := make([]byte, len(payload))
	waitFor(t, func() bool {
		n, status := machine.Read(out, got, filter.NoBlock)
		return n == len(payload) && status == filter.StatusSuccess
	})

	state.Store(streamstate.Stopped)
	seg.Join()

	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestPumpTeesToBothSinks(t *testing.T) {
	in := newFbbDesc(4, 64)
	out := newFbbDesc(4, 64)
	out1 := newFbbDesc(4, 64)

	payload := []byte("teed")
	machine.Write(in, payload, filter.NoBlock)

	seg := New1to2(in, out, out1)
	seg.SetDefaultBufLen(64)

	state := streamstate.NewRef()
	state.Store(streamstate.Running)
	seg.Start(state)

	got0 := make([]byte, len(payload))
	got1 := make([]byte, len(payload))
	waitFor(t, func() bool {
		n0, _ := machine.Read(out, got0, filter.NoBlock)
		n1, _ := machine.Read(out1, got1, filter.NoBlock)
		return n0 == len(payload) && n1 == len(payload)
	})

	state.Store(streamstate.Stopped)
	seg.Join()

	if string(got0) != string(payload) || string(got1) != string(payload) {
		t.Fatalf("got %q / %q, want both %q", got0, got1, payload)
	}
}

func TestPumpStopsWhenStateLeavesRunning(t *testing.T) {
	in := newFbbDesc(2, 64)
	out := newFbbDesc(2, 64)

	seg := New1to1(in, out)
	seg.SetDefaultBufLen(64)

	state := streamstate.NewRef()
	state.Store(streamstate.Running)
	seg.Start(state)

	waitFor(t, seg.IsRunning)

	state.Store(streamstate.Done)
	seg.Join()

	if seg.IsRunning() {
		t.Fatal("expected segment to stop running once stream left the running range")
	}
}

func TestPumpWaitsThroughReadyWithoutBusySpin(t *testing.T) {
	in := newFbbDesc(2, 64)
	out := newFbbDesc(2, 64)

	seg := New1to1(in, out)
	seg.SetDefaultBufLen(64)

	state := streamstate.NewRef()
	state.Store(streamstate.Ready)
	seg.Start(state)

	time.Sleep(20 * time.Millisecond)
	if !seg.IsRunning() {
		t.Fatal("expected segment still running while parked in READY")
	}

	payload := []byte("released")
	machine.Write(in, payload, filter.NoBlock)
	state.Store(streamstate.Running)

	got := make([]byte, len(payload))
	waitFor(t, func() bool {
		n, status := machine.Read(out, got, filter.NoBlock)
		return n == len(payload) && status == filter.StatusSuccess
	})

	state.Store(streamstate.Stopped)
	seg.Join()
}

func TestPumpCallsOnCompleteWhenSourceCompletes(t *testing.T) {
	in := newFbbDesc(2, 64)
	out := newFbbDesc(2, 64)

	machine.Stop(in) // drives Read to StatusComplete on next call

	seg := New1to1(in, out)
	seg.SetDefaultBufLen(64)

	completed := make(chan struct{})
	seg.OnComplete(func() { close(completed) })

	state := streamstate.NewRef()
	state.Store(streamstate.Running)
	seg.Start(state)

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnComplete to fire")
	}

	waitFor(t, func() bool { return !seg.IsRunning() })
	seg.Join()
}

func TestSourceSegmentWritesZeroCopyIntoRing(t *testing.T) {
	in := newFbbDesc(4, 64)
	r := ring.New()
	outDesc := machine.NewDesc(nil, r, "_buf")

	payload := []byte("zero copy payload")
	machine.Write(in, payload, filter.NoBlock)

	seg := NewSource(in, outDesc, r)
	seg.SetDefaultBufLen(64)

	state := streamstate.NewRef()
	state.Store(streamstate.Running)
	seg.Start(state)

	got := make([]byte, len(payload))
	waitFor(t, func() bool {
		n, status := r.Read(got, filter.NoBlock)
		return n == len(payload) && status == filter.StatusSuccess
	})

	state.Store(streamstate.Stopped)
	seg.Join()

	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestBufLenPrefersHintOverDefault(t *testing.T) {
	in := newFbbDesc(2, 64)
	out := newFbbDesc(2, 64)
	in.Read.SetHintSize(128)

	seg := New1to1(in, out)
	seg.SetDefaultBufLen(16)

	if got := seg.bufLen(); got != 128 {
		t.Fatalf("expected hint size 128 to win, got %d", got)
	}
}

func TestBufLenFallsBackToDefaultWhenNoHints(t *testing.T) {
	in := newFbbDesc(2, 64)
	out := newFbbDesc(2, 64)

	seg := New1to1(in, out)
	seg.SetDefaultBufLen(32)

	if got := seg.bufLen(); got != 32 {
		t.Fatalf("expected default buf len 32, got %d", got)
	}
}
