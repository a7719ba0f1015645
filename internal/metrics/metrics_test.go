package metrics

import (
	"testing"
	"time"
)

func TestUpdateAccumulatesWindowCounters(t *testing.T) {
	m := newMetric("test")
	m.Update(100, 80)
	m.Update(100, 90)

	m.mu.Lock()
	req, rec := m.req, m.rec
	m.mu.Unlock()

	if req.count != 2 || req.bytes != 200 {
		t.Fatalf("req = %+v, want count=2 bytes=200", req)
	}
	if rec.count != 2 || rec.bytes != 170 {
		t.Fatalf("rec = %+v, want count=2 bytes=170", rec)
	}
}

func TestUpdateSkipsReceiveCounterOnZeroBytes(t *testing.T) {
	m := newMetric("test")
	m.Update(64, 0)

	m.mu.Lock()
	rec := m.rec
	m.mu.Unlock()

	if rec.count != 0 || rec.bytes != 0 {
		t.Fatalf("expected zero-byte receive to not count, got %+v", rec)
	}
}

func TestSignalUpdateTriggersCalculateOnNextUpdate(t *testing.T) {
	m := newMetric("test")
	m.Update(10, 10)
	m.signalUpdate()
	m.Update(10, 10)

	snap := m.Snapshot(Inst)
	if snap.TotalBytes == 0 {
		t.Fatal("expected a calculated snapshot after signaled update")
	}

	m.mu.Lock()
	reqCount := m.req.count
	m.mu.Unlock()
	if reqCount != 0 {
		t.Fatalf("expected window counters reset after calculate, got req.count=%d", reqCount)
	}
}

func TestSnapshotBootstrapsWhenEmpty(t *testing.T) {
	m := newMetric("test")
	m.Update(50, 50)

	snap := m.Snapshot(Inst)
	if snap.Time.IsZero() {
		t.Fatal("expected Snapshot to bootstrap a calculation when no window exists yet")
	}
}

func TestAvgSnapshotAveragesWindow(t *testing.T) {
	m := newMetric("test")
	for i := 0; i < 3; i++ {
		m.Update(100, 100)
		m.signalUpdate()
		m.calculate()
	}

	avg := m.Snapshot(Avg)
	if avg.TotalBytes == 0 {
		t.Fatal("expected avg snapshot to reflect accumulated totals")
	}
}

func TestFullSnapshotUsesRunningTotals(t *testing.T) {
	m := newMetric("test")
	m.Update(100, 100)
	m.calculate()
	m.Update(100, 100)
	m.calculate()

	full := m.Snapshot(Full)
	if full.TotalBytes != 200 {
		t.Fatalf("expected full snapshot total bytes 200, got %d", full.TotalBytes)
	}
}

func TestAppendSnapshotBoundsLog(t *testing.T) {
	m := newMetric("test")
	for i := 0; i < 300; i++ {
		m.appendSnapshot(Snapshot{TotalBytes: uint64(i)})
	}
	if len(m.snapshots) > 256 {
		t.Fatalf("expected snapshot log bounded to 256, got %d", len(m.snapshots))
	}
	if m.snapshots[len(m.snapshots)-1].TotalBytes != 299 {
		t.Fatalf("expected newest snapshot retained, got %+v", m.snapshots[len(m.snapshots)-1])
	}
}

func TestFormatOnelineAndMultiline(t *testing.T) {
	m := newMetric("test")
	m.Update(100, 100)
	m.calculate()

	oneline := m.Format(Inst, true)
	multiline := m.Format(Inst, false)
	if oneline == "" || multiline == "" {
		t.Fatal("expected non-empty format output")
	}
	if oneline == multiline {
		t.Fatal("expected oneline and multiline formats to differ")
	}
}

func TestRegistryTracksAndSignalsPairs(t *testing.T) {
	reg := NewRegistry()
	pair := NewPair("m1", reg)
	if reg.Len() != 2 {
		t.Fatalf("expected 2 tracked metrics, got %d", reg.Len())
	}

	reg.signalUpdateAll()
	if !pair.In.updateSignal.Load() || !pair.Out.updateSignal.Load() {
		t.Fatal("expected both directions' update signal raised")
	}
}

func TestTimerStartStopLifecycle(t *testing.T) {
	calls := make(chan struct{}, 8)
	tm := newTimer("test timer", func() {
		select {
		case calls <- struct{}{}:
		default:
		}
	})

	tm.Start(5 * time.Millisecond)
	if !tm.Running() {
		t.Fatal("expected timer running after Start")
	}

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("expected timer callback to fire")
	}

	tm.Stop()
	if tm.Running() {
		t.Fatal("expected timer stopped after Stop")
	}
}

func TestRegistryStartStopUpdaterAndPrinter(t *testing.T) {
	reg := NewRegistry()
	NewPair("m2", reg)

	reg.StartUpdater(5 * time.Millisecond)
	reg.StartPrinter(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	reg.StopUpdater()
	reg.StopPrinter()
}
