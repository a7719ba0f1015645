// Package metrics implements the per-direction request/receive
// counters, periodic updater/printer goroutines, and bounded snapshot
// log described by bingewatch's machine-metrics.c.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamrig/streamrig/internal/constants"
	"github.com/streamrig/streamrig/internal/logging"
)

// QueryMode selects which window a Snapshot is computed over.
type QueryMode int

const (
	// Inst is the most recent per-window snapshot.
	Inst QueryMode = iota
	// Avg is the mean of the last constants.AvgSnapshotWindow snapshots.
	Avg
	// Full is computed from the running totals since the metric was
	// created, not from the snapshot log.
	Full
)

func (q QueryMode) String() string {
	switch q {
	case Avg:
		return "avg"
	case Full:
		return "full"
	default:
		return "inst"
	}
}

// Snapshot is one computed sample of a Metric's throughput.
type Snapshot struct {
	Time        time.Time
	Elapsed     float64
	TotalBytes  uint64
	DataRate    float64
	ReqRate     float64
	AvgReqSize  float64
	AvgRecSize  float64
	Utilization float64
}

type counters struct {
	count      uint64
	bytes      uint64
	totalCount uint64
	totalBytes uint64
}

// Metric accumulates request/receive counts for one direction of one
// machine and exposes point-in-time, windowed-average, and since-start
// snapshots of its throughput.
type Metric struct {
	log  *logging.Logger
	name string

	mu     sync.Mutex
	req    counters
	rec    counters
	tStart time.Time
	tPrev  time.Time
	tCur   time.Time

	snapshots []Snapshot

	updateSignal atomic.Bool
	printSignal  atomic.Bool
}

func newMetric(name string) *Metric {
	now := time.Now()
	return &Metric{
		log:    logging.Default(),
		name:   name,
		tStart: now,
		tPrev:  now,
		tCur:   now,
	}
}

// Update records one request of reqBytes that returned recBytes of
// actual data, then — if a background updater/printer has raised this
// metric's signal since the last call — computes a snapshot and/or
// logs it. Mirrors machine_metrics_update_fn.
func (m *Metric) Update(reqBytes, recBytes int) {
	m.mu.Lock()
	m.req.count++
	m.req.bytes += uint64(reqBytes)
	if recBytes > 0 {
		m.rec.count++
		m.rec.bytes += uint64(recBytes)
	}
	m.tPrev = m.tCur
	m.tCur = time.Now()
	m.mu.Unlock()

	if m.updateSignal.CompareAndSwap(true, false) {
		m.calculate()
	}
	if m.printSignal.Load() {
		m.Print()
	}
}

// calculate appends a new window snapshot, rolls window counters into
// the running totals, and resets the window. Mirrors
// machine_metrics_update.
func (m *Metric) calculate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.tCur.Sub(m.tPrev).Seconds()
	snap := Snapshot{
		Time:        m.tCur,
		Elapsed:     elapsed,
		DataRate:    float64(m.rec.bytes) / elapsed,
		ReqRate:     float64(m.req.count) / elapsed,
		AvgReqSize:  float64(m.req.bytes) / float64(m.req.count),
		AvgRecSize:  float64(m.rec.bytes) / float64(m.rec.count),
		Utilization: float64(m.rec.count) / float64(m.req.count),
	}

	m.req.totalCount += m.req.count
	m.req.totalBytes += m.req.bytes
	m.rec.totalCount += m.rec.count
	m.rec.totalBytes += m.rec.bytes
	snap.TotalBytes = m.rec.totalBytes

	m.req.count, m.req.bytes = 0, 0
	m.rec.count, m.rec.bytes = 0, 0

	m.appendSnapshot(snap)
}

// appendSnapshot keeps the log bounded to constants.MaxSnapshots,
// dropping the oldest entry rather than growing unboundedly the way
// the original's repalloc'd calc array does.
func (m *Metric) appendSnapshot(s Snapshot) {
	if len(m.snapshots) >= constants.MaxSnapshots {
		copy(m.snapshots, m.snapshots[1:])
		m.snapshots = m.snapshots[:len(m.snapshots)-1]
	}
	m.snapshots = append(m.snapshots, s)
}

// Snapshot computes a sample under the requested query mode. If no
// window has been calculated yet, it calculates one first (mirroring
// machine_metrics_calculate's "if n_calc == 0" bootstrap).
func (m *Metric) Snapshot(mode QueryMode) Snapshot {
	m.mu.Lock()
	empty := len(m.snapshots) == 0
	m.mu.Unlock()
	if empty {
		m.calculate()
	}

	switch mode {
	case Avg:
		return m.avgSnapshot()
	case Full:
		return m.fullSnapshot()
	default:
		return m.instSnapshot()
	}
}

func (m *Metric) instSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return Snapshot{}
	}
	return m.snapshots[len(m.snapshots)-1]
}

func (m *Metric) avgSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := constants.AvgSnapshotWindow
	if n > len(m.snapshots) {
		n = len(m.snapshots)
	}
	if n == 0 {
		return Snapshot{}
	}

	window := m.snapshots[len(m.snapshots)-n:]
	var sum Snapshot
	for _, s := range window {
		sum.Elapsed += s.Elapsed
		sum.DataRate += s.DataRate
		sum.ReqRate += s.ReqRate
		sum.AvgReqSize += s.AvgReqSize
		sum.AvgRecSize += s.AvgRecSize
		sum.Utilization += s.Utilization
	}

	f := float64(n)
	last := window[len(window)-1]
	return Snapshot{
		Time:        last.Time,
		TotalBytes:  last.TotalBytes,
		Elapsed:     sum.Elapsed / f,
		DataRate:    sum.DataRate / f,
		ReqRate:     sum.ReqRate / f,
		AvgReqSize:  sum.AvgReqSize / f,
		AvgRecSize:  sum.AvgRecSize / f,
		Utilization: sum.Utilization / f,
	}
}

func (m *Metric) fullSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(m.tStart).Seconds()
	return Snapshot{
		Time:        now,
		Elapsed:     elapsed,
		TotalBytes:  m.rec.totalBytes,
		DataRate:    float64(m.rec.totalBytes) / elapsed,
		ReqRate:     float64(m.req.totalCount) / elapsed,
		AvgReqSize:  float64(m.req.totalBytes) / float64(m.req.totalCount),
		AvgRecSize:  float64(m.rec.totalBytes) / float64(m.rec.totalCount),
		Utilization: float64(m.rec.totalCount) / float64(m.req.totalCount),
	}
}

// Format renders a snapshot as either a one-line summary or a
// multi-line report, mirroring machine_metrics_fmt's two layouts.
func (m *Metric) Format(mode QueryMode, oneline bool) string {
	s := m.Snapshot(mode)
	if oneline {
		return fmt.Sprintf("%d B %.2f B/s @ %.2f utilization", s.TotalBytes, s.DataRate, s.Utilization)
	}
	return fmt.Sprintf(
		"\t%d B\n\t%.2f B/s\n\t%.2f requests/sec\n\t%.2f B/request\n\t%.2f B/receive\n\t%.2f utilization\n",
		s.TotalBytes, s.DataRate, s.ReqRate, s.AvgReqSize, s.AvgRecSize, s.Utilization,
	)
}

// Print logs a one-line instantaneous summary and clears the print
// signal.
func (m *Metric) Print() {
	m.log.Infof("%s: %s", m.name, m.Format(Inst, true))
	m.printSignal.Store(false)
}

func (m *Metric) signalUpdate() { m.updateSignal.Store(true) }
func (m *Metric) signalPrint()  { m.printSignal.Store(true) }

// Pair is the pair of Metric objects a machine carries, one per
// direction, mirroring io_metrics_t's in/out fields.
type Pair struct {
	In  *Metric
	Out *Metric
}

// NewPair creates a Pair named after the owning machine and registers
// both of its Metric objects with reg so the background updater/
// printer can signal them. reg may be nil to use the package-level
// Global registry, matching track_new_metric's single process-wide
// signal list.
func NewPair(name string, reg *Registry) *Pair {
	if reg == nil {
		reg = Global
	}
	p := &Pair{In: newMetric(name + ":in"), Out: newMetric(name + ":out")}
	reg.track(p.In)
	reg.track(p.Out)
	return p
}
