package streamrig

import (
	"fmt"
	"sync"
	"time"

	"github.com/streamrig/streamrig/internal/metrics"
)

// QueryMode selects which window a metrics snapshot is computed over.
type QueryMode = metrics.QueryMode

const (
	Inst = metrics.Inst
	Avg  = metrics.Avg
	Full = metrics.Full
)

// Snapshot is one computed sample of a machine direction's throughput.
type Snapshot = metrics.Snapshot

var (
	metricsMu    sync.Mutex
	metricsTable = make(map[Handle]*metrics.Pair)
)

// EnableMetrics attaches an in/out counter pair to h. The pair is set
// directly on the underlying machine, so every Read/Write that passes
// through it feeds the pair — whether the caller is the public API or
// a stream's segment workers pumping bytes through h directly. Calling
// it twice on the same handle replaces the previous pair.
func EnableMetrics(h Handle) error {
	d, err := resolve("EnableMetrics", h)
	if err != nil {
		return err
	}
	pair := metrics.NewPair(handleName(h), nil)
	d.SetMetrics(pair)

	metricsMu.Lock()
	metricsTable[h] = pair
	metricsMu.Unlock()
	return nil
}

func handleName(h Handle) string {
	kind, _ := KindOf(h)
	return fmt.Sprintf("%s#%d", kind, h)
}

func pairFor(h Handle) (*metrics.Pair, bool) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	p, ok := metricsTable[h]
	return p, ok
}

func removeMetrics(h Handle) {
	metricsMu.Lock()
	delete(metricsTable, h)
	metricsMu.Unlock()
}

// MetricsSnapshot returns the in/out snapshots for h under mode. The
// second result is false if h has no metrics enabled.
func MetricsSnapshot(h Handle, mode QueryMode) (in, out Snapshot, ok bool) {
	pair, ok := pairFor(h)
	if !ok {
		return Snapshot{}, Snapshot{}, false
	}
	return pair.In.Snapshot(mode), pair.Out.Snapshot(mode), true
}

// FormatMetrics renders h's in/out snapshots as a two-line summary. It
// returns an empty string if h has no metrics enabled.
func FormatMetrics(h Handle, mode QueryMode, oneline bool) string {
	pair, ok := pairFor(h)
	if !ok {
		return ""
	}
	return pair.In.Format(mode, oneline) + pair.Out.Format(mode, oneline)
}

// StartMetricsUpdater begins periodically signaling every enabled
// metrics pair to compute a fresh window snapshot on its next Read/
// Write call.
func StartMetricsUpdater(period time.Duration) { metrics.Global.StartUpdater(period) }

// StopMetricsUpdater stops the updater started by StartMetricsUpdater.
func StopMetricsUpdater() { metrics.Global.StopUpdater() }

// StartMetricsPrinter begins periodically signaling every enabled
// metrics pair to log a one-line summary on its next Read/Write call.
func StartMetricsPrinter(period time.Duration) { metrics.Global.StartPrinter(period) }

// StopMetricsPrinter stops the printer started by StartMetricsPrinter.
func StopMetricsPrinter() { metrics.Global.StopPrinter() }
