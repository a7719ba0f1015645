package metrics

import (
	"sync"
	"time"

	"github.com/streamrig/streamrig/internal/logging"
)

// timer runs callback on a fixed period in its own goroutine, the Go
// analogue of machine-metrics.c's run_timer/start_timer/stop_timer —
// a time.Ticker replaces the original's usleep(1000) millisecond-
// counting loop since this is a genuinely periodic background task,
// not a spin-wait on shared state.
type timer struct {
	name     string
	callback func()

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func newTimer(name string, callback func()) *timer {
	return &timer{name: name, callback: callback}
}

func (t *timer) Start(period time.Duration) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		logging.Default().Warnf("metrics: timer %q already running", t.name)
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	stop, done := t.stop, t.done
	t.mu.Unlock()

	go t.run(period, stop, done)
}

func (t *timer) run(period time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.callback()
		}
	}
}

func (t *timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		logging.Default().Warnf("metrics: timer %q not running", t.name)
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

func (t *timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Registry is the process-wide (or test-isolated) list of live Metric
// objects, fanned out to by the updater/printer timers. Mirrors the
// original's single global_signal list, now an instance so tests
// don't share state.
type Registry struct {
	mu      sync.Mutex
	metrics []*Metric

	updater *timer
	printer *timer
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.updater = newTimer("update timer", r.signalUpdateAll)
	r.printer = newTimer("print timer", r.signalPrintAll)
	return r
}

// Global is the default registry used when NewPair is called with a
// nil registry.
var Global = NewRegistry()

func (r *Registry) track(m *Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

func (r *Registry) signalUpdateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.signalUpdate()
	}
}

func (r *Registry) signalPrintAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.signalPrint()
	}
}

// StartUpdater begins periodically signaling every tracked metric to
// compute a fresh window snapshot on its next Update call.
func (r *Registry) StartUpdater(period time.Duration) { r.updater.Start(period) }

// StopUpdater stops the updater timer started by StartUpdater.
func (r *Registry) StopUpdater() { r.updater.Stop() }

// StartPrinter begins periodically signaling every tracked metric to
// log a one-line summary on its next Update call.
func (r *Registry) StartPrinter(period time.Duration) { r.printer.Start(period) }

// StopPrinter stops the printer timer started by StartPrinter.
func (r *Registry) StopPrinter() { r.printer.Stop() }

// Len reports how many Metric objects are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.metrics)
}
