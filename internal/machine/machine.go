// Package machine implements the generic lifecycle state machine every
// source, sink, and buffer shares: a Normal/Disabling/Disabled/
// Stopped/Error state per direction, dispatched centrally so
// individual machines only need to implement raw Read/Write.
package machine

import (
	"sync"

	"github.com/streamrig/streamrig/internal/arena"
	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/metrics"
)

// State is one direction's lifecycle state.
type State int

const (
	// Normal is the steady operating state.
	Normal State = iota
	// Disabling is entered the first time the underlying Impl reports
	// StatusComplete; one more call is allowed to drain/flush, after
	// which the direction moves to Disabled.
	Disabling
	// Disabled means the direction is permanently quiescent: calls
	// return zero bytes and StatusSuccess rather than propagating
	// completion repeatedly.
	Disabled
	// Stopped means Stop was called explicitly; calls return
	// StatusComplete immediately.
	Stopped
	// Error means the underlying Impl reported StatusError; calls
	// return StatusError immediately until the machine is destroyed.
	Error
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Disabling:
		return "disabling"
	case Disabled:
		return "disabled"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Impl is the raw I/O a concrete machine (file, ring, udp socket, ...)
// implements. Read/Write operate on raw bytes below the filter chain;
// Stop requests the machine unblock any in-flight or future call with
// StatusComplete; Close releases OS resources.
type Impl interface {
	Read(buf []byte, mode filter.BlockMode) (int, filter.Status)
	Write(buf []byte, mode filter.BlockMode) (int, filter.Status)
	Stop()
	Close() error
}

// IoDesc holds the per-direction dispatch state and filter chain for
// one side (read or write) of a machine.
type IoDesc struct {
	mu    sync.Mutex
	state State
	chain *filter.Filter
	// hintSize is the direction's preferred transfer size (e.g. a
	// ring's block size), used by segment workers to size their pump
	// buffer. Zero means "no preference".
	hintSize int
}

// HintSize returns the direction's preferred transfer size.
func (d *IoDesc) HintSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hintSize
}

// SetHintSize sets the direction's preferred transfer size.
func (d *IoDesc) SetHintSize(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hintSize = n
}

// State returns the direction's current lifecycle state.
func (d *IoDesc) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Chain returns the head of the direction's filter chain.
func (d *IoDesc) Chain() *filter.Filter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chain
}

// SetChain replaces the direction's filter chain head.
func (d *IoDesc) SetChain(f *filter.Filter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chain = f
}

// Stop forces the direction into Stopped, short-circuiting future
// calls with StatusComplete.
func (d *IoDesc) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Error {
		d.state = Stopped
	}
}

// Desc is the full handle-table descriptor for one machine: its own
// arena (for teardown), an independent IoDesc per direction, the
// concrete Impl, and a use-count so concurrent callers don't race a
// concurrent Destroy.
type Desc struct {
	Arena    *arena.Arena
	Read     IoDesc
	Write    IoDesc
	Impl     Impl
	useMu    sync.Mutex
	useCount int

	// metricsMu guards metricsPair, set by whatever layer owns metrics
	// enablement (EnableMetrics in the root package) and read by Read/
	// Write below so every caller of this machine — the public API or a
	// segment worker — feeds the same counters.
	metricsMu   sync.Mutex
	metricsPair *metrics.Pair
}

// SetMetrics attaches p as the machine's in/out counter pair, so every
// subsequent Read/Write call through this Desc — regardless of caller —
// feeds it. Passing nil detaches any previously attached pair.
func (d *Desc) SetMetrics(p *metrics.Pair) {
	d.metricsMu.Lock()
	d.metricsPair = p
	d.metricsMu.Unlock()
}

// Metrics returns the machine's currently attached counter pair, or nil
// if none has been attached.
func (d *Desc) Metrics() *metrics.Pair {
	d.metricsMu.Lock()
	defer d.metricsMu.Unlock()
	return d.metricsPair
}

// NewDesc wraps impl with fresh read/write dispatch state, parented
// under a new child of parentArena. name seeds the base filter
// installed at the tail of each direction's chain (see baseFilter):
// every machine's Read/Write chain starts non-nil and already
// terminates in its own raw I/O, so RegisterReadFilter/AddReadFilter
// and their write counterparts only ever splice in front of it.
func NewDesc(parentArena *arena.Arena, impl Impl, name string) *Desc {
	var a *arena.Arena
	if parentArena != nil {
		a = parentArena.NewChild()
	} else {
		a = arena.New()
	}
	d := &Desc{Arena: a, Impl: impl}
	d.Read.chain = baseFilter(name, filter.ReadDirection, impl.Read)
	d.Write.chain = baseFilter(name, filter.WriteDirection, impl.Write)
	return d
}

// baseFilter wraps a machine's raw Read or Write as a terminal filter
// node, the analogue of filter_read_init/filter_write_init: it's the
// node every chain bottoms out at rather than a nil terminator.
func baseFilter(name string, dir filter.Direction, rawIO func([]byte, filter.BlockMode) (int, filter.Status)) *filter.Filter {
	return filter.New(name, dir, func(_ *filter.Filter, buf []byte, length *int, mode filter.BlockMode, _ int) filter.Status {
		n, status := rawIO(buf[:*length], mode)
		*length = n
		return status
	})
}

// Acquire increments the use count, returning false if the machine is
// already being destroyed (Arena closed).
func (d *Desc) Acquire() bool {
	if d.Arena.Closed() {
		return false
	}
	d.useMu.Lock()
	defer d.useMu.Unlock()
	d.useCount++
	return true
}

// Release decrements the use count.
func (d *Desc) Release() {
	d.useMu.Lock()
	defer d.useMu.Unlock()
	if d.useCount > 0 {
		d.useCount--
	}
}

// InUse reports whether any caller currently holds the descriptor.
func (d *Desc) InUse() bool {
	d.useMu.Lock()
	defer d.useMu.Unlock()
	return d.useCount > 0
}

// dispatch runs the shared per-direction state machine around a single
// raw call to the machine's Impl, advancing io's State on Complete/
// Error and suppressing redundant Complete reports once a direction
// has moved into Disabling.
func dispatch(io *IoDesc, call func(mode filter.BlockMode) (int, filter.Status), mode filter.BlockMode) (int, filter.Status) {
	io.mu.Lock()
	switch io.state {
	case Stopped:
		io.mu.Unlock()
		return 0, filter.StatusComplete
	case Error:
		io.mu.Unlock()
		return 0, filter.StatusError
	case Disabled:
		io.mu.Unlock()
		return 0, filter.StatusSuccess
	}
	state := io.state
	io.mu.Unlock()

	n, status := call(mode)

	io.mu.Lock()
	defer io.mu.Unlock()
	// A concurrent Stop()/error may have landed while call() ran above;
	// that transition wins over whatever this call observed.
	if io.state == Stopped || io.state == Error {
		return 0, filter.StatusComplete
	}

	switch status {
	case filter.StatusError:
		io.state = Error
		return n, status
	case filter.StatusComplete:
		if state == Disabling {
			io.state = Disabled
			return 0, filter.StatusSuccess
		}
		io.state = Disabling
		return n, status
	default:
		return n, status
	}
}

// Read runs the read-side filter chain over buf, terminating at the
// machine's raw Read, through the direction's lifecycle dispatch, and
// feeds the machine's metrics pair (if one is attached) regardless of
// whether the caller is the public API or a segment worker.
func Read(d *Desc, buf []byte, mode filter.BlockMode) (int, filter.Status) {
	n, status := dispatch(&d.Read, func(mode filter.BlockMode) (int, filter.Status) {
		length := len(buf)
		status := filter.Invoke(d.Read.Chain(), buf, &length, mode, 1)
		return length, status
	}, mode)
	if p := d.Metrics(); p != nil {
		p.In.Update(len(buf), n)
	}
	return n, status
}

// Write runs the write-side filter chain over buf, terminating at the
// machine's raw Write, through the direction's lifecycle dispatch, and
// feeds the machine's metrics pair (if one is attached) regardless of
// whether the caller is the public API or a segment worker.
func Write(d *Desc, buf []byte, mode filter.BlockMode) (int, filter.Status) {
	n, status := dispatch(&d.Write, func(mode filter.BlockMode) (int, filter.Status) {
		length := len(buf)
		status := filter.Invoke(d.Write.Chain(), buf, &length, mode, 1)
		return length, status
	}, mode)
	if p := d.Metrics(); p != nil {
		p.Out.Update(len(buf), n)
	}
	return n, status
}

// Drainer is implemented by buffer machines (ring, handle-queue) whose
// own Stop (Flush) puts them into drain mode rather than halting
// outright: stop_buffer/stop_queue only disable writing and let reads
// keep flowing until the buffer empties, unlike the generic
// machine_disable_read terminal machines (file, null, fifo, udp
// socket) register. Stop leaves a Drainer's read side at the dispatch
// layer alone so already-buffered bytes can still be read out; the
// Impl itself is what eventually reports StatusComplete once drained.
type Drainer interface {
	Drains() bool
}

// Stop forces the write direction into Stopped and forwards to the
// underlying Impl so it can unblock any in-flight syscall. The read
// direction is also forced to Stopped unless Impl is a Drainer that
// wants its buffered data to keep draining through the normal
// dispatch path.
func Stop(d *Desc) {
	d.Write.Stop()
	if dr, ok := d.Impl.(Drainer); !ok || !dr.Drains() {
		d.Read.Stop()
	}
	d.Impl.Stop()
}

// Close stops both directions, closes the underlying Impl, and tears
// down the machine's arena.
func Close(d *Desc) error {
	Stop(d)
	err := d.Impl.Close()
	d.Arena.Close()
	return err
}
