// Package stream implements the stream DAG state machine: a set of
// segments sharing one INIT/READY/RUNNING/FINISHING/DONE/STOPPED/ERROR
// lifecycle, driven by a single goroutine per stream. Grounded on
// bingewatch's stream.c.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamrig/streamrig/internal/constants"
	"github.com/streamrig/streamrig/internal/logging"
	"github.com/streamrig/streamrig/internal/machine"
	"github.com/streamrig/streamrig/internal/ring"
	"github.com/streamrig/streamrig/internal/segment"
	"github.com/streamrig/streamrig/internal/streamstate"
)

var idCounter atomic.Int64

// Stream is a DAG of segments sharing one lifecycle state.
type Stream struct {
	log *logging.Logger

	id     int64
	ctx    context.Context
	cancel context.CancelFunc
	state  *streamstate.Ref

	gracePeriod time.Duration

	mu       sync.Mutex
	segments []*segment.Segment
	machines []*machine.Desc

	driverWg sync.WaitGroup
}

// Manager owns the set of live streams, mirroring the package-level
// stream list in the original (`streams`), now scoped to an instance
// rather than process-global mutable state.
type Manager struct {
	mu      sync.Mutex
	streams map[int64]*Stream
}

// NewManager creates an empty stream manager.
func NewManager() *Manager {
	return &Manager{streams: make(map[int64]*Stream)}
}

// Default is the process-wide manager used by callers that don't need
// isolated stream namespaces (tests construct their own via
// NewManager instead).
var Default = NewManager()

// NewStream creates a stream in INIT state and registers it with the
// manager. Canceling ctx forces an immediate transition to STOPPED,
// bypassing the FINISHING grace period — the Go analogue of the
// design note's "cancellation token tied to stream state".
func (m *Manager) NewStream(ctx context.Context) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithCancel(ctx)

	s := &Stream{
		log:         logging.Default(),
		id:          idCounter.Add(1),
		ctx:         cctx,
		cancel:      cancel,
		state:       streamstate.NewRef(),
		gracePeriod: constants.FinishingGrace,
	}

	m.mu.Lock()
	m.streams[s.id] = s
	m.mu.Unlock()

	go s.watchCancellation()

	return s
}

// Get looks up a stream by id.
func (m *Manager) Get(id int64) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[id]
	return s, ok
}

// StopAll signals every managed stream to begin its completion
// process, mirroring stop_streams.
func (m *Manager) StopAll() {
	m.mu.Lock()
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
}

// Cleanup stops, joins, and tears down every managed stream's
// machines, mirroring stream_cleanup.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	streams := make([]*Stream, 0, len(m.streams))
	for id, s := range m.streams {
		streams = append(streams, s)
		delete(m.streams, id)
	}
	m.mu.Unlock()

	for _, s := range streams {
		s.Stop()
		s.Join()
		s.destroyMachines()
	}
}

// ID returns the stream's handle.
func (s *Stream) ID() int64 { return s.id }

// State returns the stream's current lifecycle state.
func (s *Stream) State() streamstate.State { return s.state.Load() }

// SetGracePeriod overrides how long FINISHING waits before forcing
// DONE (default constants.FinishingGrace).
func (s *Stream) SetGracePeriod(d time.Duration) { s.gracePeriod = d }

func (s *Stream) trackMachine(d *machine.Desc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.machines {
		if existing == d {
			return
		}
	}
	s.machines = append(s.machines, d)
}

func (s *Stream) addSegments(segs ...*segment.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range segs {
		seg.SetGroup(s.name())
		seg.OnComplete(s.callbackComplete)
		seg.OnError(s.callbackError)
		s.segments = append(s.segments, seg)
	}
}

func (s *Stream) name() string {
	return "stream" + itoa(s.id)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

func newInternalRing() (*ring.Ring, *machine.Desc) {
	r := ring.New()
	return r, machine.NewDesc(nil, r, "_buf")
}

// AddSegment wires in -> out through an intermediate ring, exactly as
// io_stream_add_segment does: a "source" sub-segment feeds the ring,
// a "pump" sub-segment drains it to out, so the read side and the
// write side never share one blocking call.
func (s *Stream) AddSegment(in, out *machine.Desc) {
	_, bufDesc := newInternalRing()

	pump := segment.New1to1(bufDesc, out)
	src := segment.New1to1(in, bufDesc)

	s.addSegments(src, pump)
	s.trackMachine(in)
	s.trackMachine(bufDesc)
	s.trackMachine(out)
}

// AddSegmentTee wires in -> {out0, out1} through two intermediate
// rings, mirroring io_stream_add_tee_segment.
func (s *Stream) AddSegmentTee(in, out0, out1 *machine.Desc) {
	_, buf0Desc := newInternalRing()
	_, buf1Desc := newInternalRing()

	pump0 := segment.New1to1(buf0Desc, out0)
	pump1 := segment.New1to1(buf1Desc, out1)
	src := segment.New1to2(in, buf0Desc, buf1Desc)

	s.addSegments(src, pump0, pump1)
	s.trackMachine(in)
	s.trackMachine(buf0Desc)
	s.trackMachine(buf1Desc)
	s.trackMachine(out0)
	s.trackMachine(out1)
}

// AddSourceSegment wires src directly into a fresh ring via zero-copy
// acquire/release_write_block, returning the ring's descriptor so the
// caller can read from it elsewhere, mirroring add_source_segment's
// out-parameter buf_handle.
func (s *Stream) AddSourceSegment(src *machine.Desc) *machine.Desc {
	r, bufDesc := newInternalRing()

	seg := segment.NewSource(src, bufDesc, r)

	s.addSegments(seg)
	s.trackMachine(src)
	s.trackMachine(bufDesc)

	return bufDesc
}

func (s *Stream) callbackComplete() {
	s.state.Update(func(st streamstate.State) streamstate.State {
		switch st {
		case streamstate.Init, streamstate.Ready:
			return streamstate.Done
		case streamstate.Running:
			return streamstate.Finishing
		default:
			return st
		}
	})
}

func (s *Stream) callbackError() {
	s.state.Update(func(st streamstate.State) streamstate.State {
		switch st {
		case streamstate.Error, streamstate.Finishing, streamstate.Done, streamstate.Stopped:
			return st
		default:
			return streamstate.Error
		}
	})
}

func (s *Stream) watchCancellation() {
	<-s.ctx.Done()
	s.state.Update(func(st streamstate.State) streamstate.State {
		if st == streamstate.Done || st == streamstate.Error || st == streamstate.Stopped {
			return st
		}
		return streamstate.Stopped
	})
}

// Start launches the driver goroutine, mirroring main_state_machine:
// READY, start every segment, RUNNING, then wait for a segment
// callback (or cancellation) to move the state out of RUNNING.
func (s *Stream) Start() {
	s.driverWg.Add(1)
	go s.drive()
}

func (s *Stream) drive() {
	defer s.driverWg.Done()

	s.state.Store(streamstate.Ready)

	s.mu.Lock()
	segs := append([]*segment.Segment(nil), s.segments...)
	s.mu.Unlock()
	for _, seg := range segs {
		seg.Start(s.state)
	}

	s.state.Store(streamstate.Running)

	st := s.state.WaitWhile(func(st streamstate.State) bool { return st == streamstate.Running })

	if st == streamstate.Finishing {
		time.Sleep(s.gracePeriod)
		st = s.state.Load()
	}

	if st != streamstate.Stopped && st != streamstate.Error {
		s.state.Store(streamstate.Done)
	}

	s.joinSegments()
}

func (s *Stream) joinSegments() {
	s.mu.Lock()
	segs := append([]*segment.Segment(nil), s.segments...)
	s.mu.Unlock()
	for _, seg := range segs {
		seg.Join()
	}
}

// Stop moves a RUNNING stream to FINISHING (or INIT/READY directly to
// DONE) via the same path a segment's own completion callback takes,
// mirroring stop_stream_internal's RUNNING case. Unlike canceling the
// stream's context, this lets in-flight segments drain gracefully.
func (s *Stream) Stop() {
	s.callbackComplete()
}

// Cancel forces an immediate STOPPED, bypassing FINISHING's grace
// period. Equivalent to canceling the context passed to NewStream.
func (s *Stream) Cancel() { s.cancel() }

// Join blocks until the stream's driver goroutine (and therefore
// every segment) has exited.
func (s *Stream) Join() {
	s.driverWg.Wait()
}

func (s *Stream) destroyMachines() {
	s.mu.Lock()
	machines := append([]*machine.Desc(nil), s.machines...)
	s.mu.Unlock()

	for _, d := range machines {
		if err := machine.Close(d); err != nil {
			s.log.Warnf("%s: error closing machine: %v", s.name(), err)
		}
	}
}
