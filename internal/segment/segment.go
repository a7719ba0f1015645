// Package segment implements the worker that pumps bytes between two
// (or three) machines: a plain pump variant moving bytes from a
// source into one or two sinks through a local buffer, and a
// zero-copy source variant that writes straight into an
// AcquireWriteBlock/ReleaseWriteBlock ring instead. Grounded on
// bingewatch's segment.c.
package segment

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamrig/streamrig/internal/constants"
	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/logging"
	"github.com/streamrig/streamrig/internal/machine"
	"github.com/streamrig/streamrig/internal/ring"
	"github.com/streamrig/streamrig/internal/streamstate"
)

var segmentCounter atomic.Int64

// Segment pumps data from one source machine to one or two sink
// machines. The zero value is not usable; construct with New* funcs.
type Segment struct {
	log *logging.Logger

	id    int64
	name  string
	group string

	in   *machine.Desc
	out  *machine.Desc
	out1 *machine.Desc

	// outRing is set only for source segments, giving the worker
	// zero-copy access to the ring's write blocks. out still points at
	// the same machine for Stop/Close purposes.
	outRing *ring.Ring

	defaultBufLen int

	onComplete func()
	onError    func()

	mu         sync.Mutex
	running    bool
	doComplete bool

	wg sync.WaitGroup
}

func newBase(in, out, out1 *machine.Desc) *Segment {
	id := segmentCounter.Add(1)
	return &Segment{
		log:           logging.Default(),
		id:            id,
		name:          defaultName(id),
		in:            in,
		out:           out,
		out1:          out1,
		defaultBufLen: constants.DefaultSegmentBufLen,
	}
}

func defaultName(id int64) string {
	return "seg" + itoa(id)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}

// New1to1 creates a segment pumping from in to a single out.
func New1to1(in, out *machine.Desc) *Segment {
	return newBase(in, out, nil)
}

// New1to2 creates a segment pumping from in to both out and out1 (a
// tee).
func New1to2(in, out, out1 *machine.Desc) *Segment {
	return newBase(in, out, out1)
}

// NewSource creates a segment whose sink is a ring buffer, written
// to via zero-copy AcquireWriteBlock/ReleaseWriteBlock rather than
// through the generic machine.Write dispatch. outDesc must wrap
// outRing (outDesc is kept so Stop/Close still apply to the ring
// machine uniformly).
func NewSource(in, outDesc *machine.Desc, outRing *ring.Ring) *Segment {
	s := newBase(in, outDesc, nil)
	s.outRing = outRing
	return s
}

// SetName overrides the segment's diagnostic name (default "segN").
func (s *Segment) SetName(name string) { s.name = name }

// SetGroup sets the segment's group label, usually the owning
// stream's name, used only in diagnostics.
func (s *Segment) SetGroup(group string) { s.group = group }

// SetDefaultBufLen overrides the pump buffer size used when neither
// endpoint advertises a size hint.
func (s *Segment) SetDefaultBufLen(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultBufLen = n
}

// OnComplete registers the callback run once this segment's source
// reports completion.
func (s *Segment) OnComplete(fn func()) { s.onComplete = fn }

// OnError registers the callback run if this segment hits an I/O
// error.
func (s *Segment) OnError(fn func()) { s.onError = fn }

// IsRunning reports whether the worker goroutine is currently active.
func (s *Segment) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Segment) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Segment) setDoComplete(v bool) {
	s.mu.Lock()
	s.doComplete = v
	s.mu.Unlock()
}

func (s *Segment) getDoComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doComplete
}

func (s *Segment) completeCallback() {
	s.log.Infof("%s: read complete", s.name)
	if s.onComplete != nil {
		s.onComplete()
	}
}

func (s *Segment) errorCallback(reason string) {
	s.log.Errorf("%s: %s", s.name, reason)
	if s.onError != nil {
		s.onError()
	}
}

// stopMachines stops every machine this segment touches and halts the
// worker loop, mirroring stop_segment.
func (s *Segment) stopMachines() {
	machine.Stop(s.in)
	machine.Stop(s.out)
	if s.out1 != nil {
		machine.Stop(s.out1)
	}
	s.setRunning(false)
	s.setDoComplete(false)
}

func (s *Segment) bufLen() int {
	n := s.in.Read.HintSize()
	if v := s.out.Write.HintSize(); v > n {
		n = v
	}
	if s.out1 != nil {
		if v := s.out1.Write.HintSize(); v > n {
			n = v
		}
	}
	if n == 0 {
		s.mu.Lock()
		n = s.defaultBufLen
		s.mu.Unlock()
	}
	return n
}

// Start launches the segment's worker goroutine, tracking state via
// state. Start returns immediately; use Join to wait for completion.
func (s *Segment) Start(state *streamstate.Ref) {
	s.wg.Add(1)
	s.setRunning(true)
	go func() {
		defer s.wg.Done()
		if s.outRing != nil {
			s.runSource(state)
		} else {
			s.runPump(state)
		}
	}()
}

// Join blocks until the segment's worker goroutine has exited.
func (s *Segment) Join() {
	s.wg.Wait()
}

// readFrom reads once from in into buf, updating doComplete/handling
// errors the way read_from_source does. The read is non-blocking so an
// empty buffer machine hands back zero bytes and the loop can observe
// state changes between reads.
func (s *Segment) readFrom(buf []byte) (int, bool) {
	n, status := machine.Read(s.in, buf, filter.NoBlock)
	switch status {
	case filter.StatusComplete:
		s.log.Infof("%s: read complete", s.name)
		s.setDoComplete(true)
	case filter.StatusError:
		s.errorCallback("read error")
		s.stopMachines()
		return 0, false
	}
	return n, true
}

// writeTo writes buf to dst in a loop until fully consumed, handling
// partial writes, completion, and errors the way write_to_dest does.
func (s *Segment) writeTo(dst *machine.Desc, buf []byte) int {
	remaining := buf
	written := 0
	for len(remaining) > 0 {
		n, status := machine.Write(dst, remaining, filter.Block)
		if status == filter.StatusComplete {
			s.setDoComplete(true)
			break
		}
		if status == filter.StatusError {
			s.errorCallback("write error")
			s.stopMachines()
			return 0
		}
		remaining = remaining[n:]
		written += n
		if n == 0 {
			break
		}
	}
	return written
}

func (s *Segment) runPump(state *streamstate.Ref) {
	buf := make([]byte, s.bufLen())

	for s.IsRunning() {
		st := state.WaitWhile(func(st streamstate.State) bool { return st == streamstate.Ready })

		if s.getDoComplete() {
			s.completeCallback()
			s.stopMachines()
			continue
		}

		if !streamstate.IsRunning(st) {
			s.setRunning(false)
			continue
		}

		n, ok := s.readFrom(buf)
		if !ok {
			continue
		}
		if n == 0 {
			time.Sleep(constants.SegmentIdleSleep)
			continue
		}

		srcBytes := n
		written := s.writeTo(s.out, buf[:n])
		if written == 0 {
			continue
		}
		if written != srcBytes {
			s.log.Errorf("%s: partial write", s.name)
		}

		if s.out1 != nil {
			s.writeTo(s.out1, buf[:srcBytes])
		}
	}
}

func (s *Segment) runSource(state *streamstate.Ref) {
	buflen := s.bufLen()

	for s.IsRunning() {
		st := state.WaitWhile(func(st streamstate.State) bool { return st == streamstate.Ready })

		if s.getDoComplete() {
			s.completeCallback()
			s.stopMachines()
			continue
		}

		if !streamstate.IsRunning(st) {
			s.setRunning(false)
			continue
		}

		b, status := s.outRing.AcquireWriteBlock(buflen)
		if status == filter.StatusError {
			s.errorCallback("ring write error")
			s.stopMachines()
			continue
		}
		if status == filter.StatusNoData || b == nil {
			time.Sleep(constants.SegmentIdleSleep)
			continue
		}

		n, status := machine.Read(s.in, b.Data, filter.Block)
		s.outRing.ReleaseWriteBlock(n)

		switch status {
		case filter.StatusComplete:
			s.setDoComplete(true)
		case filter.StatusError:
			s.errorCallback("read error")
			s.stopMachines()
			continue
		}

		if n == 0 {
			time.Sleep(constants.SegmentIdleSleep)
		}
	}
}
