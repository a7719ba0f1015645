// Package ring implements the growable ring-buffer machine: a
// block-chain FIFO that grows its own capacity under write pressure,
// applies high/low water mark backpressure, and supports zero-copy
// writes via AcquireWriteBlock/ReleaseWriteBlock. It is grounded
// directly on bingewatch's ring-buf.c block-chain algorithm.
package ring

import (
	"errors"
	"sync"

	"github.com/streamrig/streamrig/internal/block"
	"github.com/streamrig/streamrig/internal/constants"
	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/logging"
)

// errAllocFailed is returned internally when growing the block chain
// fails to obtain backing memory.
var errAllocFailed = errors.New("ring: failed to allocate block data")

type dataState int

const (
	stateNoInit dataState = iota
	stateReady
)

// Ring is a growable block-chain FIFO. The zero value is not usable;
// construct with New.
type Ring struct {
	log *logging.Logger

	mu sync.Mutex // guards size/bytes/state/highWaterCount/lowWaterMark/blockRealloc

	wlock sync.Mutex
	wp    *block.Block

	rlock    sync.Mutex
	rp       *block.Block
	flush    bool
	notEmpty *sync.Cond

	size  int
	bytes int

	blockSize     int
	blockAlign    int
	blockRealloc  int
	highWaterMark int
	highWaterHits int
	lowWaterMark  int
	minReturnSize int

	state dataState

	// acquired guards the zero-copy lending protocol: non-nil while a
	// caller holds a block returned by AcquireWriteBlock, so a stray
	// ReleaseWriteBlock without a matching acquire panics instead of
	// silently corrupting wp.
	acquireMu sync.Mutex
	acquired  bool
}

// New creates a ring with the default initial chain length, block
// alignment, and realloc step.
func New() *Ring {
	chain := block.AllocChain(constants.DefaultReallocStep)
	head := block.ForgeRing(chain)

	r := &Ring{
		log:          logging.Default(),
		wp:           head,
		rp:           head,
		blockAlign:   constants.DefaultBlockAlign,
		blockRealloc: constants.DefaultReallocStep,
	}
	r.notEmpty = sync.NewCond(&r.rlock)
	return r
}

// SetHighWaterMark sets the byte threshold at which writes begin being
// throttled. Zero disables backpressure.
func (r *Ring) SetHighWaterMark(bytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highWaterMark = bytes
}

// SetAlignment sets the block size rounding boundary used the first
// time the ring lazily allocates its block data.
func (r *Ring) SetAlignment(align int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockAlign = align
}

// SetMinReturnSize sets the minimum number of buffered bytes a Read
// call requires before it will return any data at all.
func (r *Ring) SetMinReturnSize(bytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minReturnSize = bytes
}

// Size reports total allocated capacity in bytes.
func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Bytes reports currently buffered (unread) bytes.
func (r *Ring) Bytes() int {
	r.rlock.Lock()
	defer r.rlock.Unlock()
	return r.bytes
}

// Flush marks the ring so that reads continue draining buffered data
// even after writing stops, returning StatusComplete only once the
// ring runs dry — the analogue of stop_buffer's read-side behavior.
func (r *Ring) Flush() {
	r.rlock.Lock()
	r.flush = true
	r.rlock.Unlock()
	r.notEmpty.Broadcast()
}

func (r *Ring) highWaterMarkHit() {
	r.highWaterHits++
	modifier := float64(r.highWaterHits)
	lwm := 1.0 - 0.1*modifier
	if lwm <= 0 {
		lwm = 0.1
	}
	r.lowWaterMark = int(lwm * float64(r.highWaterMark))
	r.log.Warnf("ring high water mark hit (count=%d, low_water_mark=%d)", r.highWaterHits, r.lowWaterMark)
}

func (r *Ring) lowWaterMarkHit() {
	if r.bytes < r.lowWaterMark {
		r.lowWaterMark = 0
	}
}

func roundUp(n, align int) int {
	if align <= 0 {
		align = 1
	}
	if n%align == 0 {
		return n
	}
	return (n/align + 1) * align
}

// dataInit performs the first-write lazy allocation: every block in
// the current chain is given a Data slice sized to round the request
// up to blockAlign.
func (r *Ring) dataInit(minBytes int) error {
	blockSize := roundUp(minBytes, r.blockAlign)

	r.wlock.Lock()
	r.rlock.Lock()
	added := block.FastAllocData(r.wp, blockSize)
	r.mu.Lock()
	r.blockSize = blockSize
	r.size += added
	r.mu.Unlock()
	r.rlock.Unlock()
	r.wlock.Unlock()

	if added == 0 {
		return errAllocFailed
	}
	r.state = stateReady
	return nil
}

// getNextBlock advances *b to the next block in the chain, reusing it
// in place if the next block has already been drained by a reader,
// or growing the chain (doubling the realloc step) if not.
func (r *Ring) getNextBlock(b **block.Block) error {
	cur := *b
	next := cur.Next

	if !next.Drained() {
		// The next block still holds unread data: the ring has
		// wrapped around onto itself and needs more capacity.
		r.mu.Lock()
		r.blockRealloc *= 2
		n := r.blockRealloc
		blockSize := r.blockSize
		r.mu.Unlock()

		r.log.Debugf("ring out of space: growing by %d blocks", n)

		addChain := block.AllocChain(n)
		for i := 0; i < len(addChain)-1; i++ {
			addChain[i].Next = addChain[i+1]
		}
		addHead := addChain[0]
		addTail := addChain[len(addChain)-1]
		added := block.FastAllocData(linearHead(addHead), blockSize)
		if added == 0 {
			return errAllocFailed
		}

		cur.Next = addHead
		addTail.Next = next
		r.mu.Lock()
		r.size += added
		r.mu.Unlock()

		*b = addHead
		return nil
	}

	*b = next
	return nil
}

// linearHead wraps a non-cyclic chain (addHead..addTail.Next==nil) so
// block.FastAllocData's "walk until we see head again" loop still
// terminates; FastAllocData expects a ring, so we temporarily close
// the chain on itself, walk it, then the caller re-links it.
func linearHead(head *block.Block) *block.Block {
	tail := head
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = head
	return head
}

// Write implements machine.Impl's Write: it is the ring's write-side
// raw I/O, invoked beneath the machine's filter chain and lifecycle
// dispatch.
func (r *Ring) Write(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	if r.state == stateNoInit {
		if err := r.dataInit(len(buf)); err != nil {
			return 0, filter.StatusError
		}
	}

	r.mu.Lock()
	if r.lowWaterMark != 0 {
		r.lowWaterMarkHit()
		r.mu.Unlock()
		return 0, filter.StatusNoData
	}
	r.mu.Unlock()

	r.wlock.Lock()
	defer r.wlock.Unlock()

	b := r.wp
	written := 0
	remaining := len(buf)
	data := buf

	for remaining > 0 {
		n := remaining
		if n > len(b.Data) {
			n = len(b.Data)
		}
		copy(b.Data, data[:n])
		b.Fill = n

		remaining -= n
		data = data[n:]
		written += n

		if err := r.getNextBlock(&b); err != nil {
			r.wp = b
			return written, filter.StatusError
		}
	}

	r.mu.Lock()
	r.bytes += written
	if r.highWaterMark != 0 && r.bytes >= r.highWaterMark {
		r.highWaterMarkHit()
	}
	r.mu.Unlock()

	r.wp = b
	r.notEmpty.Broadcast()
	return written, filter.StatusSuccess
}

// Read implements machine.Impl's Read: it is the ring's read-side raw
// I/O. align rounds the requested length down to a multiple of align
// before reading (mirroring the write-side block alignment).
func (r *Ring) Read(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	return r.ReadAligned(buf, mode, 1)
}

// ReadAligned is Read with an explicit alignment, used by the filter
// chain's base read filter which knows the caller's requested
// alignment. In the original C, a blocking read spins on the current
// block's fill count while holding the read lock; here the equivalent
// wait is a sync.Cond wait broadcast by every write, which parks the
// goroutine instead of burning a core.
func (r *Ring) ReadAligned(buf []byte, mode filter.BlockMode, align int) (int, filter.Status) {
	r.rlock.Lock()
	defer r.rlock.Unlock()

	b := r.rp

	remaining := len(buf)
	if align > 1 {
		remaining -= remaining % align
	}

	r.mu.Lock()
	if r.minReturnSize > r.bytes {
		remaining = 0
	}
	r.mu.Unlock()

	read := 0
	out := buf
	for remaining > 0 {
		for b.Fill == 0 {
			if mode != filter.Block || r.flush {
				remaining = 0
				break
			}
			r.notEmpty.Wait()
		}
		if remaining == 0 {
			break
		}

		n := b.Fill
		partial := remaining < n
		if partial {
			n = remaining
		}

		copy(out, b.Data[:n])
		remaining -= n
		out = out[n:]
		read += n

		if partial {
			copy(b.Data, b.Data[n:b.Fill])
			b.Fill -= n
		} else {
			b.Fill = 0
			b = b.Next
		}
	}

	// A mid-read dry-out under NoBlock or flush can leave read holding a
	// non-align multiple, stitched together from a prior block's fill
	// count that wasn't itself aligned. Push the excess back onto the
	// front of the current block so the caller only ever sees aligned
	// totals and the leftover bytes surface on the next Read instead of
	// being silently dropped.
	if align > 1 {
		if excess := read % align; excess != 0 {
			read -= excess
			if excess+b.Fill <= len(b.Data) {
				copy(b.Data[excess:excess+b.Fill], b.Data[:b.Fill])
				copy(b.Data[:excess], buf[read:read+excess])
				b.Fill += excess
			} else {
				r.log.Warnf("ring: dropping %d unaligned trailing bytes on flush/no-block read", excess)
			}
		}
	}

	r.mu.Lock()
	r.bytes -= read
	r.mu.Unlock()
	r.rp = b
	flush := r.flush

	if flush && read == 0 {
		return 0, filter.StatusComplete
	}
	return read, filter.StatusSuccess
}

// AcquireWriteBlock locks the ring's write side and hands back the
// current write block for zero-copy filling by the caller. The caller
// must eventually call ReleaseWriteBlock exactly once to unlock.
func (r *Ring) AcquireWriteBlock(initBytes int) (*block.Block, filter.Status) {
	if r.state == stateNoInit {
		bytes := initBytes
		if bytes <= 0 {
			bytes = constants.DefaultRingMinBytes
		}
		if err := r.dataInit(bytes); err != nil {
			return nil, filter.StatusError
		}
	}

	r.mu.Lock()
	if r.lowWaterMark != 0 {
		r.lowWaterMarkHit()
		r.mu.Unlock()
		return nil, filter.StatusNoData
	}
	r.mu.Unlock()

	r.wlock.Lock()

	r.acquireMu.Lock()
	r.acquired = true
	r.acquireMu.Unlock()

	return r.wp, filter.StatusSuccess
}

// ReleaseWriteBlock records that the caller filled bytes of the block
// returned by AcquireWriteBlock, advances the write pointer, and
// unlocks the write side. Calling it without a matching successful
// AcquireWriteBlock is a programming error and panics rather than
// unlocking an already-unlocked mutex.
func (r *Ring) ReleaseWriteBlock(bytes int) {
	r.acquireMu.Lock()
	if !r.acquired {
		r.acquireMu.Unlock()
		panic("ring: ReleaseWriteBlock called without a matching AcquireWriteBlock")
	}
	r.acquired = false
	r.acquireMu.Unlock()

	b := r.wp
	b.Fill = bytes

	r.getNextBlock(&b)

	r.mu.Lock()
	r.bytes += bytes
	if r.highWaterMark != 0 && r.bytes >= r.highWaterMark {
		r.highWaterMarkHit()
	}
	r.mu.Unlock()

	r.wp = b
	r.wlock.Unlock()
	r.notEmpty.Broadcast()
}

// Stop disables writes and switches the ring into flush mode so reads
// keep draining buffered data until it runs dry.
func (r *Ring) Stop() {
	r.Flush()
}

// Drains reports that the ring wants its read side left alone by
// machine.Stop so buffered bytes can still be read out until empty.
func (r *Ring) Drains() bool { return true }

// Close is a no-op: a ring owns no OS resources beyond Go-managed
// memory, which the garbage collector reclaims once the handle is
// forgotten.
func (r *Ring) Close() error {
	return nil
}
