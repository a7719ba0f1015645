// Package hq implements the handle-queue machine: a FIFO (or LIFO) of
// discrete byte packets, as opposed to the ring/fbb machines' streamed
// bytes. Each Write enqueues its entire buffer as one packet; each
// Read dequeues exactly one packet. Grounded on bingewatch's
// handle-queue.c.
package hq

import (
	"sync"
	"time"

	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/logging"
)

// Kind selects FIFO or LIFO (stack) dequeue order.
type Kind int

const (
	FIFO Kind = iota
	LIFO
)

// Entry is one packet in the queue. Done releases any resources the
// packet's producer attached to it (e.g. a borrowed ring block) —
// this is how ownership of the packet's backing memory is resolved
// between producer and consumer without the consumer needing to know
// where the bytes came from.
type Entry struct {
	Data []byte
	Time time.Time
	done func()
}

// Done invokes the entry's release callback, if any. Safe to call on
// an Entry with no callback attached.
func (e *Entry) Done() {
	if e.done != nil {
		e.done()
	}
}

// NewEntry creates an entry with no attached release callback.
func NewEntry(data []byte) *Entry {
	return &Entry{Data: data, Time: time.Now()}
}

// NewEntryWithCallback creates an entry whose Done calls onDone.
func NewEntryWithCallback(data []byte, onDone func()) *Entry {
	return &Entry{Data: data, Time: time.Now(), done: onDone}
}

// Queue is a handle-queue machine instance.
type Queue struct {
	log *logging.Logger

	kind Kind

	mu      sync.Mutex
	entries []*Entry
	flush   bool
}

// New creates an empty queue of the given Kind.
func New(kind Kind) *Queue {
	return &Queue{log: logging.Default(), kind: kind}
}

// PushEntry enqueues e directly, preserving any attached Done
// callback — the path used by zero-copy producers (e.g. a segment
// handing off a ring block without copying it).
func (q *Queue) PushEntry(e *Entry) {
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
}

// PopEntry dequeues one entry according to the queue's Kind. The
// second return value is false if the queue was empty.
func (q *Queue) PopEntry() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, false
	}

	var e *Entry
	switch q.kind {
	case LIFO:
		last := len(q.entries) - 1
		e = q.entries[last]
		q.entries = q.entries[:last]
	default:
		e = q.entries[0]
		q.entries = q.entries[1:]
	}
	return e, true
}

// Len reports how many packets are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Flush marks the queue so Read reports StatusComplete once drained,
// instead of StatusSuccess with zero bytes — the analogue of
// stop_queue's read-side behavior.
func (q *Queue) Flush() {
	q.mu.Lock()
	q.flush = true
	q.mu.Unlock()
}

// Write implements machine.Impl's Write: it copies buf into a fresh
// entry and enqueues it whole.
func (q *Queue) Write(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	data := make([]byte, len(buf))
	copy(data, buf)
	q.PushEntry(NewEntry(data))
	return len(buf), filter.StatusSuccess
}

// Read implements machine.Impl's Read: it dequeues one packet and
// copies its bytes into buf. A packet too large for buf is dropped
// with a warning, matching the fixed-size return-buffer contract the
// other block-oriented machines use.
func (q *Queue) Read(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	e, ok := q.PopEntry()
	if !ok {
		q.mu.Lock()
		flush := q.flush
		q.mu.Unlock()
		if flush {
			return 0, filter.StatusComplete
		}
		return 0, filter.StatusSuccess
	}
	defer e.Done()

	if len(e.Data) > len(buf) {
		q.log.Warnf("hq: packet length (%d) exceeds return buffer (%d); dropping", len(e.Data), len(buf))
		return 0, filter.StatusSuccess
	}

	n := copy(buf, e.Data)
	return n, filter.StatusSuccess
}

// Stop marks the queue for flush-to-drain, matching stop_queue.
func (q *Queue) Stop() {
	q.Flush()
}

// Drains reports that the queue wants its read side left alone by
// machine.Stop so buffered packets can still be popped until empty.
func (q *Queue) Drains() bool { return true }

// Close releases no OS resources.
func (q *Queue) Close() error { return nil }
