package hq

import (
	"testing"

	"github.com/streamrig/streamrig/internal/filter"
)

func TestFIFOOrder(t *testing.T) {
	q := New(FIFO)
	q.Write([]byte("a"), filter.NoBlock)
	q.Write([]byte("b"), filter.NoBlock)

	buf := make([]byte, 8)
	n, _ := q.Read(buf, filter.NoBlock)
	if string(buf[:n]) != "a" {
		t.Fatalf("expected a first, got %q", buf[:n])
	}
	n, _ = q.Read(buf, filter.NoBlock)
	if string(buf[:n]) != "b" {
		t.Fatalf("expected b second, got %q", buf[:n])
	}
}

func TestLIFOOrder(t *testing.T) {
	q := New(LIFO)
	q.Write([]byte("a"), filter.NoBlock)
	q.Write([]byte("b"), filter.NoBlock)

	buf := make([]byte, 8)
	n, _ := q.Read(buf, filter.NoBlock)
	if string(buf[:n]) != "b" {
		t.Fatalf("expected b first, got %q", buf[:n])
	}
}

func TestReadEmptyReturnsZeroSuccess(t *testing.T) {
	q := New(FIFO)
	n, status := q.Read(make([]byte, 4), filter.NoBlock)
	if n != 0 || status != filter.StatusSuccess {
		t.Fatalf("got n=%d status=%v", n, status)
	}
}

func TestFlushCompletesOnceDrained(t *testing.T) {
	q := New(FIFO)
	q.Write([]byte("x"), filter.NoBlock)
	q.Flush()

	n, status := q.Read(make([]byte, 4), filter.NoBlock)
	if n != 1 || status != filter.StatusSuccess {
		t.Fatalf("expected remaining packet to drain first, got n=%d status=%v", n, status)
	}

	n, status = q.Read(make([]byte, 4), filter.NoBlock)
	if n != 0 || status != filter.StatusComplete {
		t.Fatalf("expected complete after drain, got n=%d status=%v", n, status)
	}
}

func TestReadBufferTooSmallDropsPacket(t *testing.T) {
	q := New(FIFO)
	q.Write([]byte("0123456789"), filter.NoBlock)

	n, status := q.Read(make([]byte, 2), filter.NoBlock)
	if n != 0 || status != filter.StatusSuccess {
		t.Fatalf("got n=%d status=%v", n, status)
	}
	if q.Len() != 0 {
		t.Fatalf("expected packet consumed even though dropped, got len=%d", q.Len())
	}
}

func TestEntryDoneCallback(t *testing.T) {
	q := New(FIFO)
	released := false
	q.PushEntry(NewEntryWithCallback([]byte("x"), func() { released = true }))

	q.Read(make([]byte, 4), filter.NoBlock)
	if !released {
		t.Fatal("expected Done callback to run when entry is consumed")
	}
}
