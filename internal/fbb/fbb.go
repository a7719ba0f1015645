// Package fbb implements the fixed-block buffer machine: a bounded
// ring of a fixed number of equally sized blocks, allocated once at
// construction and never grown. Each write fills exactly one block
// and each read drains exactly one block; a write that catches up to
// a block the reader hasn't drained yet is dropped rather than
// growing the chain, giving this machine an explicit back-pressure-
// by-drop policy distinct from the ring's unbounded growth. Grounded
// on bingewatch's fixed-block-buf.c, adapted to drop instead of grow.
package fbb

import (
	"sync"

	"github.com/streamrig/streamrig/internal/block"
	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/logging"
)

// Buffer is a fixed-block ring.
type Buffer struct {
	log *logging.Logger

	wlock sync.Mutex
	wp    *block.Block

	rlock sync.Mutex
	rp    *block.Block

	mu    sync.Mutex
	size  int
	bytes int
}

// New creates a fixed-block buffer with numBlocks blocks of blockSize
// bytes each, all pre-allocated up front (no lazy allocation, unlike
// the ring machine).
func New(numBlocks, blockSize int) *Buffer {
	chain := block.AllocChain(numBlocks)
	head := block.ForgeRing(chain)
	allocated := block.FastAllocData(head, blockSize)

	return &Buffer{
		log:  logging.Default(),
		wp:   head,
		rp:   head,
		size: allocated,
	}
}

// Write fills exactly one block with buf. A write larger than the
// block size is rejected: zero bytes are written, a warning is
// logged, and StatusSuccess is still returned (the original ignores
// oversized input rather than treating it as an error). If the block
// at the write pointer still holds unread data — the buffer is full —
// the write is dropped instead: the chain never grows, so the
// buffer's total size stays fixed for its whole lifetime.
func (b *Buffer) Write(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	b.wlock.Lock()
	defer b.wlock.Unlock()

	cur := b.wp
	if len(buf) > len(cur.Data) {
		b.log.Warnf("fbb: input (%d bytes) exceeds block size (%d); dropping", len(buf), len(cur.Data))
		return 0, filter.StatusSuccess
	}

	if !cur.Drained() {
		b.log.Warnf("fbb: buffer full; dropping %d bytes", len(buf))
		return 0, filter.StatusNoData
	}

	copy(cur.Data, buf)
	cur.Fill = len(buf)

	b.mu.Lock()
	b.bytes += len(buf)
	b.mu.Unlock()

	b.wp = cur.Next
	return len(buf), filter.StatusSuccess
}

// Read drains exactly one block into buf, rounding the block's fill
// count down to a multiple of align. If buf is too small to hold the
// block's data, the block is still consumed and dropped with a
// warning, returning zero bytes.
func (b *Buffer) Read(buf []byte, mode filter.BlockMode) (int, filter.Status) {
	return b.ReadAligned(buf, mode, 1)
}

// ReadAligned is Read with an explicit alignment.
func (b *Buffer) ReadAligned(buf []byte, mode filter.BlockMode, align int) (int, filter.Status) {
	b.rlock.Lock()
	defer b.rlock.Unlock()

	cur := b.rp
	n := cur.Fill
	if align > 1 {
		n -= n % align
	}

	read := 0
	if n > 0 {
		if len(buf) >= n {
			copy(buf, cur.Data[:n])
			read = n
		} else {
			b.log.Warnf("fbb: block length (%d) exceeds return buffer (%d); dropping block", cur.Fill, len(buf))
		}
	}

	b.mu.Lock()
	b.bytes -= cur.Fill
	b.mu.Unlock()
	cur.Fill = 0

	b.rp = cur.Next
	return read, filter.StatusSuccess
}

// Size reports total allocated capacity in bytes.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Bytes reports currently buffered (unread) bytes.
func (b *Buffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Stop is a no-op: the fixed-block buffer has no flush/drain mode of
// its own, unlike the ring.
func (b *Buffer) Stop() {}

// Close releases no OS resources.
func (b *Buffer) Close() error { return nil }
