// Package constants holds the default tunables for streamrig machines,
// segments, and streams — the equivalent of the teacher's device
// defaults, generalized to byte-stream machines instead of block devices.
package constants

import "time"

// Ring buffer defaults (see internal/ring).
const (
	// DefaultBlockBytes is the size of one ring data block when no
	// caller-supplied size hint is available.
	DefaultBlockBytes = 1 << 20 // 1 MiB

	// DefaultBlockAlign is the byte boundary block sizes round up to.
	DefaultBlockAlign = 1 << 20 // 1 MiB

	// DefaultReallocStep is the initial number of blocks added on growth;
	// it doubles on every subsequent growth event.
	DefaultReallocStep = 16

	// DefaultAlignment is the read-side alignment applied when a caller
	// hasn't called SetAlignment.
	DefaultAlignment = 1

	// DefaultRingMinBytes is the minimum byte count a ring lazily
	// allocates itself around when AcquireWriteBlock is called with no
	// size hint before any write has happened.
	DefaultRingMinBytes = 100 << 20 // 100 MiB
)

// Fixed-block buffer defaults (see internal/fbb).
const (
	DefaultFBBBlockBytes = 64 * 1024
	DefaultFBBNumBlocks  = 64
)

// Segment defaults (see internal/segment).
const (
	// DefaultSegmentBufLen is used when neither endpoint of a segment
	// advertises a read/write size hint.
	DefaultSegmentBufLen = 10 << 20 // 10 MiB

	// SegmentIdleSleep is how long a pump/source loop sleeps after an
	// iteration that moved zero bytes, to avoid a hot busy-loop.
	SegmentIdleSleep = 1 * time.Millisecond
)

// Stream driver defaults (see internal/stream).
const (
	// FinishingGrace is how long the stream driver waits in FINISHING
	// for segments to drain before forcing DONE.
	FinishingGrace = 1 * time.Second
)

// Metrics defaults (see root Metrics type).
const (
	DefaultUpdatePeriod = 1 * time.Second
	DefaultPrintPeriod  = 60 * time.Second

	// MaxSnapshots bounds the growing snapshot log per metrics object.
	MaxSnapshots = 256

	// AvgSnapshotWindow is "N" in the AVG query mode (mean of last N).
	AvgSnapshotWindow = 10
)
