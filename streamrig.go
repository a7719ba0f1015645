// Package streamrig is a composable streaming I/O framework: machines
// (sources, sinks, in-memory buffers) identified by opaque handles,
// per-direction filter chains, and segment workers that pump bytes
// through a stream DAG. This file is the public, handle-based ABI
// wrapping the internal machine/registry/stream packages, directly
// adapted from the teacher's top-level API surface.
package streamrig

import (
	"context"

	"github.com/streamrig/streamrig/internal/block"
	"github.com/streamrig/streamrig/internal/fbb"
	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/hq"
	"github.com/streamrig/streamrig/internal/machine"
	"github.com/streamrig/streamrig/internal/registry"
	"github.com/streamrig/streamrig/internal/ring"
	"github.com/streamrig/streamrig/internal/stream"
	"github.com/streamrig/streamrig/machines/fifo"
	"github.com/streamrig/streamrig/machines/file"
	"github.com/streamrig/streamrig/machines/null"
	"github.com/streamrig/streamrig/machines/udpsock"
)

// Handle is an opaque, process-unique id naming a live machine
// instance. The zero Handle is never issued.
type Handle = registry.Handle

// Invalid is the sentinel Handle returned on failed Create.
const Invalid = registry.Invalid

// Kind names a registered class of machine ("ring", "file", ...).
type Kind = registry.Kind

// Built-in machine kinds, registered at package init.
const (
	KindRing Kind = "ring"
	KindFBB  Kind = "fbb"
	KindHQ   Kind = "hq"
	KindFile Kind = "file"
	KindNull Kind = "null"
	KindUDP  Kind = "udpsock"
	KindFifo Kind = "fifo"
)

// Status is the result of a Read/Write call or a filter invocation.
type Status = filter.Status

// Status values, re-exported from internal/filter.
const (
	StatusSuccess   = filter.StatusSuccess
	StatusError     = filter.StatusError
	StatusComplete  = filter.StatusComplete
	StatusContinue  = filter.StatusContinue
	StatusNoData    = filter.StatusNoData
	StatusDataBreak = filter.StatusDataBreak
)

// BlockMode controls whether a Read/Write call may wait for data/space.
type BlockMode = filter.BlockMode

const (
	NoBlock = filter.NoBlock
	Block   = filter.Block
)

// Filter is one node of a machine's read or write filter chain.
type Filter = filter.Filter

// CallFn is the function body of a Filter node.
type CallFn = filter.CallFn

// Direction tags which side(s) of a machine a Filter applies to.
type Direction = filter.Direction

const (
	Bidirectional = filter.Bidirectional
	ReadDir       = filter.ReadDirection
	WriteDir      = filter.WriteDirection
)

// HQKind selects FIFO or LIFO dequeue order for a handle-queue machine.
type HQKind = hq.Kind

const (
	HQFIFO = hq.FIFO
	HQLIFO = hq.LIFO
)

// FBBArgs constructs a fixed-block buffer machine via Create(KindFBB, ...).
type FBBArgs struct {
	NumBlocks int
	BlockSize int
}

// HQArgs constructs a handle-queue machine via Create(KindHQ, ...).
type HQArgs struct {
	Kind HQKind
}

// FileArgs constructs a rotating file machine via Create(KindFile, ...).
type FileArgs struct {
	Dir   string
	Tag   string
	Ext   string
	Flags file.Flags
}

// UDPArgs constructs a UDP socket machine via Create(KindUDP, ...).
type UDPArgs struct {
	Config udpsock.Config
}

// FifoArgs constructs a named-pipe machine via Create(KindFifo, ...).
type FifoArgs struct {
	Path  string
	Flags fifo.Flags
}

func init() {
	registry.Global.RegisterKind(KindRing, func(args any) (any, error) {
		return machine.NewDesc(nil, ring.New(), "_ring"), nil
	})
	registry.Global.RegisterKind(KindFBB, func(args any) (any, error) {
		a, _ := args.(FBBArgs)
		numBlocks, blockSize := a.NumBlocks, a.BlockSize
		if numBlocks == 0 {
			numBlocks = DefaultFBBNumBlocks
		}
		if blockSize == 0 {
			blockSize = DefaultFBBBlockBytes
		}
		return machine.NewDesc(nil, fbb.New(numBlocks, blockSize), "_fbb"), nil
	})
	registry.Global.RegisterKind(KindHQ, func(args any) (any, error) {
		a, _ := args.(HQArgs)
		return machine.NewDesc(nil, hq.New(a.Kind), "_hq"), nil
	})
	registry.Global.RegisterKind(KindFile, func(args any) (any, error) {
		a, ok := args.(FileArgs)
		if !ok {
			return nil, NewError("Create", InvalidArgument, "file machine requires FileArgs")
		}
		f := file.New(a.Dir, a.Tag, a.Ext, a.Flags)
		return machine.NewDesc(nil, f, "_file"), nil
	})
	registry.Global.RegisterKind(KindNull, func(args any) (any, error) {
		return machine.NewDesc(nil, null.New(), "_null"), nil
	})
	registry.Global.RegisterKind(KindUDP, func(args any) (any, error) {
		a, ok := args.(UDPArgs)
		if !ok {
			return nil, NewError("Create", InvalidArgument, "udp machine requires UDPArgs")
		}
		u, err := udpsock.New(a.Config)
		if err != nil {
			return nil, WrapError("Create", err)
		}
		return machine.NewDesc(nil, u, "_udp"), nil
	})
	registry.Global.RegisterKind(KindFifo, func(args any) (any, error) {
		a, ok := args.(FifoArgs)
		if !ok {
			return nil, NewError("Create", InvalidArgument, "fifo machine requires FifoArgs")
		}
		fp, err := fifo.New(a.Path, a.Flags)
		if err != nil {
			return nil, WrapError("Create", err)
		}
		return machine.NewDesc(nil, fp, "_fifo"), nil
	})
}

// Create instantiates a machine of kind with the kind-specific args
// struct (FBBArgs, HQArgs, FileArgs, UDPArgs, FifoArgs — KindRing and
// KindNull take no args) and returns its handle.
func Create(kind Kind, args any) (Handle, error) {
	factory := registry.Global.FindKind(kind)
	if factory == nil {
		return Invalid, NewError("Create", NotFound, "unregistered machine kind: "+string(kind))
	}
	desc, err := factory(args)
	if err != nil {
		return Invalid, err
	}
	d := desc.(*machine.Desc)
	return registry.Global.RequestHandle(kind, d), nil
}

func resolve(op string, h Handle) (*machine.Desc, error) {
	v, ok := registry.Global.Find(h)
	if !ok {
		return nil, NewHandleError(op, h, NotFound, "unknown handle")
	}
	return v.(*machine.Desc), nil
}

// KindOf returns the kind h was created with, and whether h is live.
func KindOf(h Handle) (Kind, bool) {
	return registry.Global.KindOf(h)
}

// Destroy stops and closes the machine behind h and removes it from
// the handle table. Destroying an already-destroyed or unknown handle
// returns a NotFound error.
func Destroy(h Handle) error {
	d, err := resolve("Destroy", h)
	if err != nil {
		return err
	}
	registry.Global.Remove(h)
	removeMetrics(h)
	if err := machine.Close(d); err != nil {
		return WrapError("Destroy", err)
	}
	return nil
}

// Stop transitions h's write direction to Stopped, unblocking any
// in-flight or future write with StatusComplete. The read direction is
// also forced to Stopped unless h's machine is a buffer (ring, handle
// queue) that drains its remaining buffered bytes on Stop instead.
func Stop(h Handle) error {
	d, err := resolve("Stop", h)
	if err != nil {
		return err
	}
	machine.Stop(d)
	return nil
}

// Lock acquires h for the caller, failing if the machine is already
// being destroyed. Mirrors the core's use-count bookkeeping (in_use
// reaches zero before a descriptor's arena is freed).
func Lock(h Handle) error {
	d, err := resolve("Lock", h)
	if err != nil {
		return err
	}
	if !d.Acquire() {
		return NewHandleError("Lock", h, Stopped, "machine is being destroyed")
	}
	return nil
}

// Unlock releases a Lock acquired on h.
func Unlock(h Handle) error {
	d, err := resolve("Unlock", h)
	if err != nil {
		return err
	}
	d.Release()
	return nil
}

// Read runs h's read-side filter chain into buf, terminating at the
// machine's raw read. If EnableMetrics was called on h, the machine
// itself feeds the call into h's metrics pair.
func Read(h Handle, buf []byte, mode BlockMode) (int, Status, error) {
	d, err := resolve("Read", h)
	if err != nil {
		return 0, StatusError, err
	}
	n, status := machine.Read(d, buf, mode)
	return n, status, nil
}

// Write runs buf through h's write-side filter chain, terminating at
// the machine's raw write. If EnableMetrics was called on h, the
// machine itself feeds the call into h's metrics pair.
func Write(h Handle, buf []byte, mode BlockMode) (int, Status, error) {
	d, err := resolve("Write", h)
	if err != nil {
		return 0, StatusError, err
	}
	n, status := machine.Write(d, buf, mode)
	return n, status, nil
}

// RegisterReadFilter pushes a new filter node at the head of h's read
// chain.
func RegisterReadFilter(h Handle, name string, fn CallFn) error {
	d, err := resolve("RegisterReadFilter", h)
	if err != nil {
		return err
	}
	f := filter.New(name, ReadDir, fn)
	d.Read.SetChain(filter.PushHead(d.Read.Chain(), f))
	return nil
}

// RegisterWriteFilter pushes a new filter node at the head of h's
// write chain.
func RegisterWriteFilter(h Handle, name string, fn CallFn) error {
	d, err := resolve("RegisterWriteFilter", h)
	if err != nil {
		return err
	}
	f := filter.New(name, WriteDir, fn)
	d.Write.SetChain(filter.PushHead(d.Write.Chain(), f))
	return nil
}

// AddReadFilter splices an entire pre-built chain in front of h's read
// chain.
func AddReadFilter(h Handle, chain *Filter) error {
	d, err := resolve("AddReadFilter", h)
	if err != nil {
		return err
	}
	d.Read.SetChain(filter.SpliceHead(d.Read.Chain(), chain, ReadDir))
	return nil
}

// AddWriteFilter splices an entire pre-built chain in front of h's
// write chain.
func AddWriteFilter(h Handle, chain *Filter) error {
	d, err := resolve("AddWriteFilter", h)
	if err != nil {
		return err
	}
	d.Write.SetChain(filter.SpliceHead(d.Write.Chain(), chain, WriteDir))
	return nil
}

func ringOf(op string, h Handle) (*ring.Ring, error) {
	d, err := resolve(op, h)
	if err != nil {
		return nil, err
	}
	r, ok := d.Impl.(*ring.Ring)
	if !ok {
		return nil, NewHandleError(op, h, InvalidArgument, "handle is not a ring machine")
	}
	return r, nil
}

// SetHighWater sets the ring's high-water backpressure threshold in
// bytes. Zero disables backpressure.
func SetHighWater(h Handle, bytes int) error {
	r, err := ringOf("SetHighWater", h)
	if err != nil {
		return err
	}
	r.SetHighWaterMark(bytes)
	return nil
}

// SetAlignment sets the ring's block-size rounding boundary.
func SetAlignment(h Handle, bytes int) error {
	r, err := ringOf("SetAlignment", h)
	if err != nil {
		return err
	}
	r.SetAlignment(bytes)
	return nil
}

// SetMinReturnSize sets the minimum buffered byte count a ring Read
// requires before returning any data.
func SetMinReturnSize(h Handle, bytes int) error {
	r, err := ringOf("SetMinReturnSize", h)
	if err != nil {
		return err
	}
	r.SetMinReturnSize(bytes)
	return nil
}

// AcquireWriteBlock lends the caller the ring's current write block
// for zero-copy filling. Must be followed by a matching
// ReleaseWriteBlock.
func AcquireWriteBlock(h Handle, minBytes int) (*block.Block, error) {
	r, err := ringOf("AcquireWriteBlock", h)
	if err != nil {
		return nil, err
	}
	b, status := r.AcquireWriteBlock(minBytes)
	if status == StatusError {
		return nil, NewHandleError("AcquireWriteBlock", h, ResourceExhausted, "ring allocation failed")
	}
	if status == StatusNoData {
		return nil, NewHandleError("AcquireWriteBlock", h, WouldBlock, "ring is under low-water gating")
	}
	return b, nil
}

// ReleaseWriteBlock records bytes filled into the block returned by
// AcquireWriteBlock and advances the ring's write pointer.
func ReleaseWriteBlock(h Handle, bytes int) error {
	r, err := ringOf("ReleaseWriteBlock", h)
	if err != nil {
		return err
	}
	r.ReleaseWriteBlock(bytes)
	return nil
}

// RingSize reports a ring machine's total allocated capacity in bytes.
func RingSize(h Handle) (int, error) {
	r, err := ringOf("RingSize", h)
	if err != nil {
		return 0, err
	}
	return r.Size(), nil
}

// RingBytes reports a ring machine's currently buffered (unread) bytes.
func RingBytes(h Handle) (int, error) {
	r, err := ringOf("RingBytes", h)
	if err != nil {
		return 0, err
	}
	return r.Bytes(), nil
}

// Stream is a DAG of segments sharing one lifecycle state, created via
// NewStream and wired via AddSegment/AddSegmentTee/AddSourceSegment.
type Stream = stream.Stream

// NewStream creates a stream in INIT state, registered with the
// process-wide stream manager. Canceling ctx forces an immediate
// transition to STOPPED, bypassing the FINISHING grace period.
func NewStream(ctx context.Context) *Stream {
	return stream.Default.NewStream(ctx)
}

// AddSegment wires the machine behind in to the machine behind out
// through an intermediate ring, as one segment of s.
func AddSegment(s *Stream, in, out Handle) error {
	inDesc, err := resolve("AddSegment", in)
	if err != nil {
		return err
	}
	outDesc, err := resolve("AddSegment", out)
	if err != nil {
		return err
	}
	s.AddSegment(inDesc, outDesc)
	return nil
}

// AddSegmentTee wires in to both out0 and out1 (a tee) through two
// intermediate rings.
func AddSegmentTee(s *Stream, in, out0, out1 Handle) error {
	inDesc, err := resolve("AddSegmentTee", in)
	if err != nil {
		return err
	}
	out0Desc, err := resolve("AddSegmentTee", out0)
	if err != nil {
		return err
	}
	out1Desc, err := resolve("AddSegmentTee", out1)
	if err != nil {
		return err
	}
	s.AddSegmentTee(inDesc, out0Desc, out1Desc)
	return nil
}

// AddSourceSegment wires src directly into a fresh ring via zero-copy
// acquire/release-write-block, registers that ring under a new handle,
// and returns it so the caller can read from it elsewhere.
func AddSourceSegment(s *Stream, src Handle) (Handle, error) {
	srcDesc, err := resolve("AddSourceSegment", src)
	if err != nil {
		return Invalid, err
	}
	bufDesc := s.AddSourceSegment(srcDesc)
	return registry.Global.RequestHandle(KindRing, bufDesc), nil
}

// StartStream launches s's driver goroutine.
func StartStream(s *Stream) { s.Start() }

// StopStream moves a RUNNING stream to FINISHING, letting in-flight
// segments drain.
func StopStream(s *Stream) { s.Stop() }

// StopAllStreams signals every stream on the process-wide manager to
// begin its completion process.
func StopAllStreams() { stream.Default.StopAll() }

// JoinStream blocks until s's driver goroutine (and every segment) has
// exited.
func JoinStream(s *Stream) { s.Join() }

// StreamCleanup stops, joins, and destroys every machine referenced by
// every stream on the process-wide manager.
func StreamCleanup() { stream.Default.Cleanup() }
