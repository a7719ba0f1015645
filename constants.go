package streamrig

import (
	"github.com/streamrig/streamrig/internal/constants"
)

// Re-exported tunable defaults for callers building machines, segments,
// and streams without reaching into internal packages.
const (
	DefaultBlockBytes    = constants.DefaultBlockBytes
	DefaultBlockAlign    = constants.DefaultBlockAlign
	DefaultReallocStep   = constants.DefaultReallocStep
	DefaultAlignment     = constants.DefaultAlignment
	DefaultRingMinBytes  = constants.DefaultRingMinBytes
	DefaultFBBBlockBytes = constants.DefaultFBBBlockBytes
	DefaultFBBNumBlocks  = constants.DefaultFBBNumBlocks

	DefaultSegmentBufLen = constants.DefaultSegmentBufLen

	MaxSnapshots      = constants.MaxSnapshots
	AvgSnapshotWindow = constants.AvgSnapshotWindow
)

var (
	// SegmentIdleSleep is how long a pump/source loop sleeps after an
	// iteration that moved zero bytes.
	SegmentIdleSleep = constants.SegmentIdleSleep
	// FinishingGrace is how long a stream's FINISHING state waits for
	// segments to drain before forcing DONE.
	FinishingGrace = constants.FinishingGrace
	// DefaultUpdatePeriod and DefaultPrintPeriod are the suggested
	// periods for StartMetricsUpdater/StartMetricsPrinter.
	DefaultUpdatePeriod = constants.DefaultUpdatePeriod
	DefaultPrintPeriod  = constants.DefaultPrintPeriod
)
