package bytecount

import (
	"testing"

	"github.com/streamrig/streamrig/internal/filter"
)

func passthrough() *filter.Filter {
	return filter.New("sink", filter.WriteDirection, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		return filter.StatusSuccess
	})
}

func TestLimitFilterTruncatesAtBudgetOnWrite(t *testing.T) {
	lim := LimitFilter("limit", 10)
	lim.Direction = filter.WriteDirection
	lim.Next = passthrough()

	buf := make([]byte, 16)
	length := 16
	status := filter.Invoke(lim, buf, &length, filter.Block, 1)

	if length != 10 {
		t.Fatalf("length = %d, want 10", length)
	}
	if status != filter.StatusComplete {
		t.Fatalf("status = %v, want complete", status)
	}
}

func TestLimitFilterPassesUnderBudget(t *testing.T) {
	lim := LimitFilter("limit", 100)
	lim.Direction = filter.WriteDirection
	lim.Next = passthrough()

	buf := make([]byte, 16)
	length := 16
	status := filter.Invoke(lim, buf, &length, filter.Block, 1)

	if length != 16 || status != filter.StatusSuccess {
		t.Fatalf("length=%d status=%v, want 16/success", length, status)
	}
}

func TestLimitFilterAccumulatesAcrossCalls(t *testing.T) {
	lim := LimitFilter("limit", 20)
	lim.Direction = filter.WriteDirection
	lim.Next = passthrough()

	buf := make([]byte, 16)
	length := 16
	filter.Invoke(lim, buf, &length, filter.Block, 1)

	length = 16
	status := filter.Invoke(lim, buf, &length, filter.Block, 1)
	if length != 4 {
		t.Fatalf("second call length = %d, want 4", length)
	}
	if status != filter.StatusComplete {
		t.Fatalf("second call status = %v, want complete", status)
	}
}

func TestSampleFilterFiresOnceEveryPeriod(t *testing.T) {
	var samples []uint64
	sf := SampleFilter("sample", 10, func(total uint64) { samples = append(samples, total) })
	sf.Direction = filter.WriteDirection
	sf.Next = passthrough()

	buf := make([]byte, 6)
	for i := 0; i < 3; i++ {
		length := 6
		filter.Invoke(sf, buf, &length, filter.Block, 1)
	}

	if len(samples) != 1 {
		t.Fatalf("expected exactly one sample fired across 18 bytes at period 10, got %d (%v)", len(samples), samples)
	}
	if samples[0] != 12 {
		t.Fatalf("sample total = %d, want 12", samples[0])
	}
}
