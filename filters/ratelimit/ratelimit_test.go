package ratelimit

import (
	"testing"
	"time"

	"github.com/streamrig/streamrig/internal/filter"
)

func countingNext(calls *int) *filter.Filter {
	return filter.New("sink", filter.WriteDirection, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		*calls++
		return filter.StatusSuccess
	})
}

func TestPassesThroughBeforeDeadline(t *testing.T) {
	var calls int
	tl := TimeLimitFilter("limit", time.Hour)
	tl.Next = countingNext(&calls)

	length := 4
	status := filter.Invoke(tl, make([]byte, 4), &length, filter.Block, 1)
	if status != filter.StatusSuccess || calls != 1 {
		t.Fatalf("status=%v calls=%d, want success/1", status, calls)
	}
}

func TestCompletesAfterDeadline(t *testing.T) {
	var calls int
	tl := TimeLimitFilter("limit", 5*time.Millisecond)
	tl.Next = countingNext(&calls)

	length := 4
	filter.Invoke(tl, make([]byte, 4), &length, filter.Block, 1)

	time.Sleep(30 * time.Millisecond)

	length = 4
	status := filter.Invoke(tl, make([]byte, 4), &length, filter.Block, 1)
	if status != filter.StatusComplete {
		t.Fatalf("status = %v, want complete after deadline", status)
	}
	if calls != 1 {
		t.Fatalf("expected next filter not called once completed, got %d calls", calls)
	}
}
