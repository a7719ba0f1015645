// Package ratelimit implements a time-boxed pass-through filter: bytes
// flow unchanged until a fixed duration since the filter's first call
// elapses, at which point the direction completes. Grounded on
// bingewatch's filter/filters.c (time_limiter) — a duration gate, not
// a throughput throttle, matching what the original actually
// implements despite the generic name.
package ratelimit

import (
	"sync"
	"time"

	"github.com/streamrig/streamrig/internal/filter"
)

type state int

const (
	notStarted state = iota
	running
	done
)

type timeLimit struct {
	mu    sync.Mutex
	st    state
	timer *time.Timer
}

// TimeLimitFilter returns a filter that starts a timer on its first
// call and reports StatusComplete once d has elapsed, mirroring
// time_limiter's NOINIT/RUNNING/DONE states (a goroutine-backed
// time.Timer replaces the original's dedicated pthread + usleep loop).
func TimeLimitFilter(name string, d time.Duration) *filter.Filter {
	tl := &timeLimit{}
	return filter.New(name, filter.Bidirectional, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		tl.mu.Lock()
		switch tl.st {
		case notStarted:
			tl.st = running
			tl.timer = time.AfterFunc(d, func() {
				tl.mu.Lock()
				tl.st = done
				tl.mu.Unlock()
			})
		case done:
			tl.mu.Unlock()
			return filter.StatusComplete
		}
		tl.mu.Unlock()

		return filter.CallNext(f, buf, length, mode, align)
	})
}
