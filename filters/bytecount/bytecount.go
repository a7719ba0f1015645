// Package bytecount implements two filters built on the same running
// counter: a hard limiter that completes a direction once a byte
// budget is exhausted, and a sampler that calls back every N bytes.
// Grounded on bingewatch's filter/filters.c (byte_count_limiter,
// byte_counter).
package bytecount

import (
	"sync"

	"github.com/streamrig/streamrig/internal/filter"
)

type counter struct {
	mu     sync.Mutex
	total  uint64
	limit  uint64
	period uint64
}

// LimitFilter returns a filter that passes bytes through unchanged
// until the running total reaches limit, at which point it truncates
// the current call to the remaining budget and reports StatusComplete.
// Mirrors byte_count_limiter: on the read side the next filter runs
// first and the result is truncated on the way back; on the write side
// the call is truncated before being forwarded.
func LimitFilter(name string, limit uint64) *filter.Filter {
	c := &counter{limit: limit}
	return filter.New(name, filter.Bidirectional, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		if !f.Enabled {
			return filter.CallNext(f, buf, length, mode, align)
		}

		status := filter.StatusError
		if f.Direction == filter.ReadDirection {
			status = filter.CallNext(f, buf, length, mode, align)
			if status != filter.StatusSuccess {
				return status
			}
		}

		c.mu.Lock()
		n := uint64(*length)
		remaining := c.limit - c.total
		if n > remaining {
			n = remaining
		}
		c.total += n
		done := c.total >= c.limit
		c.mu.Unlock()
		*length = int(n)

		if f.Direction == filter.WriteDirection {
			status = filter.CallNext(f, buf, length, mode, align)
		}

		if done && status == filter.StatusSuccess {
			return filter.StatusComplete
		}
		return status
	})
}

// SampleFilter returns a pass-through filter that calls onSample with
// the running total every time it crosses a multiple of bytesPerSample.
// Mirrors byte_counter's periodic printf, generalized to a callback.
func SampleFilter(name string, bytesPerSample uint64, onSample func(total uint64)) *filter.Filter {
	c := &counter{limit: bytesPerSample, period: bytesPerSample}
	return filter.New(name, filter.Bidirectional, func(f *filter.Filter, buf []byte, length *int, mode filter.BlockMode, align int) filter.Status {
		status := filter.CallNext(f, buf, length, mode, align)
		if !f.Enabled {
			return status
		}

		c.mu.Lock()
		c.total += uint64(*length)
		fire := c.total >= c.limit
		if fire {
			c.limit += c.period
		}
		total := c.total
		c.mu.Unlock()

		if fire && onSample != nil {
			onSample(total)
		}
		return status
	})
}
