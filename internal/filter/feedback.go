package filter

// NewFeedbackController returns a filter that re-drives the rest of the
// chain with its own fixed-size scratch buffer whenever it sees
// StatusContinue, stopping once a downstream call returns anything
// else. Nothing in the built-in machine set emits StatusContinue on
// its own; this filter exists so a user-supplied filter further down
// the chain (e.g. one that needs several internal passes to produce
// one unit of output) has somewhere to report that without blocking
// the caller's buffer semantics.
func NewFeedbackController(name string, scratch []byte) *Filter {
	f := New(name, Bidirectional, feedbackControllerCall)
	f.State = scratch
	return f
}

func feedbackControllerCall(f *Filter, buf []byte, length *int, mode BlockMode, align int) Status {
	scratch := f.State.([]byte)

	status := CallNext(f, buf, length, mode, align)
	for status == StatusContinue {
		n := len(scratch)
		status = CallNextBuf(f, scratch, &n, mode, align)
		*length = n
	}
	return status
}

// FeedbackMetric counts how many StatusContinue iterations the most
// recent call needed, for diagnostics.
type FeedbackMetric struct {
	Iterations uint64
}

// NewFeedbackMetric returns a filter that records how many
// StatusContinue round trips occurred downstream of it on the most
// recent call, without altering control flow.
func NewFeedbackMetric(name string) *Filter {
	f := New(name, Bidirectional, feedbackMetricCall)
	f.State = &FeedbackMetric{}
	return f
}

func feedbackMetricCall(f *Filter, buf []byte, length *int, mode BlockMode, align int) Status {
	m := f.State.(*FeedbackMetric)
	m.Iterations = 0

	status := CallNext(f, buf, length, mode, align)
	for status == StatusContinue {
		m.Iterations++
		status = CallNext(f, buf, length, mode, align)
	}
	return status
}
