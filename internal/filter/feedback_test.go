package filter

import "testing"

func TestFeedbackControllerRetriesOnContinue(t *testing.T) {
	calls := 0
	downstream := New("downstream", Bidirectional, func(f *Filter, buf []byte, length *int, mode BlockMode, align int) Status {
		calls++
		if calls < 3 {
			return StatusContinue
		}
		*length = len(buf)
		return StatusSuccess
	})

	ctrl := NewFeedbackController("ctrl", make([]byte, 16))
	ctrl.Next = downstream

	buf := make([]byte, 4)
	length := 0
	status := Invoke(ctrl, buf, &length, Block, 1)

	if status != StatusSuccess {
		t.Fatalf("expected eventual success, got %v", status)
	}
	if calls != 3 {
		t.Fatalf("expected 3 downstream calls, got %d", calls)
	}
	if length != 16 {
		t.Fatalf("expected final call to report scratch buffer length 16, got %d", length)
	}
}

func TestFeedbackMetricCountsIterations(t *testing.T) {
	calls := 0
	downstream := New("downstream", Bidirectional, func(f *Filter, buf []byte, length *int, mode BlockMode, align int) Status {
		calls++
		if calls < 4 {
			return StatusContinue
		}
		return StatusSuccess
	})

	metric := NewFeedbackMetric("metric")
	metric.Next = downstream

	length := 0
	status := Invoke(metric, nil, &length, Block, 1)
	if status != StatusSuccess {
		t.Fatalf("expected success, got %v", status)
	}

	m := metric.State.(*FeedbackMetric)
	if m.Iterations != 3 {
		t.Fatalf("expected 3 recorded continue iterations, got %d", m.Iterations)
	}
}

func TestFeedbackControllerPassesThroughNonContinue(t *testing.T) {
	downstream := New("downstream", Bidirectional, func(f *Filter, buf []byte, length *int, mode BlockMode, align int) Status {
		*length = len(buf)
		return StatusComplete
	})

	ctrl := NewFeedbackController("ctrl", make([]byte, 8))
	ctrl.Next = downstream

	buf := make([]byte, 2)
	length := 0
	status := Invoke(ctrl, buf, &length, NoBlock, 1)

	if status != StatusComplete {
		t.Fatalf("expected complete to pass through untouched, got %v", status)
	}
	if length != 2 {
		t.Fatalf("expected original buffer length reported, got %d", length)
	}
}
