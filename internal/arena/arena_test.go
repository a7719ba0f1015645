package arena

import "testing"

func TestCloseRunsClosersInLIFOOrder(t *testing.T) {
	a := New()
	var order []int
	a.OnClose(func() { order = append(order, 1) })
	a.OnClose(func() { order = append(order, 2) })
	a.OnClose(func() { order = append(order, 3) })

	a.Close()

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestChildClosesBeforeParentClosers(t *testing.T) {
	parent := New()
	child := parent.NewChild()

	var order []string
	child.OnClose(func() { order = append(order, "child") })
	parent.OnClose(func() { order = append(order, "parent") })

	parent.Close()

	if len(order) != 2 || order[0] != "child" || order[1] != "parent" {
		t.Fatalf("expected child then parent, got %v", order)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a := New()
	calls := 0
	a.OnClose(func() { calls++ })

	a.Close()
	a.Close()
	a.Close()

	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestOnCloseAfterCloseRunsImmediately(t *testing.T) {
	a := New()
	a.Close()

	ran := false
	a.OnClose(func() { ran = true })
	if !ran {
		t.Fatal("expected closer registered post-close to run immediately")
	}
}

func TestNewChildAfterParentClosedIsPreClosed(t *testing.T) {
	parent := New()
	parent.Close()

	child := parent.NewChild()
	if !child.Closed() {
		t.Fatal("expected child of a closed parent to already be closed")
	}

	ran := false
	child.OnClose(func() { ran = true })
	if !ran {
		t.Fatal("expected closer on pre-closed child to run immediately")
	}
}
