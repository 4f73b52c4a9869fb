package agent

import "testing"

func TestInterruptTrackerKeepsMax(t *testing.T) {
	for _, order := range [][]uint32{
		{1, 5, 3},
		{5, 3, 1},
		{3, 1, 5},
	} {
		var tr InterruptTracker
		for _, id := range order {
			before := tr.Last()
			tr.Observe(id)
			if want := max(before, id); tr.Last() != want {
				t.Fatalf("Observe(%d) after %d: last = %d, want %d", id, before, tr.Last(), want)
			}
		}
		if tr.Last() != 5 {
			t.Fatalf("order %v: last = %d, want 5", order, tr.Last())
		}
	}
}

func TestInterruptTrackerGate(t *testing.T) {
	var tr InterruptTracker
	if !tr.Accept(1) {
		t.Fatal("Accept(1) with no interruptions = false")
	}
	tr.Observe(4)
	for id := uint32(0); id <= 4; id++ {
		if tr.Accept(id) {
			t.Fatalf("Accept(%d) after interruption 4 = true", id)
		}
	}
	if !tr.Accept(5) {
		t.Fatal("Accept(5) = false")
	}
	tr.Reset()
	if tr.Last() != 0 || !tr.Accept(1) {
		t.Fatal("Reset() did not clear the tracker")
	}
}
