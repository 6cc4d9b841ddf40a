package detect

import "testing"

func TestRingEvictsOldestFirst(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	got := r.Snapshot()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Snapshot[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingNeverExceedsCapacity(t *testing.T) {
	r := NewRing[float64](10)
	for i := 0; i < 100; i++ {
		r.Push(float64(i))
		if r.Len() > 10 {
			t.Fatalf("Len = %d after %d pushes, want <= 10", r.Len(), i+1)
		}
	}
	if !r.Full() {
		t.Error("Full = false after 100 pushes")
	}
}

func TestRingEachVisitsInOrder(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	r.Push("c")

	var seen []string
	r.Each(func(s string) { seen = append(seen, s) })
	if len(seen) != 2 || seen[0] != "b" || seen[1] != "c" {
		t.Errorf("Each visited %v, want [b c]", seen)
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing[[]float32](4)
	r.Push([]float32{1})
	r.Push([]float32{2})
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", r.Len())
	}
	if got := r.Snapshot(); len(got) != 0 {
		t.Errorf("Snapshot = %v after Clear, want empty", got)
	}
}

func TestNewRingPanicsOnInvalidCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewRing(0) did not panic")
		}
	}()
	NewRing[int](0)
}
