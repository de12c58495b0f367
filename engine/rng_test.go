package engine

import "testing"

func TestRNG_SameSeedSameSequence(t *testing.T) {
	a, b := NewRNG(42), NewRNG(42)
	for i := range 100 {
		if x, y := a.Intn(10), b.Intn(10); x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
	}
}

func TestRNG_Range(t *testing.T) {
	tests := []struct {
		n     int
		draws int
	}{
		{1, 10},
		{3, 1000},
		{7, 500},
	}
	for _, tt := range tests {
		r := NewRNG(7)
		for range tt.draws {
			if v := r.Intn(tt.n); v < 0 || v >= tt.n {
				t.Fatalf("Intn(%d) = %d", tt.n, v)
			}
		}
		if r.Position() < int64(tt.draws) {
			t.Errorf("Intn(%d): Position() = %d after %d draws", tt.n, r.Position(), tt.draws)
		}
	}
}

func TestRestoreRNG(t *testing.T) {
	orig := NewRNG(99)
	for range 5 {
		orig.Intn(100)
	}

	restored := RestoreRNG(99, orig.Position())
	if restored.Seed() != 99 || restored.Position() != orig.Position() {
		t.Errorf("restored at (%d, %d), want (99, %d)", restored.Seed(), restored.Position(), orig.Position())
	}
	for i := range 20 {
		if x, y := orig.Intn(100), restored.Intn(100); x != y {
			t.Fatalf("draw %d after restore: %d != %d", i, x, y)
		}
	}
}
