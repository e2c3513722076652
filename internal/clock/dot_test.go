package clock

import (
	"testing"
)

func TestVersionVector_Dot(t *testing.T) {
	vv := New().Increment("A").Increment("B")
	dot := vv.Dot("A")

	if dot.ReplicaID != "A" {
		t.Errorf("Expected replica A, got %s", dot.ReplicaID)
	}
	if dot.Counter != 1 {
		t.Errorf("Expected counter 1, got %d", dot.Counter)
	}

	missing := vv.Dot("Z")
	if missing != NewDot("Z", 0) {
		t.Errorf("Expected Z:0 for unknown replica, got %s", missing)
	}
}

func TestDot_IsSnapshot(t *testing.T) {
	vv := New().Increment("A")
	dot := vv.Dot("A")

	vv = vv.Increment("A").Increment("A")
	if dot.Counter != 1 {
		t.Errorf("Dot should not follow the vector, got %d", dot.Counter)
	}
	if !vv.DescendsDot(dot) {
		t.Error("Later vector should descend an earlier dot")
	}
}

func TestDescendsDot(t *testing.T) {
	v := New().
		Increment("A").
		Increment("A").
		Increment("B")

	dot := NewDot("A", 3)
	if !dot.DescendsVector(v) {
		t.Error("A:3 should descend {A:2, B:1}")
	}
	if v.DescendsDot(dot) {
		t.Error("{A:2, B:1} should not descend A:3")
	}

	dot = NewDot("A", 1)
	if dot.DescendsVector(v) {
		t.Error("A:1 should not descend {A:2, B:1}")
	}
	if !v.DescendsDot(dot) {
		t.Error("{A:2, B:1} should descend A:1")
	}
}

func TestDescendsDot_MissingReplica(t *testing.T) {
	v := New().Increment("A")

	if v.DescendsDot(NewDot("B", 1)) {
		t.Error("Vector without B should not descend B:1")
	}
	if !v.DescendsDot(NewDot("B", 0)) {
		t.Error("Every vector descends the zero sentinel")
	}
	if !NewDot("B", 0).DescendsVector(v) {
		t.Error("B:0 should descend a vector that never saw B")
	}
}

func TestDot_Descends(t *testing.T) {
	tests := []struct {
		name     string
		d1       Dot
		d2       Dot
		expected bool
	}{
		{"same replica, later", NewDot("A", 3), NewDot("A", 2), true},
		{"same replica, equal", NewDot("A", 2), NewDot("A", 2), true},
		{"same replica, earlier", NewDot("A", 1), NewDot("A", 2), false},
		{"different replicas", NewDot("A", 5), NewDot("B", 1), false},
		{"different replicas reversed", NewDot("B", 1), NewDot("A", 5), false},
		{"zero sentinels", NewDot("A", 0), NewDot("A", 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d1.Descends(tt.d2); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDot_String(t *testing.T) {
	if s := NewDot("node1", 7).String(); s != "node1:7" {
		t.Errorf("Expected node1:7, got %s", s)
	}
}

func TestDot_Vector(t *testing.T) {
	d := NewDot("A", 3)
	v := d.Vector()

	if !v.DescendsDot(d) {
		t.Errorf("%s should descend %s", v, d)
	}
	if v.Len() != 1 || v.Get("A") != 3 {
		t.Errorf("Expected {A:3}, got %s", v)
	}
	if v.DescendsDot(NewDot("A", 4)) {
		t.Errorf("%s should not descend A:4", v)
	}

	if got := NewDot("A", 0).Vector(); got.Len() != 0 {
		t.Errorf("Expected empty vector for zero dot, got %s", got)
	}
}
