package storage

import (
	"errors"
	"testing"

	"dotclock/internal/clock"
)

func TestInMemoryStore_MergeIntoEmpty(t *testing.T) {
	source := newTestStore("node1")
	target := newTestStore("node2")

	source.Put("key1", []byte("value1"), clock.New(), false)

	if err := target.Merge("key1", source.Get("key1")); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	v := target.Get("key1")
	if v == nil || len(v.Siblings) != 1 {
		t.Fatalf("Expected single merged sibling, got %+v", v)
	}
	if v.Siblings[0].Dot != clock.NewDot("node1", 1) {
		t.Errorf("Expected dot node1:1, got %s", v.Siblings[0].Dot)
	}
}

func TestInMemoryStore_MergeNewerOverwrites(t *testing.T) {
	node1 := newTestStore("node1")
	node2 := newTestStore("node2")

	node1.Put("key1", []byte("old"), clock.New(), false)
	if err := node2.Merge("key1", node1.Get("key1")); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// node2 overwrites having read node1's write
	node2.Put("key1", []byte("new"), node2.Get("key1").Context, false)

	if err := node1.Merge("key1", node2.Get("key1")); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	v := node1.Get("key1")
	if v.HasConflict() {
		t.Fatalf("Expected overwrite, got siblings %+v", v.Siblings)
	}
	if string(v.Siblings[0].Value) != "new" {
		t.Errorf("Expected 'new', got '%s'", v.Siblings[0].Value)
	}
}

func TestInMemoryStore_MergeConcurrentKeepsBoth(t *testing.T) {
	node1 := newTestStore("node1")
	node2 := newTestStore("node2")

	node1.Put("key1", []byte("from-1"), clock.New(), false)
	node2.Put("key1", []byte("from-2"), clock.New(), false)

	if err := node1.Merge("key1", node2.Get("key1")); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	v := node1.Get("key1")
	if len(v.Siblings) != 2 {
		t.Fatalf("Expected 2 siblings, got %+v", v.Siblings)
	}
	want := clock.MergeAll(
		vector(t, map[string]int64{"node1": 1}),
		vector(t, map[string]int64{"node2": 1}),
	)
	if !v.Context.Equal(want) {
		t.Errorf("Expected context %s, got %s", want, v.Context)
	}
}

func TestInMemoryStore_MergeIdempotent(t *testing.T) {
	node1 := newTestStore("node1")
	node2 := newTestStore("node2")

	node1.Put("key1", []byte("a"), clock.New(), false)
	node2.Put("key1", []byte("b"), clock.New(), false)

	remote := node2.Get("key1")
	for i := 0; i < 3; i++ {
		if err := node1.Merge("key1", remote); err != nil {
			t.Fatalf("Merge %d failed: %v", i, err)
		}
	}

	if v := node1.Get("key1"); len(v.Siblings) != 2 {
		t.Errorf("Expected 2 siblings after repeated merges, got %d", len(v.Siblings))
	}
}

func TestInMemoryStore_MergeConverges(t *testing.T) {
	node1 := newTestStore("node1")
	node2 := newTestStore("node2")

	node1.Put("key1", []byte("a"), clock.New(), false)
	node2.Put("key1", []byte("b"), clock.New(), false)
	node2.Delete("key1", node2.Get("key1").Context)

	s1, s2 := node1.Get("key1"), node2.Get("key1")
	if err := node1.Merge("key1", s2); err != nil {
		t.Fatal(err)
	}
	if err := node2.Merge("key1", s1); err != nil {
		t.Fatal(err)
	}

	v1, v2 := node1.Get("key1"), node2.Get("key1")
	if !v1.Context.Equal(v2.Context) {
		t.Errorf("Contexts diverged: %s vs %s", v1.Context, v2.Context)
	}
	if len(v1.Siblings) != len(v2.Siblings) {
		t.Fatalf("Sibling counts diverged: %d vs %d", len(v1.Siblings), len(v2.Siblings))
	}
	for i := range v1.Siblings {
		if v1.Siblings[i].Dot != v2.Siblings[i].Dot {
			t.Errorf("Sibling %d diverged: %s vs %s", i, v1.Siblings[i].Dot, v2.Siblings[i].Dot)
		}
	}
}

func TestInMemoryStore_MergeRejectsInvalidState(t *testing.T) {
	store := newTestStore("node1")

	if err := store.Merge("key1", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState for nil remote, got %v", err)
	}

	uncovered := &Versioned{
		Siblings: []Sibling{{Dot: clock.NewDot("node2", 3), Value: []byte("x")}},
		Context:  vector(t, map[string]int64{"node2": 1}),
	}
	if err := store.Merge("key1", uncovered); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState for uncovered dot, got %v", err)
	}
	if store.Get("key1") != nil {
		t.Error("Rejected merge must not store anything")
	}
}
