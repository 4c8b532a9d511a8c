package pmap

import (
	"fmt"
	"testing"
)

func TestPutGetRemove(t *testing.T) {
	m := Strings[int]()
	for i := 0; i < 1000; i++ {
		m = m.Put(fmt.Sprintf("Key.%d", i), i)
	}
	if m.Len() != 1000 {
		t.Fatalf("expected 1000 entries, got %d", m.Len())
	}
	for i := 0; i < 1000; i++ {
		v, ok := m.Get(fmt.Sprintf("Key.%d", i))
		if !ok || v != i {
			t.Fatalf("Key.%d: got %d, %v", i, v, ok)
		}
	}
	for i := 0; i < 1000; i += 2 {
		m = m.Remove(fmt.Sprintf("Key.%d", i))
	}
	if m.Len() != 500 {
		t.Fatalf("expected 500 entries after removal, got %d", m.Len())
	}
	if m.Contains("Key.0") || !m.Contains("Key.1") {
		t.Error("wrong membership after removal")
	}
}

func TestPersistence(t *testing.T) {
	a := Uints[string]().Put(1, "one").Put(2, "two")
	b := a.Put(1, "uno").Put(3, "three")
	c := b.Remove(2)

	if v, _ := a.Get(1); v != "one" {
		t.Errorf("original map changed: %s", v)
	}
	if a.Contains(3) {
		t.Error("original map sees a later insert")
	}
	if v, _ := b.Get(1); v != "uno" {
		t.Errorf("expected uno, got %s", v)
	}
	if !b.Contains(2) || c.Contains(2) {
		t.Error("remove leaked into the source map")
	}
	if a.Len() != 2 || b.Len() != 3 || c.Len() != 2 {
		t.Errorf("wrong sizes %d %d %d", a.Len(), b.Len(), c.Len())
	}
}

func TestHashCollisions(t *testing.T) {
	// Every key lands on the same hash, exercising the collision bucket.
	m := New[int, int](func(int) uint32 { return 7 })
	for i := 0; i < 10; i++ {
		m = m.Put(i, i*i)
	}
	m = m.Put(3, -1)
	if m.Len() != 10 {
		t.Fatalf("expected 10 entries, got %d", m.Len())
	}
	if v, _ := m.Get(3); v != -1 {
		t.Errorf("update in collision bucket lost: %d", v)
	}
	m = m.Remove(4).Remove(99)
	if m.Len() != 9 || m.Contains(4) {
		t.Error("remove in collision bucket failed")
	}
	if v, ok := m.Get(9); !ok || v != 81 {
		t.Errorf("expected 81, got %d", v)
	}
}

func TestRangeVisitsEverything(t *testing.T) {
	m := Uints[bool]()
	for i := uint64(0); i < 200; i++ {
		m = m.Put(i, true)
	}
	seen := map[uint64]bool{}
	m.Range(func(k uint64, _ bool) bool {
		seen[k] = true
		return true
	})
	if len(seen) != 200 || len(m.Keys()) != 200 {
		t.Errorf("expected 200 keys, saw %d", len(seen))
	}

	n := 0
	m.Range(func(uint64, bool) bool {
		n++
		return n < 5
	})
	if n != 5 {
		t.Errorf("Range did not stop early: %d", n)
	}
}

func TestHashStringIsFNV1a(t *testing.T) {
	tests := []struct {
		input    string
		expected uint32
	}{
		{"", 0x811c9dc5},
		{"a", 0xe40c292c},
		{"foobar", 0xbf9cf968},
	}
	for _, tt := range tests {
		if got := HashString(tt.input); got != tt.expected {
			t.Errorf("HashString(%q) = %#x, want %#x", tt.input, got, tt.expected)
		}
	}
}
