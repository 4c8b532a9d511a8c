package callstate

import (
	"testing"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
)

func num(n uint64) ast.Term { return &ast.Num{Value: n} }

func expectKind(t *testing.T, err error, kind diagnostics.Kind) {
	t.Helper()
	if got := diagnostics.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestTakeSave(t *testing.T) {
	store := NewStore().Init("Counter", num(0))
	s := store.Begin()

	v, err := s.Take("Counter")
	if err != nil || v.String() != "#0" {
		t.Fatalf("take: %v %v", v, err)
	}
	if err := s.Save("Counter", num(1)); err != nil {
		t.Fatal(err)
	}
	v, err = s.Take("Counter")
	if err != nil || v.String() != "#1" {
		t.Fatalf("second take should see the saved value: %v %v", v, err)
	}
	if err := s.Save("Counter", num(2)); err != nil {
		t.Fatal(err)
	}

	if old, _ := store.Get("Counter"); old.String() != "#0" {
		t.Errorf("store changed before commit: %s", old)
	}
	next := s.Commit()
	if v, _ := next.Get("Counter"); v.String() != "#2" {
		t.Errorf("expected #2 after commit, got %s", v)
	}
}

func TestExclusivity(t *testing.T) {
	store := NewStore().Init("Counter", num(0))

	s := store.Begin()
	if _, err := s.Take("Counter"); err != nil {
		t.Fatal(err)
	}
	_, err := s.Take("Counter")
	expectKind(t, err, diagnostics.AlreadyTaken)
	_, err = s.Load("Counter")
	expectKind(t, err, diagnostics.AlreadyTaken)

	s = store.Begin()
	expectKind(t, s.Save("Counter", num(9)), diagnostics.NotTaken)

	_, err = s.Take("Missing")
	expectKind(t, err, diagnostics.UndefinedReference)
	_, err = s.Load("Missing")
	expectKind(t, err, diagnostics.UndefinedReference)
}

func TestLoadIsIdempotent(t *testing.T) {
	store := NewStore().Init("Box", &ast.Ctr{Name: "Pair", Args: []ast.Term{num(1), num(2)}})
	s := store.Begin()
	a, err := s.Load("Box")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Load("Box")
	if a.String() != b.String() {
		t.Errorf("loads differ: %s vs %s", a, b)
	}
	if s.Commit() != store {
		t.Error("load-only session produced a new store")
	}
}

func TestUnsavedTakeKeepsValue(t *testing.T) {
	store := NewStore().Init("Counter", num(5))
	s := store.Begin()
	if _, err := s.Take("Counter"); err != nil {
		t.Fatal(err)
	}
	next := s.Commit()
	if v, _ := next.Get("Counter"); v.String() != "#5" {
		t.Errorf("expected #5, got %s", v)
	}
}
