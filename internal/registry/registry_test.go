package registry

import (
	"testing"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/parser"
)

// declare parses src and applies every ctr and fun statement in order.
func declare(t *testing.T, r *Registry, src string) (*Registry, error) {
	t.Helper()
	program, err := parser.Parse("test.fl", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *ast.CtrStatement:
			r, err = r.DeclareConstructor(s.Name, s.Fields)
		case *ast.FunStatement:
			r, err = r.DeclareFunction(s.Name, s.Args, s.Rules, s.Init)
		}
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func TestGenesisBuiltins(t *testing.T) {
	r := Genesis()
	for _, name := range []string{"IO.DONE", "IO.TAKE", "IO.SAVE", "IO.LOAD", "IO.CALL", "IO.TICK", "IO.FAIL", "T0", "T8"} {
		sym, ok := r.Lookup(name)
		if !ok || sym.Kind != KindConstructor {
			t.Errorf("missing built-in %s", name)
		}
	}
	done, _ := r.Lookup("IO.DONE")
	if done.ID != 0 {
		t.Errorf("IO.DONE should be symbol 0, got %d", done.ID)
	}
	t8, _ := r.Lookup("T8")
	if t8.Arity() != 8 {
		t.Errorf("T8 arity %d", t8.Arity())
	}
}

func TestDeclareFunction(t *testing.T) {
	r, err := declare(t, Genesis(), `
ctr {Leaf value}
ctr {Branch left right}
fun (Sum tree) {
  (Sum {Leaf x}) = x
  (Sum {Branch a b}) = (+ (Sum a) (Sum b))
}
fun (Twice x y) {
  (Twice x ~) = (+ x x)
}
`)
	if err != nil {
		t.Fatal(err)
	}
	sum, ok := r.Lookup("Sum")
	if !ok || sum.Func == nil {
		t.Fatal("Sum not declared as a function")
	}
	if len(sum.Func.Rules) != 2 || !sum.Func.Strict[0] {
		t.Errorf("unexpected Sum definition: %+v", sum.Func)
	}
	if sym, _ := r.Symbol(sum.ID); sym != sum {
		t.Error("lookup by id disagrees with lookup by name")
	}

	twice, _ := r.Lookup("Twice")
	if twice.Func.Strict[0] || twice.Func.Strict[1] {
		t.Error("variable patterns must not be strict")
	}
	body := twice.Func.Rules[0].Body.String()
	if body != "dup x.0 x.1 = x; (+ x.0 x.1)" {
		t.Errorf("body not linearized: %s", body)
	}
	if vars := twice.Func.Rules[0].Vars; len(vars) != 2 || vars[1] != ast.Erased {
		t.Errorf("unexpected vars %v", vars)
	}
}

func TestDeclareErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind diagnostics.Kind
	}{
		{"duplicate ctr", "ctr {A}\nctr {A}", diagnostics.AlreadyDeclared},
		{"ctr shadows fun", "fun (F x) { (F x) = x }\nctr {F}", diagnostics.AlreadyDeclared},
		{"builtin", "ctr {IO.DONE x}", diagnostics.AlreadyDeclared},
		{"undeclared pattern ctor", "fun (F x) { (F {Nope}) = #0 }", diagnostics.UndefinedReference},
		{"undeclared body fun", "fun (F x) { (F x) = (G x) }", diagnostics.UndefinedReference},
		{"unbound var", "fun (F x) { (F x) = y }", diagnostics.UndefinedReference},
		{"wrong head", "fun (F x) { (G x) = x }", diagnostics.Malformed},
		{"wrong pattern count", "fun (F x) { (F x y) = x }", diagnostics.Malformed},
		{"ctor arity", "ctr {P a b}\nfun (F x) { (F {P a}) = a }", diagnostics.Malformed},
		{"repeated var", "ctr {P a b}\nfun (F x) { (F {P a a}) = a }", diagnostics.Malformed},
		{"fun in pattern position", "fun (G x) { (G x) = x }\nfun (F x) { (F {G a}) = a }", diagnostics.Malformed},
		{"ref to ctor", "ctr {A}\nfun (F x) { (F x) = 'A' }", diagnostics.Malformed},
		{"open init", "fun (F x) { (F x) = x } with { y }", diagnostics.UndefinedReference},
		{"repeated field", "ctr {P a a}", diagnostics.Malformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := declare(t, Genesis(), tt.src)
			if got := diagnostics.KindOf(err); got != tt.kind {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestRecursiveFunctionSeesItself(t *testing.T) {
	_, err := declare(t, Genesis(), `
fun (Loop n) {
  (Loop #0) = #0
  (Loop n) = (Loop (- n #1))
}`)
	if err != nil {
		t.Fatal(err)
	}
}

func TestDeclareIsPersistent(t *testing.T) {
	base := Genesis()
	next, err := base.DeclareConstructor("Nil", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := base.Lookup("Nil"); ok {
		t.Error("declaration leaked into the source registry")
	}
	if next.Len() != base.Len()+1 {
		t.Errorf("expected %d symbols, got %d", base.Len()+1, next.Len())
	}
}
