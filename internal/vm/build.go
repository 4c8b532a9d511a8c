package vm

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/registry"
)

// build allocates a linear tree term and returns a pointer to it. env maps
// free variables to the values they stand for; each entry is consumed by
// its single occurrence. Dup labels are drawn in pre-order.
func (rt *Runtime) build(t ast.Term, env map[string]Ptr) Ptr {
	if env == nil {
		env = map[string]Ptr{}
	}
	switch t := t.(type) {
	case *ast.Var:
		p, ok := env[t.Name]
		if !ok {
			rt.fail(diagnostics.UndefinedReference, "unbound variable %s", t.Name)
		}
		delete(env, t.Name)
		return p

	case *ast.Num:
		return Num(t.Value)

	case *ast.Ref:
		sym, ok := rt.reg.Lookup(t.Name)
		if !ok {
			rt.fail(diagnostics.UndefinedReference, "%s is not declared", t.Name)
		}
		return Num(sym.ID)

	case *ast.Ctr:
		sym := rt.lookup(t.Name, len(t.Args))
		loc := rt.heap.alloc(uint64(len(t.Args)))
		for i, a := range t.Args {
			rt.link(loc+uint64(i), rt.build(a, env))
		}
		return Ctr(uint32(len(t.Args)), sym.ID, loc)

	case *ast.Fun:
		sym := rt.lookup(t.Name, len(t.Args))
		loc := rt.heap.alloc(uint64(len(t.Args)))
		for i, a := range t.Args {
			rt.link(loc+uint64(i), rt.build(a, env))
		}
		return Fun(uint32(len(t.Args)), sym.ID, loc)

	case *ast.Op2:
		loc := rt.heap.alloc(2)
		rt.link(loc, rt.build(t.Left, env))
		rt.link(loc+1, rt.build(t.Right, env))
		return Op2(uint64(t.Op), loc)

	case *ast.App:
		loc := rt.heap.alloc(2)
		rt.link(loc, rt.build(t.Func, env))
		rt.link(loc+1, rt.build(t.Argm, env))
		return App(loc)

	case *ast.Sup:
		loc := rt.heap.alloc(2)
		rt.link(loc, rt.build(t.Left, env))
		rt.link(loc+1, rt.build(t.Right, env))
		return Sup(t.Label, loc)

	case *ast.Lam:
		loc := rt.heap.alloc(2)
		rt.heap.set(loc, Era())
		restore := bind(env, t.Name, Var(loc))
		rt.link(loc+1, rt.build(t.Body, env))
		restore()
		return Lam(loc)

	case *ast.Dup:
		label := rt.fresh()
		loc := rt.heap.alloc(3)
		rt.heap.set(loc, Era())
		rt.heap.set(loc+1, Era())
		rt.link(loc+2, rt.build(t.Expr, env))
		restore0 := bind(env, t.Nam0, Dp0(label, loc))
		restore1 := bind(env, t.Nam1, Dp1(label, loc))
		body := rt.build(t.Body, env)
		_, live0 := env[t.Nam0]
		_, live1 := env[t.Nam1]
		unused0 := t.Nam0 == ast.Erased || live0
		unused1 := t.Nam1 == ast.Erased || live1
		delete(env, t.Nam0)
		delete(env, t.Nam1)
		switch {
		case unused0 && unused1:
			rt.collect(rt.at(loc + 2))
			rt.heap.release(loc, 3)
		case unused0:
			rt.heap.set(loc, Era())
		case unused1:
			rt.heap.set(loc+1, Era())
		}
		restore1()
		restore0()
		return body
	}
	panic("vm: cannot build term " + t.String())
}

func (rt *Runtime) lookup(name string, arity int) *registry.Symbol {
	sym, ok := rt.reg.Lookup(name)
	if !ok {
		rt.fail(diagnostics.UndefinedReference, "%s is not declared", name)
	}
	if sym.Arity() != arity {
		rt.fail(diagnostics.Malformed, "%s takes %d arguments, got %d", name, sym.Arity(), arity)
	}
	return sym
}

// bind adds name to env and returns a func undoing it. Erased binders are
// never added.
func bind(env map[string]Ptr, name string, p Ptr) func() {
	if name == ast.Erased {
		return func() {}
	}
	old, had := env[name]
	env[name] = p
	return func() {
		if had {
			env[name] = old
		} else {
			delete(env, name)
		}
	}
}
