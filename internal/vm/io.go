package vm

import (
	"errors"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/registry"
)

// Host provides the effects IO actions ask for. fn names the function whose
// state slot is addressed; the host decides whether the current signer may
// touch it.
type Host interface {
	Take(fn string) (ast.Term, error)
	Save(fn string, t ast.Term) error
	Load(fn string) (ast.Term, error)
	// Tick returns the height of the block being applied.
	Tick() uint64
}

// Run executes an IO program and returns the value it finishes with. The
// program itself has no state slot; !call enters the slot of the callee.
func (rt *Runtime) Run(body ast.Term) (out ast.Term, err error) {
	defer guard(&err)
	root := rt.heap.alloc(1)
	rt.link(root, rt.build(ast.Linearize(body, nil), nil))
	return rt.runIO(root, ""), nil
}

// runIO steps the IO term at loc until it is done. fn is the function
// whose state the actions address, "" for none.
func (rt *Runtime) runIO(loc uint64, fn string) ast.Term {
	rt.enter()
	defer rt.leave()

	for {
		term := rt.reduce(loc)
		if term.Tag != CTR {
			rt.fail(diagnostics.StuckTerm, "expected an IO action, got %s", term.Tag)
		}
		rt.cost()
		switch term.Ext {
		case rt.io.done:
			return rt.result(term.Val)

		case rt.io.fail:
			rt.fail(diagnostics.ActionFailed, "%s", rt.result(term.Val))

		case rt.io.take:
			rt.need(fn, "take")
			v, err := rt.host.Take(fn)
			rt.check(err)
			rt.resume(loc, term, 0, rt.build(ast.Linearize(v, nil), nil))

		case rt.io.load:
			rt.need(fn, "load")
			v, err := rt.host.Load(fn)
			rt.check(err)
			rt.resume(loc, term, 0, rt.build(ast.Linearize(v, nil), nil))

		case rt.io.save:
			rt.need(fn, "save")
			v := rt.result(term.Val)
			rt.check(rt.host.Save(fn, v))
			rt.collect(rt.child(term, 0))
			rt.resume(loc, term, 1, Num(0))

		case rt.io.tick:
			rt.resume(loc, term, 0, Num(rt.host.Tick()))

		case rt.io.call:
			value := rt.callIO(term)
			rt.resume(loc, term, 2, rt.build(ast.Linearize(value, nil), nil))

		default:
			rt.fail(diagnostics.StuckTerm, "%s is not an IO action", rt.symbol(term.Ext).Name)
		}
	}
}

// need fails when an action addresses state outside of any function.
func (rt *Runtime) need(fn, action string) {
	if fn == "" {
		rt.fail(diagnostics.UndefinedReference, "!%s outside of a stateful function", action)
	}
}

func (rt *Runtime) check(err error) {
	if err == nil {
		return
	}
	var e *diagnostics.Error
	if errors.As(err, &e) {
		panic(e)
	}
	panic(diagnostics.Errorf(diagnostics.Malformed, "%s", err))
}

// result normalizes the value at loc and reads it back.
func (rt *Runtime) result(loc uint64) ast.Term {
	rt.normalize(loc)
	return rt.readback(loc)
}

// resume replaces the IO node at loc with its continuation in field k
// applied to val. Fields other than k have been consumed by the caller.
func (rt *Runtime) resume(loc uint64, term Ptr, k uint64, val Ptr) {
	app := rt.heap.alloc(2)
	rt.link(app, rt.child(term, k))
	rt.link(app+1, val)
	rt.heap.release(term.Val, uint64(term.Ari))
	rt.link(loc, App(app))
}

// callIO runs {IO.CALL name args then}: the callee applied to the tuple
// args must reduce to an IO program, which runs against the callee's own
// state. It returns the value the callee finished with.
func (rt *Runtime) callIO(term Ptr) ast.Term {
	name := rt.reduce(term.Val)
	if name.Tag != NUM {
		rt.fail(diagnostics.StuckTerm, "!call target is not a function reference")
	}
	sym, ok := rt.reg.Symbol(name.Val)
	if !ok || sym.Kind != registry.KindFunction {
		rt.fail(diagnostics.UndefinedReference, "!call target #%d is not a function", name.Val)
	}
	args := rt.reduce(term.Val + 1)
	if args.Tag != CTR {
		rt.fail(diagnostics.StuckTerm, "!call arguments are not a tuple")
	}
	if int(args.Ari) != sym.Arity() {
		rt.fail(diagnostics.StuckTerm, "%s takes %d arguments, !call passes %d", sym.Name, sym.Arity(), args.Ari)
	}
	fun := rt.heap.alloc(uint64(args.Ari))
	for i := uint64(0); i < uint64(args.Ari); i++ {
		rt.link(fun+i, rt.child(args, i))
	}
	rt.heap.release(args.Val, uint64(args.Ari))
	root := rt.heap.alloc(1)
	rt.link(root, Fun(args.Ari, sym.ID, fun))
	value := rt.runIO(root, sym.Name)
	rt.collect(rt.at(root))
	rt.heap.release(root, 1)
	return value
}
