// Package vm reduces terms as an interaction graph. Every variable is used
// at most once; sharing happens only through dup nodes, which copy their
// expression lazily and one layer at a time. Each rewrite costs one unit of
// mana and a statement that runs out of mana or heap is aborted.
package vm

import (
	"fmt"
	"math"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/registry"
)

// Options bounds one statement's execution.
type Options struct {
	Mana      uint64 // rewrite budget
	HeapLimit uint64 // maximum cells
	Label     uint64 // first dup label to hand out
}

// DefaultOptions returns the protocol limits.
func DefaultOptions() Options {
	return Options{Mana: config.DefaultStatementMana, HeapLimit: config.DefaultHeapLimit}
}

// Runtime executes a single statement. It is not safe for concurrent use
// and is discarded after the statement.
type Runtime struct {
	heap  *Heap
	reg   *registry.Registry
	host  Host
	mana  uint64
	used  uint64
	label uint64
	depth int

	uses map[*registry.Rule][]int
	seen map[uint64]bool

	io ioIDs
}

type ioIDs struct {
	done, take, save, load, call, tick, fail uint64
}

func New(reg *registry.Registry, host Host, opts Options) *Runtime {
	rt := &Runtime{
		heap:  NewHeap(opts.HeapLimit),
		reg:   reg,
		host:  host,
		mana:  opts.Mana,
		label: opts.Label,
		uses:  map[*registry.Rule][]int{},
	}
	rt.heap.onFree = func(loc uint64) {
		if rt.seen != nil {
			delete(rt.seen, loc)
		}
	}
	id := func(name string) uint64 {
		if sym, ok := reg.Lookup(name); ok {
			return sym.ID
		}
		return math.MaxUint64
	}
	rt.io = ioIDs{
		done: id(config.IODone), take: id(config.IOTake), save: id(config.IOSave),
		load: id(config.IOLoad), call: id(config.IOCall), tick: id(config.IOTick),
		fail: id(config.IOFail),
	}
	return rt
}

// Used is the mana spent so far.
func (rt *Runtime) Used() uint64 { return rt.used }

// Label is the next dup label that would be handed out.
func (rt *Runtime) Label() uint64 { return rt.label }

// Heap exposes the arena, mainly for tests.
func (rt *Runtime) Heap() *Heap { return rt.heap }

func (rt *Runtime) cost() {
	rt.used++
	if rt.used > rt.mana {
		panic(diagnostics.Errorf(diagnostics.ResourceExceeded, "mana limit of %d rewrites exceeded", rt.mana))
	}
}

func (rt *Runtime) fresh() uint64 {
	l := rt.label
	rt.label++
	return l
}

func (rt *Runtime) fail(kind diagnostics.Kind, format string, args ...interface{}) {
	panic(diagnostics.Errorf(kind, format, args...))
}

func (rt *Runtime) enter() {
	rt.depth++
	if rt.depth > config.MaxCallDepth {
		rt.fail(diagnostics.ResourceExceeded, "call depth limit of %d exceeded", config.MaxCallDepth)
	}
}

func (rt *Runtime) leave() { rt.depth-- }

// guard converts an execution failure raised inside the runtime into an
// error. Anything else is an invariant violation and keeps panicking.
func guard(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(*diagnostics.Error); ok {
			*err = e
			return
		}
		panic(r)
	}
}

func (rt *Runtime) at(loc uint64) Ptr { return rt.heap.get(loc) }

// child returns the i-th cell of the node p points to.
func (rt *Runtime) child(p Ptr, i uint64) Ptr { return rt.heap.get(p.Val + i) }

// link stores p at loc and, when p is a variable or dup output, points its
// binder back at loc.
func (rt *Runtime) link(loc uint64, p Ptr) Ptr {
	rt.heap.set(loc, p)
	switch p.Tag {
	case VAR, DP0:
		rt.heap.set(p.Val, Arg(loc))
	case DP1:
		rt.heap.set(p.Val+1, Arg(loc))
	}
	return p
}

// subst moves val into the occurrence named by binder, or discards val when
// the binder is erased.
func (rt *Runtime) subst(binder, val Ptr) {
	if binder.Tag == ARG {
		rt.link(binder.Val, val)
		return
	}
	rt.collect(val)
}

// collect releases everything reachable only through term.
func (rt *Runtime) collect(term Ptr) {
	stack := []Ptr{term}
	for len(stack) > 0 {
		term := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch term.Tag {
		case DP0, DP1:
			dup := term.Val
			slot := uint64(0)
			if term.Tag == DP1 {
				slot = 1
			}
			rt.heap.set(dup+slot, Era())
			if rt.at(dup).Tag == ERA && rt.at(dup+1).Tag == ERA {
				stack = append(stack, rt.at(dup+2))
				rt.heap.release(dup, 3)
			}
		case VAR:
			rt.heap.set(term.Val, Era())
		case LAM:
			if v := rt.child(term, 0); v.Tag == ARG {
				rt.heap.set(v.Val, Era())
			}
			stack = append(stack, rt.child(term, 1))
			rt.heap.release(term.Val, 2)
		case APP, SUP, OP2:
			stack = append(stack, rt.child(term, 0), rt.child(term, 1))
			rt.heap.release(term.Val, 2)
		case CTR, FUN:
			for i := uint64(0); i < uint64(term.Ari); i++ {
				stack = append(stack, rt.child(term, i))
			}
			rt.heap.release(term.Val, uint64(term.Ari))
		}
	}
}

// symbol resolves the id carried by a CTR or FUN pointer.
func (rt *Runtime) symbol(id uint64) *registry.Symbol {
	sym, ok := rt.reg.Symbol(id)
	if !ok {
		panic(fmt.Sprintf("vm: unknown symbol id %d", id))
	}
	return sym
}

// Normal reduces a closed term to normal form and reads it back.
func (rt *Runtime) Normal(t ast.Term) (out ast.Term, err error) {
	defer guard(&err)
	root := rt.heap.alloc(1)
	rt.link(root, rt.build(ast.Linearize(t, nil), nil))
	rt.normalize(root)
	return rt.readback(root), nil
}
