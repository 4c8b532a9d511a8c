package vm

import (
	"strconv"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/diagnostics"
)

// normalize reduces every location reachable from root, left to right.
// A location is reduced once; released cells leave the seen set so a
// recycled location is visited again.
func (rt *Runtime) normalize(root uint64) Ptr {
	rt.seen = map[uint64]bool{}
	defer func() { rt.seen = nil }()

	stack := []uint64{root}
	for len(stack) > 0 {
		loc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if rt.seen[loc] {
			continue
		}
		term := rt.reduce(loc)
		rt.seen[loc] = true

		var next []uint64
		switch term.Tag {
		case LAM:
			next = []uint64{term.Val + 1}
		case APP, SUP, OP2:
			next = []uint64{term.Val, term.Val + 1}
		case DP0, DP1:
			next = []uint64{term.Val + 2}
		case CTR, FUN:
			for i := uint64(0); i < uint64(term.Ari); i++ {
				next = append(next, term.Val+i)
			}
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return rt.at(root)
}

// readback converts the graph at root into a tree term. A dup that could
// not be resolved reads back as its expression on both sides. Lambda
// variables are named x0, x1, ... in order of appearance.
func (rt *Runtime) readback(root uint64) ast.Term {
	rb := &reader{rt: rt, names: map[uint64]string{}}
	return rb.read(rt.at(root))
}

type reader struct {
	rt    *Runtime
	names map[uint64]string
	nodes int
}

func (rb *reader) name(lam uint64) string {
	if n, ok := rb.names[lam]; ok {
		return n
	}
	n := "x" + strconv.Itoa(len(rb.names))
	rb.names[lam] = n
	return n
}

func (rb *reader) read(p Ptr) ast.Term {
	rb.nodes++
	if rb.nodes > config.MaxReadbackNodes {
		rb.rt.fail(diagnostics.ResourceExceeded, "result larger than %d nodes", config.MaxReadbackNodes)
	}
	rt := rb.rt
	switch p.Tag {
	case NUM:
		return &ast.Num{Value: p.Val}
	case VAR:
		return &ast.Var{Name: rb.name(p.Val)}
	case LAM:
		name := ast.Erased
		if rt.child(p, 0).Tag != ERA {
			name = rb.name(p.Val)
		}
		return &ast.Lam{Name: name, Body: rb.read(rt.child(p, 1))}
	case APP:
		return &ast.App{Func: rb.read(rt.child(p, 0)), Argm: rb.read(rt.child(p, 1))}
	case SUP:
		return &ast.Sup{Label: p.Ext, Left: rb.read(rt.child(p, 0)), Right: rb.read(rt.child(p, 1))}
	case OP2:
		return &ast.Op2{Op: ast.Oper(p.Ext), Left: rb.read(rt.child(p, 0)), Right: rb.read(rt.child(p, 1))}
	case DP0, DP1:
		return rb.read(rt.at(p.Val + 2))
	case CTR, FUN:
		args := make([]ast.Term, p.Ari)
		for i := range args {
			args[i] = rb.read(rt.child(p, uint64(i)))
		}
		name := rt.symbol(p.Ext).Name
		if p.Tag == CTR {
			return &ast.Ctr{Name: name, Args: args}
		}
		return &ast.Fun{Name: name, Args: args}
	case ERA:
		rt.fail(diagnostics.StuckTerm, "result refers to an erased value")
	}
	panic("vm: cannot read back " + p.String())
}
