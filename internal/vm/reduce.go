package vm

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
)

type frame struct {
	loc  uint64
	init bool
}

// reduce rewrites the term at root to weak head normal form and returns it.
//
// Each location is visited twice: once on the way down (init), where the
// subterms whose shape decides the next rewrite are scheduled first, and
// once on the way up, where the rewrite itself happens.
//
// Walking down is free, but in an acyclic graph the stack never holds more
// frames than there are cells. A longer stack means a dup's expression leads
// back to one of its own outputs, which no rewrite can resolve.
func (rt *Runtime) reduce(root uint64) Ptr {
	rt.enter()
	defer rt.leave()

	var stack []frame
	init := true
	host := root
	for {
		term := rt.at(host)
		if init {
			if uint64(len(stack)) > rt.heap.Len() {
				rt.fail(diagnostics.ResourceExceeded, "term reduces through itself")
			}
			switch term.Tag {
			case APP:
				stack = append(stack, frame{host, false})
				host = term.Val
				continue
			case DP0, DP1:
				stack = append(stack, frame{host, false})
				host = term.Val + 2
				continue
			case OP2:
				stack = append(stack, frame{host, false}, frame{term.Val + 1, true})
				host = term.Val
				continue
			case FUN:
				strict := rt.symbol(term.Ext).Func.Strict
				first := -1
				for i := len(strict) - 1; i >= 0; i-- {
					if !strict[i] {
						continue
					}
					if first == -1 {
						stack = append(stack, frame{host, false})
					} else {
						stack = append(stack, frame{term.Val + uint64(first), true})
					}
					first = i
				}
				if first >= 0 {
					host = term.Val + uint64(first)
					continue
				}
			}
		}

		init = false
		switch term.Tag {
		case APP:
			if rt.app(host, term) {
				init = true
				continue
			}
		case DP0, DP1:
			if rt.dup(host, term) {
				init = true
				continue
			}
		case OP2:
			rt.op2(host, term)
		case FUN:
			switch rt.call(host, term) {
			case callRewritten:
				init = true
				continue
			case callRetry:
				continue
			}
		}

		if len(stack) == 0 {
			break
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		host, init = top.loc, top.init
	}
	return rt.at(root)
}

// app rewrites an application whose function is in head normal form. It
// reports whether the result needs further reduction.
func (rt *Runtime) app(host uint64, term Ptr) bool {
	fn := rt.child(term, 0)
	switch fn.Tag {
	case LAM:
		// (!(@x body) a) => body[x := a]
		rt.cost()
		rt.subst(rt.child(fn, 0), rt.child(term, 1))
		rt.link(host, rt.child(fn, 1))
		rt.heap.release(term.Val, 2)
		rt.heap.release(fn.Val, 2)
		return true

	case SUP:
		// (!&L{f g} a) => dup a0 a1 = a; &L{(!f a0) (!g a1)}
		rt.cost()
		app0 := term.Val
		app1 := fn.Val
		dup := rt.heap.alloc(3)
		sup := rt.heap.alloc(2)
		rt.link(dup+2, rt.child(term, 1))
		rt.link(app0+1, Dp0(fn.Ext, dup))
		rt.link(app0, rt.child(fn, 0))
		rt.link(app1, rt.child(fn, 1))
		rt.link(app1+1, Dp1(fn.Ext, dup))
		rt.link(sup, App(app0))
		rt.link(sup+1, App(app1))
		rt.link(host, Sup(fn.Ext, sup))
	}
	return false
}

// dup rewrites a dup output whose expression is in head normal form. It
// reports whether the result needs further reduction.
func (rt *Runtime) dup(host uint64, term Ptr) bool {
	dup := term.Val
	label := term.Ext
	expr := rt.at(dup + 2)

	switch expr.Tag {
	case LAM:
		// dup a b = @x f  =>  a <- @x0 f0; b <- @x1 f1; x <- &L{x0 x1}; dup f0 f1 = f
		rt.cost()
		sup := expr.Val
		lam0 := rt.heap.alloc(2)
		lam1 := rt.heap.alloc(2)
		rt.link(dup+2, rt.child(expr, 1))
		rt.link(sup+1, Var(lam1))
		binder := rt.at(sup)
		rt.link(sup, Var(lam0))
		rt.subst(binder, Sup(label, sup))
		out0 := rt.at(dup)
		rt.link(lam0+1, Dp0(label, dup))
		rt.subst(out0, Lam(lam0))
		out1 := rt.at(dup + 1)
		rt.link(lam1+1, Dp1(label, dup))
		rt.subst(out1, Lam(lam1))
		if term.Tag == DP0 {
			rt.link(host, Lam(lam0))
		} else {
			rt.link(host, Lam(lam1))
		}
		return true

	case SUP:
		if expr.Ext == label {
			// dup a b = &L{x y}  =>  a <- x; b <- y
			rt.cost()
			rt.subst(rt.at(dup), rt.child(expr, 0))
			rt.subst(rt.at(dup+1), rt.child(expr, 1))
			if term.Tag == DP0 {
				rt.link(host, rt.child(expr, 0))
			} else {
				rt.link(host, rt.child(expr, 1))
			}
			rt.heap.release(dup, 3)
			rt.heap.release(expr.Val, 2)
			return true
		}
		// Different labels commute:
		// dup a b = &M{x y}  =>  a <- &M{a0 a1}; b <- &M{b0 b1}; dup a0 b0 = x; dup a1 b1 = y
		rt.cost()
		sup0 := rt.heap.alloc(2)
		dup0 := dup
		sup1 := expr.Val
		dup1 := rt.heap.alloc(3)
		rt.link(dup0+2, rt.child(expr, 0))
		rt.link(dup1+2, rt.child(expr, 1))
		out0 := rt.at(dup)
		out1 := rt.at(dup + 1)
		rt.link(sup1, Dp1(label, dup0))
		rt.link(sup1+1, Dp1(label, dup1))
		rt.link(sup0, Dp0(label, dup0))
		rt.link(sup0+1, Dp0(label, dup1))
		rt.subst(out0, Sup(expr.Ext, sup0))
		rt.subst(out1, Sup(expr.Ext, sup1))
		if term.Tag == DP0 {
			rt.link(host, Sup(expr.Ext, sup0))
		} else {
			rt.link(host, Sup(expr.Ext, sup1))
		}
		return false

	case NUM, ERA:
		rt.cost()
		rt.subst(rt.at(dup), expr)
		rt.subst(rt.at(dup+1), expr)
		rt.heap.release(dup, 3)
		rt.link(host, expr)
		return false

	case CTR, FUN, APP:
		// A constructor, or a call or application that is stuck, is copied
		// one layer at a time with a dup per field.
		rt.cost()
		n := expr.size()
		if n == 0 {
			rt.subst(rt.at(dup), expr)
			rt.subst(rt.at(dup+1), expr)
			rt.heap.release(dup, 3)
			rt.link(host, expr)
			return false
		}
		out0 := rt.at(dup)
		out1 := rt.at(dup + 1)
		node0 := expr.Val
		node1 := rt.heap.alloc(n)
		for i := uint64(0); i < n-1; i++ {
			d := rt.heap.alloc(3)
			rt.link(d+2, rt.at(node0+i))
			rt.link(node0+i, Dp0(label, d))
			rt.link(node1+i, Dp1(label, d))
		}
		rt.link(dup+2, rt.at(node0+n-1))
		rt.link(node0+n-1, Dp0(label, dup))
		rt.link(node1+n-1, Dp1(label, dup))
		copy0 := expr.withNode(node0)
		copy1 := expr.withNode(node1)
		rt.subst(out0, copy0)
		rt.subst(out1, copy1)
		if term.Tag == DP0 {
			rt.link(host, copy0)
		} else {
			rt.link(host, copy1)
		}
		return false
	}
	return false
}

// op2 applies a numeric operator once both operands are in head normal form.
func (rt *Runtime) op2(host uint64, term Ptr) {
	a := rt.child(term, 0)
	b := rt.child(term, 1)
	switch {
	case a.Tag == NUM && b.Tag == NUM:
		rt.cost()
		rt.heap.release(term.Val, 2)
		rt.link(host, Num(ast.Oper(term.Ext).Apply(a.Val, b.Val)))

	case a.Tag == SUP:
		// (op &L{x y} b) => dup b0 b1 = b; &L{(op x b0) (op y b1)}
		rt.cost()
		op0 := term.Val
		op1 := a.Val
		dup := rt.heap.alloc(3)
		sup := rt.heap.alloc(2)
		rt.link(dup+2, b)
		rt.link(op0+1, Dp0(a.Ext, dup))
		rt.link(op0, rt.child(a, 0))
		rt.link(op1, rt.child(a, 1))
		rt.link(op1+1, Dp1(a.Ext, dup))
		rt.link(sup, Op2(term.Ext, op0))
		rt.link(sup+1, Op2(term.Ext, op1))
		rt.link(host, Sup(a.Ext, sup))

	case b.Tag == SUP:
		rt.cost()
		op0 := term.Val
		op1 := b.Val
		dup := rt.heap.alloc(3)
		sup := rt.heap.alloc(2)
		rt.link(dup+2, a)
		rt.link(op0, Dp0(b.Ext, dup))
		rt.link(op0+1, rt.child(b, 0))
		rt.link(op1+1, rt.child(b, 1))
		rt.link(op1, Dp1(b.Ext, dup))
		rt.link(sup, Op2(term.Ext, op0))
		rt.link(sup+1, Op2(term.Ext, op1))
		rt.link(host, Sup(b.Ext, sup))

	default:
		rt.fail(diagnostics.StuckTerm, "operator %s applied to a non-number", ast.Oper(term.Ext))
	}
}
