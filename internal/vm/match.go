package vm

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/registry"
)

type callResult int

const (
	callDone      callResult = iota // stuck, or rewritten to a head normal form
	callRewritten                   // a rule fired; the result needs reducing
	callRetry                       // the arguments changed shape; match again
)

type matchResult int

const (
	matchOK matchResult = iota
	matchFail
	matchSup    // the examined location holds a superposition
	matchLifted // a nested superposition was lifted one level up
)

// call rewrites a function call whose strict arguments are in head normal
// form. Rules are tried in declaration order.
func (rt *Runtime) call(host uint64, term Ptr) callResult {
	fn := rt.symbol(term.Ext).Func
	for i, strict := range fn.Strict {
		if strict && rt.child(term, uint64(i)).Tag == SUP {
			// (F &L{a b} x) => dup x0 x1 = x; &L{(F a x0) (F b x1)}
			rt.split(host, term, uint64(i))
			return callDone
		}
	}
	for _, rule := range fn.Rules {
		switch rt.match(term, rule) {
		case matchOK:
			rt.apply(host, term, rule)
			return callRewritten
		case matchLifted, matchSup:
			return callRetry
		}
	}
	return callDone
}

func (rt *Runtime) match(term Ptr, rule *registry.Rule) matchResult {
	for i, p := range rule.Patterns {
		if r := rt.matchAt(p, term.Val+uint64(i), false); r != matchOK {
			return r
		}
	}
	return matchOK
}

// matchAt checks one pattern against the value at loc. Nested locations are
// reduced on demand; top-level arguments were reduced before matching.
func (rt *Runtime) matchAt(p ast.Term, loc uint64, nested bool) matchResult {
	if _, ok := p.(*ast.Var); ok {
		return matchOK
	}
	v := rt.at(loc)
	if nested {
		v = rt.reduce(loc)
	}
	if v.Tag == SUP {
		return matchSup
	}
	switch p := p.(type) {
	case *ast.Num:
		if v.Tag == NUM && v.Val == p.Value {
			return matchOK
		}
	case *ast.Ctr:
		if v.Tag != CTR || v.Ext != rt.id(p.Name) {
			return matchFail
		}
		for j, f := range p.Args {
			switch r := rt.matchAt(f, v.Val+uint64(j), true); r {
			case matchOK:
				continue
			case matchSup:
				// {C &L{a b} y} => dup y0 y1 = y; &L{{C a y0} {C b y1}}
				rt.split(loc, v, uint64(j))
				return matchLifted
			default:
				return r
			}
		}
		return matchOK
	}
	return matchFail
}

// split pushes the superposition in field n of the CTR or FUN node term
// out of it, leaving a superposition of two copies at host. The other
// fields are shared through dups carrying the superposition's label.
func (rt *Runtime) split(host uint64, term Ptr, n uint64) {
	rt.cost()
	arity := term.size()
	sup := rt.child(term, n)
	node0 := term.Val
	node1 := rt.heap.alloc(arity)
	for i := uint64(0); i < arity; i++ {
		if i == n {
			rt.link(node0+i, rt.child(sup, 0))
			rt.link(node1+i, rt.child(sup, 1))
			continue
		}
		d := rt.heap.alloc(3)
		rt.link(d+2, rt.at(node0+i))
		rt.link(node0+i, Dp0(sup.Ext, d))
		rt.link(node1+i, Dp1(sup.Ext, d))
	}
	rt.link(sup.Val, term.withNode(node0))
	rt.link(sup.Val+1, term.withNode(node1))
	rt.link(host, Sup(sup.Ext, sup.Val))
}

// apply fires rule on the call at host: pattern variables take the matched
// values, matched nodes are released and the body replaces the call.
func (rt *Runtime) apply(host uint64, term Ptr, rule *registry.Rule) {
	rt.cost()
	vals := make([]Ptr, 0, len(rule.Vars))
	for i, p := range rule.Patterns {
		vals = rt.bindPattern(p, term.Val+uint64(i), vals)
	}
	rt.heap.release(term.Val, uint64(term.Ari))

	uses := rt.varUses(rule)
	env := make(map[string]Ptr, len(vals))
	for k, name := range rule.Vars {
		if name == ast.Erased || uses[k] == 0 {
			rt.collect(vals[k])
			continue
		}
		env[name] = vals[k]
	}
	rt.link(host, rt.build(rule.Body, env))
}

func (rt *Runtime) bindPattern(p ast.Term, loc uint64, vals []Ptr) []Ptr {
	switch p := p.(type) {
	case *ast.Var:
		vals = append(vals, rt.at(loc))
	case *ast.Ctr:
		v := rt.at(loc)
		for j, f := range p.Args {
			vals = rt.bindPattern(f, v.Val+uint64(j), vals)
		}
		rt.heap.release(v.Val, uint64(v.Ari))
	}
	return vals
}

func (rt *Runtime) varUses(rule *registry.Rule) []int {
	if uses, ok := rt.uses[rule]; ok {
		return uses
	}
	uses := make([]int, len(rule.Vars))
	for k, name := range rule.Vars {
		if name != ast.Erased {
			uses[k] = ast.CountUses(name, rule.Body)
		}
	}
	rt.uses[rule] = uses
	return uses
}

func (rt *Runtime) id(name string) uint64 {
	sym, ok := rt.reg.Lookup(name)
	if !ok {
		panic("vm: pattern names undeclared constructor " + name)
	}
	return sym.ID
}
