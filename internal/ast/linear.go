package ast

import "strconv"

// Linearize rewrites t so that every variable bound by params, a lambda or a
// dup is used at most once. Extra uses are served by a chain of dups placed
// at the start of the binder's scope:
//
//	@x (Pair x x)  =>  @x dup x.0 x.1 = x; (Pair x.0 x.1)
//
// The generated names contain a dot, which the parser rejects in variables,
// so they cannot capture user names.
func Linearize(t Term, params []string) Term {
	l := &linearizer{taken: map[string]bool{}}
	collectNames(t, l.taken)
	return l.bind(params, l.term(t))
}

type linearizer struct {
	taken map[string]bool
	next  int
}

func (l *linearizer) fresh(base string) string {
	for {
		name := base + "." + strconv.Itoa(l.next)
		l.next++
		if !l.taken[name] {
			l.taken[name] = true
			return name
		}
	}
}

func (l *linearizer) term(t Term) Term {
	switch t := t.(type) {
	case *Lam:
		return &Lam{Name: t.Name, Body: l.bind([]string{t.Name}, l.term(t.Body))}
	case *Dup:
		body := l.bind([]string{t.Nam0, t.Nam1}, l.term(t.Body))
		return &Dup{Nam0: t.Nam0, Nam1: t.Nam1, Expr: l.term(t.Expr), Body: body}
	case *App:
		return &App{Func: l.term(t.Func), Argm: l.term(t.Argm)}
	case *Ctr:
		return &Ctr{Name: t.Name, Args: l.terms(t.Args)}
	case *Fun:
		return &Fun{Name: t.Name, Args: l.terms(t.Args)}
	case *Op2:
		return &Op2{Op: t.Op, Left: l.term(t.Left), Right: l.term(t.Right)}
	case *Sup:
		return &Sup{Label: t.Label, Left: l.term(t.Left), Right: l.term(t.Right)}
	}
	return t
}

func (l *linearizer) terms(ts []Term) []Term {
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = l.term(t)
	}
	return out
}

// bind introduces dup chains for each name in names used more than once in body.
func (l *linearizer) bind(names []string, body Term) Term {
	for _, name := range names {
		if name == Erased {
			continue
		}
		n := CountUses(name, body)
		if n < 2 {
			continue
		}
		copies := make([]string, n)
		for i := range copies {
			copies[i] = l.fresh(name)
		}
		i := 0
		body = rename(name, body, func() string {
			s := copies[i]
			i++
			return s
		})
		// dup c0 r1 = x; dup c1 r2 = r1; ... dup c(n-2) c(n-1) = r(n-2); body
		type frame struct{ a, b, src string }
		frames := make([]frame, 0, n-1)
		src := name
		for k := 0; k < n-1; k++ {
			right := copies[n-1]
			if k < n-2 {
				right = l.fresh(name)
			}
			frames = append(frames, frame{a: copies[k], b: right, src: src})
			src = right
		}
		for k := len(frames) - 1; k >= 0; k-- {
			f := frames[k]
			body = &Dup{Nam0: f.a, Nam1: f.b, Expr: &Var{Name: f.src}, Body: body}
		}
	}
	return body
}

// CountUses counts the free occurrences of name in t.
func CountUses(name string, t Term) int {
	switch t := t.(type) {
	case *Var:
		if t.Name == name {
			return 1
		}
	case *Lam:
		if t.Name == name {
			return 0
		}
		return CountUses(name, t.Body)
	case *Dup:
		n := CountUses(name, t.Expr)
		if t.Nam0 != name && t.Nam1 != name {
			n += CountUses(name, t.Body)
		}
		return n
	case *App:
		return CountUses(name, t.Func) + CountUses(name, t.Argm)
	case *Ctr:
		return countAll(name, t.Args)
	case *Fun:
		return countAll(name, t.Args)
	case *Op2:
		return CountUses(name, t.Left) + CountUses(name, t.Right)
	case *Sup:
		return CountUses(name, t.Left) + CountUses(name, t.Right)
	}
	return 0
}

func countAll(name string, ts []Term) int {
	n := 0
	for _, t := range ts {
		n += CountUses(name, t)
	}
	return n
}

// rename replaces each free occurrence of name, left to right, with next().
func rename(name string, t Term, next func() string) Term {
	switch t := t.(type) {
	case *Var:
		if t.Name == name {
			return &Var{Name: next()}
		}
		return t
	case *Lam:
		if t.Name == name {
			return t
		}
		return &Lam{Name: t.Name, Body: rename(name, t.Body, next)}
	case *Dup:
		expr := rename(name, t.Expr, next)
		body := t.Body
		if t.Nam0 != name && t.Nam1 != name {
			body = rename(name, t.Body, next)
		}
		return &Dup{Nam0: t.Nam0, Nam1: t.Nam1, Expr: expr, Body: body}
	case *App:
		f := rename(name, t.Func, next)
		return &App{Func: f, Argm: rename(name, t.Argm, next)}
	case *Ctr:
		return &Ctr{Name: t.Name, Args: renameAll(name, t.Args, next)}
	case *Fun:
		return &Fun{Name: t.Name, Args: renameAll(name, t.Args, next)}
	case *Op2:
		left := rename(name, t.Left, next)
		return &Op2{Op: t.Op, Left: left, Right: rename(name, t.Right, next)}
	case *Sup:
		left := rename(name, t.Left, next)
		return &Sup{Label: t.Label, Left: left, Right: rename(name, t.Right, next)}
	}
	return t
}

func renameAll(name string, ts []Term, next func() string) []Term {
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = rename(name, t, next)
	}
	return out
}

func collectNames(t Term, into map[string]bool) {
	Walk(t, func(t Term) {
		switch t := t.(type) {
		case *Var:
			into[t.Name] = true
		case *Lam:
			into[t.Name] = true
		case *Dup:
			into[t.Nam0] = true
			into[t.Nam1] = true
		}
	})
}

// Walk calls fn for t and every subterm of t in pre-order.
func Walk(t Term, fn func(Term)) {
	fn(t)
	switch t := t.(type) {
	case *Lam:
		Walk(t.Body, fn)
	case *Dup:
		Walk(t.Expr, fn)
		Walk(t.Body, fn)
	case *App:
		Walk(t.Func, fn)
		Walk(t.Argm, fn)
	case *Ctr:
		for _, a := range t.Args {
			Walk(a, fn)
		}
	case *Fun:
		for _, a := range t.Args {
			Walk(a, fn)
		}
	case *Op2:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case *Sup:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	}
}

// FreeVars returns the variables of t not bound inside t, in order of first
// occurrence, ignoring those listed in bound.
func FreeVars(t Term, bound ...string) []string {
	scope := map[string]int{}
	for _, b := range bound {
		scope[b]++
	}
	seen := map[string]bool{}
	var out []string
	var visit func(Term)
	with := func(names []string, fn func()) {
		for _, n := range names {
			scope[n]++
		}
		fn()
		for _, n := range names {
			scope[n]--
		}
	}
	visit = func(t Term) {
		switch t := t.(type) {
		case *Var:
			if scope[t.Name] == 0 && !seen[t.Name] {
				seen[t.Name] = true
				out = append(out, t.Name)
			}
		case *Lam:
			with([]string{t.Name}, func() { visit(t.Body) })
		case *Dup:
			visit(t.Expr)
			with([]string{t.Nam0, t.Nam1}, func() { visit(t.Body) })
		case *App:
			visit(t.Func)
			visit(t.Argm)
		case *Ctr:
			for _, a := range t.Args {
				visit(a)
			}
		case *Fun:
			for _, a := range t.Args {
				visit(a)
			}
		case *Op2:
			visit(t.Left)
			visit(t.Right)
		case *Sup:
			visit(t.Left)
			visit(t.Right)
		}
	}
	visit(t)
	return out
}

// PatternVars lists the variables bound by patterns, left to right and depth
// first. Erased binders are included so positions stay aligned.
func PatternVars(patterns []Term) []string {
	var out []string
	for _, p := range patterns {
		Walk(p, func(t Term) {
			if v, ok := t.(*Var); ok {
				out = append(out, v.Name)
			}
		})
	}
	return out
}
