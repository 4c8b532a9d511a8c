package registry

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
)

// DeclareFunction validates and adds a function. The function is visible to
// its own rules, so recursion needs no forward declaration.
func (r *Registry) DeclareFunction(name string, args []string, rules []*ast.Rule, init ast.Term) (*Registry, error) {
	if r.byName.Contains(name) {
		return nil, diagnostics.Errorf(diagnostics.AlreadyDeclared, "%s is already declared", name)
	}
	if err := ast.ValidName(name); err != nil {
		return nil, diagnostics.Errorf(diagnostics.Malformed, "%s", err)
	}
	for _, a := range args {
		if err := ast.ValidVar(a); err != nil {
			return nil, diagnostics.Errorf(diagnostics.Malformed, "%s: %s", name, err)
		}
	}

	fn := &Function{}
	sym := &Symbol{Name: name, Kind: KindFunction, Fields: append([]string(nil), args...), Func: fn}
	next := r.add(sym)

	compiled := make([]*Rule, 0, len(rules))
	for i, rule := range rules {
		c, err := next.compileRule(sym, rule)
		if err != nil {
			return nil, diagnostics.Wrapf(err, "%s rule %d", name, i)
		}
		compiled = append(compiled, c)
	}
	if init != nil {
		if err := next.Check(init); err != nil {
			return nil, diagnostics.Wrapf(err, "%s initial state", name)
		}
	}
	*fn = *NewFunction(len(args), compiled, init)
	return next, nil
}

// NewFunction assembles a function from compiled rules. A parameter is
// strict when some rule matches it against anything but a variable.
func NewFunction(arity int, rules []*Rule, init ast.Term) *Function {
	fn := &Function{Rules: rules, Strict: make([]bool, arity), Init: init}
	for _, rule := range rules {
		for j, p := range rule.Patterns {
			if _, isVar := p.(*ast.Var); !isVar && j < arity {
				fn.Strict[j] = true
			}
		}
	}
	return fn
}

// NewRule pairs patterns with an already linear body.
func NewRule(patterns []ast.Term, body ast.Term) *Rule {
	return &Rule{Patterns: patterns, Vars: ast.PatternVars(patterns), Body: body}
}

func (r *Registry) compileRule(sym *Symbol, rule *ast.Rule) (*Rule, error) {
	if rule.Name != sym.Name {
		return nil, diagnostics.Errorf(diagnostics.Malformed, "rule head %s does not match", rule.Name)
	}
	if len(rule.Patterns) != sym.Arity() {
		return nil, diagnostics.Errorf(diagnostics.Malformed, "expected %d patterns, got %d", sym.Arity(), len(rule.Patterns))
	}
	for _, p := range rule.Patterns {
		if err := r.checkPattern(p); err != nil {
			return nil, err
		}
	}
	vars := ast.PatternVars(rule.Patterns)
	seen := map[string]bool{}
	bound := make([]string, 0, len(vars))
	for _, v := range vars {
		if v == ast.Erased {
			continue
		}
		if seen[v] {
			return nil, diagnostics.Errorf(diagnostics.Malformed, "variable %s bound twice", v)
		}
		seen[v] = true
		bound = append(bound, v)
	}
	if err := r.Check(rule.Body, bound...); err != nil {
		return nil, err
	}
	return NewRule(rule.Patterns, ast.Linearize(rule.Body, bound)), nil
}

func (r *Registry) checkPattern(p ast.Term) error {
	switch p := p.(type) {
	case *ast.Var:
		if err := ast.ValidVar(p.Name); err != nil {
			return diagnostics.Errorf(diagnostics.Malformed, "%s", err)
		}
		return nil
	case *ast.Num:
		return nil
	case *ast.Ctr:
		if err := r.checkHead(p.Name, KindConstructor, len(p.Args)); err != nil {
			return err
		}
		for _, a := range p.Args {
			if err := r.checkPattern(a); err != nil {
				return err
			}
		}
		return nil
	}
	return diagnostics.Errorf(diagnostics.Malformed, "%s is not a valid pattern", p)
}

// Check verifies that t only refers to declared names with matching arity
// and to variables in bound or bound inside t.
func (r *Registry) Check(t ast.Term, bound ...string) error {
	if free := ast.FreeVars(t, bound...); len(free) > 0 {
		return diagnostics.Errorf(diagnostics.UndefinedReference, "unbound variable %s", free[0])
	}
	var err error
	ast.Walk(t, func(t ast.Term) {
		if err != nil {
			return
		}
		switch t := t.(type) {
		case *ast.Ctr:
			err = r.checkHead(t.Name, KindConstructor, len(t.Args))
		case *ast.Fun:
			err = r.checkHead(t.Name, KindFunction, len(t.Args))
		case *ast.Ref:
			if sym, ok := r.Lookup(t.Name); !ok {
				err = diagnostics.Errorf(diagnostics.UndefinedReference, "%s is not declared", t.Name)
			} else if sym.Kind != KindFunction {
				err = diagnostics.Errorf(diagnostics.Malformed, "'%s' is not a function", t.Name)
			}
		case *ast.Sup:
			err = diagnostics.Errorf(diagnostics.Malformed, "superposition literal")
		case *ast.Var, *ast.Lam, *ast.Dup:
			for _, name := range binders(t) {
				if name != ast.Erased {
					if verr := ast.ValidVar(name); verr != nil {
						err = diagnostics.Errorf(diagnostics.Malformed, "%s", verr)
					}
				}
			}
		}
	})
	return err
}

func binders(t ast.Term) []string {
	switch t := t.(type) {
	case *ast.Var:
		return []string{t.Name}
	case *ast.Lam:
		return []string{t.Name}
	case *ast.Dup:
		return []string{t.Nam0, t.Nam1}
	}
	return nil
}

func (r *Registry) checkHead(name string, kind Kind, arity int) error {
	sym, ok := r.Lookup(name)
	if !ok {
		return diagnostics.Errorf(diagnostics.UndefinedReference, "%s is not declared", name)
	}
	if sym.Kind != kind {
		return diagnostics.Errorf(diagnostics.Malformed, "%s is a %s, not a %s", name, sym.Kind, kind)
	}
	if sym.Arity() != arity {
		return diagnostics.Errorf(diagnostics.Malformed, "%s takes %d arguments, got %d", name, sym.Arity(), arity)
	}
	return nil
}
