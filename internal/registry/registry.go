// Package registry stores constructor and function definitions by name and
// by numeric symbol id. A Registry is immutable: declaring returns a new
// registry, so a rejected statement simply drops its copy.
package registry

import (
	"fmt"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/pmap"
)

type Kind uint8

const (
	KindConstructor Kind = iota + 1
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindConstructor:
		return "ctr"
	case KindFunction:
		return "fun"
	}
	return "unknown"
}

// Symbol is a declared name. Ids are assigned sequentially in declaration
// order, built-ins first, and are what graph nodes carry.
type Symbol struct {
	ID     uint64
	Name   string
	Kind   Kind
	Fields []string  // constructor field names, or function parameters
	Func   *Function // nil for constructors
}

func (s *Symbol) Arity() int { return len(s.Fields) }

// Function is a declared rule set.
type Function struct {
	Rules []*Rule
	// Strict marks parameters that some rule matches against a constructor
	// or number. Those arguments are reduced before rule selection.
	Strict []bool
	// Init is the initial call state, nil for a stateless function.
	Init ast.Term
}

func (f *Function) Stateful() bool { return f.Init != nil }

// Rule is one equation. Vars lists the pattern variables in binding order
// and Body is linearized over them.
type Rule struct {
	Patterns []ast.Term
	Vars     []string
	Body     ast.Term
}

type Registry struct {
	byName *pmap.Map[string, *Symbol]
	byID   *pmap.Map[uint64, *Symbol]
	next   uint64
}

// Empty returns a registry without any symbols, not even the built-ins.
func Empty() *Registry {
	return &Registry{byName: pmap.Strings[*Symbol](), byID: pmap.Uints[*Symbol]()}
}

// Genesis returns a registry holding the built-in IO and tuple constructors.
func Genesis() *Registry {
	r := Empty()
	builtins := []struct {
		name   string
		fields []string
	}{
		{config.IODone, []string{"value"}},
		{config.IOTake, []string{"then"}},
		{config.IOSave, []string{"value", "then"}},
		{config.IOLoad, []string{"then"}},
		{config.IOCall, []string{"name", "args", "then"}},
		{config.IOTick, []string{"then"}},
		{config.IOFail, []string{"error"}},
	}
	for _, b := range builtins {
		r = r.add(&Symbol{Name: b.name, Kind: KindConstructor, Fields: b.fields})
	}
	for n := 0; n <= config.MaxTupleArity; n++ {
		fields := make([]string, n)
		for i := range fields {
			fields[i] = fmt.Sprintf("x%d", i)
		}
		r = r.add(&Symbol{Name: config.TupleName(n), Kind: KindConstructor, Fields: fields})
	}
	return r
}

func (r *Registry) add(sym *Symbol) *Registry {
	sym.ID = r.next
	return &Registry{
		byName: r.byName.Put(sym.Name, sym),
		byID:   r.byID.Put(sym.ID, sym),
		next:   r.next + 1,
	}
}

// Restore inserts a symbol with a known id, as read back from a snapshot.
// Symbols must be restored in id order.
func (r *Registry) Restore(sym *Symbol) (*Registry, error) {
	if sym.ID != r.next {
		return nil, fmt.Errorf("restoring %s: expected id %d, got %d", sym.Name, r.next, sym.ID)
	}
	if r.byName.Contains(sym.Name) {
		return nil, fmt.Errorf("restoring %s: duplicate name", sym.Name)
	}
	return &Registry{
		byName: r.byName.Put(sym.Name, sym),
		byID:   r.byID.Put(sym.ID, sym),
		next:   r.next + 1,
	}, nil
}

// Lookup finds a symbol by name.
func (r *Registry) Lookup(name string) (*Symbol, bool) {
	return r.byName.Get(name)
}

// Symbol finds a symbol by id.
func (r *Registry) Symbol(id uint64) (*Symbol, bool) {
	return r.byID.Get(id)
}

// Len is the number of declared symbols, which is also the next id.
func (r *Registry) Len() uint64 { return r.next }

// Each calls fn for every symbol in id order.
func (r *Registry) Each(fn func(*Symbol)) {
	for id := uint64(0); id < r.next; id++ {
		sym, _ := r.byID.Get(id)
		fn(sym)
	}
}

// DeclareConstructor adds a constructor with the given field names.
func (r *Registry) DeclareConstructor(name string, fields []string) (*Registry, error) {
	if r.byName.Contains(name) {
		return nil, diagnostics.Errorf(diagnostics.AlreadyDeclared, "%s is already declared", name)
	}
	if err := ast.ValidName(name); err != nil {
		return nil, diagnostics.Errorf(diagnostics.Malformed, "%s", err)
	}
	seen := map[string]bool{}
	for _, f := range fields {
		if f == ast.Erased {
			continue
		}
		if err := ast.ValidVar(f); err != nil {
			return nil, diagnostics.Errorf(diagnostics.Malformed, "%s: %s", name, err)
		}
		if seen[f] {
			return nil, diagnostics.Errorf(diagnostics.Malformed, "%s: repeated field %s", name, f)
		}
		seen[f] = true
	}
	return r.add(&Symbol{Name: name, Kind: KindConstructor, Fields: append([]string(nil), fields...)}), nil
}
