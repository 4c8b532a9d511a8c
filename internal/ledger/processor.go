package ledger

import (
	"errors"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/encoding"
	"github.com/funvibe/funledger/internal/vm"
)

type Status uint8

const (
	Committed Status = iota
	Rejected
)

func (s Status) String() string {
	if s == Committed {
		return "committed"
	}
	return "rejected"
}

// Result reports what happened to the statement at Index of a block.
type Result struct {
	Index    int
	Kind     string
	Status   Status
	Err      *diagnostics.Error
	Output   ast.Term // the !done value of a run statement
	ManaUsed uint64
	Subject  crypto.Subject
}

// Prepared is a statement whose signer has been recovered. Preparing does
// not depend on the state, so blocks can be prepared ahead of their turn.
type Prepared struct {
	Stmt    ast.Statement
	Subject crypto.Subject
	Err     error
}

// Prepare recovers the signer of stmt. Unsigned statements are attributed
// to the zero subject.
func Prepare(stmt ast.Statement) Prepared {
	sig := stmt.Signature()
	if sig == nil {
		return Prepared{Stmt: stmt, Subject: crypto.Root}
	}
	subject, err := crypto.Recover(*sig, encoding.SigningHash(stmt))
	if err != nil {
		return Prepared{Stmt: stmt, Err: diagnostics.Errorf(diagnostics.SignatureInvalid, "%s", err)}
	}
	return Prepared{Stmt: stmt, Subject: subject}
}

// PrepareAll prepares every statement of a block.
func PrepareAll(stmts []ast.Statement) []Prepared {
	out := make([]Prepared, len(stmts))
	for i, s := range stmts {
		out[i] = Prepare(s)
	}
	return out
}

// Processor threads the state through consecutive blocks.
type Processor struct {
	state *State
	opts  Options
}

func NewProcessor(state *State, opts Options) *Processor {
	return &Processor{state: state, opts: opts}
}

func (p *Processor) State() *State { return p.state }

// ApplyBlock applies the statements of the block at height in order.
func (p *Processor) ApplyBlock(height uint64, stmts []Prepared) []Result {
	p.state = p.state.clone()
	p.state.Height = height
	results := make([]Result, len(stmts))
	for i, prep := range stmts {
		p.state, results[i] = p.state.Apply(prep, p.opts)
		results[i].Index = i
	}
	return results
}

// Apply runs one statement against s. On success it returns the new state,
// otherwise s itself together with the reason for the rejection.
func (s *State) Apply(prep Prepared, opts Options) (*State, Result) {
	res := Result{Kind: ast.StatementKind(prep.Stmt), Subject: prep.Subject}
	next, used, out, err := s.apply(prep, opts)
	res.ManaUsed = used
	if err != nil {
		var e *diagnostics.Error
		if !errors.As(err, &e) {
			e = diagnostics.Errorf(diagnostics.Malformed, "%s", err)
		}
		res.Status = Rejected
		res.Err = e
		return s, res
	}
	res.Status = Committed
	res.Output = out
	return next, res
}

func (s *State) apply(prep Prepared, opts Options) (next *State, used uint64, out ast.Term, err error) {
	if prep.Err != nil {
		return nil, 0, nil, prep.Err
	}
	signer := prep.Subject
	switch stmt := prep.Stmt.(type) {
	case *ast.RegStatement:
		names, err := s.Names.Register(stmt.Name, stmt.Owner, signer)
		if err != nil {
			return nil, 0, nil, err
		}
		next = s.clone()
		next.Names = names
		return next, 0, nil, nil

	case *ast.CtrStatement:
		if err := s.authorize(stmt.Name, signer); err != nil {
			return nil, 0, nil, err
		}
		reg, err := s.Registry.DeclareConstructor(stmt.Name, stmt.Fields)
		if err != nil {
			return nil, 0, nil, err
		}
		next = s.clone()
		next.Registry = reg
		return next, 0, nil, nil

	case *ast.FunStatement:
		return s.declareFunction(stmt, signer, opts)

	case *ast.RunStatement:
		return s.run(stmt, signer, opts)
	}
	return nil, 0, nil, diagnostics.Errorf(diagnostics.Malformed, "unknown statement %T", prep.Stmt)
}

func (s *State) authorize(name string, signer crypto.Subject) error {
	if !s.Names.AuthorizeMutation(name, signer) {
		return diagnostics.Errorf(diagnostics.Unauthorized, "%s may only be declared by %s", name, s.Names.ResolveOwner(name))
	}
	return nil
}

// declareFunction adds the function and, when it has one, evaluates its
// initial state.
func (s *State) declareFunction(stmt *ast.FunStatement, signer crypto.Subject, opts Options) (*State, uint64, ast.Term, error) {
	if err := s.authorize(stmt.Name, signer); err != nil {
		return nil, 0, nil, err
	}
	reg, err := s.Registry.DeclareFunction(stmt.Name, stmt.Args, stmt.Rules, stmt.Init)
	if err != nil {
		return nil, 0, nil, err
	}
	next := s.clone()
	next.Registry = reg
	if stmt.Init == nil {
		return next, 0, nil, nil
	}
	rt := vm.New(reg, nil, vm.Options{Mana: opts.Mana, HeapLimit: opts.HeapLimit, Label: s.Labels})
	init, err := rt.Normal(stmt.Init)
	if err != nil {
		return nil, rt.Used(), nil, diagnostics.Wrapf(err, "%s initial state", stmt.Name)
	}
	next.Calls = s.Calls.Init(stmt.Name, init)
	next.Labels = rt.Label()
	return next, rt.Used(), nil, nil
}

func (s *State) run(stmt *ast.RunStatement, signer crypto.Subject, opts Options) (*State, uint64, ast.Term, error) {
	if err := s.Registry.Check(stmt.Body); err != nil {
		return nil, 0, nil, err
	}
	h := &host{session: s.Calls.Begin(), names: s.Names, signer: signer, height: s.Height}
	rt := vm.New(s.Registry, h, vm.Options{Mana: opts.Mana, HeapLimit: opts.HeapLimit, Label: s.Labels})
	out, err := rt.Run(stmt.Body)
	if err != nil {
		return nil, rt.Used(), nil, err
	}
	next := s.clone()
	next.Calls = h.session.Commit()
	next.Labels = rt.Label()
	return next, rt.Used(), out, nil
}
