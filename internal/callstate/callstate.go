// Package callstate holds the persistent state slot of every stateful
// function and the take/save/load discipline a run statement follows while
// using it.
package callstate

import (
	"sort"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/pmap"
)

// Store is the committed state of every slot. It is immutable.
type Store struct {
	slots *pmap.Map[string, ast.Term]
}

func NewStore() *Store {
	return &Store{slots: pmap.Strings[ast.Term]()}
}

// Init creates the slot of a newly declared function.
func (s *Store) Init(name string, t ast.Term) *Store {
	return &Store{slots: s.slots.Put(name, t)}
}

// Get returns the committed value of a slot.
func (s *Store) Get(name string) (ast.Term, bool) {
	return s.slots.Get(name)
}

func (s *Store) Len() int { return s.slots.Len() }

// Names returns the slot names in lexical order.
func (s *Store) Names() []string {
	names := s.slots.Keys()
	sort.Strings(names)
	return names
}

// Session stages slot changes made by one statement. Nothing reaches the
// Store until Commit.
type Session struct {
	base   *Store
	staged map[string]ast.Term
	taken  map[string]bool
}

// Begin opens a session over s.
func (s *Store) Begin() *Session {
	return &Session{base: s, staged: map[string]ast.Term{}, taken: map[string]bool{}}
}

func (ss *Session) current(name string) (ast.Term, error) {
	if t, ok := ss.staged[name]; ok {
		return t, nil
	}
	t, ok := ss.base.Get(name)
	if !ok {
		return nil, diagnostics.Errorf(diagnostics.UndefinedReference, "%s has no state", name)
	}
	return t, nil
}

// Take returns the slot value and holds the slot until Save.
func (ss *Session) Take(name string) (ast.Term, error) {
	t, err := ss.current(name)
	if err != nil {
		return nil, err
	}
	if ss.taken[name] {
		return nil, diagnostics.Errorf(diagnostics.AlreadyTaken, "%s is already taken", name)
	}
	ss.taken[name] = true
	return t, nil
}

// Save stores t into a slot previously taken in this session.
func (ss *Session) Save(name string, t ast.Term) error {
	if !ss.taken[name] {
		return diagnostics.Errorf(diagnostics.NotTaken, "%s was not taken", name)
	}
	ss.staged[name] = t
	delete(ss.taken, name)
	return nil
}

// Load reads a slot without taking it. A taken slot cannot be loaded.
func (ss *Session) Load(name string) (ast.Term, error) {
	t, err := ss.current(name)
	if err != nil {
		return nil, err
	}
	if ss.taken[name] {
		return nil, diagnostics.Errorf(diagnostics.AlreadyTaken, "%s is taken", name)
	}
	return t, nil
}

// Taken reports whether name is held by this session.
func (ss *Session) Taken(name string) bool { return ss.taken[name] }

// Commit returns the store with every saved value applied. A slot taken
// and never saved keeps the value it had before the take.
func (ss *Session) Commit() *Store {
	if len(ss.staged) == 0 {
		return ss.base
	}
	names := make([]string, 0, len(ss.staged))
	for name := range ss.staged {
		names = append(names, name)
	}
	sort.Strings(names)
	slots := ss.base.slots
	for _, name := range names {
		slots = slots.Put(name, ss.staged[name])
	}
	return &Store{slots: slots}
}
