// Package ledger applies statements to the global state. A State is an
// immutable value: applying a statement returns a new State and leaves the
// old one untouched, so a rejected statement simply keeps the previous one.
package ledger

import (
	"github.com/funvibe/funledger/internal/callstate"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/namespace"
	"github.com/funvibe/funledger/internal/registry"
)

type State struct {
	Registry *registry.Registry
	Names    *namespace.Tree
	Calls    *callstate.Store
	// Labels is the next dup label. It only grows, so labels are unique
	// across the whole ledger.
	Labels uint64
	// Height is the block being applied, as seen by !tick.
	Height uint64
}

// Options are the per-statement execution limits.
type Options struct {
	Mana      uint64
	HeapLimit uint64
}

// OptionsFrom reads the limits out of a genesis configuration.
func OptionsFrom(g config.Genesis) Options {
	opts := Options{Mana: g.StatementMana, HeapLimit: g.HeapLimit}
	if opts.Mana == 0 {
		opts.Mana = config.DefaultStatementMana
	}
	if opts.HeapLimit == 0 {
		opts.HeapLimit = config.DefaultHeapLimit
	}
	return opts
}

// Genesis returns the empty state with root as the root authority.
func Genesis(root crypto.Subject) *State {
	return &State{
		Registry: registry.Genesis(),
		Names:    namespace.New(root),
		Calls:    callstate.NewStore(),
	}
}

func (s *State) clone() *State {
	c := *s
	return &c
}

// Digest identifies the state. Nodes that applied the same statements
// have the same digest.
func (s *State) Digest() crypto.Hash {
	return crypto.Keccak256(s.Encode())
}
