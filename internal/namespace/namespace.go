// Package namespace tracks who owns each dotted name. Ownership is set once
// by registration and inherited by every longer name below it.
package namespace

import (
	"sort"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/pmap"
)

// Tree is an immutable set of registered names with their owners.
type Tree struct {
	owners *pmap.Map[string, crypto.Subject]
	root   crypto.Subject
}

// New returns an empty tree whose top level is owned by root.
func New(root crypto.Subject) *Tree {
	return &Tree{owners: pmap.Strings[crypto.Subject](), root: root}
}

// Root is the authority over names without a registered prefix.
func (t *Tree) Root() crypto.Subject { return t.root }

func (t *Tree) Len() int { return t.owners.Len() }

// Owner returns the owner registered for exactly name.
func (t *Tree) Owner(name string) (crypto.Subject, bool) {
	return t.owners.Get(name)
}

// ResolveOwner returns the owner of the longest registered prefix of name,
// or the root authority when no prefix is registered.
func (t *Tree) ResolveOwner(name string) crypto.Subject {
	for prefix := name; prefix != ""; prefix = ast.Parent(prefix) {
		if owner, ok := t.owners.Get(prefix); ok {
			return owner
		}
	}
	return t.root
}

// AuthorizeMutation reports whether signer may declare or change name.
func (t *Tree) AuthorizeMutation(name string, signer crypto.Subject) bool {
	return t.ResolveOwner(name) == signer
}

// Register assigns owner to name on behalf of signer. signer must own the
// parent name, or be the root authority for a top-level name.
func (t *Tree) Register(name string, owner, signer crypto.Subject) (*Tree, error) {
	if err := ast.ValidName(name); err != nil {
		return nil, diagnostics.Errorf(diagnostics.Malformed, "%s", err)
	}
	if _, ok := t.owners.Get(name); ok {
		return nil, diagnostics.Errorf(diagnostics.AlreadyRegistered, "%s is already registered", name)
	}
	required := t.root
	if parent := ast.Parent(name); parent != "" {
		required = t.ResolveOwner(parent)
	}
	if signer != required {
		return nil, diagnostics.Errorf(diagnostics.Unauthorized, "%s may only be registered by %s", name, required)
	}
	return &Tree{owners: t.owners.Put(name, owner), root: t.root}, nil
}

// Restore inserts a registration without authorization, as read back from a
// snapshot.
func (t *Tree) Restore(name string, owner crypto.Subject) *Tree {
	return &Tree{owners: t.owners.Put(name, owner), root: t.root}
}

// Names returns every registered name in lexical order.
func (t *Tree) Names() []string {
	names := t.owners.Keys()
	sort.Strings(names)
	return names
}
