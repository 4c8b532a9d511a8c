package ledger

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/callstate"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/namespace"
)

// host serves the IO actions of one run statement. State changes are
// staged in the session and only reach the ledger when the statement
// succeeds.
type host struct {
	session *callstate.Session
	names   *namespace.Tree
	signer  crypto.Subject
	height  uint64
}

func (h *host) authorize(fn, action string) error {
	if !h.names.AuthorizeMutation(fn, h.signer) {
		return diagnostics.Errorf(diagnostics.Unauthorized, "!%s on %s requires a signature by %s", action, fn, h.names.ResolveOwner(fn))
	}
	return nil
}

func (h *host) Take(fn string) (ast.Term, error) {
	if err := h.authorize(fn, "take"); err != nil {
		return nil, err
	}
	return h.session.Take(fn)
}

func (h *host) Save(fn string, t ast.Term) error {
	if err := h.authorize(fn, "save"); err != nil {
		return err
	}
	return h.session.Save(fn, t)
}

func (h *host) Load(fn string) (ast.Term, error) {
	return h.session.Load(fn)
}

func (h *host) Tick() uint64 { return h.height }
