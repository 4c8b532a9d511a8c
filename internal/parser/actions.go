package parser

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/token"
)

// parseAction desugars an IO action into the built-in IO constructors.
// Continuations become lambdas over the bound variable:
//
//	!take x rest        => {IO.TAKE @x rest}
//	!save t rest        => {IO.SAVE t @~ rest}
//	!call x 'F' [a b] r => {IO.CALL 'F' {T2 a b} @x r}
func (p *Parser) parseAction() ast.Term {
	action := p.curToken
	word, _ := action.Literal.(string)
	switch word {
	case "done", "fail":
		p.nextToken()
		t := p.parseTerm()
		if t == nil {
			return nil
		}
		name := config.IODone
		if word == "fail" {
			name = config.IOFail
		}
		return &ast.Ctr{Name: name, Args: []ast.Term{t}}

	case "take", "load", "tick":
		x, ok := p.expectVar()
		if !ok {
			return nil
		}
		rest := p.parseRest()
		if rest == nil {
			return nil
		}
		name := map[string]string{"take": config.IOTake, "load": config.IOLoad, "tick": config.IOTick}[word]
		return &ast.Ctr{Name: name, Args: []ast.Term{&ast.Lam{Name: x, Body: rest}}}

	case "save":
		p.nextToken()
		t := p.parseTerm()
		if t == nil {
			return nil
		}
		rest := p.parseRest()
		if rest == nil {
			return nil
		}
		return &ast.Ctr{Name: config.IOSave, Args: []ast.Term{t, &ast.Lam{Name: ast.Erased, Body: rest}}}

	case "call":
		return p.parseCall()
	}
	p.errorf(diagnostics.ErrP004, action, "unknown action %q", action.Lexeme)
	return nil
}

func (p *Parser) parseCall() ast.Term {
	x, ok := p.expectVar()
	if !ok {
		return nil
	}
	p.nextToken()
	fn := p.parseTerm()
	if fn == nil || !p.expectPeek(token.LBRACKET) {
		return nil
	}
	open := p.curToken
	args, ok := p.parseArgs(token.RBRACKET)
	if !ok {
		return nil
	}
	if len(args) > config.MaxTupleArity {
		p.errorf(diagnostics.ErrP005, open, "call passes %d arguments, at most %d allowed", len(args), config.MaxTupleArity)
		return nil
	}
	rest := p.parseRest()
	if rest == nil {
		return nil
	}
	tuple := &ast.Ctr{Name: config.TupleName(len(args)), Args: args}
	return &ast.Ctr{Name: config.IOCall, Args: []ast.Term{fn, tuple, &ast.Lam{Name: x, Body: rest}}}
}

// parseRest parses the continuation of an action. A ';' before it is optional.
func (p *Parser) parseRest() ast.Term {
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	p.nextToken()
	return p.parseTerm()
}
