package parser

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/token"
)

// parseTerm parses the term starting at curToken and leaves curToken on
// its last token.
func (p *Parser) parseTerm() ast.Term {
	switch p.curToken.Type {
	case token.IDENT_LOWER:
		if err := ast.ValidVar(p.curToken.Lexeme); err != nil {
			p.errorf(diagnostics.ErrP003, p.curToken, "%s", err)
			return nil
		}
		return &ast.Var{Name: p.curToken.Lexeme}
	case token.NUMBER:
		n, ok := p.curToken.Literal.(uint64)
		if !ok {
			p.errorf(diagnostics.ErrP002, p.curToken, "malformed number %q", p.curToken.Lexeme)
			return nil
		}
		return &ast.Num{Value: n}
	case token.NAME_REF:
		name, _ := p.curToken.Literal.(string)
		if err := ast.ValidName(name); err != nil {
			p.errorf(diagnostics.ErrP003, p.curToken, "%s", err)
			return nil
		}
		return &ast.Ref{Name: name}
	case token.IDENT_UPPER:
		// A bare name is a constructor without fields: Inc == {Inc}
		if err := ast.ValidName(p.curToken.Lexeme); err != nil {
			p.errorf(diagnostics.ErrP003, p.curToken, "%s", err)
			return nil
		}
		return &ast.Ctr{Name: p.curToken.Lexeme}
	case token.LBRACE:
		return p.parseConstructor()
	case token.LPAREN:
		return p.parseParenthesized()
	case token.AT:
		return p.parseLambda()
	case token.DUP:
		return p.parseDup()
	case token.ACTION:
		return p.parseAction()
	case token.ILLEGAL:
		return nil
	}
	p.errorf(diagnostics.ErrP001, p.curToken, "expected a term, got %q", p.curToken.Lexeme)
	return nil
}

// {Name a b}
func (p *Parser) parseConstructor() ast.Term {
	name, ok := p.expectName()
	if !ok {
		return nil
	}
	args, ok := p.parseArgs(token.RBRACE)
	if !ok {
		return nil
	}
	return &ast.Ctr{Name: name, Args: args}
}

// (Name a b), (+ a b) or (!f a b)
func (p *Parser) parseParenthesized() ast.Term {
	switch {
	case p.peekTokenIs(token.IDENT_UPPER):
		name, ok := p.expectName()
		if !ok {
			return nil
		}
		args, ok := p.parseArgs(token.RPAREN)
		if !ok {
			return nil
		}
		return &ast.Fun{Name: name, Args: args}

	case token.IsOperator(p.peekToken.Type):
		p.nextToken()
		op, _ := ast.LookupOper(string(p.curToken.Type))
		args, ok := p.parseArgs(token.RPAREN)
		if !ok {
			return nil
		}
		if len(args) != 2 {
			p.errorf(diagnostics.ErrP001, p.curToken, "operator %s takes 2 operands, got %d", op, len(args))
			return nil
		}
		return &ast.Op2{Op: op, Left: args[0], Right: args[1]}

	case p.peekTokenIs(token.BANG):
		p.nextToken()
		p.nextToken()
		fn := p.parseTerm()
		if fn == nil {
			return nil
		}
		args, ok := p.parseArgs(token.RPAREN)
		if !ok {
			return nil
		}
		if len(args) == 0 {
			p.errorf(diagnostics.ErrP001, p.curToken, "application needs at least one argument")
			return nil
		}
		for _, a := range args {
			fn = &ast.App{Func: fn, Argm: a}
		}
		return fn
	}
	p.errorf(diagnostics.ErrP001, p.peekToken, "expected a function name, operator or '!', got %q", p.peekToken.Lexeme)
	return nil
}

// parseArgs parses terms up to and including the closing token.
func (p *Parser) parseArgs(closing token.TokenType) ([]ast.Term, bool) {
	var args []ast.Term
	for !p.peekTokenIs(closing) {
		if p.peekTokenIs(token.EOF) {
			p.peekError(closing)
			return nil, false
		}
		p.nextToken()
		arg := p.parseTerm()
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)
	}
	p.nextToken()
	return args, true
}

// @x body
func (p *Parser) parseLambda() ast.Term {
	name, ok := p.expectVar()
	if !ok {
		return nil
	}
	p.nextToken()
	body := p.parseTerm()
	if body == nil {
		return nil
	}
	return &ast.Lam{Name: name, Body: body}
}

// dup a b = expr; body
func (p *Parser) parseDup() ast.Term {
	nam0, ok := p.expectVar()
	if !ok {
		return nil
	}
	nam1, ok := p.expectVar()
	if !ok {
		return nil
	}
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	expr := p.parseTerm()
	if expr == nil || !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	p.nextToken()
	body := p.parseTerm()
	if body == nil {
		return nil
	}
	return &ast.Dup{Nam0: nam0, Nam1: nam1, Expr: expr, Body: body}
}

// parsePattern accepts variables, numbers and constructors of patterns.
func (p *Parser) parsePattern() ast.Term {
	switch p.curToken.Type {
	case token.TILDE:
		return &ast.Var{Name: ast.Erased}
	case token.IDENT_LOWER, token.NUMBER, token.IDENT_UPPER:
		return p.parseTerm()
	case token.LBRACE:
		name, ok := p.expectName()
		if !ok {
			return nil
		}
		var fields []ast.Term
		for !p.peekTokenIs(token.RBRACE) {
			if p.peekTokenIs(token.EOF) {
				p.peekError(token.RBRACE)
				return nil
			}
			p.nextToken()
			f := p.parsePattern()
			if f == nil {
				return nil
			}
			fields = append(fields, f)
		}
		p.nextToken()
		return &ast.Ctr{Name: name, Args: fields}
	case token.ILLEGAL:
		return nil
	}
	p.errorf(diagnostics.ErrP001, p.curToken, "expected a pattern, got %q", p.curToken.Lexeme)
	return nil
}
