package parser

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/token"
)

func (p *Parser) parseStatement() ast.Statement {
	var stmt ast.Statement
	switch p.curToken.Type {
	case token.REG:
		if s := p.parseRegStatement(); s != nil {
			stmt = s
		}
	case token.CTR:
		if s := p.parseCtrStatement(); s != nil {
			stmt = s
		}
	case token.FUN:
		if s := p.parseFunStatement(); s != nil {
			stmt = s
		}
	case token.RUN:
		if s := p.parseRunStatement(); s != nil {
			stmt = s
		}
	case token.ILLEGAL:
		return nil
	default:
		p.errorf(diagnostics.ErrP001, p.curToken, "expected a statement (reg, ctr, fun, run), got %q", p.curToken.Lexeme)
		return nil
	}
	if stmt == nil {
		return nil
	}
	if p.peekTokenIs(token.SIGN) {
		p.nextToken()
		sig, ok := p.parseSignature()
		if !ok {
			return nil
		}
		stmt.SetSignature(sig)
	}
	return stmt
}

// reg Foo.Bar { 000000000000000000000000000000 }
func (p *Parser) parseRegStatement() *ast.RegStatement {
	stmt := &ast.RegStatement{Token: p.curToken}
	name, ok := p.expectName()
	if !ok {
		return nil
	}
	stmt.Name = name
	raw, ok := p.parseHexBlock(crypto.SubjectSize, "subject")
	if !ok {
		return nil
	}
	copy(stmt.Owner[:], raw)
	return stmt
}

// ctr {Pair fst snd}
func (p *Parser) parseCtrStatement() *ast.CtrStatement {
	stmt := &ast.CtrStatement{Token: p.curToken}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	name, ok := p.expectName()
	if !ok {
		return nil
	}
	stmt.Name = name
	for !p.peekTokenIs(token.RBRACE) {
		field, ok := p.expectVar()
		if !ok {
			return nil
		}
		stmt.Fields = append(stmt.Fields, field)
	}
	p.nextToken()
	return stmt
}

// fun (Name a b) { (Name p0 p1) = body ... } with { init }
func (p *Parser) parseFunStatement() *ast.FunStatement {
	stmt := &ast.FunStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	name, ok := p.expectName()
	if !ok {
		return nil
	}
	stmt.Name = name
	for !p.peekTokenIs(token.RPAREN) {
		arg, ok := p.expectVar()
		if !ok {
			return nil
		}
		stmt.Args = append(stmt.Args, arg)
	}
	p.nextToken()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	for p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		rule := p.parseRule()
		if rule == nil {
			return nil
		}
		stmt.Rules = append(stmt.Rules, rule)
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}

	if p.peekTokenIs(token.WITH) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		p.nextToken()
		stmt.Init = p.parseTerm()
		if stmt.Init == nil || !p.expectPeek(token.RBRACE) {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseRule() *ast.Rule {
	rule := &ast.Rule{Token: p.curToken}
	name, ok := p.expectName()
	if !ok {
		return nil
	}
	rule.Name = name
	for !p.peekTokenIs(token.RPAREN) {
		if p.peekTokenIs(token.EOF) {
			p.peekError(token.RPAREN)
			return nil
		}
		p.nextToken()
		pat := p.parsePattern()
		if pat == nil {
			return nil
		}
		rule.Patterns = append(rule.Patterns, pat)
	}
	p.nextToken()
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	rule.Body = p.parseTerm()
	if rule.Body == nil {
		return nil
	}
	return rule
}

// run { !done #1 }
func (p *Parser) parseRunStatement() *ast.RunStatement {
	stmt := &ast.RunStatement{Token: p.curToken}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseTerm()
	if stmt.Body == nil || !p.expectPeek(token.RBRACE) {
		return nil
	}
	return stmt
}

// parseSignature parses `sign { <hex> }` with curToken on `sign`.
func (p *Parser) parseSignature() (*crypto.Signature, bool) {
	raw, ok := p.parseHexBlock(crypto.SignatureSize, "signature")
	if !ok {
		return nil, false
	}
	var sig crypto.Signature
	copy(sig[:], raw)
	return &sig, true
}

func (p *Parser) parseHexBlock(size int, what string) ([]byte, bool) {
	if !p.expectPeek(token.LBRACE) || !p.expectPeek(token.HEX) {
		return nil, false
	}
	raw, _ := p.curToken.Literal.([]byte)
	if len(raw) != size {
		p.errorf(diagnostics.ErrP002, p.curToken, "%s must be %d bytes, got %d", what, size, len(raw))
		return nil, false
	}
	if !p.expectPeek(token.RBRACE) {
		return nil, false
	}
	return raw, true
}

func (p *Parser) expectName() (string, bool) {
	if !p.expectPeek(token.IDENT_UPPER) {
		return "", false
	}
	name := p.curToken.Lexeme
	if err := ast.ValidName(name); err != nil {
		p.errorf(diagnostics.ErrP003, p.curToken, "%s", err)
		return "", false
	}
	return name, true
}

// expectVar accepts a lowercase variable or `~`.
func (p *Parser) expectVar() (string, bool) {
	p.nextToken()
	switch p.curToken.Type {
	case token.TILDE:
		return ast.Erased, true
	case token.IDENT_LOWER:
		if err := ast.ValidVar(p.curToken.Lexeme); err != nil {
			p.errorf(diagnostics.ErrP003, p.curToken, "%s", err)
			return "", false
		}
		return p.curToken.Lexeme, true
	case token.ILLEGAL:
		return "", false
	}
	p.errorf(diagnostics.ErrP001, p.curToken, "expected a variable, got %q", p.curToken.Lexeme)
	return "", false
}
