package parser

import (
	"fmt"
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/pipeline"
	"github.com/funvibe/funledger/internal/token"
)

// Parser turns a token stream into statements. It keeps going after an
// error by skipping to the next statement keyword, so one pass reports
// every malformed statement in a file.
type Parser struct {
	stream pipeline.TokenStream
	ctx    *pipeline.PipelineContext

	curToken  token.Token
	peekToken token.Token
}

func New(stream pipeline.TokenStream, ctx *pipeline.PipelineContext) *Parser {
	p := &Parser{stream: stream, ctx: ctx}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.stream.Next()
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

// expectPeek advances only when the next token has type t.
func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.TokenType) {
	if p.peekTokenIs(token.ILLEGAL) {
		// already reported by the lexer
		return
	}
	p.errorf(diagnostics.ErrP001, p.peekToken, "expected %s, got %s %q", t, p.peekToken.Type, p.peekToken.Lexeme)
}

func (p *Parser) errorf(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	p.ctx.Errors = append(p.ctx.Errors, diagnostics.NewError(code, tok, fmt.Sprintf(format, args...)))
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{File: p.ctx.FilePath}
	for !p.curTokenIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt == nil {
			p.synchronize()
			continue
		}
		program.Statements = append(program.Statements, stmt)
		p.nextToken()
	}
	return program
}

// synchronize skips to the next token that can start a statement.
func (p *Parser) synchronize() {
	p.nextToken()
	for !p.curTokenIs(token.EOF) && !isStatementStart(p.curToken.Type) {
		p.nextToken()
	}
}

func isStatementStart(t token.TokenType) bool {
	switch t {
	case token.REG, token.CTR, token.FUN, token.RUN:
		return true
	}
	return false
}

// ParseTerm parses a single standalone term, as stored in snapshots and
// printed by the CLI.
func ParseTerm(ctx *pipeline.PipelineContext) ast.Term {
	p := New(ctx.TokenStream, ctx)
	t := p.parseTerm()
	if t != nil && !p.peekTokenIs(token.EOF) {
		p.errorf(diagnostics.ErrP001, p.peekToken, "unexpected %q after term", p.peekToken.Lexeme)
		return nil
	}
	return t
}
