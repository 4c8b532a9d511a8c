package ast

import (
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/token"
)

// Node is the base interface for statement nodes.
type Node interface {
	TokenLiteral() string
}

// Statement is one unit of ledger input.
type Statement interface {
	Node
	statementNode()
	GetToken() token.Token
	// Signature returns the attached signature, or nil for unsigned statements.
	Signature() *crypto.Signature
	SetSignature(sig *crypto.Signature)
}

// Program is the root node produced by the parser: a sequence of statements.
type Program struct {
	File       string
	Statements []Statement
}

// Signed carries the optional signature shared by every statement kind.
type Signed struct {
	Sign *crypto.Signature
}

func (s *Signed) Signature() *crypto.Signature      { return s.Sign }
func (s *Signed) SetSignature(sig *crypto.Signature) { s.Sign = sig }

// RegStatement registers a namespace: reg Foo.Bar { <subject> }
type RegStatement struct {
	Token token.Token
	Name  string
	Owner crypto.Subject
	Signed
}

// CtrStatement declares a constructor: ctr {Pair fst snd}
type CtrStatement struct {
	Token  token.Token
	Name   string
	Fields []string
	Signed
}

// Rule is one equation of a function: (Name pat0 pat1) = body
type Rule struct {
	Token    token.Token
	Name     string
	Patterns []Term
	Body     Term
}

// FunStatement declares a function and, with a 'with' block, its state slot.
type FunStatement struct {
	Token token.Token
	Name  string
	Args  []string
	Rules []*Rule
	Init  Term // nil when the function is stateless
	Signed
}

// RunStatement executes an IO action: run { !done #1 }
type RunStatement struct {
	Token token.Token
	Body  Term
	Signed
}

func (s *RegStatement) statementNode()       {}
func (s *RegStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *RegStatement) GetToken() token.Token {
	if s == nil {
		return token.Token{}
	}
	return s.Token
}

func (s *CtrStatement) statementNode()       {}
func (s *CtrStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *CtrStatement) GetToken() token.Token {
	if s == nil {
		return token.Token{}
	}
	return s.Token
}

func (s *FunStatement) statementNode()       {}
func (s *FunStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *FunStatement) GetToken() token.Token {
	if s == nil {
		return token.Token{}
	}
	return s.Token
}

func (s *RunStatement) statementNode()       {}
func (s *RunStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *RunStatement) GetToken() token.Token {
	if s == nil {
		return token.Token{}
	}
	return s.Token
}

// StatementKind names a statement for results and metrics.
func StatementKind(s Statement) string {
	switch s.(type) {
	case *RegStatement:
		return "reg"
	case *CtrStatement:
		return "ctr"
	case *FunStatement:
		return "fun"
	case *RunStatement:
		return "run"
	}
	return "unknown"
}
