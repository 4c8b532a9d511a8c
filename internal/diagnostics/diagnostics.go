package diagnostics

import (
	"fmt"
	"github.com/funvibe/funledger/internal/token"
)

type ErrorCode string

const (
	// Lexer
	ErrL001 ErrorCode = "L001" // illegal character or malformed literal

	// Parser
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // malformed literal (number, subject, signature)
	ErrP003 ErrorCode = "P003" // invalid name or variable
	ErrP004 ErrorCode = "P004" // unknown IO action
	ErrP005 ErrorCode = "P005" // too many call arguments
)

// DiagnosticError is a positioned error produced while reading statement text.
type DiagnosticError struct {
	Code    ErrorCode
	Token   token.Token
	Message string
	File    string
}

func NewError(code ErrorCode, tok token.Token, message string) *DiagnosticError {
	return &DiagnosticError{Code: code, Token: tok, Message: message}
}

func (e *DiagnosticError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: [%s] %s", e.File, e.Token.Line, e.Token.Column, e.Code, e.Message)
	}
	return fmt.Sprintf("%d:%d: [%s] %s", e.Token.Line, e.Token.Column, e.Code, e.Message)
}
