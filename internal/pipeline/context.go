package pipeline

import (
	"fmt"
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/token"
)

// Processor is one stage of the statement reading pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// TokenStream is the lexer output consumed by the parser.
type TokenStream interface {
	Next() token.Token
	Peek(n int) token.Token
}

// PipelineContext carries a source text through lexing and parsing.
type PipelineContext struct {
	SourceCode  string
	FilePath    string
	TokenStream TokenStream
	AstRoot     *ast.Program
	Errors      []*diagnostics.DiagnosticError
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{SourceCode: source}
}

// Err joins the accumulated diagnostics into a single error, or nil.
func (ctx *PipelineContext) Err() error {
	if len(ctx.Errors) == 0 {
		return nil
	}
	return &ErrorList{Errors: ctx.Errors}
}

// ErrorList reports the first diagnostic and how many followed it.
type ErrorList struct {
	Errors []*diagnostics.DiagnosticError
}

func (e *ErrorList) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}
