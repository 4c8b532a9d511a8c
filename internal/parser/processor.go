package parser

import (
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/lexer"
	"github.com/funvibe/funledger/internal/pipeline"
	"github.com/funvibe/funledger/internal/token"
)

type ParserProcessor struct{}

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.TokenStream == nil {
		err := diagnostics.NewError(diagnostics.ErrP001, token.Token{}, "parser: token stream is nil")
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}

	parser := New(ctx.TokenStream, ctx)
	ctx.AstRoot = parser.ParseProgram()

	for _, err := range ctx.Errors {
		if err.File == "" {
			err.File = ctx.FilePath
		}
	}
	return ctx
}

// Parse runs the lexer and parser over source and returns the program, or
// the accumulated diagnostics as a single error.
func Parse(file, source string) (*ast.Program, error) {
	ctx := pipeline.NewPipelineContext(source)
	ctx.FilePath = file
	ctx = pipeline.New(&lexer.LexerProcessor{}, &ParserProcessor{}).Run(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ctx.AstRoot, nil
}

// ParseTermString parses a standalone term such as `{Pair #1 #2}`.
func ParseTermString(source string) (ast.Term, error) {
	ctx := pipeline.NewPipelineContext(source)
	ctx = (&lexer.LexerProcessor{}).Process(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := ParseTerm(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
