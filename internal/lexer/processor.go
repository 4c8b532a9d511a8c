package lexer

import (
	"fmt"
	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/pipeline"
	"github.com/funvibe/funledger/internal/token"
)

type LexerProcessor struct{}

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	stream := NewTokenStream(New(ctx.SourceCode))
	for _, tok := range stream.Tokens() {
		if tok.Type != token.ILLEGAL {
			continue
		}
		msg := fmt.Sprintf("illegal token %q", tok.Lexeme)
		if reason, ok := tok.Literal.(string); ok && reason != tok.Lexeme {
			msg = fmt.Sprintf("%s: %s", msg, reason)
		}
		err := diagnostics.NewError(diagnostics.ErrL001, tok, msg)
		err.File = ctx.FilePath
		ctx.Errors = append(ctx.Errors, err)
	}
	ctx.TokenStream = stream
	return ctx
}
