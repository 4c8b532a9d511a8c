package pipeline

import (
	"testing"

	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/token"
)

type stage struct {
	name string
	fail bool
	seen *[]string
}

func (s stage) Process(ctx *PipelineContext) *PipelineContext {
	*s.seen = append(*s.seen, s.name)
	if s.fail {
		tok := token.Token{Line: 1, Column: len(*s.seen)}
		ctx.Errors = append(ctx.Errors, diagnostics.NewError(diagnostics.ErrP001, tok, s.name+" failed"))
	}
	return ctx
}

func TestRunKeepsGoingAfterErrors(t *testing.T) {
	var seen []string
	p := New(
		stage{name: "lex", fail: true, seen: &seen},
		stage{name: "parse", fail: true, seen: &seen},
		stage{name: "check", seen: &seen},
	)
	ctx := p.Run(NewPipelineContext("source"))

	if len(seen) != 3 {
		t.Fatalf("expected all stages to run, got %v", seen)
	}
	err := ctx.Err()
	if err == nil {
		t.Fatal("expected an error")
	}
	expected := "1:1: [P001] lex failed (and 1 more)"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestCleanRunHasNoError(t *testing.T) {
	var seen []string
	ctx := New(stage{name: "lex", seen: &seen}).Run(NewPipelineContext(""))
	if err := ctx.Err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
