package prettyprinter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/funvibe/funledger/internal/encoding"
	"github.com/funvibe/funledger/internal/parser"
)

var source = `
reg Bank { 0102030405060708090a0b0c0d0e0f }
ctr {Bank.Deposit amount}
ctr {Bank.Nil}
fun (Bank.Balance action) {
  (Bank.Balance {Bank.Deposit n}) = !take x; !save (+ x n); !done x
  (Bank.Balance {Bank.Nil}) = !load x !done x
  (Bank.Balance ~) = dup a b = #1; {T2 a b}
} with { #0 }
fun (Bank.Id x) {
  (Bank.Id x) = x
}
run {
  !call r 'Bank.Balance' [{Bank.Deposit #5}]
  !tick h
  dup p q = h;
  !done {T3 r p q}
} sign { ` + strings.Repeat("0a", 65) + ` }
run { {IO.TAKE #1} }
`

func TestPrintedProgramParsesBack(t *testing.T) {
	program, err := parser.Parse("bank.fl", source)
	if err != nil {
		t.Fatal(err)
	}
	printed := Program(program)
	again, err := parser.Parse("printed.fl", printed)
	if err != nil {
		t.Fatalf("printed program does not parse: %v\n%s", err, printed)
	}
	if len(again.Statements) != len(program.Statements) {
		t.Fatalf("got %d statements back, want %d", len(again.Statements), len(program.Statements))
	}
	for i := range program.Statements {
		want := encoding.EncodeStatement(program.Statements[i])
		got := encoding.EncodeStatement(again.Statements[i])
		if !bytes.Equal(want, got) {
			t.Errorf("statement %d changed when printed:\n%s", i, Statement(again.Statements[i]))
		}
	}
	if Program(again) != printed {
		t.Error("printing is not stable")
	}
}

func TestActionSugar(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"!done #1", "!done #1"},
		{"!take x !save (+ x #1) !done x", "!take x; !save (+ x #1); !done x"},
		{"!call r 'F' [#1 #2]; !fail r", "!call r 'F' [#1 #2]; !fail r"},
		{"@k !load x; (!k x)", "@k !load x; (!k x)"},
		{"{IO.TAKE #1}", "{IO.TAKE #1}"},
		{"{IO.SAVE #1 @y y}", "{IO.SAVE #1 @y y}"},
		{"{IO.CALL 'F' {Foo} @x x}", "{IO.CALL 'F' {Foo} @x x}"},
	}
	for _, tt := range tests {
		term, err := parser.ParseTermString(tt.input)
		if err != nil {
			t.Fatalf("%s: %v", tt.input, err)
		}
		if got := Term(term); got != tt.expected {
			t.Errorf("Term(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRunBodyIsOneActionPerLine(t *testing.T) {
	program, err := parser.Parse("run.fl", "run { !take x; !save x; !done #0 }")
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"run {",
		"  !take x",
		"  !save x",
		"  !done #0",
		"}",
	}, "\n")
	if got := Statement(program.Statements[0]); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestLongRuleBodiesBreak(t *testing.T) {
	program, err := parser.Parse("f.fl", "fun (F a) { (F a) = !take x; !save (+ x a); !done x }")
	if err != nil {
		t.Fatal(err)
	}
	p := NewCodePrinterWithWidth(20)
	p.Statement(program.Statements[0])
	want := strings.Join([]string{
		"fun (F a) {",
		"  (F a) =",
		"    !take x",
		"    !save (+ x a)",
		"    !done x",
		"}",
	}, "\n")
	if got := p.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
