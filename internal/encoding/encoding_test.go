package encoding

import (
	"bytes"
	"strings"
	"testing"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/parser"
)

const source = `
reg Foo { 0102030405060708090a0b0c0d0e0f }
ctr {Foo.Pair fst snd}
ctr {Foo.Nil}
fun (Foo.Swap p) {
  (Foo.Swap {Foo.Pair a b}) = {Foo.Pair b a}
  (Foo.Swap ~) = dup x y = #0; @z (!z (+ x y))
}
fun (Foo.Counter action) {
  (Foo.Counter {Foo.Nil}) = !take x; !save (+ x #1); !done #0
} with { #0 }
run { !call r 'Foo.Counter' [{Foo.Nil}] !done r }
`

func TestStatementsSurviveEncoding(t *testing.T) {
	program, err := parser.Parse("test.fl", source)
	if err != nil {
		t.Fatal(err)
	}
	for i, stmt := range program.Statements {
		enc := EncodeStatement(stmt)
		back, err := DecodeStatement(enc)
		if err != nil {
			t.Fatalf("statement %d: %v", i, err)
		}
		if again := EncodeStatement(back); !bytes.Equal(enc, again) {
			t.Errorf("statement %d: encoding is not stable", i)
		}
	}
}

func TestSigningHashIgnoresSignature(t *testing.T) {
	sig := strings.Repeat("cd", 65)
	signed, err := parser.Parse("a.fl", "run { !done #1 } sign { "+sig+" }")
	if err != nil {
		t.Fatal(err)
	}
	unsigned, err := parser.Parse("b.fl", "run {\n  !done #1\n}")
	if err != nil {
		t.Fatal(err)
	}
	other, err := parser.Parse("c.fl", "run { !done #2 }")
	if err != nil {
		t.Fatal(err)
	}
	a := SigningHash(signed.Statements[0])
	b := SigningHash(unsigned.Statements[0])
	c := SigningHash(other.Statements[0])
	if a != b {
		t.Error("signature or layout changed the signing hash")
	}
	if a == c {
		t.Error("different statements share a signing hash")
	}

	back, err := DecodeStatement(EncodeStatement(signed.Statements[0]))
	if err != nil {
		t.Fatal(err)
	}
	if got := back.Signature(); got == nil || *got != *signed.Statements[0].Signature() {
		t.Errorf("signature lost: %v", got)
	}
}

func TestTermEncoding(t *testing.T) {
	for _, src := range []string{
		"#0",
		"#18446744073709551615",
		"'Foo'",
		"@x @~ x",
		"dup a b = (F #1); {P a b}",
		"(!(!f a) b)",
		"(>= #1 x)",
	} {
		term, err := parser.ParseTermString(src)
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		back, err := DecodeTerm(EncodeTerm(term))
		if err != nil {
			t.Errorf("%s: %v", src, err)
			continue
		}
		if back.String() != term.String() {
			t.Errorf("%s: decoded as %s", src, back)
		}
	}
}

func TestDeepTermsSurviveEncoding(t *testing.T) {
	const depth = 5000
	var list ast.Term = &ast.Ctr{Name: "Nil"}
	for i := 0; i < depth; i++ {
		list = &ast.Ctr{Name: "Cons", Args: []ast.Term{&ast.Num{Value: uint64(i)}, list}}
	}
	var lams ast.Term = &ast.Var{Name: "x"}
	for i := 0; i < depth; i++ {
		lams = &ast.Lam{Name: "x", Body: &ast.App{Func: lams, Argm: &ast.Num{Value: 1}}}
	}
	for _, term := range []ast.Term{list, lams, &ast.Dup{Nam0: "a", Nam1: "b", Expr: list, Body: lams}} {
		enc := EncodeTerm(term)
		back, err := DecodeTerm(enc)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(EncodeTerm(back), enc) {
			t.Error("deep term changed on the way back")
		}
	}

	back, err := DecodeTerm(EncodeTerm(list))
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for c, ok := back.(*ast.Ctr); ok && c.Name == "Cons"; c, ok = c.Args[1].(*ast.Ctr) {
		n++
	}
	if n != depth {
		t.Errorf("expected %d cells, got %d", depth, n)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := [][]byte{
		{0xff},
		{0x0a, 0x05, 0x01},
		AppendVarint(nil, 99, 1),
		append(AppendVarint(nil, termNum, 1), AppendVarint(nil, termNum, 2)...),
		AppendBytes(nil, stmtRun, AppendVarint(nil, 1, 7)),
	}
	for i, b := range tests {
		if _, err := DecodeStatement(b); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
	if _, err := DecodeTerm(AppendVarint(nil, termNum, 1)[:1]); err == nil {
		t.Error("expected an error for a truncated term")
	}
}
