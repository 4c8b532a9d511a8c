package lexer

import (
	"testing"

	"github.com/funvibe/funledger/internal/token"
)

func TestNextToken(t *testing.T) {
	input := `fun (Inc x) { (Inc #0x10) = (+ x #1) } // tail
run { !take x; (!f 'Foo.Bar' x) } /* block */ != ~ @y`

	tests := []struct {
		expectedType   token.TokenType
		expectedLexeme string
	}{
		{token.FUN, "fun"},
		{token.LPAREN, "("},
		{token.IDENT_UPPER, "Inc"},
		{token.IDENT_LOWER, "x"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.LPAREN, "("},
		{token.IDENT_UPPER, "Inc"},
		{token.NUMBER, "#0x10"},
		{token.RPAREN, ")"},
		{token.ASSIGN, "="},
		{token.LPAREN, "("},
		{token.PLUS, "+"},
		{token.IDENT_LOWER, "x"},
		{token.NUMBER, "#1"},
		{token.RPAREN, ")"},
		{token.RBRACE, "}"},
		{token.RUN, "run"},
		{token.LBRACE, "{"},
		{token.ACTION, "!take"},
		{token.IDENT_LOWER, "x"},
		{token.SEMICOLON, ";"},
		{token.LPAREN, "("},
		{token.BANG, "!"},
		{token.IDENT_LOWER, "f"},
		{token.NAME_REF, "'Foo.Bar'"},
		{token.IDENT_LOWER, "x"},
		{token.RPAREN, ")"},
		{token.RBRACE, "}"},
		{token.NOT_EQ, "!="},
		{token.TILDE, "~"},
		{token.AT, "@"},
		{token.IDENT_LOWER, "y"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - wrong type. expected=%q, got=%q (%q)", i, tt.expectedType, tok.Type, tok.Lexeme)
		}
		if tok.Lexeme != tt.expectedLexeme {
			t.Fatalf("tests[%d] - wrong lexeme. expected=%q, got=%q", i, tt.expectedLexeme, tok.Lexeme)
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
		illegal  bool
	}{
		{"#0", 0, false},
		{"#42", 42, false},
		{"#0xff", 255, false},
		{"#18446744073709551615", 18446744073709551615, false},
		{"#18446744073709551616", 0, true},
		{"#", 0, true},
	}
	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tt.illegal {
			if tok.Type != token.ILLEGAL {
				t.Errorf("%q: expected ILLEGAL, got %s", tt.input, tok.Type)
			}
			continue
		}
		if tok.Type != token.NUMBER {
			t.Fatalf("%q: expected NUMBER, got %s", tt.input, tok.Type)
		}
		if got := tok.Literal.(uint64); got != tt.expected {
			t.Errorf("%q: expected %d, got %d", tt.input, tt.expected, got)
		}
	}
}

func TestHexAfterSignAndReg(t *testing.T) {
	input := "reg Foo { 00ff } sign { abcdef }"
	l := New(input)
	var hexes [][]byte
	for tok := l.NextToken(); tok.Type != token.EOF; tok = l.NextToken() {
		if tok.Type == token.ILLEGAL {
			t.Fatalf("unexpected illegal token %q", tok.Lexeme)
		}
		if tok.Type == token.HEX {
			hexes = append(hexes, tok.Literal.([]byte))
		}
	}
	if len(hexes) != 2 {
		t.Fatalf("expected 2 hex blobs, got %d", len(hexes))
	}
	if hexes[0][1] != 0xff || hexes[1][0] != 0xab {
		t.Errorf("wrong hex bytes: %x %x", hexes[0], hexes[1])
	}
}

func TestLineTracking(t *testing.T) {
	l := New("ctr\n  {Pair a b}")
	first := l.NextToken()
	second := l.NextToken()
	if first.Line != 1 || second.Line != 2 {
		t.Errorf("expected lines 1 and 2, got %d and %d", first.Line, second.Line)
	}
}
