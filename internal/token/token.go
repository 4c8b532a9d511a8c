package token

import "fmt"

type TokenType string

type Token struct {
	Type    TokenType
	Lexeme  string      // Raw text as it appeared in the source
	Literal interface{} // Parsed value: uint64 for numbers, []byte for hex blobs, string otherwise
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	// Identifiers and literals
	IDENT_LOWER TokenType = "IDENT_LOWER" // x, acc, state
	IDENT_UPPER TokenType = "IDENT_UPPER" // Foo, Foo.Bar.cats, IO.DONE
	NUMBER      TokenType = "NUMBER"      // #12, #0xff
	HEX         TokenType = "HEX"         // raw hex blob inside reg/sign braces
	NAME_REF    TokenType = "NAME_REF"    // 'Counter'
	ACTION      TokenType = "ACTION"      // !done, !take, ...

	// Operators
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	ASTERISK TokenType = "*"
	SLASH    TokenType = "/"
	PERCENT  TokenType = "%"
	AMPER    TokenType = "&"
	PIPE     TokenType = "|"
	CARET    TokenType = "^"
	LSHIFT   TokenType = "<<"
	RSHIFT   TokenType = ">>"
	LT       TokenType = "<"
	LTE      TokenType = "<="
	EQ       TokenType = "=="
	GTE      TokenType = ">="
	GT       TokenType = ">"
	NOT_EQ   TokenType = "!="

	// Delimiters
	ASSIGN    TokenType = "="
	SEMICOLON TokenType = ";"
	AT        TokenType = "@"
	TILDE     TokenType = "~"
	BANG      TokenType = "!"
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	LBRACKET  TokenType = "["
	RBRACKET  TokenType = "]"

	// Keywords
	REG  TokenType = "REG"
	CTR  TokenType = "CTR"
	FUN  TokenType = "FUN"
	RUN  TokenType = "RUN"
	WITH TokenType = "WITH"
	SIGN TokenType = "SIGN"
	DUP  TokenType = "DUP"
)

var keywords = map[string]TokenType{
	"reg":  REG,
	"ctr":  CTR,
	"fun":  FUN,
	"run":  RUN,
	"with": WITH,
	"sign": SIGN,
	"dup":  DUP,
}

// Actions lists the names accepted after '!' as IO actions.
var Actions = map[string]bool{
	"done": true,
	"take": true,
	"save": true,
	"load": true,
	"call": true,
	"tick": true,
	"fail": true,
}

// LookupIdent returns the keyword type for ident, or IDENT_LOWER.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT_LOWER
}

// IsOperator reports whether t is a binary numeric operator token.
func IsOperator(t TokenType) bool {
	switch t {
	case PLUS, MINUS, ASTERISK, SLASH, PERCENT, AMPER, PIPE, CARET,
		LSHIFT, RSHIFT, LT, LTE, EQ, GTE, GT, NOT_EQ:
		return true
	}
	return false
}
