package lexer

import "github.com/funvibe/funledger/internal/token"

// TokenStream buffers the lexer output and allows arbitrary lookahead.
type TokenStream struct {
	tokens []token.Token
	pos    int
}

// NewTokenStream drains l. The final token is always EOF.
func NewTokenStream(l *Lexer) *TokenStream {
	ts := &TokenStream{}
	for {
		tok := l.NextToken()
		ts.tokens = append(ts.tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return ts
}

func (ts *TokenStream) Next() token.Token {
	tok := ts.Peek(0)
	if ts.pos < len(ts.tokens)-1 {
		ts.pos++
	}
	return tok
}

// Peek returns the token n positions ahead without consuming anything.
func (ts *TokenStream) Peek(n int) token.Token {
	i := ts.pos + n
	if i >= len(ts.tokens) {
		i = len(ts.tokens) - 1
	}
	return ts.tokens[i]
}

// Tokens returns every buffered token.
func (ts *TokenStream) Tokens() []token.Token {
	return ts.tokens
}
