package lexer

import (
	"encoding/hex"
	"github.com/funvibe/funledger/internal/token"
	"strconv"
	"unicode/utf8"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number

	// hexMode is set after `sign {` and `reg Name {`: the next token is a raw
	// hex blob rather than an identifier or number.
	hexMode bool
	last    [2]token.TokenType // the two most recent token types, newest first
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
		l.ch = r
		l.position = l.readPosition
		l.readPosition += w
		l.column++
		return
	}

	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) NextToken() token.Token {
	tok := l.nextToken()
	if tok.Type == token.LBRACE {
		l.hexMode = l.last[0] == token.SIGN || (l.last[0] == token.IDENT_UPPER && l.last[1] == token.REG)
	}
	l.last[1] = l.last[0]
	l.last[0] = tok.Type
	return tok
}

func (l *Lexer) nextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()

	if l.hexMode {
		l.hexMode = false
		if isHexDigit(l.ch) {
			return l.readHex()
		}
	}

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Lexeme: "==", Literal: "==", Line: l.line, Column: l.column}
		} else {
			tok = newToken(token.ASSIGN, l.ch, l.line, l.column)
		}
	case '+':
		tok = newToken(token.PLUS, l.ch, l.line, l.column)
	case '-':
		tok = newToken(token.MINUS, l.ch, l.line, l.column)
	case '*':
		tok = newToken(token.ASTERISK, l.ch, l.line, l.column)
	case '/':
		tok = newToken(token.SLASH, l.ch, l.line, l.column)
	case '%':
		tok = newToken(token.PERCENT, l.ch, l.line, l.column)
	case '&':
		tok = newToken(token.AMPER, l.ch, l.line, l.column)
	case '|':
		tok = newToken(token.PIPE, l.ch, l.line, l.column)
	case '^':
		tok = newToken(token.CARET, l.ch, l.line, l.column)
	case '<':
		if l.peekChar() == '<' {
			l.readChar()
			tok = token.Token{Type: token.LSHIFT, Lexeme: "<<", Literal: "<<", Line: l.line, Column: l.column}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.LTE, Lexeme: "<=", Literal: "<=", Line: l.line, Column: l.column}
		} else {
			tok = newToken(token.LT, l.ch, l.line, l.column)
		}
	case '>':
		if l.peekChar() == '>' {
			l.readChar()
			tok = token.Token{Type: token.RSHIFT, Lexeme: ">>", Literal: ">>", Line: l.line, Column: l.column}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GTE, Lexeme: ">=", Literal: ">=", Line: l.line, Column: l.column}
		} else {
			tok = newToken(token.GT, l.ch, l.line, l.column)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NOT_EQ, Lexeme: "!=", Literal: "!=", Line: l.line, Column: l.column}
		} else if isLetter(l.peekChar()) {
			// !done, !take, ... are actions; anything else is an application bang
			line, col := l.line, l.column
			save := *l
			l.readChar()
			word := l.readIdentifier()
			if token.Actions[word] {
				return token.Token{Type: token.ACTION, Lexeme: "!" + word, Literal: word, Line: line, Column: col}
			}
			*l = save
			tok = newToken(token.BANG, l.ch, l.line, l.column)
		} else {
			tok = newToken(token.BANG, l.ch, l.line, l.column)
		}
	case '#':
		return l.readNumber()
	case '\'':
		return l.readNameRef()
	case ';':
		tok = newToken(token.SEMICOLON, l.ch, l.line, l.column)
	case '@':
		tok = newToken(token.AT, l.ch, l.line, l.column)
	case '~':
		tok = newToken(token.TILDE, l.ch, l.line, l.column)
	case '(':
		tok = newToken(token.LPAREN, l.ch, l.line, l.column)
	case ')':
		tok = newToken(token.RPAREN, l.ch, l.line, l.column)
	case '{':
		tok = newToken(token.LBRACE, l.ch, l.line, l.column)
	case '}':
		tok = newToken(token.RBRACE, l.ch, l.line, l.column)
	case '[':
		tok = newToken(token.LBRACKET, l.ch, l.line, l.column)
	case ']':
		tok = newToken(token.RBRACKET, l.ch, l.line, l.column)
	case 0:
		tok = token.Token{Type: token.EOF, Lexeme: "", Literal: "", Line: l.line, Column: l.column}
		return tok
	default:
		if isLetter(l.ch) {
			line, col := l.line, l.column
			ident := l.readIdentifier()
			return token.Token{Type: l.determineIdentifierType(ident), Lexeme: ident, Literal: ident, Line: line, Column: col}
		}
		tok = newToken(token.ILLEGAL, l.ch, l.line, l.column)
	}

	l.readChar()
	return tok
}

// readIdentifier reads a dotted identifier: Foo.Bar.cats, IO.DONE, x
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) || (l.ch == '.' && (isLetter(l.peekChar()) || isDigit(l.peekChar()))) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) determineIdentifierType(ident string) token.TokenType {
	if len(ident) == 0 {
		return token.ILLEGAL
	}

	firstChar := ident[0]
	if 'A' <= firstChar && firstChar <= 'Z' {
		return token.IDENT_UPPER
	}

	return token.LookupIdent(ident)
}

// readNumber reads #123 or #0x7b. The current char is '#'.
func (l *Lexer) readNumber() token.Token {
	startLine, startCol := l.line, l.column
	start := l.position
	l.readChar() // #

	digits := l.position
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	lexeme := l.input[start:l.position]
	text := l.input[digits:l.position]
	if text == "" {
		return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: "expected digits after '#'", Line: startLine, Column: startCol}
	}
	// ParseUint with base 0 accepts the 0x prefix
	val, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: "number does not fit in 64 bits", Line: startLine, Column: startCol}
	}
	return token.Token{Type: token.NUMBER, Lexeme: lexeme, Literal: val, Line: startLine, Column: startCol}
}

// readNameRef reads 'Name'. The current char is the opening quote.
func (l *Lexer) readNameRef() token.Token {
	startLine, startCol := l.line, l.column
	start := l.position
	l.readChar() // '
	name := l.readIdentifier()
	if l.ch != '\'' {
		return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Literal: "unterminated name literal, expected '", Line: startLine, Column: startCol}
	}
	l.readChar() // closing '
	return token.Token{Type: token.NAME_REF, Lexeme: l.input[start:l.position], Literal: name, Line: startLine, Column: startCol}
}

func (l *Lexer) readHex() token.Token {
	startLine, startCol := l.line, l.column
	start := l.position
	for isHexDigit(l.ch) {
		l.readChar()
	}
	lexeme := l.input[start:l.position]
	raw, err := hex.DecodeString(lexeme)
	if err != nil {
		return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: "odd number of hex digits", Line: startLine, Column: startCol}
	}
	return token.Token{Type: token.HEX, Lexeme: lexeme, Literal: raw, Line: startLine, Column: startCol}
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func newToken(tokenType token.TokenType, ch rune, line, col int) token.Token {
	literal := string(ch)
	return token.Token{Type: tokenType, Lexeme: literal, Literal: literal, Line: line, Column: col}
}

func (l *Lexer) skipWhitespace() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
			l.readChar()
		}
		// Handle comments
		if l.ch == '/' {
			if l.peekChar() == '/' {
				l.readChar() // consume first /
				l.readChar() // consume second /
				for l.ch != '\n' && l.ch != 0 {
					l.readChar()
				}
				continue
			} else if l.peekChar() == '*' {
				l.readChar() // consume /
				l.readChar() // consume *
				for l.ch != 0 {
					if l.ch == '*' && l.peekChar() == '/' {
						l.readChar() // consume *
						l.readChar() // consume /
						break
					}
					l.readChar()
				}
				continue
			}
		}
		break
	}
}
