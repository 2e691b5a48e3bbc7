package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a lexer token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenSymbol  // Plus, System`List, $Failed
	TokenInt     // 123, -456
	TokenReal    // 1.5, 2., 1.5*^-3
	TokenBigReal // 1.5`20.
	TokenString  // "quoted string"

	// Structural
	TokenLBracket    // [
	TokenRBracket    // ]
	TokenLBrace      // {
	TokenRBrace      // }
	TokenLAssoc      // <|
	TokenRAssoc      // |>
	TokenComma       // ,
	TokenRule        // ->
	TokenRuleDelayed // :>
)

// String returns the token type name.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "ERROR"
	case TokenSymbol:
		return "SYMBOL"
	case TokenInt:
		return "INT"
	case TokenReal:
		return "REAL"
	case TokenBigReal:
		return "BIGREAL"
	case TokenString:
		return "STRING"
	case TokenLBracket:
		return "["
	case TokenRBracket:
		return "]"
	case TokenLBrace:
		return "{"
	case TokenRBrace:
		return "}"
	case TokenLAssoc:
		return "<|"
	case TokenRAssoc:
		return "|>"
	case TokenComma:
		return ","
	case TokenRule:
		return "->"
	case TokenRuleDelayed:
		return ":>"
	default:
		return "UNKNOWN"
	}
}

// Position represents a source location.
type Position struct {
	Line   int
	Column int
	Offset int
}

// String returns position as "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexer token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// String returns a debug representation of the token.
func (t Token) String() string {
	if t.Value == "" {
		return t.Type.String()
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}

// Lexer tokenizes InputForm text.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int
	err   error
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize returns all tokens from the input.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok := l.nextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens, l.err
}

func (l *Lexer) nextToken() Token {
	if err := l.skipWhitespaceAndComments(); err != nil {
		l.err = err
		return Token{Type: TokenError, Pos: l.currentPos()}
	}

	startPos := l.currentPos()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: startPos}
	}

	ch := l.peek()
	switch ch {
	case '[':
		l.advance()
		return Token{Type: TokenLBracket, Value: "[", Pos: startPos}
	case ']':
		l.advance()
		return Token{Type: TokenRBracket, Value: "]", Pos: startPos}
	case '{':
		l.advance()
		return Token{Type: TokenLBrace, Value: "{", Pos: startPos}
	case '}':
		l.advance()
		return Token{Type: TokenRBrace, Value: "}", Pos: startPos}
	case ',':
		l.advance()
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case '"':
		return l.scanString()
	}

	switch {
	case l.hasPrefix("<|"):
		l.advanceN(2)
		return Token{Type: TokenLAssoc, Value: "<|", Pos: startPos}
	case l.hasPrefix("|>"):
		l.advanceN(2)
		return Token{Type: TokenRAssoc, Value: "|>", Pos: startPos}
	case l.hasPrefix("->"):
		l.advanceN(2)
		return Token{Type: TokenRule, Value: "->", Pos: startPos}
	case l.hasPrefix(":>"):
		l.advanceN(2)
		return Token{Type: TokenRuleDelayed, Value: ":>", Pos: startPos}
	}

	if isDigit(ch) || (ch == '-' && l.pos+1 < len(l.input) && (isDigit(l.input[l.pos+1]) || l.input[l.pos+1] == '.')) {
		return l.scanNumber()
	}

	if r, _ := utf8.DecodeRuneInString(l.input[l.pos:]); isSymbolStart(r) {
		return l.scanSymbol()
	}

	l.advance()
	l.err = &ParseError{Message: fmt.Sprintf("unexpected character %q", ch), Pos: startPos}
	return Token{Type: TokenError, Value: string(ch), Pos: startPos}
}

// scanString scans a quoted string with InputForm escapes.
func (l *Lexer) scanString() Token {
	startPos := l.currentPos()
	l.advance() // consume opening "

	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			l.err = &ParseError{Message: "unterminated string", Pos: startPos}
			return Token{Type: TokenError, Value: sb.String(), Pos: startPos}
		}

		ch := l.peek()
		if ch == '"' {
			l.advance()
			break
		}
		if ch != '\\' {
			sb.WriteByte(ch)
			l.advance()
			continue
		}

		l.advance()
		if l.pos >= len(l.input) {
			l.err = &ParseError{Message: "unterminated escape", Pos: l.currentPos()}
			return Token{Type: TokenError, Value: sb.String(), Pos: startPos}
		}
		escaped := l.peek()
		l.advance()
		switch escaped {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '.', ':':
			width := 2
			if escaped == ':' {
				width = 4
			}
			if l.pos+width > len(l.input) {
				l.err = &ParseError{Message: fmt.Sprintf("short \\%c escape", escaped), Pos: l.currentPos()}
				return Token{Type: TokenError, Value: sb.String(), Pos: startPos}
			}
			n, err := strconv.ParseUint(l.input[l.pos:l.pos+width], 16, 32)
			if err != nil {
				l.err = &ParseError{Message: fmt.Sprintf("invalid \\%c escape", escaped), Pos: l.currentPos()}
				return Token{Type: TokenError, Value: sb.String(), Pos: startPos}
			}
			sb.WriteRune(rune(n))
			l.advanceN(width)
		default:
			sb.WriteByte(escaped)
		}
	}

	return Token{Type: TokenString, Value: sb.String(), Pos: startPos}
}

// scanNumber scans an integer, machine real or big real. The token value is
// the raw text.
func (l *Lexer) scanNumber() Token {
	startPos := l.currentPos()
	start := l.pos
	typ := TokenInt

	if l.peek() == '-' {
		l.advance()
	}
	l.skipDigits()
	if l.peek() == '.' {
		typ = TokenReal
		l.advance()
		l.skipDigits()
	}
	if l.peek() == '`' {
		typ = TokenBigReal
		l.advance()
		l.skipDigits()
		if l.peek() == '.' {
			l.advance()
			l.skipDigits()
		}
	}
	if l.hasPrefix("*^") {
		if typ == TokenInt {
			typ = TokenReal
		}
		l.advanceN(2)
		if l.peek() == '-' || l.peek() == '+' {
			l.advance()
		}
		l.skipDigits()
	}

	return Token{Type: typ, Value: l.input[start:l.pos], Pos: startPos}
}

// scanSymbol scans a symbol, including context marks.
func (l *Lexer) scanSymbol() Token {
	startPos := l.currentPos()
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isSymbolContinue(r) {
			break
		}
		l.pos += size
		l.col++
	}
	return Token{Type: TokenSymbol, Value: l.input[start:l.pos], Pos: startPos}
}

// skipWhitespaceAndComments skips whitespace and (* ... *) comments, which
// may nest.
func (l *Lexer) skipWhitespaceAndComments() error {
	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
			l.advance()
			continue
		}
		if l.hasPrefix("(*") {
			start := l.currentPos()
			depth := 0
			for {
				if l.pos >= len(l.input) {
					return &ParseError{Message: "unterminated comment", Pos: start}
				}
				if l.hasPrefix("(*") {
					depth++
					l.advanceN(2)
				} else if l.hasPrefix("*)") {
					depth--
					l.advanceN(2)
					if depth == 0 {
						break
					}
				} else {
					l.advance()
				}
			}
			continue
		}
		break
	}
	return nil
}

// Helper methods

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) skipDigits() {
	for l.pos < len(l.input) && isDigit(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

func (l *Lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// Character classification

func isSymbolStart(r rune) bool {
	return r == '$' || r == '`' || (r != utf8.RuneError && unicode.IsLetter(r))
}

func isSymbolContinue(r rune) bool {
	return isSymbolStart(r) || (r >= '0' && r <= '9')
}

// TokenStream provides a stream interface over tokens.
type TokenStream struct {
	tokens []Token
	pos    int
}

// NewTokenStream creates a token stream from tokens.
func NewTokenStream(tokens []Token) *TokenStream {
	return &TokenStream{tokens: tokens}
}

// Peek returns the current token without advancing.
func (ts *TokenStream) Peek() Token {
	if ts.pos >= len(ts.tokens) {
		return Token{Type: TokenEOF}
	}
	return ts.tokens[ts.pos]
}

// Advance moves to the next token and returns the current one.
func (ts *TokenStream) Advance() Token {
	tok := ts.Peek()
	if ts.pos < len(ts.tokens) {
		ts.pos++
	}
	return tok
}

// Match returns true and advances if the current token matches.
func (ts *TokenStream) Match(typ TokenType) bool {
	if ts.Peek().Type == typ {
		ts.Advance()
		return true
	}
	return false
}

// AtEnd returns true if at end of stream.
func (ts *TokenStream) AtEnd() bool {
	return ts.Peek().Type == TokenEOF
}
