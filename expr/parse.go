package expr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseError represents a parsing error with location.
type ParseError struct {
	Message string
	Pos     Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Pos)
}

// DefaultParseDepth bounds nesting when ParseOptions.MaxDepth is zero.
const DefaultParseDepth = 4096

// ParseOptions configures the parser behavior.
type ParseOptions struct {
	MaxDepth int // Nesting limit; 0 means DefaultParseDepth
}

// Parser parses InputForm text into expressions.
type Parser struct {
	stream   *TokenStream
	maxDepth int
	depth    int
}

// Parse parses a single InputForm expression.
//
// The accepted grammar is the one Format writes: symbols, integers, machine
// and big reals, strings, Head[args], {lists}, <|associations|>, and the
// -> and :> operators. ByteArray["base64"] is read back as a BinaryString.
func Parse(input string) (Expr, error) {
	return ParseWithOptions(input, ParseOptions{})
}

// ParseWithOptions parses with full options.
func ParseWithOptions(input string, opts ParseOptions) (Expr, error) {
	lexer := NewLexer(input)
	tokens, err := lexer.Tokenize()
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &ParseError{Message: err.Error(), Pos: tokens[len(tokens)-1].Pos}
	}

	p := &Parser{stream: NewTokenStream(tokens), maxDepth: opts.MaxDepth}
	if p.maxDepth <= 0 {
		p.maxDepth = DefaultParseDepth
	}

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.stream.AtEnd() {
		tok := p.stream.Peek()
		return nil, &ParseError{Message: fmt.Sprintf("unexpected %s after expression", tok), Pos: tok.Pos}
	}
	return e, nil
}

// parseExpr parses an operand followed by an optional right-associative
// rule operator.
func (p *Parser) parseExpr() (Expr, error) {
	lhs, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}

	tok := p.stream.Peek()
	if tok.Type != TokenRule && tok.Type != TokenRuleDelayed {
		return lhs, nil
	}
	p.stream.Advance()

	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	head := SymRule
	if tok.Type == TokenRuleDelayed {
		head = SymRuleDelayed
	}
	return Func(head, lhs, rhs), nil
}

// parsePostfix parses an atom and any chained [args] applications.
func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	for p.stream.Peek().Type == TokenLBracket {
		open := p.stream.Advance()
		args, err := p.parseSequence(TokenRBracket, open.Pos)
		if err != nil {
			return nil, err
		}
		e = applyHead(e, args)
	}
	return e, nil
}

// applyHead builds head[args], reading ByteArray["..."] back as binary.
func applyHead(head Expr, args []Expr) Expr {
	fn := Func(head, args...)
	if fn.HasHead(string(SymByteArray)) && len(args) == 1 {
		if s, ok := args[0].(String); ok {
			if b, err := base64.StdEncoding.DecodeString(string(s)); err == nil {
				return BinaryString(b)
			}
		}
	}
	return fn
}

func (p *Parser) parseAtom() (Expr, error) {
	tok := p.stream.Advance()

	switch tok.Type {
	case TokenSymbol:
		return Symbol(tok.Value), nil

	case TokenString:
		return String(tok.Value), nil

	case TokenInt:
		n, err := ParseInteger(tok.Value)
		if err != nil {
			return nil, &ParseError{Message: err.Error(), Pos: tok.Pos}
		}
		return n, nil

	case TokenReal:
		f, err := strconv.ParseFloat(strings.Replace(tok.Value, "*^", "e", 1), 64)
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("invalid real %q", tok.Value), Pos: tok.Pos}
		}
		return Real(f), nil

	case TokenBigReal:
		r, err := ParseBigReal(tok.Value)
		if err != nil {
			return nil, &ParseError{Message: err.Error(), Pos: tok.Pos}
		}
		return r, nil

	case TokenLBrace:
		elems, err := p.parseSequence(TokenRBrace, tok.Pos)
		if err != nil {
			return nil, err
		}
		return List(elems...), nil

	case TokenLAssoc:
		return p.parseAssociation(tok.Pos)

	case TokenEOF:
		return nil, &ParseError{Message: "unexpected end of input", Pos: tok.Pos}
	}

	return nil, &ParseError{Message: fmt.Sprintf("unexpected %s", tok), Pos: tok.Pos}
}

// parseSequence parses comma-separated expressions up to the closing token,
// which it consumes.
func (p *Parser) parseSequence(closing TokenType, open Position) ([]Expr, error) {
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	var elems []Expr
	if p.stream.Match(closing) {
		return elems, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)

		if p.stream.Match(closing) {
			return elems, nil
		}
		tok := p.stream.Peek()
		if !p.stream.Match(TokenComma) {
			return nil, &ParseError{Message: fmt.Sprintf("expected , or %s, got %s", closing, tok), Pos: tok.Pos}
		}
	}
}

func (p *Parser) parseAssociation(open Position) (Expr, error) {
	elems, err := p.parseSequence(TokenRAssoc, open)
	if err != nil {
		return nil, err
	}
	entries := make([]Rule, 0, len(elems))
	for _, e := range elems {
		fn, ok := e.(Function)
		if !ok || len(fn.Args) != 2 || !(fn.HasHead(string(SymRule)) || fn.HasHead(string(SymRuleDelayed))) {
			return nil, &ParseError{Message: fmt.Sprintf("association entry %s is not a rule", Format(e)), Pos: open}
		}
		entries = append(entries, Rule{
			Key:     fn.Args[0],
			Value:   fn.Args[1],
			Delayed: fn.HasHead(string(SymRuleDelayed)),
		})
	}
	return Association{Entries: entries}, nil
}

func (p *Parser) enter(pos Position) error {
	p.depth++
	if p.depth > p.maxDepth {
		return &ParseError{Message: fmt.Sprintf("nesting exceeds %d levels", p.maxDepth), Pos: pos}
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}
