package wxf

import (
	"fmt"

	"github.com/Neumenon/wxf/expr"
)

// Header bytes.
const (
	Version         byte = '8'
	HeaderSeparator byte = ':'
	CompressMarker  byte = 'C'
)

// Token is a WXF node tag.
type Token byte

const (
	TokenFunction     Token = 'f'
	TokenSymbol       Token = 's'
	TokenString       Token = 'S'
	TokenBinaryString Token = 'B'
	TokenInteger8     Token = 'C'
	TokenInteger16    Token = 'j'
	TokenInteger32    Token = 'i'
	TokenInteger64    Token = 'L'
	TokenReal64       Token = 'r'
	TokenBigInteger   Token = 'I'
	TokenBigReal      Token = 'R'
	TokenPackedArray  Token = 0xC1
	TokenNumericArray Token = 0xC2
	TokenAssociation  Token = 'A'
	TokenRule         Token = '-'
	TokenRuleDelayed  Token = ':'
)

var tokenNames = map[Token]string{
	TokenFunction:     "Function",
	TokenSymbol:       "Symbol",
	TokenString:       "String",
	TokenBinaryString: "BinaryString",
	TokenInteger8:     "Integer8",
	TokenInteger16:    "Integer16",
	TokenInteger32:    "Integer32",
	TokenInteger64:    "Integer64",
	TokenReal64:       "Real64",
	TokenBigInteger:   "BigInteger",
	TokenBigReal:      "BigReal",
	TokenPackedArray:  "PackedArray",
	TokenNumericArray: "NumericArray",
	TokenAssociation:  "Association",
	TokenRule:         "Rule",
	TokenRuleDelayed:  "RuleDelayed",
}

// String returns the token name.
func (t Token) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(0x%02x)", byte(t))
}

// Valid reports whether t is a known token.
func (t Token) Valid() bool {
	_, ok := tokenNames[t]
	return ok
}

// TokenFor returns the token of a node kind. Integer has four fixed-width
// tokens plus BigInteger and ExternalObject is written as a Function, so
// neither has a single token.
func TokenFor(k expr.Kind) (Token, bool) {
	switch k {
	case expr.KindFunction:
		return TokenFunction, true
	case expr.KindSymbol:
		return TokenSymbol, true
	case expr.KindString:
		return TokenString, true
	case expr.KindBinaryString:
		return TokenBinaryString, true
	case expr.KindReal:
		return TokenReal64, true
	case expr.KindBigReal:
		return TokenBigReal, true
	case expr.KindAssociation:
		return TokenAssociation, true
	case expr.KindPackedArray:
		return TokenPackedArray, true
	case expr.KindNumericArray:
		return TokenNumericArray, true
	}
	return 0, false
}

// TokenKind returns the node kind a token byte introduces. Rule tokens only
// occur inside an association and have no kind of their own.
func TokenKind(b byte) (expr.Kind, bool) {
	switch Token(b) {
	case TokenFunction:
		return expr.KindFunction, true
	case TokenSymbol:
		return expr.KindSymbol, true
	case TokenString:
		return expr.KindString, true
	case TokenBinaryString:
		return expr.KindBinaryString, true
	case TokenInteger8, TokenInteger16, TokenInteger32, TokenInteger64, TokenBigInteger:
		return expr.KindInteger, true
	case TokenReal64:
		return expr.KindReal, true
	case TokenBigReal:
		return expr.KindBigReal, true
	case TokenAssociation:
		return expr.KindAssociation, true
	case TokenPackedArray:
		return expr.KindPackedArray, true
	case TokenNumericArray:
		return expr.KindNumericArray, true
	}
	return 0, false
}

// ElementTypeFromByte maps an array element type byte.
func ElementTypeFromByte(b byte) (expr.ElementType, bool) {
	t := expr.ElementType(b)
	return t, t.Valid()
}
