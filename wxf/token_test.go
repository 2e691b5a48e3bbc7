package wxf

import (
	"testing"

	"github.com/Neumenon/wxf/expr"
)

func TestTokenKind(t *testing.T) {
	tests := []struct {
		tok  Token
		kind expr.Kind
		ok   bool
	}{
		{TokenFunction, expr.KindFunction, true},
		{TokenSymbol, expr.KindSymbol, true},
		{TokenString, expr.KindString, true},
		{TokenBinaryString, expr.KindBinaryString, true},
		{TokenInteger8, expr.KindInteger, true},
		{TokenInteger16, expr.KindInteger, true},
		{TokenInteger32, expr.KindInteger, true},
		{TokenInteger64, expr.KindInteger, true},
		{TokenBigInteger, expr.KindInteger, true},
		{TokenReal64, expr.KindReal, true},
		{TokenBigReal, expr.KindBigReal, true},
		{TokenAssociation, expr.KindAssociation, true},
		{TokenPackedArray, expr.KindPackedArray, true},
		{TokenNumericArray, expr.KindNumericArray, true},
		{TokenRule, 0, false},
		{TokenRuleDelayed, 0, false},
		{Token('Z'), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.tok.String(), func(t *testing.T) {
			kind, ok := TokenKind(byte(tt.tok))
			if ok != tt.ok || (ok && kind != tt.kind) {
				t.Errorf("TokenKind(%s) = %s, %v; want %s, %v", tt.tok, kind, ok, tt.kind, tt.ok)
			}
			if tt.tok.Valid() != (tt.ok || tt.tok == TokenRule || tt.tok == TokenRuleDelayed) {
				t.Errorf("%s.Valid() = %v", tt.tok, tt.tok.Valid())
			}
		})
	}
}

func TestTokenFor(t *testing.T) {
	tests := []struct {
		kind expr.Kind
		tok  Token
		ok   bool
	}{
		{expr.KindFunction, TokenFunction, true},
		{expr.KindSymbol, TokenSymbol, true},
		{expr.KindString, TokenString, true},
		{expr.KindBinaryString, TokenBinaryString, true},
		{expr.KindReal, TokenReal64, true},
		{expr.KindBigReal, TokenBigReal, true},
		{expr.KindAssociation, TokenAssociation, true},
		{expr.KindPackedArray, TokenPackedArray, true},
		{expr.KindNumericArray, TokenNumericArray, true},
		{expr.KindInteger, 0, false},
		{expr.KindExternalObject, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			tok, ok := TokenFor(tt.kind)
			if ok != tt.ok || tok != tt.tok {
				t.Errorf("TokenFor(%s) = %s, %v; want %s, %v", tt.kind, tok, ok, tt.tok, tt.ok)
			}
			if !ok {
				return
			}
			back, ok := TokenKind(byte(tok))
			if !ok || back != tt.kind {
				t.Errorf("TokenKind(TokenFor(%s)) = %s, %v", tt.kind, back, ok)
			}
		})
	}
}

// Every node written by the encoder starts with the token TokenFor names
// for its kind.
func TestTokenFor_MatchesEncoder(t *testing.T) {
	packed, err := expr.PackedArrayOf([]int{2}, []int32{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	numeric, err := expr.NumericArrayOf([]int{1}, []uint16{7})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range []expr.Expr{
		expr.Call("f"),
		expr.Sym("x"),
		expr.Str("s"),
		expr.Bytes([]byte{1}),
		expr.Float(1.5),
		mustBigReal(t, "2.5", 10),
		expr.Assoc(),
		packed,
		numeric,
	} {
		data := mustMarshal(t, e)
		want, ok := TokenFor(e.Kind())
		if !ok {
			t.Fatalf("TokenFor(%s) not found", e.Kind())
		}
		if got := Token(data[2]); got != want {
			t.Errorf("%s: first token %s, want %s", e.Kind(), got, want)
		}
	}
}
