package wxf

import (
	"bytes"
	"errors"
	"io"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Neumenon/wxf/expr"
)

// sampleExprs covers every node kind.
func sampleExprs(t *testing.T) map[string]expr.Expr {
	t.Helper()
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	m := map[string]expr.Expr{
		"symbol":        expr.Sym("Global`x"),
		"string":        expr.Str("héllo, wörld"),
		"empty string":  expr.Str(""),
		"binary":        expr.Bytes([]byte{0, 1, 2, 255}),
		"int8":          expr.Int(-5),
		"int16":         expr.Int(1000),
		"int32":         expr.Int(-100000),
		"int64":         expr.Int(math.MaxInt64),
		"big integer":   expr.BigInt(huge),
		"big negative":  expr.BigInt(new(big.Int).Neg(huge)),
		"real":          expr.Float(3.25),
		"negative zero": expr.Float(math.Copysign(0, -1)),
		"nan":           expr.Float(math.NaN()),
		"inf":           expr.Float(math.Inf(1)),
		"big real":      mustBigReal(t, "3.14159265358979323846264338327950288", 36),
		"big real exp":  mustBigReal(t, "-1.5e-40", 20),
		"nested function": expr.Func(
			expr.Call("Derivative", expr.Int(1)),
			expr.Call("f", expr.List(expr.Int(1), expr.Str("a")), expr.Sym("g")),
		),
		"empty function": expr.Call("f"),
		"association": expr.Assoc(
			expr.RuleOf(expr.Str("a"), expr.Int(1)),
			expr.DelayedRuleOf(expr.Sym("b"), expr.List()),
			expr.RuleOf(expr.Int(3), expr.Assoc()),
		),
		"duplicate keys": expr.Assoc(
			expr.RuleOf(expr.Str("a"), expr.Int(1)),
			expr.RuleOf(expr.Str("a"), expr.Int(2)),
		),
		"empty association": expr.Assoc(),
		"external object":   expr.ExternalObject{ID: 9, TypeName: "main.conn"},
		"external function": expr.ExternalObject{ID: 10, Function: true},
	}

	for _, et := range expr.ElementTypes() {
		for _, dims := range [][]int{{3}, {2, 3}, {2, 1, 2}, {0}} {
			data := make([]byte, 0)
			n := 1
			for _, d := range dims {
				n *= d
			}
			for i := 0; i < n*et.Size(); i++ {
				data = append(data, byte(i*7+1))
			}
			name := et.String() + dimsName(dims)
			na, err := expr.NewNumericArray(et, dims, data)
			if err != nil {
				t.Fatal(err)
			}
			m["numeric "+name] = na
			if et.ValidForPacked() {
				pa, err := expr.NewPackedArray(et, dims, data)
				if err != nil {
					t.Fatal(err)
				}
				m["packed "+name] = pa
			}
		}
	}
	return m
}

func dimsName(dims []int) string {
	var sb strings.Builder
	for _, d := range dims {
		sb.WriteByte('x')
		sb.WriteByte(byte('0' + d))
	}
	return sb.String()
}

func TestRoundTrip(t *testing.T) {
	for name, e := range sampleExprs(t) {
		t.Run(name, func(t *testing.T) {
			for _, compress := range []bool{false, true} {
				data := mustMarshal(t, e, WithCompression(compress))
				got, err := Unmarshal(data)
				if err != nil {
					t.Fatalf("compress=%v: Unmarshal: %v", compress, err)
				}
				if diff := cmp.Diff(e, got); diff != "" {
					t.Errorf("compress=%v: mismatch (-want +got):\n%s", compress, diff)
				}
			}
		})
	}
}

func TestCompressionTransparency(t *testing.T) {
	e := expr.Call("f", expr.Str(strings.Repeat("abc", 1000)), expr.List(expr.Int(1), expr.Float(2)))
	plain := mustMarshal(t, e)
	packed := mustMarshal(t, e, WithCompression(true))
	if len(packed) >= len(plain) {
		t.Errorf("compressed size %d not smaller than %d", len(packed), len(plain))
	}

	a, err := Unmarshal(plain)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Unmarshal(packed)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("compressed decode differs (-plain +compressed):\n%s", diff)
	}
	if diff := cmp.Diff(expr.Expr(e), a); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_AssociationOrder(t *testing.T) {
	in := Object{{Key: "a", Value: 1}, {Key: "b", Value: 2}, {Key: "a", Value: 3}}
	got, err := Unmarshal(mustMarshal(t, in))
	if err != nil {
		t.Fatal(err)
	}
	a, ok := got.(expr.Association)
	if !ok {
		t.Fatalf("got %T, want expr.Association", got)
	}
	want := []expr.Rule{
		expr.RuleOf(expr.Str("a"), expr.Int(1)),
		expr.RuleOf(expr.Str("b"), expr.Int(2)),
		expr.RuleOf(expr.Str("a"), expr.Int(3)),
	}
	if diff := cmp.Diff(want, a.Entries); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_Truncation(t *testing.T) {
	e := expr.Call("f",
		expr.Str("text"),
		expr.Int(70000),
		expr.Float(1.5),
		expr.BigInt(new(big.Int).Lsh(big.NewInt(1), 80)),
		expr.Assoc(expr.RuleOf(expr.Sym("k"), expr.Bytes([]byte{1, 2, 3}))),
		mustPacked(t, []int{2, 2}, []int32{1, 2, 3, 4}),
	)
	for _, compress := range []bool{false, true} {
		data := mustMarshal(t, e, WithCompression(compress))
		for n := 1; n < len(data); n++ {
			_, err := Unmarshal(data[:n])
			if !errors.Is(err, ErrMalformedStream) {
				t.Fatalf("compress=%v prefix %d/%d: got %v, want ErrMalformedStream", compress, n, len(data), err)
			}
		}
	}
}

func mustPacked[T expr.Number](t *testing.T, dims []int, v []T) expr.PackedArray {
	t.Helper()
	a, err := expr.PackedArrayOf(dims, v)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestUnmarshal_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"empty", nil, "unexpected end of input"},
		{"version 9", []byte("9:C\x01"), "unsupported version"},
		{"bad marker", []byte("8X:C\x01"), "bad compression marker"},
		{"marker without separator", []byte("8CC"), "expected header separator"},
		{"unknown token", body('Z'), "unknown token"},
		{"rule outside association", body('-', 'C', 1, 'C', 2), "outside an association"},
		{"delayed rule outside association", body(':', 'C', 1, 'C', 2), "outside an association"},
		{"association without rule", body('A', 1, 'C', 1, 'C', 2), "expected rule"},
		{"length beyond input", body('S', 5, 'a'), "exceeds remaining"},
		{"trailing bytes", body('C', 1, 'C', 2), "trailing bytes"},
		{"invalid utf8", body('S', 1, 0xff), "not valid UTF-8"},
		{"invalid symbol utf8", body('s', 2, 0xc3, 0x28), "not valid UTF-8"},
		{"bad big integer", body('I', 2, '1', 'x'), "invalid big integer"},
		{"bad big real", body('R', 3, 'a', 'b', 'c'), "invalid big real"},
		{"unknown element type", body(byte(TokenPackedArray), 0x07, 1, 1, 0), "unknown element type"},
		{"unsigned packed", body(byte(TokenPackedArray), 0x10, 1, 1, 5), "not allowed in PackedArray"},
		{"rank zero", body(byte(TokenNumericArray), 0x00, 0), "rank must be at least 1"},
		{"array data short", body(byte(TokenNumericArray), 0x01, 1, 2, 1, 0, 2), "exceeds remaining"},
		{"varint overflow", body('S', 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01), "invalid varint"},
		{"corrupt compressed body", []byte("8C:not zlib"), "invalid compressed body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			var mse *MalformedStreamError
			if !errors.As(err, &mse) {
				t.Fatalf("got %v, want *MalformedStreamError", err)
			}
			if !strings.Contains(mse.Reason, tt.reason) {
				t.Errorf("Reason = %q, want it to contain %q", mse.Reason, tt.reason)
			}
			if !errors.Is(err, ErrMalformedStream) {
				t.Error("error does not match ErrMalformedStream")
			}
		})
	}
}

func TestUnmarshal_TrailingBytes(t *testing.T) {
	v := expr.Call("f", expr.Int(1))
	for _, compress := range []bool{false, true} {
		data := append(mustMarshal(t, v, WithCompression(compress)), "garbage"...)
		_, err := Unmarshal(data)
		var mse *MalformedStreamError
		if !errors.As(err, &mse) {
			t.Fatalf("compress=%v: got %v, want *MalformedStreamError", compress, err)
		}
		if !strings.Contains(mse.Reason, "trailing bytes") {
			t.Errorf("compress=%v: Reason = %q", compress, mse.Reason)
		}
	}
}

func TestUnmarshal_ZeroDimension(t *testing.T) {
	got, err := Unmarshal(body(byte(TokenNumericArray), 0x00, 2, 5, 0))
	if err != nil {
		t.Fatal(err)
	}
	want := expr.Expr(expr.NumericArray{Type: expr.Integer8, Dims: []int{5, 0}, Data: []byte{}})
	if !expr.Equal(want, got) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnmarshal_ErrorOffsets(t *testing.T) {
	_, err := Unmarshal(body('f', 1, 's', 1, 'f', 'Z'))
	var mse *MalformedStreamError
	if !errors.As(err, &mse) {
		t.Fatalf("got %v, want *MalformedStreamError", err)
	}
	if mse.Offset != 7 {
		t.Errorf("Offset = %d, want 7", mse.Offset)
	}

	_, err = Unmarshal(body('S', 2, 'a'))
	if !errors.Is(err, io.ErrUnexpectedEOF) && !strings.Contains(err.Error(), "exceeds remaining") {
		t.Errorf("short string: got %v", err)
	}
}

func TestUnmarshal_InvalidUTF8Sentinel(t *testing.T) {
	_, err := Unmarshal(body('S', 1, 0xff))
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("got %v, want ErrInvalidUTF8", err)
	}
}

func TestUnmarshal_MaxDepth(t *testing.T) {
	e := expr.Expr(expr.Int(1))
	for i := 0; i < 3; i++ {
		e = expr.List(e)
	}
	data := mustMarshal(t, e)

	_, err := Unmarshal(data, WithMaxDepth(2))
	if !errors.Is(err, ErrMaxDepth) || !errors.Is(err, ErrMalformedStream) {
		t.Errorf("depth 2: got %v, want ErrMaxDepth", err)
	}
	if _, err := Unmarshal(data, WithMaxDepth(3)); err != nil {
		t.Errorf("depth 3: %v", err)
	}

	nested := body(bytes.Repeat([]byte{'A', 1, '-', 'C', 1}, 5)...)
	nested = append(nested, 'C', 0)
	if _, err := Unmarshal(nested, WithMaxDepth(4)); !errors.Is(err, ErrMaxDepth) {
		t.Errorf("associations: got %v, want ErrMaxDepth", err)
	}
	if _, err := Unmarshal(nested, WithMaxDepth(5)); err != nil {
		t.Errorf("associations within limit: %v", err)
	}
}

func TestUnmarshal_MaxLength(t *testing.T) {
	data := mustMarshal(t, expr.Str("hello"))
	if _, err := Unmarshal(data, WithMaxLength(4)); !errors.Is(err, ErrMalformedStream) {
		t.Errorf("got %v, want ErrMalformedStream", err)
	}
	if _, err := Unmarshal(data, WithMaxLength(5)); err != nil {
		t.Errorf("at limit: %v", err)
	}

	arr := mustMarshal(t, mustPacked(t, []int{4}, []int64{1, 2, 3, 4}))
	if _, err := Unmarshal(arr, WithMaxLength(16)); !errors.Is(err, ErrMalformedStream) {
		t.Errorf("array payload: got %v, want ErrMalformedStream", err)
	}
}

func TestUnmarshal_TokenHook(t *testing.T) {
	type seen struct {
		Offset int
		Token  Token
	}
	var got []seen
	hook := WithTokenHook(func(off int, tok Token) { got = append(got, seen{off, tok}) })

	data := mustMarshal(t, expr.List(expr.Int(1), expr.Assoc(expr.RuleOf(expr.Sym("a"), expr.Float(2)))))
	if _, err := Unmarshal(data, hook); err != nil {
		t.Fatal(err)
	}
	want := []seen{
		{2, TokenFunction},
		{4, TokenSymbol},
		{10, TokenInteger8},
		{12, TokenAssociation},
		{14, TokenRule},
		{15, TokenSymbol},
		{18, TokenReal64},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens (-want +got):\n%s", diff)
	}
}

func TestDecoder_Stream(t *testing.T) {
	msgs := []expr.Expr{
		expr.Call("f", expr.Int(1)),
		expr.Str(strings.Repeat("z", 500)),
		expr.Assoc(expr.RuleOf(expr.Str("k"), expr.Float(0.5))),
	}
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	zenc := NewEncoder(&buf, WithCompression(true))
	for i, m := range msgs {
		e := enc
		if i == 1 {
			e = zenc
		}
		if err := e.Encode(m); err != nil {
			t.Fatal(err)
		}
	}

	dec := NewDecoder(&buf)
	for i, want := range msgs {
		got, err := dec.Decode()
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("message %d (-want +got):\n%s", i, diff)
		}
	}
	if _, err := dec.Decode(); err != io.EOF {
		t.Errorf("after last message: got %v, want io.EOF", err)
	}
}

func TestDecoder_TruncatedMessage(t *testing.T) {
	data := mustMarshal(t, expr.Call("f", expr.Str("abc")))
	dec := NewDecoder(bytes.NewReader(data[:len(data)-1]))
	_, err := dec.Decode()
	if !errors.Is(err, ErrMalformedStream) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want malformed unexpected EOF", err)
	}
}

func TestDecodeWith_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := DecodeWith[expr.Expr](mustMarshal(t, expr.Str("x")), failingConsumer{boom})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want consumer error", err)
	}
}

type failingConsumer struct {
	err error
}

func (failingConsumer) ConsumeFunction(expr.Expr, []expr.Expr) (expr.Expr, error) { return nil, nil }
func (failingConsumer) ConsumeSymbol(string) (expr.Expr, error)                   { return nil, nil }
func (c failingConsumer) ConsumeString(string) (expr.Expr, error)                 { return nil, c.err }
func (failingConsumer) ConsumeBinaryString([]byte) (expr.Expr, error)             { return nil, nil }
func (failingConsumer) ConsumeInteger(int64) (expr.Expr, error)                   { return nil, nil }
func (failingConsumer) ConsumeBigInteger(*big.Int) (expr.Expr, error)             { return nil, nil }
func (failingConsumer) ConsumeReal(float64) (expr.Expr, error)                    { return nil, nil }
func (failingConsumer) ConsumeBigReal(expr.BigReal) (expr.Expr, error)            { return nil, nil }
func (failingConsumer) ConsumeAssociation([]Entry[expr.Expr]) (expr.Expr, error)  { return nil, nil }
func (failingConsumer) ConsumePackedArray(expr.PackedArray) (expr.Expr, error)    { return nil, nil }
func (failingConsumer) ConsumeNumericArray(expr.NumericArray) (expr.Expr, error)  { return nil, nil }

func BenchmarkUnmarshal(b *testing.B) {
	data, err := Marshal(map[string]any{
		"name":   "bench",
		"values": []float64{1, 2, 3, 4, 5, 6, 7, 8},
		"tags":   []string{"a", "b", "c"},
		"nested": map[string]any{"n": 42, "ok": true},
	})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Unmarshal(data); err != nil {
			b.Fatal(err)
		}
	}
}
