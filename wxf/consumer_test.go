package wxf

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/extobj"
)

func decodeNative(t *testing.T, data []byte, c NativeConsumer) any {
	t.Helper()
	v, err := DecodeWith[any](data, c)
	if err != nil {
		t.Fatalf("DecodeWith: %v", err)
	}
	return v
}

func TestNativeConsumer(t *testing.T) {
	matrix, err := expr.PackedArrayOf([]int{2, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"true", true, true},
		{"null", nil, nil},
		{"symbol", expr.Sym("x"), expr.Symbol("x")},
		{"int", 42, int64(42)},
		{"float", 2.5, 2.5},
		{"string", "s", "s"},
		{"bytes", []byte{1, 2}, []byte{1, 2}},
		{"empty list", []any{}, []any{}},
		{"list", []any{"x", true, nil, 1}, []any{"x", true, nil, int64(1)}},
		{"int32 slice", []int32{1, -2}, []int32{1, -2}},
		{"float slice", []float64{0.5}, []float64{0.5}},
		{"uint32 slice", []uint32{7}, []uint32{7}},
		{"matrix", matrix, matrix},
		{"complex", complex(1, 2), complex(1, 2)},
		{"big real", mustBigReal(t, "1.25", 30), mustBigReal(t, "1.25", 30)},
		{"call", Call{Head: expr.Sym("f"), Args: []any{1}}, Call{Head: expr.Symbol("f"), Args: []any{int64(1)}}},
		{
			"object",
			map[string]any{"b": []any{}, "a": 1},
			Object{{Key: "a", Value: int64(1)}, {Key: "b", Value: []any{}}},
		},
		{
			"delayed",
			expr.Assoc(expr.DelayedRuleOf(expr.Str("k"), expr.Sym("v"))),
			Object{{Key: "k", Value: expr.Symbol("v"), Delayed: true}},
		},
		{
			"non-symbol head",
			expr.Func(expr.Str("h"), expr.Int(1)),
			Call{Head: "h", Args: []any{int64(1)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeNative(t, mustMarshal(t, tt.in), NativeConsumer{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNativeConsumer_BigNumbers(t *testing.T) {
	huge, _ := new(big.Int).SetString("-99999999999999999999999", 10)
	got := decodeNative(t, mustMarshal(t, huge), NativeConsumer{})
	n, ok := got.(*big.Int)
	if !ok || n.Cmp(huge) != 0 {
		t.Errorf("got %v (%T), want %v", got, got, huge)
	}

	got = decodeNative(t, mustMarshal(t, big.NewRat(-2, 6)), NativeConsumer{})
	r, ok := got.(*big.Rat)
	if !ok || r.Cmp(big.NewRat(-1, 3)) != 0 {
		t.Errorf("got %v (%T), want -1/3", got, got)
	}
}

func TestNativeConsumer_RoundTrip(t *testing.T) {
	in := Object{
		{Key: "id", Value: int64(7)},
		{Key: "tags", Value: []any{"a", "b"}},
		{Key: "f", Value: Call{Head: expr.Symbol("g"), Args: []any{2.5}}},
		{Key: "id", Value: int64(8)},
	}
	first := decodeNative(t, mustMarshal(t, in), NativeConsumer{})
	if diff := cmp.Diff(any(in), first); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	second := decodeNative(t, mustMarshal(t, first), NativeConsumer{})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second pass differs (-first +second):\n%s", diff)
	}

	id, ok := first.(Object).Get("id")
	if !ok || id != int64(8) {
		t.Errorf("Get(id) = %v, %v; want 8 (last entry)", id, ok)
	}
	if diff := cmp.Diff([]any{"id", "tags", "f", "id"}, first.(Object).Keys()); diff != "" {
		t.Errorf("Keys (-want +got):\n%s", diff)
	}
}

type handle struct{ fd int }

func TestExternalObjects_RoundTrip(t *testing.T) {
	objects := extobj.NewRegistry()
	h := handle{fd: 3}
	callback := func() int { return 11 }

	data := mustMarshal(t, []any{h, callback, h}, WithExternalObjects(objects))
	if objects.Len() != 2 {
		t.Errorf("registry holds %d objects, want 2", objects.Len())
	}

	// Without a registry the placeholders stay visible.
	tree, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	want := expr.Expr(expr.List(
		expr.ExternalObject{ID: 1, TypeName: "wxf.handle"},
		expr.ExternalObject{ID: 2, Function: true, TypeName: "func() int"},
		expr.ExternalObject{ID: 1, TypeName: "wxf.handle"},
	))
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}

	got := decodeNative(t, data, NativeConsumer{Objects: objects}).([]any)
	if len(got) != 3 {
		t.Fatalf("got %d values, want 3", len(got))
	}
	if got[0] != h || got[2] != h {
		t.Errorf("handles = %v, %v; want %v", got[0], got[2], h)
	}
	fn, ok := got[1].(func() int)
	if !ok {
		t.Fatalf("got[1] is %s, want func() int", reflect.TypeOf(got[1]))
	}
	if fn() != 11 {
		t.Errorf("callback returned %d", fn())
	}
}

func TestExternalObjects_UnknownID(t *testing.T) {
	data := mustMarshal(t, expr.ExternalObject{ID: 99})
	_, err := DecodeWith[any](data, NativeConsumer{Objects: extobj.NewRegistry()})
	if !errors.Is(err, extobj.ErrUnknownObject) {
		t.Errorf("got %v, want ErrUnknownObject", err)
	}
}

func TestExprConsumer_ExternalPattern(t *testing.T) {
	// A Function that only resembles the placeholder stays a Function.
	near := expr.Call("ExternalObject", expr.Assoc(expr.RuleOf(expr.Str("Other"), expr.Int(1))))
	got, err := Unmarshal(mustMarshal(t, near))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(expr.Function); !ok {
		t.Errorf("got %T, want expr.Function", got)
	}
}
