package wxf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/extobj"
)

func TestSerialize(t *testing.T) {
	v := map[string]any{"x": []any{1, "a"}, "y": true}

	t.Run("wxf", func(t *testing.T) {
		got, err := Serialize(v, SerializeOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, mustMarshal(t, v)) {
			t.Error("default target differs from Marshal")
		}
	})

	t.Run("wxf compressed", func(t *testing.T) {
		got, err := Serialize(v, SerializeOptions{TargetFormat: FormatWXF, Compress: true})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(got, []byte("8C:")) {
			t.Errorf("header = %q", got[:3])
		}
	})

	t.Run("wl", func(t *testing.T) {
		got, err := Serialize(v, SerializeOptions{TargetFormat: FormatWL})
		if err != nil {
			t.Fatal(err)
		}
		want := `<|"x" -> {1, "a"}, "y" -> True|>`
		if string(got) != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := Serialize(v, SerializeOptions{TargetFormat: "json"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("external objects", func(t *testing.T) {
		objects := extobj.NewRegistry()
		got, err := Serialize(make(chan int), SerializeOptions{TargetFormat: FormatWL, ExternalObjects: objects})
		if err != nil {
			t.Fatal(err)
		}
		want := `ExternalObject[<|"ObjectID" -> 1, "Type" -> "chan int"|>]`
		if string(got) != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := Serialize(make(chan int), SerializeOptions{}); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("got %v, want ErrUnsupportedType", err)
		}
	})
}

func TestDeserialize(t *testing.T) {
	want := expr.Expr(expr.Call("f", expr.Int(1), expr.Str("s")))

	for _, compress := range []bool{false, true} {
		got, err := Deserialize(mustMarshal(t, want, WithCompression(compress)), DeserializeOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("compress=%v (-want +got):\n%s", compress, diff)
		}
	}

	t.Run("consumer", func(t *testing.T) {
		data := mustMarshal(t, map[string]any{"a": []int64{1, 2}})
		got, err := Deserialize(data, DeserializeOptions{Consumer: NativeConsumer{}})
		if err != nil {
			t.Fatal(err)
		}
		want := Object{{Key: "a", Value: []int64{1, 2}}}
		if diff := cmp.Diff(any(want), got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("wl", func(t *testing.T) {
		got, err := Deserialize([]byte(`f[1, "s"]`), DeserializeOptions{SourceFormat: FormatWL})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(any(want), got); diff != "" {
			t.Errorf("text (-want +got):\n%s", diff)
		}
		if _, err := Deserialize([]byte("f["), DeserializeOptions{SourceFormat: FormatWL}); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := Deserialize(nil, DeserializeOptions{SourceFormat: "json"}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestDeserialize_Malformed(t *testing.T) {
	for _, in := range []string{"9:C\x01", "8", "f[1]", "", "8:C\x01 "} {
		_, err := Deserialize([]byte(in), DeserializeOptions{})
		if !errors.Is(err, ErrMalformedStream) {
			t.Errorf("Deserialize(%q) = %v, want ErrMalformedStream", in, err)
		}
	}
}

func TestDeserialize_Truncation(t *testing.T) {
	v := expr.Call("f", expr.Str("text"), expr.Assoc(expr.RuleOf(expr.Int(300), expr.Float(1.5))))
	for _, compress := range []bool{false, true} {
		data := mustMarshal(t, v, WithCompression(compress))
		for n := 0; n < len(data); n++ {
			_, err := Deserialize(data[:n], DeserializeOptions{})
			if !errors.Is(err, ErrMalformedStream) {
				t.Errorf("compress=%v prefix %d: got %v, want ErrMalformedStream", compress, n, err)
			}
		}
	}
}

func TestIsWXF(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"8:C\x01", true},
		{"8C:x", true},
		{"8", false},
		{"8C", false},
		{"f[x]", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsWXF([]byte(tt.in)); got != tt.want {
			t.Errorf("IsWXF(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToExpr(t *testing.T) {
	got, err := ToExpr([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(expr.Expr(expr.List(expr.Str("a"))), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	sym := expr.Sym("x")
	got, err = ToExpr(sym)
	if err != nil || !expr.Equal(got, sym) {
		t.Errorf("ToExpr(expr) = %v, %v", got, err)
	}
}
