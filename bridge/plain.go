package bridge

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/wxf"
)

// plain lowers a native decode result to the generic values the JSON, CBOR
// and MessagePack encoders understand. Objects become maps (the last of
// repeated keys wins), higher-rank arrays become nested slices and other
// expressions become InputForm text. With bigAsString, *big.Int is written
// as decimal text.
func plain(v any, bigAsString bool) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, []byte, int64, uint64, float64:
		return x, nil
	case *big.Int:
		if bigAsString {
			return x.String(), nil
		}
		return x, nil
	case *big.Rat:
		return x.RatString(), nil
	case complex128:
		return []any{real(x), imag(x)}, nil
	case expr.Symbol:
		return string(x), nil
	case expr.BigReal:
		return x.Text(), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			p, err := plain(e, bigAsString)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = p
		}
		return out, nil
	case wxf.Object:
		return plainObject(x, bigAsString)
	case expr.PackedArray:
		return nest(reflect.ValueOf(x.Values()), x.Dims), nil
	case expr.NumericArray:
		return nest(reflect.ValueOf(x.Values()), x.Dims), nil
	case wxf.Call, expr.Expr:
		return inputForm(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		// Typed numeric slices from rank-1 arrays.
		if _, ok := expr.ElementTypeForKind(rv.Type().Elem().Kind()); ok {
			return v, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32:
		return rv.Float(), nil
	}
	return inputForm(v), nil
}

func plainObject(o wxf.Object, bigAsString bool) (any, error) {
	allStrings := true
	for _, m := range o {
		if _, ok := m.Key.(string); !ok {
			allStrings = false
			break
		}
	}

	if allStrings {
		out := make(map[string]any, len(o))
		for _, m := range o {
			p, err := plain(m.Value, bigAsString)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", m.Key, err)
			}
			out[m.Key.(string)] = p
		}
		return out, nil
	}

	out := make(map[any]any, len(o))
	for _, m := range o {
		k, err := plain(m.Key, bigAsString)
		if err != nil {
			return nil, err
		}
		if !reflect.ValueOf(k).Comparable() {
			k = inputForm(m.Key)
		}
		p, err := plain(m.Value, bigAsString)
		if err != nil {
			return nil, fmt.Errorf("[%v]: %w", k, err)
		}
		out[k] = p
	}
	return out, nil
}

// nest reshapes a flat typed slice into nested []any following dims.
func nest(flat reflect.Value, dims []int) any {
	if len(dims) <= 1 {
		return flat.Interface()
	}
	stride := 1
	for _, d := range dims[1:] {
		stride *= d
	}
	out := make([]any, dims[0])
	for i := range out {
		out[i] = nest(flat.Slice(i*stride, (i+1)*stride), dims[1:])
	}
	return out
}

// inputForm renders a native value as InputForm text.
func inputForm(v any) string {
	e, err := wxf.ToExpr(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return expr.Format(e)
}
