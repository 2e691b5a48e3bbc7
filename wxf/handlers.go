package wxf

import (
	"cmp"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"slices"

	"github.com/Neumenon/wxf/dispatch"
	"github.com/Neumenon/wxf/expr"
)

var defaultRegistry = newDefaultRegistry()

// DefaultRegistry returns a copy of the built-in handler registry, ready to
// be extended and passed to WithRegistry.
func DefaultRegistry() *dispatch.Registry[EncodeFunc] {
	return defaultRegistry.Clone()
}

// Register adds a handler for T to the process-wide registry used when no
// WithRegistry option is given. Call it during initialization.
func Register[T any](fn EncodeFunc) {
	dispatch.Register[T](defaultRegistry, fn)
}

func newDefaultRegistry() *dispatch.Registry[EncodeFunc] {
	r := dispatch.New[EncodeFunc]()

	r.RegisterKind(reflect.Bool, encodeBool)
	for _, k := range []reflect.Kind{reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64} {
		r.RegisterKind(k, encodeInt)
	}
	for _, k := range []reflect.Kind{reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr} {
		r.RegisterKind(k, encodeUint)
	}
	r.RegisterKind(reflect.Float32, encodeFloat)
	r.RegisterKind(reflect.Float64, encodeFloat)
	r.RegisterKind(reflect.Complex64, encodeComplex)
	r.RegisterKind(reflect.Complex128, encodeComplex)
	r.RegisterKind(reflect.String, encodeString)
	r.RegisterKind(reflect.Slice, encodeSlice)
	r.RegisterKind(reflect.Array, encodeSlice)
	r.RegisterKind(reflect.Map, encodeMap)

	dispatch.Register[*big.Int](r, encodeBigInt)
	dispatch.Register[*big.Float](r, encodeBigFloat)
	dispatch.Register[*big.Rat](r, encodeBigRat)
	dispatch.Register[Call](r, encodeCall)
	dispatch.Register[Object](r, encodeObject)

	dispatch.Register[Marshaler](r, encodeMarshaler)
	// Streams are never read or written by the codec; they always take the
	// fallback path.
	dispatch.Register[io.Reader](r, encodeFallback)
	dispatch.Register[io.Writer](r, encodeFallback)
	return r
}

// ============================================================
// Scalars
// ============================================================

func encodeBool(s *Serializer, v any) error {
	s.WriteSymbol(string(expr.Bool(reflect.ValueOf(v).Bool())))
	return nil
}

func encodeInt(s *Serializer, v any) error {
	s.WriteInteger(reflect.ValueOf(v).Int())
	return nil
}

func encodeUint(s *Serializer, v any) error {
	s.WriteUint(reflect.ValueOf(v).Uint())
	return nil
}

func encodeFloat(s *Serializer, v any) error {
	s.WriteReal(reflect.ValueOf(v).Float())
	return nil
}

func encodeComplex(s *Serializer, v any) error {
	c := reflect.ValueOf(v).Complex()
	s.WriteFunction(2)
	s.WriteSymbol(string(expr.SymComplex))
	s.WriteReal(real(c))
	s.WriteReal(imag(c))
	return nil
}

func encodeString(s *Serializer, v any) error {
	return s.WriteString(reflect.ValueOf(v).String())
}

func encodeBigInt(s *Serializer, v any) error {
	s.WriteBigInteger(v.(*big.Int))
	return nil
}

func encodeBigFloat(s *Serializer, v any) error {
	f := v.(*big.Float)
	if f.IsInf() {
		dir := int64(1)
		if f.Signbit() {
			dir = -1
		}
		s.WriteFunction(1)
		s.WriteSymbol(string(expr.SymDirectedInfinity))
		s.WriteInteger(dir)
		return nil
	}
	return s.WriteBigReal(expr.BigRealFromFloat(f))
}

func encodeBigRat(s *Serializer, v any) error {
	r := v.(*big.Rat)
	if r.IsInt() {
		s.WriteBigInteger(r.Num())
		return nil
	}
	s.WriteFunction(2)
	s.WriteSymbol(string(expr.SymRational))
	s.WriteBigInteger(r.Num())
	s.WriteBigInteger(r.Denom())
	return nil
}

// ============================================================
// Containers
// ============================================================

func encodeCall(s *Serializer, v any) error {
	c := v.(Call)
	return s.Function(c.Head, c.Args...)
}

func encodeObject(s *Serializer, v any) error {
	o := v.(Object)
	s.WriteAssociation(len(o))
	for _, m := range o {
		s.WriteRule(m.Delayed)
		if err := s.Encode(m.Key); err != nil {
			return err
		}
		if err := s.Encode(m.Value); err != nil {
			return err
		}
	}
	return nil
}

func encodeMarshaler(s *Serializer, v any) error {
	e, err := v.(Marshaler).MarshalWXF()
	if err != nil {
		return fmt.Errorf("wxf: MarshalWXF for %T: %w", v, err)
	}
	return s.WriteExpr(e)
}

func encodeFallback(s *Serializer, v any) error {
	return s.Fallback(v)
}

// encodeSlice writes []byte as a BinaryString, rectangular numeric slices
// and arrays as a PackedArray (NumericArray for unsigned elements), and
// everything else as List[...].
func encodeSlice(s *Serializer, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		s.WriteBinaryString(rv.Bytes())
		return nil
	}

	if !s.opts.ListSlices {
		if ok, err := writeNumericSlice(s, rv); ok || err != nil {
			return err
		}
	}

	n := rv.Len()
	s.WriteFunction(n)
	s.WriteSymbol(string(expr.SymList))
	for i := 0; i < n; i++ {
		if err := s.Encode(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// writeNumericSlice reports false when rv is not a rectangular nesting of
// numeric slices.
func writeNumericSlice(s *Serializer, rv reflect.Value) (bool, error) {
	rank := 0
	t := rv.Type()
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		// Nested byte slices stay a list of binary strings.
		if rank > 0 && t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return false, nil
		}
		t = t.Elem()
		rank++
	}
	et, ok := expr.ElementTypeForKind(t.Kind())
	if !ok {
		return false, nil
	}

	dims := make([]int, rank)
	for i := range dims {
		dims[i] = -1
	}
	var data []byte
	var walk func(v reflect.Value, level int) (bool, error)
	walk = func(v reflect.Value, level int) (bool, error) {
		n := v.Len()
		if dims[level] < 0 {
			dims[level] = n
		} else if dims[level] != n {
			return false, nil
		}
		if level == rank-1 {
			_, b, err := expr.FromSliceValue(v)
			if err != nil {
				return false, err
			}
			data = append(data, b...)
			return true, nil
		}
		for i := 0; i < n; i++ {
			if ok, err := walk(v.Index(i), level+1); !ok || err != nil {
				return ok, err
			}
		}
		return true, nil
	}
	if ok, err := walk(rv, 0); !ok || err != nil {
		return false, err
	}
	for i := range dims {
		if dims[i] < 0 {
			dims[i] = 0
		}
	}

	if et.ValidForPacked() {
		return true, s.WritePackedArray(expr.PackedArray{Type: et, Dims: dims, Data: data})
	}
	return true, s.WriteNumericArray(expr.NumericArray{Type: et, Dims: dims, Data: data})
}

// encodeMap writes an Association with keys in a deterministic order.
func encodeMap(s *Serializer, v any) error {
	rv := reflect.ValueOf(v)
	keys := rv.MapKeys()
	slices.SortFunc(keys, compareKeys)

	s.WriteAssociation(len(keys))
	for _, k := range keys {
		s.WriteRule(false)
		if err := s.Encode(k.Interface()); err != nil {
			return err
		}
		if err := s.Encode(rv.MapIndex(k).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func compareKeys(a, b reflect.Value) int {
	if a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	if b.Kind() == reflect.Interface {
		b = b.Elem()
	}
	if !a.IsValid() || !b.IsValid() {
		return cmp.Compare(boolInt(a.IsValid()), boolInt(b.IsValid()))
	}
	if a.Kind() != b.Kind() {
		return cmp.Compare(a.Kind(), b.Kind())
	}
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Bool:
		return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool()))
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
