package expr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
)

// ErrArrayShape is returned when dimensions, element type and data length
// disagree.
var ErrArrayShape = errors.New("expr: invalid array shape")

// Number is the set of Go types that map onto array element types. int and
// uint map to the 64-bit element types.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~float32 | ~float64 | ~complex64 | ~complex128
}

// ============================================================
// PackedArray
// ============================================================

// PackedArray is a homogeneous row-major array restricted to signed
// integer, real and complex element types.
type PackedArray struct {
	Type ElementType
	Dims []int
	Data []byte
}

// NewPackedArray validates the shape and returns a PackedArray. data is not
// copied.
func NewPackedArray(t ElementType, dims []int, data []byte) (PackedArray, error) {
	if !t.ValidForPacked() {
		return PackedArray{}, fmt.Errorf("%w: %s not allowed in PackedArray", ErrArrayShape, t)
	}
	if err := ValidateShape(t, dims, len(data)); err != nil {
		return PackedArray{}, err
	}
	return PackedArray{Type: t, Dims: dims, Data: data}, nil
}

// PackedArrayOf builds a PackedArray from a flat Go slice.
func PackedArrayOf[T Number](dims []int, values []T) (PackedArray, error) {
	t, data, err := FromSlice(values)
	if err != nil {
		return PackedArray{}, err
	}
	return NewPackedArray(t, dims, data)
}

func (PackedArray) Kind() Kind { return KindPackedArray }
func (PackedArray) isExpr()    {}

// Equal reports structural equality.
func (a PackedArray) Equal(other Expr) bool {
	o, ok := other.(PackedArray)
	return ok && a.Type == o.Type && slices.Equal(a.Dims, o.Dims) && bytes.Equal(a.Data, o.Data)
}

// Rank returns the number of dimensions.
func (a PackedArray) Rank() int { return len(a.Dims) }

// Len returns the total element count.
func (a PackedArray) Len() int { return elementCount(a.Dims) }

// Values returns the elements as a flat typed slice ([]int8 ... []complex128).
func (a PackedArray) Values() any { return arrayValues(a.Type, a.Data) }

// ============================================================
// NumericArray
// ============================================================

// NumericArray is a homogeneous row-major array of any element type.
type NumericArray struct {
	Type ElementType
	Dims []int
	Data []byte
}

// NewNumericArray validates the shape and returns a NumericArray. data is
// not copied.
func NewNumericArray(t ElementType, dims []int, data []byte) (NumericArray, error) {
	if !t.Valid() {
		return NumericArray{}, fmt.Errorf("%w: unknown element type %s", ErrArrayShape, t)
	}
	if err := ValidateShape(t, dims, len(data)); err != nil {
		return NumericArray{}, err
	}
	return NumericArray{Type: t, Dims: dims, Data: data}, nil
}

// NumericArrayOf builds a NumericArray from a flat Go slice.
func NumericArrayOf[T Number](dims []int, values []T) (NumericArray, error) {
	t, data, err := FromSlice(values)
	if err != nil {
		return NumericArray{}, err
	}
	return NewNumericArray(t, dims, data)
}

func (NumericArray) Kind() Kind { return KindNumericArray }
func (NumericArray) isExpr()    {}

// Equal reports structural equality.
func (a NumericArray) Equal(other Expr) bool {
	o, ok := other.(NumericArray)
	return ok && a.Type == o.Type && slices.Equal(a.Dims, o.Dims) && bytes.Equal(a.Data, o.Data)
}

// Rank returns the number of dimensions.
func (a NumericArray) Rank() int { return len(a.Dims) }

// Len returns the total element count.
func (a NumericArray) Len() int { return elementCount(a.Dims) }

// Values returns the elements as a flat typed slice ([]int8 ... []complex128).
func (a NumericArray) Values() any { return arrayValues(a.Type, a.Data) }

// ============================================================
// Shape Validation
// ============================================================

// ValidateShape checks that dims is non-empty, has no negative entries, and
// that dataLen equals the element count times the element width.
func ValidateShape(t ElementType, dims []int, dataLen int) error {
	size := t.Size()
	if size == 0 {
		return fmt.Errorf("%w: unknown element type %s", ErrArrayShape, t)
	}
	if len(dims) == 0 {
		return fmt.Errorf("%w: rank must be at least 1", ErrArrayShape)
	}
	n, ok := ByteLength(t, dims)
	if !ok {
		return fmt.Errorf("%w: dimensions %v overflow", ErrArrayShape, dims)
	}
	if n != dataLen {
		return fmt.Errorf("%w: dimensions %v of %s need %d bytes, got %d", ErrArrayShape, dims, t, n, dataLen)
	}
	return nil
}

// ByteLength returns the payload size for dims elements of type t. It
// reports false for negative dimensions or when the size overflows int.
func ByteLength(t ElementType, dims []int) (int, bool) {
	n := t.Size()
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

func elementCount(dims []int) int {
	if len(dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// ============================================================
// Go Slice Conversion
// ============================================================

// ElementTypeForKind maps a Go numeric kind to its element type.
func ElementTypeForKind(k reflect.Kind) (ElementType, bool) {
	switch k {
	case reflect.Int8:
		return Integer8, true
	case reflect.Int16:
		return Integer16, true
	case reflect.Int32:
		return Integer32, true
	case reflect.Int64, reflect.Int:
		return Integer64, true
	case reflect.Uint8:
		return UnsignedInteger8, true
	case reflect.Uint16:
		return UnsignedInteger16, true
	case reflect.Uint32:
		return UnsignedInteger32, true
	case reflect.Uint64, reflect.Uint:
		return UnsignedInteger64, true
	case reflect.Float32:
		return Real32, true
	case reflect.Float64:
		return Real64, true
	case reflect.Complex64:
		return ComplexReal32, true
	case reflect.Complex128:
		return ComplexReal64, true
	}
	return 0, false
}

// FromSlice converts a Go slice or array of numbers into an element type and
// its little-endian payload.
func FromSlice(v any) (ElementType, []byte, error) {
	switch s := v.(type) {
	case []float64:
		buf := make([]byte, 0, 8*len(s))
		for _, f := range s {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		}
		return Real64, buf, nil
	case []int64:
		buf := make([]byte, 0, 8*len(s))
		for _, n := range s {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(n))
		}
		return Integer64, buf, nil
	case []int32:
		buf := make([]byte, 0, 4*len(s))
		for _, n := range s {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(n))
		}
		return Integer32, buf, nil
	case []uint8:
		return UnsignedInteger8, slices.Clone(s), nil
	}
	return FromSliceValue(reflect.ValueOf(v))
}

// FromSliceValue is FromSlice for a reflect.Value.
func FromSliceValue(rv reflect.Value) (ElementType, []byte, error) {
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, nil, fmt.Errorf("%w: %s is not a slice", ErrArrayShape, rv.Type())
	}
	t, ok := ElementTypeForKind(rv.Type().Elem().Kind())
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s has no numeric element type", ErrArrayShape, rv.Type())
	}
	n := rv.Len()
	buf := make([]byte, 0, n*t.Size())
	for i := 0; i < n; i++ {
		buf = appendElement(buf, t, rv.Index(i))
	}
	return t, buf, nil
}

func appendElement(buf []byte, t ElementType, v reflect.Value) []byte {
	le := binary.LittleEndian
	switch t {
	case Integer8:
		return append(buf, byte(int8(v.Int())))
	case Integer16:
		return le.AppendUint16(buf, uint16(int16(v.Int())))
	case Integer32:
		return le.AppendUint32(buf, uint32(int32(v.Int())))
	case Integer64:
		return le.AppendUint64(buf, uint64(v.Int()))
	case UnsignedInteger8:
		return append(buf, byte(v.Uint()))
	case UnsignedInteger16:
		return le.AppendUint16(buf, uint16(v.Uint()))
	case UnsignedInteger32:
		return le.AppendUint32(buf, uint32(v.Uint()))
	case UnsignedInteger64:
		return le.AppendUint64(buf, v.Uint())
	case Real32:
		return le.AppendUint32(buf, math.Float32bits(float32(v.Float())))
	case Real64:
		return le.AppendUint64(buf, math.Float64bits(v.Float()))
	case ComplexReal32:
		c := v.Complex()
		buf = le.AppendUint32(buf, math.Float32bits(float32(real(c))))
		return le.AppendUint32(buf, math.Float32bits(float32(imag(c))))
	case ComplexReal64:
		c := v.Complex()
		buf = le.AppendUint64(buf, math.Float64bits(real(c)))
		return le.AppendUint64(buf, math.Float64bits(imag(c)))
	}
	return buf
}

// arrayValues decodes a little-endian payload. The data length is assumed
// to be a multiple of the element width.
func arrayValues(t ElementType, data []byte) any {
	le := binary.LittleEndian
	size := t.Size()
	if size == 0 {
		return nil
	}
	n := len(data) / size
	switch t {
	case Integer8:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(data[i])
		}
		return out
	case Integer16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(le.Uint16(data[2*i:]))
		}
		return out
	case Integer32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(le.Uint32(data[4*i:]))
		}
		return out
	case Integer64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(le.Uint64(data[8*i:]))
		}
		return out
	case UnsignedInteger8:
		return slices.Clone(data[:n])
	case UnsignedInteger16:
		out := make([]uint16, n)
		for i := range out {
			out[i] = le.Uint16(data[2*i:])
		}
		return out
	case UnsignedInteger32:
		out := make([]uint32, n)
		for i := range out {
			out[i] = le.Uint32(data[4*i:])
		}
		return out
	case UnsignedInteger64:
		out := make([]uint64, n)
		for i := range out {
			out[i] = le.Uint64(data[8*i:])
		}
		return out
	case Real32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(data[4*i:]))
		}
		return out
	case Real64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(data[8*i:]))
		}
		return out
	case ComplexReal32:
		out := make([]complex64, n)
		for i := range out {
			re := math.Float32frombits(le.Uint32(data[8*i:]))
			im := math.Float32frombits(le.Uint32(data[8*i+4:]))
			out[i] = complex(re, im)
		}
		return out
	case ComplexReal64:
		out := make([]complex128, n)
		for i := range out {
			re := math.Float64frombits(le.Uint64(data[16*i:]))
			im := math.Float64frombits(le.Uint64(data[16*i+8:]))
			out[i] = complex(re, im)
		}
		return out
	}
	return nil
}
