package wxf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"

	"github.com/Neumenon/wxf/expr"
)

// EncodeFunc encodes one Go value through the Serializer.
type EncodeFunc func(s *Serializer, v any) error

// Marshaler is implemented by types that convert themselves to an
// expression.
type Marshaler interface {
	MarshalWXF() (expr.Expr, error)
}

// Marshal returns the WXF encoding of v.
func Marshal(v any, opts ...EncodeOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, opts...).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ============================================================
// Encoder
// ============================================================

// Encoder writes WXF messages to an output stream.
type Encoder struct {
	w    io.Writer
	opts EncodeOptions
}

// NewEncoder returns an encoder that writes to w.
func NewEncoder(w io.Writer, opts ...EncodeOption) *Encoder {
	return &Encoder{w: w, opts: buildEncodeOptions(opts)}
}

// Encode writes one complete message for v. Nothing is written when
// encoding fails.
func (enc *Encoder) Encode(v any) error {
	s := &Serializer{opts: &enc.opts}
	if err := s.Encode(v); err != nil {
		return err
	}
	return writeMessage(enc.w, s.buf, enc.opts.Compress)
}

func writeMessage(w io.Writer, body []byte, compress bool) error {
	if !compress {
		if _, err := w.Write([]byte{Version, HeaderSeparator}); err != nil {
			return fmt.Errorf("wxf: write header: %w", err)
		}
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("wxf: write body: %w", err)
		}
		return nil
	}

	if _, err := w.Write([]byte{Version, CompressMarker, HeaderSeparator}); err != nil {
		return fmt.Errorf("wxf: write header: %w", err)
	}
	zw := zlib.NewWriter(w)
	if _, err := zw.Write(body); err != nil {
		return fmt.Errorf("wxf: compress body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("wxf: compress body: %w", err)
	}
	return nil
}

// ============================================================
// Serializer
// ============================================================

// Serializer accumulates the body of one message. Encode handlers use its
// Write methods to emit nodes and Encode to recurse into children.
//
// WriteFunction and WriteAssociation only write the node header: the caller
// must follow with the head and arguments, or with the rules, it announced.
type Serializer struct {
	buf   []byte
	opts  *EncodeOptions
	depth int
}

// Encode writes v, dispatching Go values through the handler registry.
func (s *Serializer) Encode(v any) error {
	if s.depth >= s.opts.MaxDepth {
		return fmt.Errorf("%w: more than %d levels", ErrMaxDepth, s.opts.MaxDepth)
	}
	s.depth++
	defer func() { s.depth-- }()

	if v == nil {
		s.WriteSymbol(string(expr.SymNull))
		return nil
	}
	if e, ok := v.(expr.Expr); ok {
		return s.writeExpr(e)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		s.WriteSymbol(string(expr.SymNull))
		return nil
	}
	if h, pv, ok := s.opts.Registry.Resolve(rv); ok {
		return h(s, pv.Interface())
	}
	return s.Fallback(v)
}

// Fallback runs the object processor, then the external object registry,
// for a value no handler claims. Output written by a processor that
// declines is discarded.
func (s *Serializer) Fallback(v any) error {
	log := s.opts.Logger

	if p := s.opts.ObjectProcessor; p != nil {
		mark := len(s.buf)
		err := p(s, v)
		if !errors.Is(err, ErrUnsupportedType) {
			if err == nil {
				log.Debug("wxf: object processor encoded value", "type", fmt.Sprintf("%T", v))
			}
			return err
		}
		s.buf = s.buf[:mark]
		log.Debug("wxf: object processor declined value", "type", fmt.Sprintf("%T", v))
	}

	if r := s.opts.ExternalObjects; r != nil {
		x := expr.ExternalObject{
			ID:       r.Put(v),
			Function: reflect.TypeOf(v).Kind() == reflect.Func,
			TypeName: fmt.Sprintf("%T", v),
		}
		log.Debug("wxf: stored external object", "id", x.ID, "type", x.TypeName)
		return s.writeExpr(x)
	}

	return &UnsupportedTypeError{Type: reflect.TypeOf(v)}
}

// WriteExpr writes an expression tree.
func (s *Serializer) WriteExpr(e expr.Expr) error {
	if s.depth >= s.opts.MaxDepth {
		return fmt.Errorf("%w: more than %d levels", ErrMaxDepth, s.opts.MaxDepth)
	}
	s.depth++
	defer func() { s.depth-- }()
	return s.writeExpr(e)
}

func (s *Serializer) writeExpr(e expr.Expr) error {
	switch x := e.(type) {
	case nil:
		s.WriteSymbol(string(expr.SymNull))
		return nil
	case expr.Function:
		s.WriteFunction(len(x.Args))
		if err := s.WriteExpr(x.Head); err != nil {
			return err
		}
		for _, arg := range x.Args {
			if err := s.WriteExpr(arg); err != nil {
				return err
			}
		}
		return nil
	case expr.Symbol:
		return s.writeText(TokenSymbol, string(x))
	case expr.String:
		return s.writeText(TokenString, string(x))
	case expr.BinaryString:
		s.WriteBinaryString(x)
		return nil
	case expr.Integer:
		if x.IsInt64() {
			s.WriteInteger(x.Int64())
		} else {
			s.WriteBigInteger(x.Big())
		}
		return nil
	case expr.Real:
		s.WriteReal(float64(x))
		return nil
	case expr.BigReal:
		return s.WriteBigReal(x)
	case expr.Association:
		s.WriteAssociation(len(x.Entries))
		for _, r := range x.Entries {
			s.WriteRule(r.Delayed)
			if err := s.WriteExpr(r.Key); err != nil {
				return err
			}
			if err := s.WriteExpr(r.Value); err != nil {
				return err
			}
		}
		return nil
	case expr.PackedArray:
		return s.WritePackedArray(x)
	case expr.NumericArray:
		return s.WriteNumericArray(x)
	case expr.ExternalObject:
		return s.writeExpr(x.Expand())
	}

	// Pointers to expression values.
	rv := reflect.ValueOf(e)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			s.WriteSymbol(string(expr.SymNull))
			return nil
		}
		if inner, ok := rv.Elem().Interface().(expr.Expr); ok {
			return s.writeExpr(inner)
		}
	}
	return &UnsupportedTypeError{Type: rv.Type()}
}

// Function writes head[args...], encoding head and each argument.
func (s *Serializer) Function(head any, args ...any) error {
	s.WriteFunction(len(args))
	if err := s.Encode(head); err != nil {
		return err
	}
	for _, a := range args {
		if err := s.Encode(a); err != nil {
			return err
		}
	}
	return nil
}

// WriteFunction writes a Function header announcing argc arguments.
func (s *Serializer) WriteFunction(argc int) {
	s.buf = append(s.buf, byte(TokenFunction))
	s.buf = AppendVarint(s.buf, uint64(argc))
}

// WriteSymbol writes a symbol. Invalid UTF-8 is replaced; use WriteExpr for
// a checked write.
func (s *Serializer) WriteSymbol(name string) {
	if !utf8.ValidString(name) {
		name = string(bytes.ToValidUTF8([]byte(name), []byte("�")))
	}
	s.writeBytes(TokenSymbol, name)
}

// WriteString writes a UTF-8 string.
func (s *Serializer) WriteString(str string) error {
	return s.writeText(TokenString, str)
}

func (s *Serializer) writeText(t Token, text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w in %s %q", ErrInvalidUTF8, t, text)
	}
	s.writeBytes(t, text)
	return nil
}

func (s *Serializer) writeBytes(t Token, data string) {
	s.buf = append(s.buf, byte(t))
	s.buf = AppendVarint(s.buf, uint64(len(data)))
	s.buf = append(s.buf, data...)
}

// WriteBinaryString writes raw bytes.
func (s *Serializer) WriteBinaryString(b []byte) {
	s.buf = append(s.buf, byte(TokenBinaryString))
	s.buf = AppendVarint(s.buf, uint64(len(b)))
	s.buf = append(s.buf, b...)
}

// WriteInteger writes n with the narrowest fixed width that holds it.
func (s *Serializer) WriteInteger(n int64) {
	le := binary.LittleEndian
	switch {
	case n >= math.MinInt8 && n <= math.MaxInt8:
		s.buf = append(s.buf, byte(TokenInteger8), byte(int8(n)))
	case n >= math.MinInt16 && n <= math.MaxInt16:
		s.buf = le.AppendUint16(append(s.buf, byte(TokenInteger16)), uint16(int16(n)))
	case n >= math.MinInt32 && n <= math.MaxInt32:
		s.buf = le.AppendUint32(append(s.buf, byte(TokenInteger32)), uint32(int32(n)))
	default:
		s.buf = le.AppendUint64(append(s.buf, byte(TokenInteger64)), uint64(n))
	}
}

// WriteUint writes an unsigned integer, switching to BigInteger above
// MaxInt64.
func (s *Serializer) WriteUint(n uint64) {
	if n <= math.MaxInt64 {
		s.WriteInteger(int64(n))
		return
	}
	s.WriteBigInteger(new(big.Int).SetUint64(n))
}

// WriteBigInteger writes n, as a fixed-width integer when it fits in int64
// and as decimal digits otherwise.
func (s *Serializer) WriteBigInteger(n *big.Int) {
	if n.IsInt64() {
		s.WriteInteger(n.Int64())
		return
	}
	s.writeBytes(TokenBigInteger, n.String())
}

// WriteReal writes an IEEE-754 double.
func (s *Serializer) WriteReal(f float64) {
	s.buf = append(s.buf, byte(TokenReal64))
	s.buf = binary.LittleEndian.AppendUint64(s.buf, math.Float64bits(f))
}

// WriteBigReal writes an arbitrary-precision real as its text form. The
// digits are normalized the way NewBigReal does, so a value built as a
// struct literal decodes to the same node.
func (s *Serializer) WriteBigReal(r expr.BigReal) error {
	r, err := expr.NewBigReal(r.Digits, r.Precision)
	if err != nil {
		return err
	}
	s.writeBytes(TokenBigReal, r.Text())
	return nil
}

// WriteAssociation writes an Association header announcing n rules.
func (s *Serializer) WriteAssociation(n int) {
	s.buf = append(s.buf, byte(TokenAssociation))
	s.buf = AppendVarint(s.buf, uint64(n))
}

// WriteRule writes the token that starts one association entry. The key
// and value follow.
func (s *Serializer) WriteRule(delayed bool) {
	if delayed {
		s.buf = append(s.buf, byte(TokenRuleDelayed))
	} else {
		s.buf = append(s.buf, byte(TokenRule))
	}
}

// WritePackedArray validates and writes a packed array.
func (s *Serializer) WritePackedArray(a expr.PackedArray) error {
	if _, err := expr.NewPackedArray(a.Type, a.Dims, a.Data); err != nil {
		return err
	}
	s.writeArray(TokenPackedArray, a.Type, a.Dims, a.Data)
	return nil
}

// WriteNumericArray validates and writes a numeric array.
func (s *Serializer) WriteNumericArray(a expr.NumericArray) error {
	if _, err := expr.NewNumericArray(a.Type, a.Dims, a.Data); err != nil {
		return err
	}
	s.writeArray(TokenNumericArray, a.Type, a.Dims, a.Data)
	return nil
}

func (s *Serializer) writeArray(t Token, et expr.ElementType, dims []int, data []byte) {
	s.buf = append(s.buf, byte(t), byte(et))
	s.buf = AppendVarint(s.buf, uint64(len(dims)))
	for _, d := range dims {
		s.buf = AppendVarint(s.buf, uint64(d))
	}
	s.buf = append(s.buf, data...)
}
