package wxf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"

	"github.com/Neumenon/wxf/expr"
)

// Unmarshal decodes one complete message into an expression tree. Bytes
// after the root node are an error.
func Unmarshal(data []byte, opts ...DecodeOption) (expr.Expr, error) {
	return DecodeWith[expr.Expr](data, ExprConsumer{}, opts...)
}

// DecodeWith decodes one complete message, building the result with c.
func DecodeWith[T any](data []byte, c Consumer[T], opts ...DecodeOption) (T, error) {
	o := buildDecodeOptions(opts)
	r := bytes.NewReader(data)
	return decodeMessage(r, len(data), c, &o, true)
}

// ============================================================
// Decoder
// ============================================================

// Decoder reads consecutive WXF messages from a stream.
type Decoder struct {
	r    *bufio.Reader
	opts DecodeOptions
}

// NewDecoder returns a decoder that reads from r.
func NewDecoder(r io.Reader, opts ...DecodeOption) *Decoder {
	return &Decoder{r: bufio.NewReader(r), opts: buildDecodeOptions(opts)}
}

// Decode reads the next message. It returns io.EOF when the stream ends
// cleanly between messages.
func (d *Decoder) Decode() (expr.Expr, error) {
	return DecodeNext[expr.Expr](d, ExprConsumer{})
}

// DecodeNext reads the next message from d, building the result with c.
func DecodeNext[T any](d *Decoder, c Consumer[T]) (T, error) {
	if _, err := d.r.Peek(1); err != nil {
		var zero T
		if errors.Is(err, io.EOF) {
			return zero, io.EOF
		}
		return zero, fmt.Errorf("wxf: read: %w", err)
	}
	return decodeMessage(d.r, -1, c, &d.opts, false)
}

// ============================================================
// Message Parser
// ============================================================

type byteSource interface {
	io.Reader
	io.ByteReader
}

type parser[T any] struct {
	r         byteSource
	off       int
	remaining int // bytes left in the source, -1 when unknown
	c         Consumer[T]
	opts      *DecodeOptions
	depth     int
}

// decodeMessage parses the header and one root node. size is the number of
// source bytes when known, otherwise -1. With exact set, bytes after the
// root are an error; compressed bodies are always checked to the end.
func decodeMessage[T any](r byteSource, size int, c Consumer[T], opts *DecodeOptions, exact bool) (T, error) {
	p := &parser[T]{r: r, remaining: size, c: c, opts: opts}
	var zero T

	compressed, err := p.readHeader()
	if err != nil {
		return zero, p.logFailure(err)
	}

	outer, strict := r, exact
	if compressed {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return zero, p.logFailure(p.fail("invalid compressed body", err))
		}
		defer zr.Close()
		p.r = bufio.NewReader(zr)
		p.remaining = -1
		exact = true
	}

	v, err := p.node()
	if err != nil {
		return zero, p.logFailure(err)
	}

	if exact {
		if _, err := p.r.ReadByte(); err == nil {
			return zero, p.logFailure(p.fail("trailing bytes after root node", nil))
		} else if !errors.Is(err, io.EOF) {
			return zero, p.logFailure(p.fail("invalid compressed body", err))
		}
	}
	if compressed && strict {
		if _, err := outer.ReadByte(); err == nil {
			return zero, p.logFailure(p.fail("trailing bytes after compressed body", nil))
		}
	}
	return v, nil
}

func (p *parser[T]) logFailure(err error) error {
	p.opts.Logger.Debug("wxf: decode failed", "offset", p.off, "error", err)
	return err
}

func (p *parser[T]) fail(reason string, err error) error {
	return &MalformedStreamError{Reason: reason, Offset: p.off, Err: err}
}

func (p *parser[T]) readHeader() (bool, error) {
	v, err := p.readByte()
	if err != nil {
		return false, err
	}
	if v != Version {
		return false, p.fail(fmt.Sprintf("unsupported version %q", v), nil)
	}
	b, err := p.readByte()
	if err != nil {
		return false, err
	}
	switch b {
	case HeaderSeparator:
		return false, nil
	case CompressMarker:
		sep, err := p.readByte()
		if err != nil {
			return false, err
		}
		if sep != HeaderSeparator {
			return false, p.fail(fmt.Sprintf("expected header separator, got %q", sep), nil)
		}
		return true, nil
	}
	return false, p.fail(fmt.Sprintf("bad compression marker %q", b), nil)
}

// ReadByte makes the parser an io.ByteReader for binary.ReadUvarint.
func (p *parser[T]) ReadByte() (byte, error) {
	b, err := p.r.ReadByte()
	if err != nil {
		return 0, err
	}
	p.off++
	if p.remaining > 0 {
		p.remaining--
	}
	return b, nil
}

func (p *parser[T]) readByte() (byte, error) {
	b, err := p.ReadByte()
	if err != nil {
		return 0, p.truncated(err)
	}
	return b, nil
}

func (p *parser[T]) truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return p.fail("unexpected end of input", io.ErrUnexpectedEOF)
	}
	return p.fail("read failed", err)
}

// readCount reads a varint and checks it against MaxLength.
func (p *parser[T]) readCount(what string) (int, error) {
	n, err := binary.ReadUvarint(p)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, p.truncated(err)
		}
		return 0, p.fail("invalid varint", err)
	}
	if n > uint64(p.opts.MaxLength) {
		return 0, p.fail(fmt.Sprintf("%s %d exceeds limit %d", what, n, p.opts.MaxLength), nil)
	}
	return int(n), nil
}

// readLength reads a count that must also fit in the remaining input.
func (p *parser[T]) readLength(what string) (int, error) {
	n, err := p.readCount(what)
	if err != nil {
		return 0, err
	}
	if p.remaining >= 0 && n > p.remaining {
		return 0, p.fail(fmt.Sprintf("%s %d exceeds remaining %d bytes", what, n, p.remaining), nil)
	}
	return n, nil
}

// readN reads exactly n bytes.
func (p *parser[T]) readN(n int) ([]byte, error) {
	if p.remaining >= 0 && n > p.remaining {
		return nil, p.fail(fmt.Sprintf("length %d exceeds remaining %d bytes", n, p.remaining), nil)
	}
	var buf []byte
	const chunk = 64 * 1024
	if n <= chunk {
		buf = make([]byte, n)
		if _, err := io.ReadFull(p.r, buf); err != nil {
			return nil, p.truncated(err)
		}
	} else {
		// Grow with the data actually present rather than trusting n.
		var bb bytes.Buffer
		if _, err := io.CopyN(&bb, p.r, int64(n)); err != nil {
			return nil, p.truncated(err)
		}
		buf = bb.Bytes()
	}
	p.off += n
	if p.remaining >= 0 {
		p.remaining -= n
	}
	return buf, nil
}

func (p *parser[T]) enter() error {
	p.depth++
	if p.depth > p.opts.MaxDepth {
		return p.fail(fmt.Sprintf("nesting deeper than %d", p.opts.MaxDepth), ErrMaxDepth)
	}
	return nil
}

// node parses one node.
func (p *parser[T]) node() (T, error) {
	var zero T
	start := p.off
	b, err := p.readByte()
	if err != nil {
		return zero, err
	}
	tok := Token(b)
	if p.opts.TokenHook != nil && tok.Valid() {
		p.opts.TokenHook(start, tok)
	}

	switch tok {
	case TokenFunction:
		return p.function()
	case TokenSymbol:
		s, err := p.text("symbol")
		if err != nil {
			return zero, err
		}
		return p.c.ConsumeSymbol(s)
	case TokenString:
		s, err := p.text("string")
		if err != nil {
			return zero, err
		}
		return p.c.ConsumeString(s)
	case TokenBinaryString:
		n, err := p.readLength("binary string length")
		if err != nil {
			return zero, err
		}
		data, err := p.readN(n)
		if err != nil {
			return zero, err
		}
		return p.c.ConsumeBinaryString(data)
	case TokenInteger8, TokenInteger16, TokenInteger32, TokenInteger64:
		n, err := p.fixedInteger(tok)
		if err != nil {
			return zero, err
		}
		return p.c.ConsumeInteger(n)
	case TokenReal64:
		data, err := p.readN(8)
		if err != nil {
			return zero, err
		}
		return p.c.ConsumeReal(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	case TokenBigInteger:
		s, err := p.text("big integer")
		if err != nil {
			return zero, err
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return zero, p.fail(fmt.Sprintf("invalid big integer %q", s), nil)
		}
		return p.c.ConsumeBigInteger(n)
	case TokenBigReal:
		s, err := p.text("big real")
		if err != nil {
			return zero, err
		}
		r, err := expr.ParseBigReal(s)
		if err != nil {
			return zero, p.fail(fmt.Sprintf("invalid big real %q", s), err)
		}
		return p.c.ConsumeBigReal(r)
	case TokenAssociation:
		return p.association()
	case TokenPackedArray, TokenNumericArray:
		return p.array(tok)
	case TokenRule, TokenRuleDelayed:
		p.off = start
		return zero, p.fail(fmt.Sprintf("%s token outside an association", tok), nil)
	}

	p.off = start
	return zero, p.fail(fmt.Sprintf("unknown token 0x%02x", b), nil)
}

func (p *parser[T]) text(what string) (string, error) {
	n, err := p.readLength(what + " length")
	if err != nil {
		return "", err
	}
	data, err := p.readN(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", p.fail(what+" is not valid UTF-8", ErrInvalidUTF8)
	}
	return string(data), nil
}

func (p *parser[T]) fixedInteger(tok Token) (int64, error) {
	size := 8
	switch tok {
	case TokenInteger8:
		size = 1
	case TokenInteger16:
		size = 2
	case TokenInteger32:
		size = 4
	}
	data, err := p.readN(size)
	if err != nil {
		return 0, err
	}
	le := binary.LittleEndian
	switch size {
	case 1:
		return int64(int8(data[0])), nil
	case 2:
		return int64(int16(le.Uint16(data))), nil
	case 4:
		return int64(int32(le.Uint32(data))), nil
	}
	return int64(le.Uint64(data)), nil
}

func (p *parser[T]) function() (T, error) {
	var zero T
	if err := p.enter(); err != nil {
		return zero, err
	}
	defer func() { p.depth-- }()

	argc, err := p.readLength("argument count")
	if err != nil {
		return zero, err
	}
	head, err := p.node()
	if err != nil {
		return zero, err
	}
	args := make([]T, 0, min(argc, 1024))
	for i := 0; i < argc; i++ {
		arg, err := p.node()
		if err != nil {
			return zero, err
		}
		args = append(args, arg)
	}
	return p.c.ConsumeFunction(head, args)
}

func (p *parser[T]) association() (T, error) {
	var zero T
	if err := p.enter(); err != nil {
		return zero, err
	}
	defer func() { p.depth-- }()

	n, err := p.readLength("association size")
	if err != nil {
		return zero, err
	}
	entries := make([]Entry[T], 0, min(n, 1024))
	for i := 0; i < n; i++ {
		start := p.off
		b, err := p.readByte()
		if err != nil {
			return zero, err
		}
		tok := Token(b)
		if tok != TokenRule && tok != TokenRuleDelayed {
			p.off = start
			return zero, p.fail(fmt.Sprintf("expected rule in association, got %s", tok), nil)
		}
		if p.opts.TokenHook != nil {
			p.opts.TokenHook(start, tok)
		}
		key, err := p.node()
		if err != nil {
			return zero, err
		}
		value, err := p.node()
		if err != nil {
			return zero, err
		}
		entries = append(entries, Entry[T]{Key: key, Value: value, Delayed: tok == TokenRuleDelayed})
	}
	return p.c.ConsumeAssociation(entries)
}

func (p *parser[T]) array(tok Token) (T, error) {
	var zero T
	b, err := p.readByte()
	if err != nil {
		return zero, err
	}
	et, ok := ElementTypeFromByte(b)
	if !ok {
		return zero, p.fail(fmt.Sprintf("unknown element type 0x%02x", b), nil)
	}
	if tok == TokenPackedArray && !et.ValidForPacked() {
		return zero, p.fail(fmt.Sprintf("element type %s not allowed in PackedArray", et), nil)
	}

	rank, err := p.readLength("array rank")
	if err != nil {
		return zero, err
	}
	if rank == 0 {
		return zero, p.fail("array rank must be at least 1", nil)
	}
	dims := make([]int, rank)
	for i := range dims {
		// A zero dimension makes any other dimension valid with no data.
		d, err := p.readCount("array dimension")
		if err != nil {
			return zero, err
		}
		dims[i] = d
	}
	size, ok := expr.ByteLength(et, dims)
	if !ok {
		return zero, p.fail(fmt.Sprintf("array dimensions %v overflow", dims), nil)
	}
	if size > p.opts.MaxLength {
		return zero, p.fail(fmt.Sprintf("array payload %d exceeds limit %d", size, p.opts.MaxLength), nil)
	}
	data, err := p.readN(size)
	if err != nil {
		return zero, err
	}

	if tok == TokenPackedArray {
		return p.c.ConsumePackedArray(expr.PackedArray{Type: et, Dims: dims, Data: data})
	}
	return p.c.ConsumeNumericArray(expr.NumericArray{Type: et, Dims: dims, Data: data})
}
