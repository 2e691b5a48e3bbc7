package wxf

import (
	"bytes"
	"fmt"

	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/extobj"
)

// TargetFormat selects the output of Serialize.
type TargetFormat string

const (
	FormatWXF TargetFormat = "wxf" // binary WXF message
	FormatWL  TargetFormat = "wl"  // InputForm text
)

// SerializeOptions configures Serialize.
type SerializeOptions struct {
	TargetFormat    TargetFormat // empty means FormatWXF
	Compress        bool
	ObjectProcessor ObjectProcessor
	ExternalObjects *extobj.Registry
}

// Serialize converts v to the target format. It is the entry point for
// collaborators that hand the codec already-resolved Go values.
func Serialize(v any, opts SerializeOptions) ([]byte, error) {
	enc := []EncodeOption{
		WithObjectProcessor(opts.ObjectProcessor),
		WithExternalObjects(opts.ExternalObjects),
	}

	switch opts.TargetFormat {
	case "", FormatWXF:
		return Marshal(v, append(enc, WithCompression(opts.Compress))...)
	case FormatWL:
		e, err := ToExpr(v, enc...)
		if err != nil {
			return nil, err
		}
		return []byte(expr.Format(e)), nil
	}
	return nil, fmt.Errorf("wxf: unknown target format %q", opts.TargetFormat)
}

// DeserializeOptions configures Deserialize.
type DeserializeOptions struct {
	SourceFormat TargetFormat  // empty means FormatWXF
	Consumer     Consumer[any] // nil builds an expr.Expr tree
	Decode       []DecodeOption
}

// Deserialize decodes one complete WXF message, building the result with
// opts.Consumer. Any input that is not a well-formed message, including a
// prefix of one, fails with a *MalformedStreamError. InputForm text is only
// read when opts.SourceFormat is FormatWL.
func Deserialize(data []byte, opts DeserializeOptions) (any, error) {
	switch opts.SourceFormat {
	case "", FormatWXF:
		if opts.Consumer == nil {
			return DecodeWith[expr.Expr](data, ExprConsumer{}, opts.Decode...)
		}
		return DecodeWith(data, opts.Consumer, opts.Decode...)
	case FormatWL:
		if opts.Consumer != nil {
			return nil, fmt.Errorf("wxf: consumer not supported for format %q", FormatWL)
		}
		return ParseWL(data, opts.Decode...)
	}
	return nil, fmt.Errorf("wxf: unknown source format %q", opts.SourceFormat)
}

// ParseWL parses InputForm text into an expression tree, honoring the
// MaxDepth of opts.
func ParseWL(data []byte, opts ...DecodeOption) (expr.Expr, error) {
	o := buildDecodeOptions(opts)
	return expr.ParseWithOptions(string(data), expr.ParseOptions{MaxDepth: o.MaxDepth})
}

// IsWXF reports whether data starts with a WXF header.
func IsWXF(data []byte) bool {
	return bytes.HasPrefix(data, []byte{Version, HeaderSeparator}) ||
		bytes.HasPrefix(data, []byte{Version, CompressMarker, HeaderSeparator})
}

// ToExpr converts a Go value to an expression tree through the encoder's
// handlers.
func ToExpr(v any, opts ...EncodeOption) (expr.Expr, error) {
	if e, ok := v.(expr.Expr); ok {
		return e, nil
	}
	data, err := Marshal(v, opts...)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
