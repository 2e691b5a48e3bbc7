package wxf

import (
	"log/slog"

	"github.com/Neumenon/wxf/dispatch"
	"github.com/Neumenon/wxf/extobj"
)

// Default limits.
const (
	DefaultMaxDepth = 1024
	MaxLength       = 64 * 1024 * 1024 // 64 MiB per length prefix
)

// ObjectProcessor encodes a value no handler claimed. It returns
// ErrUnsupportedType, without writing anything, to decline.
type ObjectProcessor func(s *Serializer, v any) error

// EncodeOptions configures an Encoder.
type EncodeOptions struct {
	Compress        bool                          // zlib-compress the body
	ObjectProcessor ObjectProcessor               // fallback for unhandled values
	Registry        *dispatch.Registry[EncodeFunc] // nil means DefaultRegistry()
	ExternalObjects *extobj.Registry              // last-resort side table
	MaxDepth        int                           // nesting limit
	ListSlices      bool                          // numeric slices as List instead of arrays
	Logger          *slog.Logger
}

// DefaultEncodeOptions returns the encoder defaults.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		MaxDepth: DefaultMaxDepth,
		Logger:   discardLogger,
	}
}

// DecodeOptions configures decoding.
type DecodeOptions struct {
	MaxDepth  int
	MaxLength int // limit for any single length prefix or array payload
	TokenHook func(offset int, t Token)
	Logger    *slog.Logger
}

// DefaultDecodeOptions returns the decoder defaults.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		MaxDepth:  DefaultMaxDepth,
		MaxLength: MaxLength,
		Logger:    discardLogger,
	}
}

var discardLogger = slog.New(slog.DiscardHandler)

// EncodeOption configures encoding.
type EncodeOption interface {
	applyEncode(*EncodeOptions)
}

// DecodeOption configures decoding.
type DecodeOption interface {
	applyDecode(*DecodeOptions)
}

type encodeOptionFunc func(*EncodeOptions)

func (f encodeOptionFunc) applyEncode(o *EncodeOptions) { f(o) }

type decodeOptionFunc func(*DecodeOptions)

func (f decodeOptionFunc) applyDecode(o *DecodeOptions) { f(o) }

// WithCompression enables or disables zlib compression of the body.
func WithCompression(on bool) EncodeOption {
	return encodeOptionFunc(func(o *EncodeOptions) { o.Compress = on })
}

// WithObjectProcessor installs a fallback for values no handler claims.
func WithObjectProcessor(p ObjectProcessor) EncodeOption {
	return encodeOptionFunc(func(o *EncodeOptions) { o.ObjectProcessor = p })
}

// WithRegistry replaces the handler registry.
func WithRegistry(r *dispatch.Registry[EncodeFunc]) EncodeOption {
	return encodeOptionFunc(func(o *EncodeOptions) { o.Registry = r })
}

// WithExternalObjects stores unencodable values in r and writes
// ExternalObject placeholders for them.
func WithExternalObjects(r *extobj.Registry) EncodeOption {
	return encodeOptionFunc(func(o *EncodeOptions) { o.ExternalObjects = r })
}

// WithListSlices encodes numeric slices as List[...] rather than arrays.
func WithListSlices(on bool) EncodeOption {
	return encodeOptionFunc(func(o *EncodeOptions) { o.ListSlices = on })
}

// WithMaxLength bounds every length prefix and array payload.
func WithMaxLength(n int) DecodeOption {
	return decodeOptionFunc(func(o *DecodeOptions) { o.MaxLength = n })
}

// WithTokenHook calls fn with the offset of every token read.
func WithTokenHook(fn func(offset int, t Token)) DecodeOption {
	return decodeOptionFunc(func(o *DecodeOptions) { o.TokenHook = fn })
}

// Option is accepted by both the encoder and the decoder.
type Option interface {
	EncodeOption
	DecodeOption
}

type maxDepthOption int

func (n maxDepthOption) applyEncode(o *EncodeOptions) { o.MaxDepth = int(n) }
func (n maxDepthOption) applyDecode(o *DecodeOptions) { o.MaxDepth = int(n) }

// WithMaxDepth bounds container nesting.
func WithMaxDepth(n int) Option {
	return maxDepthOption(n)
}

type loggerOption struct{ l *slog.Logger }

func (l loggerOption) applyEncode(o *EncodeOptions) { o.Logger = l.l }
func (l loggerOption) applyDecode(o *DecodeOptions) { o.Logger = l.l }

// WithLogger sets the logger for debug records. The codec is silent by
// default.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		l = discardLogger
	}
	return loggerOption{l}
}

func buildEncodeOptions(opts []EncodeOption) EncodeOptions {
	o := DefaultEncodeOptions()
	for _, opt := range opts {
		opt.applyEncode(&o)
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Registry == nil {
		o.Registry = defaultRegistry
	}
	return o
}

func buildDecodeOptions(opts []DecodeOption) DecodeOptions {
	o := DefaultDecodeOptions()
	for _, opt := range opts {
		opt.applyDecode(&o)
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxLength <= 0 {
		o.MaxLength = MaxLength
	}
	return o
}
