// Package wxf implements WXF, the binary serialization format for expression
// trees.
//
// A WXF message is a three or two byte header followed by one node:
//
//	'8' ':' body          uncompressed
//	'8' 'C' ':' zlib(body) compressed
//
// Nodes are tagged by a single token byte. Containers carry a varint count,
// leaves a varint byte length, fixed-width numbers their little-endian bytes:
//
//	f count head arg...       Function
//	s len utf8                Symbol
//	S len utf8                String
//	B len bytes               BinaryString
//	C / j / i / L             Integer8/16/32/64
//	r 8 bytes                 Real64
//	I len digits              BigInteger
//	R len text                BigReal (mantissa`precision*^exponent)
//	A count (- k v | : k v)... Association
//	0xC1 / 0xC2 type rank dims data  PackedArray / NumericArray
//
// # Encoding
//
// Marshal and Encoder accept expr.Expr trees and plain Go values. Go values
// are resolved through a dispatch.Registry of EncodeFunc handlers; the
// default registry maps booleans, integers, floats, big numbers, strings,
// byte slices, numeric slices, maps, Call and Object. Values with no handler
// fall through to an ObjectProcessor, then to an external object registry,
// and finally fail with an *UnsupportedTypeError.
//
// # Decoding
//
// Unmarshal builds an expr.Expr tree. DecodeWith drives any Consumer, so the
// same parser can produce other representations; NativeConsumer produces
// plain Go values. Every structural violation is reported as a
// *MalformedStreamError.
package wxf
