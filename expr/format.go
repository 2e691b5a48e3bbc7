package expr

import (
	"encoding/base64"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// FormatOptions configures the InputForm formatter.
type FormatOptions struct {
	// Indent enables multi-line output for lists, associations and
	// functions with non-atomic arguments. Empty means single-line.
	Indent string

	// Highlight, when set, wraps each atomic token. The CLI uses it for
	// terminal colors.
	Highlight func(k Kind, text string) string
}

// DefaultFormatOptions returns single-line, unhighlighted output.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{}
}

// PrettyFormatOptions returns two-space indented output.
func PrettyFormatOptions() FormatOptions {
	return FormatOptions{Indent: "  "}
}

// Format renders e in InputForm.
func Format(e Expr) string {
	return FormatWithOptions(e, DefaultFormatOptions())
}

// FormatWithOptions renders e with custom options.
func FormatWithOptions(e Expr, opts FormatOptions) string {
	f := &formatter{opts: opts}
	f.format(e, 0)
	return f.sb.String()
}

type formatter struct {
	sb   strings.Builder
	opts FormatOptions
}

func (f *formatter) atom(k Kind, text string) {
	if f.opts.Highlight != nil {
		text = f.opts.Highlight(k, text)
	}
	f.sb.WriteString(text)
}

func (f *formatter) format(e Expr, depth int) {
	switch v := e.(type) {
	case nil:
		f.atom(KindSymbol, string(SymNull))
	case Symbol:
		f.atom(KindSymbol, string(v))
	case String:
		f.atom(KindString, QuoteString(string(v)))
	case BinaryString:
		f.atom(KindSymbol, string(SymByteArray))
		f.sb.WriteByte('[')
		f.atom(KindString, `"`+base64.StdEncoding.EncodeToString(v)+`"`)
		f.sb.WriteByte(']')
	case Integer:
		f.atom(KindInteger, v.String())
	case Real:
		f.formatReal(float64(v))
	case BigReal:
		f.atom(KindBigReal, v.Text())
	case Function:
		f.formatFunction(v, depth)
	case Association:
		f.formatAssociation(v, depth)
	case PackedArray:
		f.formatArray(v.Type, v.Dims, v.Values(), depth)
	case NumericArray:
		f.atom(KindSymbol, "NumericArray")
		f.sb.WriteByte('[')
		f.formatArray(v.Type, v.Dims, v.Values(), depth)
		f.sb.WriteString(", ")
		f.atom(KindString, QuoteString(v.Type.String()))
		f.sb.WriteByte(']')
	case ExternalObject:
		f.formatFunction(v.Expand(), depth)
	}
}

func (f *formatter) formatReal(r float64) {
	f.formatRealBits(r, 64)
}

func (f *formatter) formatRealBits(r float64, bits int) {
	switch {
	case math.IsNaN(r):
		f.atom(KindSymbol, string(SymIndeterminate))
	case math.IsInf(r, 1):
		f.atom(KindSymbol, "DirectedInfinity[1]")
	case math.IsInf(r, -1):
		f.atom(KindSymbol, "DirectedInfinity[-1]")
	default:
		f.atom(KindReal, formatReal(r, bits))
	}
}

// FormatReal renders a finite float64 in InputForm: shortest round-trip
// digits, a trailing "." for integral values and *^ for exponents.
func FormatReal(r float64) string {
	return formatReal(r, 64)
}

func formatReal(r float64, bits int) string {
	s := strconv.FormatFloat(r, 'g', -1, bits)
	mant, exp := s, ""
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant, exp = s[:i], s[i+1:]
	}
	if !strings.Contains(mant, ".") {
		mant += "."
	}
	if exp == "" {
		return mant
	}
	n, _ := strconv.Atoi(exp)
	return mant + "*^" + strconv.Itoa(n)
}

func (f *formatter) formatFunction(fn Function, depth int) {
	if fn.HasHead(string(SymList)) {
		f.sb.WriteByte('{')
		for i, arg := range fn.Args {
			f.sep(i, fn.Args, depth)
			f.format(arg, depth+1)
		}
		f.close("}", fn.Args, depth)
		return
	}
	f.format(fn.Head, depth)
	f.sb.WriteByte('[')
	for i, arg := range fn.Args {
		f.sep(i, fn.Args, depth)
		f.format(arg, depth+1)
	}
	f.close("]", fn.Args, depth)
}

func (f *formatter) formatAssociation(a Association, depth int) {
	vals := make([]Expr, len(a.Entries))
	for i, e := range a.Entries {
		vals[i] = e.Value
	}
	f.sb.WriteString("<|")
	for i, e := range a.Entries {
		f.sep(i, vals, depth)
		f.format(e.Key, depth+1)
		if e.Delayed {
			f.sb.WriteString(" :> ")
		} else {
			f.sb.WriteString(" -> ")
		}
		f.format(e.Value, depth+1)
	}
	f.close("|>", vals, depth)
}

// multiline reports whether a container breaks across lines: only in
// indented mode and only when some element is itself a container.
func (f *formatter) multiline(elems []Expr) bool {
	if f.opts.Indent == "" {
		return false
	}
	for _, e := range elems {
		switch e.(type) {
		case Function, Association:
			return true
		}
	}
	return false
}

func (f *formatter) sep(i int, elems []Expr, depth int) {
	if f.multiline(elems) {
		if i > 0 {
			f.sb.WriteByte(',')
		}
		f.sb.WriteByte('\n')
		f.sb.WriteString(strings.Repeat(f.opts.Indent, depth+1))
		return
	}
	if i > 0 {
		f.sb.WriteString(", ")
	}
}

func (f *formatter) close(delim string, elems []Expr, depth int) {
	if f.multiline(elems) {
		f.sb.WriteByte('\n')
		f.sb.WriteString(strings.Repeat(f.opts.Indent, depth))
	}
	f.sb.WriteString(delim)
}

// formatArray writes nested list syntax for a row-major buffer.
func (f *formatter) formatArray(t ElementType, dims []int, values any, depth int) {
	rv := reflect.ValueOf(values)
	idx := 0
	var rec func(level int)
	rec = func(level int) {
		f.sb.WriteByte('{')
		for i := 0; i < dims[level]; i++ {
			if i > 0 {
				f.sb.WriteString(", ")
			}
			if level == len(dims)-1 {
				f.formatElement(t, rv.Index(idx))
				idx++
			} else {
				rec(level + 1)
			}
		}
		f.sb.WriteByte('}')
	}
	if len(dims) == 0 || !rv.IsValid() {
		f.sb.WriteString("{}")
		return
	}
	rec(0)
}

func (f *formatter) formatElement(t ElementType, v reflect.Value) {
	switch {
	case t.IsComplex():
		c := v.Complex()
		f.atom(KindSymbol, string(SymComplex))
		f.sb.WriteByte('[')
		f.formatRealBits(real(c), t.Size()*4)
		f.sb.WriteString(", ")
		f.formatRealBits(imag(c), t.Size()*4)
		f.sb.WriteByte(']')
	case t == Real32 || t == Real64:
		f.formatRealBits(v.Float(), t.Size()*8)
	case v.CanInt():
		f.atom(KindInteger, strconv.FormatInt(v.Int(), 10))
	default:
		f.atom(KindInteger, strconv.FormatUint(v.Uint(), 10))
	}
}

// ============================================================
// String Quoting
// ============================================================

// QuoteString returns s as an InputForm string literal.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\.`)
				hex := strconv.FormatInt(int64(r), 16)
				if len(hex) == 1 {
					b.WriteByte('0')
				}
				b.WriteString(hex)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
