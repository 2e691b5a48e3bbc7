package expr

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ============================================================
// Integer
// ============================================================

// Integer is an exact integer. Values in the int64 range are held inline;
// larger magnitudes use a big.Int. The two forms never overlap, so equal
// values always have equal representations.
type Integer struct {
	small int64
	big   *big.Int
}

// Int creates an integer.
func Int(v int64) Integer {
	return Integer{small: v}
}

// Uint creates an integer from an unsigned value.
func Uint(v uint64) Integer {
	if v <= math.MaxInt64 {
		return Integer{small: int64(v)}
	}
	return Integer{big: new(big.Int).SetUint64(v)}
}

// BigInt creates an integer from a big.Int. The argument is copied.
func BigInt(v *big.Int) Integer {
	if v == nil {
		return Integer{}
	}
	if v.IsInt64() {
		return Integer{small: v.Int64()}
	}
	return Integer{big: new(big.Int).Set(v)}
}

// ParseInteger parses an optionally signed decimal integer.
func ParseInteger(s string) (Integer, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n), nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Integer{}, fmt.Errorf("expr: invalid integer %q", s)
	}
	return BigInt(b), nil
}

func (Integer) Kind() Kind { return KindInteger }
func (Integer) isExpr()    {}

// Equal reports value equality.
func (i Integer) Equal(other Expr) bool {
	o, ok := other.(Integer)
	if !ok {
		return false
	}
	if i.big == nil || o.big == nil {
		return i.big == nil && o.big == nil && i.small == o.small
	}
	return i.big.Cmp(o.big) == 0
}

// IsInt64 reports whether the value fits in an int64.
func (i Integer) IsInt64() bool {
	return i.big == nil
}

// Int64 returns the value; it is only meaningful when IsInt64 is true.
func (i Integer) Int64() int64 {
	if i.big != nil {
		return i.big.Int64()
	}
	return i.small
}

// Big returns the value as a new big.Int.
func (i Integer) Big() *big.Int {
	if i.big != nil {
		return new(big.Int).Set(i.big)
	}
	return big.NewInt(i.small)
}

// Sign returns -1, 0 or +1.
func (i Integer) Sign() int {
	if i.big != nil {
		return i.big.Sign()
	}
	switch {
	case i.small < 0:
		return -1
	case i.small > 0:
		return 1
	}
	return 0
}

// String returns the decimal digits.
func (i Integer) String() string {
	if i.big != nil {
		return i.big.String()
	}
	return strconv.FormatInt(i.small, 10)
}

// ============================================================
// BigReal
// ============================================================

// ErrInvalidBigReal is returned for malformed BigReal text.
var ErrInvalidBigReal = errors.New("expr: invalid big real")

// BigReal is an arbitrary-precision real kept as decimal text. Digits is a
// plain decimal number with an optional e exponent ("-12.5", "1.5e-30");
// Precision is the number of significant decimal digits, or 0 for an
// unspecified precision.
type BigReal struct {
	Digits    string
	Precision float64
}

// NewBigReal validates digits and returns a BigReal.
func NewBigReal(digits string, precision float64) (BigReal, error) {
	digits = normalizeDigits(digits)
	if !validDecimal(digits) {
		return BigReal{}, fmt.Errorf("%w: digits %q", ErrInvalidBigReal, digits)
	}
	if precision < 0 || math.IsNaN(precision) || math.IsInf(precision, 0) {
		return BigReal{}, fmt.Errorf("%w: precision %v", ErrInvalidBigReal, precision)
	}
	return BigReal{Digits: digits, Precision: precision}, nil
}

func normalizeDigits(digits string) string {
	digits = strings.ReplaceAll(strings.TrimSpace(digits), "E", "e")
	return strings.Replace(digits, "e+", "e", 1)
}

// BigRealFromFloat converts a big.Float keeping all of its mantissa bits.
func BigRealFromFloat(f *big.Float) BigReal {
	prec := float64(f.Prec()) * math.Log10(2)
	// Round to a whole number of digits so the text form is stable.
	prec = math.Floor(prec)
	if prec < 1 {
		prec = 1
	}
	digits := f.Text('g', int(prec))
	return BigReal{Digits: strings.ReplaceAll(digits, "e+", "e"), Precision: prec}
}

func (BigReal) Kind() Kind { return KindBigReal }
func (BigReal) isExpr()    {}

// Equal reports textual equality of digits and precision. Exponent
// spellings that NewBigReal normalizes compare equal.
func (r BigReal) Equal(other Expr) bool {
	o, ok := other.(BigReal)
	return ok && normalizeDigits(r.Digits) == normalizeDigits(o.Digits) && r.Precision == o.Precision
}

// Float returns the value as a big.Float with enough bits for Precision.
func (r BigReal) Float() (*big.Float, error) {
	bits := uint(math.Ceil(r.Precision*math.Log2(10))) + 8
	if bits < 64 {
		bits = 64
	}
	f, _, err := big.ParseFloat(r.Digits, 10, bits, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBigReal, err)
	}
	return f, nil
}

// Text returns the wire text: mantissa`precision with an optional *^exponent.
func (r BigReal) Text() string {
	mant, exp := r.Digits, ""
	if i := strings.IndexByte(mant, 'e'); i >= 0 {
		mant, exp = mant[:i], strings.TrimPrefix(mant[i+1:], "+")
	}
	var sb strings.Builder
	sb.WriteString(mant)
	sb.WriteByte('`')
	if r.Precision > 0 {
		p := strconv.FormatFloat(r.Precision, 'f', -1, 64)
		sb.WriteString(p)
		if !strings.Contains(p, ".") {
			sb.WriteByte('.')
		}
	}
	if exp != "" {
		sb.WriteString("*^")
		sb.WriteString(exp)
	}
	return sb.String()
}

// ParseBigReal parses the wire text produced by Text. Text without a
// precision mark is accepted with Precision 0.
func ParseBigReal(s string) (BigReal, error) {
	mant, rest := s, ""
	if i := strings.IndexByte(s, '`'); i >= 0 {
		mant, rest = s[:i], s[i+1:]
		if strings.HasPrefix(rest, "`") {
			return BigReal{}, fmt.Errorf("%w: accuracy form %q not supported", ErrInvalidBigReal, s)
		}
	} else if i := strings.Index(s, "*^"); i >= 0 {
		mant, rest = s[:i], s[i:]
	}

	precText, exp := rest, ""
	if i := strings.Index(rest, "*^"); i >= 0 {
		precText, exp = rest[:i], rest[i+2:]
	}

	var prec float64
	if precText = strings.TrimSuffix(precText, "."); precText != "" {
		p, err := strconv.ParseFloat(precText, 64)
		if err != nil {
			return BigReal{}, fmt.Errorf("%w: precision %q", ErrInvalidBigReal, precText)
		}
		prec = p
	}

	digits := mant
	if exp != "" {
		if _, err := strconv.Atoi(exp); err != nil {
			return BigReal{}, fmt.Errorf("%w: exponent %q", ErrInvalidBigReal, exp)
		}
		digits = mant + "e" + exp
	}
	return NewBigReal(digits, prec)
}

// validDecimal accepts [-+]digits[.digits][e[-+]digits] with at least one
// mantissa digit.
func validDecimal(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	mantDigits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		mantDigits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			mantDigits++
		}
	}
	if mantDigits == 0 {
		return false
	}
	if i < len(s) && s[i] == 'e' {
		i++
		if i < len(s) && (s[i] == '-' || s[i] == '+') {
			i++
		}
		expDigits := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			expDigits++
		}
		if expDigits == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
