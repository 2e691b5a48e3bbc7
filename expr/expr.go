package expr

import (
	"bytes"
	"fmt"
	"math"
)

// Kind identifies the structural kind of an expression.
type Kind uint8

const (
	KindFunction Kind = iota
	KindSymbol
	KindString
	KindBinaryString
	KindInteger
	KindReal
	KindBigReal
	KindAssociation
	KindPackedArray
	KindNumericArray
	KindExternalObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "Function"
	case KindSymbol:
		return "Symbol"
	case KindString:
		return "String"
	case KindBinaryString:
		return "BinaryString"
	case KindInteger:
		return "Integer"
	case KindReal:
		return "Real"
	case KindBigReal:
		return "BigReal"
	case KindAssociation:
		return "Association"
	case KindPackedArray:
		return "PackedArray"
	case KindNumericArray:
		return "NumericArray"
	case KindExternalObject:
		return "ExternalObject"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Expr is an expression tree node.
type Expr interface {
	Kind() Kind
	// Equal reports structural equality with another expression.
	Equal(other Expr) bool

	isExpr()
}

// Equal reports whether a and b are structurally equal. Two nil expressions
// are equal.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// ============================================================
// Function
// ============================================================

// Function is a head applied to arguments: Head[Args...].
type Function struct {
	Head Expr
	Args []Expr
}

// Func creates a function expression.
func Func(head Expr, args ...Expr) Function {
	return Function{Head: head, Args: args}
}

// Call creates a function expression whose head is the named symbol.
func Call(head string, args ...Expr) Function {
	return Function{Head: Symbol(head), Args: args}
}

// List creates List[elems...].
func List(elems ...Expr) Function {
	return Function{Head: SymList, Args: elems}
}

func (Function) Kind() Kind { return KindFunction }
func (Function) isExpr()    {}

// Equal reports structural equality.
func (f Function) Equal(other Expr) bool {
	o, ok := other.(Function)
	if !ok || len(f.Args) != len(o.Args) || !Equal(f.Head, o.Head) {
		return false
	}
	for i := range f.Args {
		if !Equal(f.Args[i], o.Args[i]) {
			return false
		}
	}
	return true
}

// HasHead reports whether the head is the symbol name.
func (f Function) HasHead(name string) bool {
	s, ok := f.Head.(Symbol)
	return ok && s.Name() == name
}

// Len returns the argument count.
func (f Function) Len() int {
	return len(f.Args)
}

// ============================================================
// Symbol
// ============================================================

// Symbol is a possibly context-qualified symbol name.
type Symbol string

// Well-known symbols.
const (
	SymList             Symbol = "List"
	SymTrue             Symbol = "True"
	SymFalse            Symbol = "False"
	SymNull             Symbol = "Null"
	SymRule             Symbol = "Rule"
	SymRuleDelayed      Symbol = "RuleDelayed"
	SymRational         Symbol = "Rational"
	SymComplex          Symbol = "Complex"
	SymByteArray        Symbol = "ByteArray"
	SymExternalObject   Symbol = "ExternalObject"
	SymExternalFunction Symbol = "ExternalFunction"
	SymDirectedInfinity Symbol = "DirectedInfinity"
	SymIndeterminate    Symbol = "Indeterminate"
)

// Sym creates a symbol.
func Sym(name string) Symbol {
	return Symbol(name)
}

// Bool returns True or False.
func Bool(b bool) Symbol {
	if b {
		return SymTrue
	}
	return SymFalse
}

func (Symbol) Kind() Kind { return KindSymbol }
func (Symbol) isExpr()    {}

// Equal reports structural equality.
func (s Symbol) Equal(other Expr) bool {
	o, ok := other.(Symbol)
	return ok && s == o
}

// Name returns the symbol name without the System` context.
func (s Symbol) Name() string {
	const system = "System`"
	if len(s) > len(system) && string(s[:len(system)]) == system {
		return string(s[len(system):])
	}
	return string(s)
}

// Context returns the context prefix including the trailing backquote, or ""
// for an unqualified symbol.
func (s Symbol) Context() string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '`' {
			return string(s[:i+1])
		}
	}
	return ""
}

// ============================================================
// Strings
// ============================================================

// String is UTF-8 text.
type String string

// Str creates a string.
func Str(s string) String {
	return String(s)
}

func (String) Kind() Kind { return KindString }
func (String) isExpr()    {}

// Equal reports structural equality.
func (s String) Equal(other Expr) bool {
	o, ok := other.(String)
	return ok && s == o
}

// BinaryString is a raw byte sequence (ByteArray).
type BinaryString []byte

// Bytes creates a binary string.
func Bytes(b []byte) BinaryString {
	return BinaryString(b)
}

func (BinaryString) Kind() Kind { return KindBinaryString }
func (BinaryString) isExpr()    {}

// Equal reports structural equality.
func (b BinaryString) Equal(other Expr) bool {
	o, ok := other.(BinaryString)
	return ok && bytes.Equal(b, o)
}

// ============================================================
// Real
// ============================================================

// Real is an IEEE-754 double.
type Real float64

// Float creates a machine real.
func Float(f float64) Real {
	return Real(f)
}

func (Real) Kind() Kind { return KindReal }
func (Real) isExpr()    {}

// Equal compares bit patterns, so NaN equals an identical NaN and 0 differs
// from -0.
func (r Real) Equal(other Expr) bool {
	o, ok := other.(Real)
	return ok && math.Float64bits(float64(r)) == math.Float64bits(float64(o))
}

// ============================================================
// Association
// ============================================================

// Rule is one association entry: Key -> Value, or Key :> Value when Delayed.
type Rule struct {
	Key     Expr
	Value   Expr
	Delayed bool
}

// RuleOf creates key -> value.
func RuleOf(key, value Expr) Rule {
	return Rule{Key: key, Value: value}
}

// DelayedRuleOf creates key :> value.
func DelayedRuleOf(key, value Expr) Rule {
	return Rule{Key: key, Value: value, Delayed: true}
}

// Equal reports structural equality of two entries.
func (r Rule) Equal(o Rule) bool {
	return r.Delayed == o.Delayed && Equal(r.Key, o.Key) && Equal(r.Value, o.Value)
}

// Association is an ordered sequence of rules. Order is significant and
// duplicate keys are kept.
type Association struct {
	Entries []Rule
}

// Assoc creates an association.
func Assoc(entries ...Rule) Association {
	return Association{Entries: entries}
}

func (Association) Kind() Kind { return KindAssociation }
func (Association) isExpr()    {}

// Equal reports structural equality, including entry order.
func (a Association) Equal(other Expr) bool {
	o, ok := other.(Association)
	if !ok || len(a.Entries) != len(o.Entries) {
		return false
	}
	for i := range a.Entries {
		if !a.Entries[i].Equal(o.Entries[i]) {
			return false
		}
	}
	return true
}

// Len returns the number of entries.
func (a Association) Len() int {
	return len(a.Entries)
}

// Get returns the value of the last entry whose key equals key.
func (a Association) Get(key Expr) (Expr, bool) {
	for i := len(a.Entries) - 1; i >= 0; i-- {
		if Equal(a.Entries[i].Key, key) {
			return a.Entries[i].Value, true
		}
	}
	return nil, false
}

// Lookup is Get with a string key.
func (a Association) Lookup(key string) (Expr, bool) {
	return a.Get(String(key))
}

// ============================================================
// ExternalObject
// ============================================================

// ExternalObject stands in for a host value that cannot be serialized. The
// value itself lives in an external registry under ID.
type ExternalObject struct {
	ID int64
	// Function marks a callable (ExternalFunction) rather than a plain object.
	Function bool
	// TypeName is an optional host type description.
	TypeName string
}

func (ExternalObject) Kind() Kind { return KindExternalObject }
func (ExternalObject) isExpr()    {}

// Equal reports structural equality.
func (x ExternalObject) Equal(other Expr) bool {
	o, ok := other.(ExternalObject)
	return ok && x == o
}

// Head returns ExternalObject or ExternalFunction.
func (x ExternalObject) Head() Symbol {
	if x.Function {
		return SymExternalFunction
	}
	return SymExternalObject
}

// Expand returns the function form Head[<|"ObjectID" -> id, ...|>] used on
// the wire.
func (x ExternalObject) Expand() Function {
	entries := []Rule{RuleOf(String("ObjectID"), Int(x.ID))}
	if x.TypeName != "" {
		entries = append(entries, RuleOf(String("Type"), String(x.TypeName)))
	}
	return Func(x.Head(), Assoc(entries...))
}

// AsExternalObject recognizes the function form produced by Expand.
func AsExternalObject(f Function) (ExternalObject, bool) {
	var x ExternalObject
	switch {
	case f.HasHead(string(SymExternalObject)):
	case f.HasHead(string(SymExternalFunction)):
		x.Function = true
	default:
		return x, false
	}
	if len(f.Args) != 1 {
		return x, false
	}
	a, ok := f.Args[0].(Association)
	if !ok {
		return x, false
	}
	seenID := false
	for _, e := range a.Entries {
		k, ok := e.Key.(String)
		if !ok || e.Delayed {
			return x, false
		}
		switch k {
		case "ObjectID":
			id, ok := e.Value.(Integer)
			if !ok || !id.IsInt64() {
				return x, false
			}
			x.ID = id.Int64()
			seenID = true
		case "Type":
			t, ok := e.Value.(String)
			if !ok {
				return x, false
			}
			x.TypeName = string(t)
		default:
			return x, false
		}
	}
	return x, seenID
}
