package wxf

import (
	"fmt"
	"math/big"

	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/extobj"
)

// Call is a decoded function other than List. It encodes back to the same
// Function.
type Call struct {
	Head any
	Args []any
}

// Member is one entry of an Object.
type Member struct {
	Key     any
	Value   any
	Delayed bool
}

// Object is a decoded association. Entry order is kept and duplicate keys
// are allowed.
type Object []Member

// Get returns the value of the last entry whose key is the string key.
func (o Object) Get(key string) (any, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if k, ok := o[i].Key.(string); ok && k == key {
			return o[i].Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (o Object) Keys() []any {
	keys := make([]any, len(o))
	for i, m := range o {
		keys[i] = m.Key
	}
	return keys
}

// NativeConsumer decodes into plain Go values:
//
//	True, False, Null      bool, nil
//	other symbols          expr.Symbol
//	String, BinaryString   string, []byte
//	Integer                int64, or *big.Int beyond int64
//	Real, BigReal          float64, expr.BigReal
//	List[...]              []any
//	Complex[re, im]        complex128
//	Rational[n, d]         *big.Rat
//	other functions        Call
//	Association            Object
//	rank-1 arrays          typed slices ([]float64, []int32, ...)
//	higher-rank arrays     expr.PackedArray / expr.NumericArray
//
// With Objects set, ExternalObject placeholders are replaced by the
// registered host value; an unknown id is an error.
type NativeConsumer struct {
	Objects *extobj.Registry
}

var _ Consumer[any] = NativeConsumer{}

func (c NativeConsumer) ConsumeFunction(head any, args []any) (any, error) {
	sym, ok := head.(expr.Symbol)
	if !ok {
		return Call{Head: head, Args: args}, nil
	}

	switch sym.Name() {
	case string(expr.SymList):
		if args == nil {
			args = []any{}
		}
		return args, nil
	case string(expr.SymComplex):
		if len(args) == 2 {
			re, ok1 := args[0].(float64)
			im, ok2 := args[1].(float64)
			if ok1 && ok2 {
				return complex(re, im), nil
			}
		}
	case string(expr.SymRational):
		if len(args) == 2 {
			n, ok1 := bigOf(args[0])
			d, ok2 := bigOf(args[1])
			if ok1 && ok2 && d.Sign() != 0 {
				return new(big.Rat).SetFrac(n, d), nil
			}
		}
	case string(expr.SymExternalObject), string(expr.SymExternalFunction):
		if c.Objects != nil && len(args) == 1 {
			if obj, ok := args[0].(Object); ok {
				if id, ok := obj.Get("ObjectID"); ok {
					n, ok := id.(int64)
					if !ok {
						return nil, fmt.Errorf("wxf: ObjectID %v is not an integer", id)
					}
					return c.Objects.Resolve(expr.ExternalObject{ID: n})
				}
			}
		}
	}
	return Call{Head: head, Args: args}, nil
}

func bigOf(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int64:
		return big.NewInt(n), true
	case *big.Int:
		return n, true
	}
	return nil, false
}

func (NativeConsumer) ConsumeSymbol(name string) (any, error) {
	switch expr.Symbol(name).Name() {
	case string(expr.SymTrue):
		return true, nil
	case string(expr.SymFalse):
		return false, nil
	case string(expr.SymNull):
		return nil, nil
	}
	return expr.Symbol(name), nil
}

func (NativeConsumer) ConsumeString(s string) (any, error)    { return s, nil }
func (NativeConsumer) ConsumeBinaryString(b []byte) (any, error) { return b, nil }
func (NativeConsumer) ConsumeInteger(n int64) (any, error)     { return n, nil }
func (NativeConsumer) ConsumeReal(f float64) (any, error)      { return f, nil }
func (NativeConsumer) ConsumeBigReal(r expr.BigReal) (any, error) {
	return r, nil
}

func (NativeConsumer) ConsumeBigInteger(n *big.Int) (any, error) {
	if n.IsInt64() {
		return n.Int64(), nil
	}
	return n, nil
}

func (NativeConsumer) ConsumeAssociation(entries []Entry[any]) (any, error) {
	obj := make(Object, len(entries))
	for i, e := range entries {
		obj[i] = Member{Key: e.Key, Value: e.Value, Delayed: e.Delayed}
	}
	return obj, nil
}

func (NativeConsumer) ConsumePackedArray(a expr.PackedArray) (any, error) {
	if a.Rank() == 1 {
		return a.Values(), nil
	}
	return a, nil
}

func (NativeConsumer) ConsumeNumericArray(a expr.NumericArray) (any, error) {
	if a.Rank() == 1 {
		return a.Values(), nil
	}
	return a, nil
}
