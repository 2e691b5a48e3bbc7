package wxf

import (
	"math/big"

	"github.com/Neumenon/wxf/expr"
)

// Consumer builds the decoder's output, one call per node, children before
// parents. The decoder never inspects the values a Consumer returns.
type Consumer[T any] interface {
	ConsumeFunction(head T, args []T) (T, error)
	ConsumeSymbol(name string) (T, error)
	ConsumeString(s string) (T, error)
	ConsumeBinaryString(b []byte) (T, error)
	ConsumeInteger(n int64) (T, error)
	ConsumeBigInteger(n *big.Int) (T, error)
	ConsumeReal(f float64) (T, error)
	ConsumeBigReal(r expr.BigReal) (T, error)
	ConsumeAssociation(entries []Entry[T]) (T, error)
	ConsumePackedArray(a expr.PackedArray) (T, error)
	ConsumeNumericArray(a expr.NumericArray) (T, error)
}

// Entry is one decoded association rule.
type Entry[T any] struct {
	Key     T
	Value   T
	Delayed bool
}

// ExprConsumer builds expr trees. It is the default consumer.
type ExprConsumer struct{}

var _ Consumer[expr.Expr] = ExprConsumer{}

// ConsumeFunction recognizes the ExternalObject placeholder form.
func (ExprConsumer) ConsumeFunction(head expr.Expr, args []expr.Expr) (expr.Expr, error) {
	fn := expr.Function{Head: head, Args: args}
	if x, ok := expr.AsExternalObject(fn); ok {
		return x, nil
	}
	return fn, nil
}

func (ExprConsumer) ConsumeSymbol(name string) (expr.Expr, error) { return expr.Symbol(name), nil }
func (ExprConsumer) ConsumeString(s string) (expr.Expr, error)    { return expr.String(s), nil }
func (ExprConsumer) ConsumeBinaryString(b []byte) (expr.Expr, error) {
	return expr.BinaryString(b), nil
}
func (ExprConsumer) ConsumeInteger(n int64) (expr.Expr, error)      { return expr.Int(n), nil }
func (ExprConsumer) ConsumeBigInteger(n *big.Int) (expr.Expr, error) { return expr.BigInt(n), nil }
func (ExprConsumer) ConsumeReal(f float64) (expr.Expr, error)        { return expr.Real(f), nil }
func (ExprConsumer) ConsumeBigReal(r expr.BigReal) (expr.Expr, error) {
	return r, nil
}

func (ExprConsumer) ConsumeAssociation(entries []Entry[expr.Expr]) (expr.Expr, error) {
	rules := make([]expr.Rule, len(entries))
	for i, e := range entries {
		rules[i] = expr.Rule{Key: e.Key, Value: e.Value, Delayed: e.Delayed}
	}
	return expr.Association{Entries: rules}, nil
}

func (ExprConsumer) ConsumePackedArray(a expr.PackedArray) (expr.Expr, error) {
	return a, nil
}

func (ExprConsumer) ConsumeNumericArray(a expr.NumericArray) (expr.Expr, error) {
	return a, nil
}
