// Package expr implements the in-memory expression tree exchanged by the WXF
// codec.
//
// An expression is one of:
//   - Function: a head expression applied to an ordered argument list
//   - Symbol: a (possibly context-qualified) name such as Plus or System`List
//   - String, BinaryString
//   - Integer: int64 or arbitrary precision, always normalized
//   - Real (float64) and BigReal (decimal digits with explicit precision)
//   - Association: ordered Rule / RuleDelayed entries, duplicates allowed
//   - PackedArray and NumericArray: homogeneous row-major numeric buffers
//   - ExternalObject: an identifier standing in for a host value
//
// Trees are immutable once built. Constructors validate array shapes; the
// zero value of each node is usable.
//
// # Text Form
//
// Format renders expressions in InputForm:
//
//	f[x, 1, "s"]
//	{1, 2, 3}
//	<|"a" -> 1, "b" :> 2|>
//	1.5`20.*^-3
//
// Parse reads the same syntax back.
package expr
