package bridge

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/wxf"
)

// cborDecMode decodes into map[any]any so integer keys survive, and
// bignums into *big.Int so the WXF encoder picks them up.
var cborDecMode cbor.DecMode

// cborEncMode uses Core Deterministic Encoding.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborDecMode, err = cbor.DecOptions{
		BigIntDec:       cbor.BigIntDecodePointer,
		MaxNestedLevels: 1024,
	}.DecMode()
	if err != nil {
		panic("bridge: CBOR decoder initialization failed: " + err.Error())
	}
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bridge: CBOR encoder initialization failed: " + err.Error())
	}
}

// FromCBOR decodes one CBOR data item into Go values ready for wxf.Marshal.
// Unknown tags become CBORTag[number, content] calls and timestamps become
// RFC 3339 strings.
func FromCBOR(data []byte) (any, error) {
	var v any
	if err := cborDecMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("bridge: CBOR: %w", err)
	}
	return normalizeCBOR(v), nil
}

func normalizeCBOR(v any) any {
	switch x := v.(type) {
	case map[any]any:
		for k, e := range x {
			x[k] = normalizeCBOR(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeCBOR(e)
		}
		return x
	case cbor.Tag:
		return wxf.Call{Head: expr.Sym("CBORTag"), Args: []any{x.Number, normalizeCBOR(x.Content)}}
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return v
}

// ToCBOR encodes a decoded native value as CBOR. Objects become maps.
func ToCBOR(v any) ([]byte, error) {
	p, err := plain(v, false)
	if err != nil {
		return nil, fmt.Errorf("bridge: CBOR: %w", err)
	}
	data, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("bridge: CBOR: %w", err)
	}
	return data, nil
}
