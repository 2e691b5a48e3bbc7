package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/Neumenon/wxf/wxf"
)

// FromMsgpack decodes one MessagePack value into Go values ready for
// wxf.Marshal. Maps become wxf.Object in wire order.
func FromMsgpack(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := readMsgpack(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("bridge: MessagePack: %w", err)
	}
	if _, err := dec.PeekCode(); !errors.Is(err, io.EOF) {
		return nil, errors.New("bridge: MessagePack: trailing data after value")
	}
	return v, nil
}

func readMsgpack(dec *msgpack.Decoder, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, errTooDeep
	}
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		obj := make(wxf.Object, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			k, err := readMsgpack(dec, depth+1)
			if err != nil {
				return nil, err
			}
			v, err := readMsgpack(dec, depth+1)
			if err != nil {
				return nil, fmt.Errorf("map[%v]: %w", k, err)
			}
			obj = append(obj, wxf.Member{Key: k, Value: v})
		}
		return obj, nil

	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			v, err := readMsgpack(dec, depth+1)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return items, nil
	}

	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano), nil
	}
	return v, nil
}

// ToMsgpack encodes a decoded native value as MessagePack with sorted map
// keys. Big integers become decimal strings.
func ToMsgpack(v any) ([]byte, error) {
	p, err := plain(v, true)
	if err != nil {
		return nil, fmt.Errorf("bridge: MessagePack: %w", err)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("bridge: MessagePack: %w", err)
	}
	return buf.Bytes(), nil
}
