// Package bridge converts between expressions and other data formats:
// JSON, YAML, CBOR and MessagePack.
//
// The From functions keep mapping order where the source format has one and
// never round integers through float64. The To functions take the values
// produced by wxf.NativeConsumer.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Neumenon/wxf/expr"
	"github.com/Neumenon/wxf/wxf"
)

// MaxDepth bounds container nesting in every From function.
const MaxDepth = wxf.DefaultMaxDepth

var errTooDeep = fmt.Errorf("nesting deeper than %d", MaxDepth)

// ============================================================
// FromJSON - JSON to expression
// ============================================================

// FromJSON converts a JSON document to an expression. Objects become
// Associations in document order, arrays become List[...], integers are
// exact and null/true/false become symbols.
func FromJSON(data []byte) (expr.Expr, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	e, err := readJSON(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("bridge: JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("bridge: JSON: trailing data after value")
	}
	return e, nil
}

func readJSON(dec *json.Decoder, depth int) (expr.Expr, error) {
	if depth > MaxDepth {
		return nil, errTooDeep
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			var items []expr.Expr
			for dec.More() {
				e, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, fmt.Errorf("array[%d]: %w", len(items), err)
				}
				items = append(items, e)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return expr.List(items...), nil

		case '{':
			var rules []expr.Rule
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				v, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, fmt.Errorf("object[%q]: %w", key, err)
				}
				rules = append(rules, expr.RuleOf(expr.Str(key), v))
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return expr.Assoc(rules...), nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)

	case nil:
		return expr.SymNull, nil
	case bool:
		return expr.Bool(t), nil
	case string:
		return expr.Str(t), nil
	case json.Number:
		return numberExpr(string(t))
	}
	return nil, fmt.Errorf("unsupported JSON token %T", tok)
}

// numberExpr keeps integer text exact and parses everything else as a
// double.
func numberExpr(s string) (expr.Expr, error) {
	if !strings.ContainsAny(s, ".eE") {
		return expr.ParseInteger(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return expr.Float(f), nil
}

// ============================================================
// ToJSON - native values to JSON
// ============================================================

// ToJSON renders a decoded native value as JSON. wxf.Object keeps its entry
// order (a repeated key is written twice), []byte becomes base64, big
// integers stay exact, and expressions without a JSON counterpart become
// their InputForm text.
func ToJSON(v any, indent bool) ([]byte, error) {
	buf, err := appendJSON(nil, v)
	if err != nil {
		return nil, fmt.Errorf("bridge: JSON: %w", err)
	}
	if !indent {
		return buf, nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf, "", "  "); err != nil {
		return nil, fmt.Errorf("bridge: JSON: %w", err)
	}
	return out.Bytes(), nil
}

func appendJSON(buf []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case wxf.Object:
		buf = append(buf, '{')
		for i, m := range x {
			if i > 0 {
				buf = append(buf, ',')
			}
			key, err := json.Marshal(keyString(m.Key))
			if err != nil {
				return nil, err
			}
			buf = append(buf, key...)
			buf = append(buf, ':')
			if buf, err = appendJSON(buf, m.Value); err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil

	case []any:
		buf = append(buf, '[')
		for i, e := range x {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			if buf, err = appendJSON(buf, e); err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	}

	p, err := plain(v, false)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return append(buf, data...), nil
}

// keyString names an object key: strings as themselves, anything else as
// InputForm text.
func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return inputForm(k)
}
