package bridge

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Neumenon/wxf/expr"
)

// FromYAML converts the first YAML document in data to an expression.
// Mappings become Associations in document order, sequences become
// List[...], and an empty document is Null.
func FromYAML(data []byte) (expr.Expr, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bridge: YAML: %w", err)
	}
	if doc.Kind == 0 {
		return expr.SymNull, nil
	}
	e, err := fromYAMLNode(&doc, 0)
	if err != nil {
		return nil, fmt.Errorf("bridge: YAML: %w", err)
	}
	return e, nil
}

func fromYAMLNode(n *yaml.Node, depth int) (expr.Expr, error) {
	if depth > MaxDepth {
		return nil, errTooDeep
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return expr.SymNull, nil
		}
		return fromYAMLNode(n.Content[0], depth)

	case yaml.AliasNode:
		return fromYAMLNode(n.Alias, depth+1)

	case yaml.SequenceNode:
		items := make([]expr.Expr, 0, len(n.Content))
		for i, c := range n.Content {
			e, err := fromYAMLNode(c, depth+1)
			if err != nil {
				return nil, fmt.Errorf("line %d: item %d: %w", n.Line, i, err)
			}
			items = append(items, e)
		}
		return expr.List(items...), nil

	case yaml.MappingNode:
		rules := make([]expr.Rule, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := fromYAMLNode(n.Content[i], depth+1)
			if err != nil {
				return nil, err
			}
			v, err := fromYAMLNode(n.Content[i+1], depth+1)
			if err != nil {
				return nil, fmt.Errorf("line %d: key %s: %w", n.Content[i].Line, n.Content[i].Value, err)
			}
			rules = append(rules, expr.RuleOf(k, v))
		}
		return expr.Assoc(rules...), nil

	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
}

func yamlScalar(n *yaml.Node) (expr.Expr, error) {
	switch n.ShortTag() {
	case "!!null":
		return expr.SymNull, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return expr.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return expr.Int(i), nil
		}
		return expr.ParseInteger(strings.ReplaceAll(n.Value, "_", ""))
	case "!!float":
		// Integers beyond 64 bits resolve as floats; keep them exact.
		if isIntegerText(n.Value) {
			return expr.ParseInteger(n.Value)
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return expr.Float(f), nil
	case "!!binary":
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid base64: %w", n.Line, err)
		}
		return expr.Bytes(data), nil
	}
	return expr.Str(n.Value), nil
}

func isIntegerText(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
