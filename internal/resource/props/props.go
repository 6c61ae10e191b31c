// Package props reads the typed key/value properties shared by material and
// scene documents. A value's type follows its lexical form: plain true or
// false is a bool, any other plain scalar a float, a single-quoted scalar a
// string and a sequence a float array.
package props

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/textenc"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindBool Kind = iota
	KindFloat
	KindFloats
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindFloats:
		return "float[]"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := KindBool; k <= KindString; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Value is a closed variant; only the field selected by Kind is meaningful.
type Value struct {
	Kind   Kind
	Bool   bool
	Float  float32
	Floats []float32
	String string
}

func BoolValue(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func FloatValue(f float32) Value      { return Value{Kind: KindFloat, Float: f} }
func FloatsValue(fs ...float32) Value { return Value{Kind: KindFloats, Floats: fs} }
func StringValue(s string) Value      { return Value{Kind: KindString, String: s} }

// Property is a named value.
type Property struct {
	Name  string
	Value Value
}

// Document parses source as a YAML document and returns its root mapping.
func Document(source []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(textenc.Normalize(source), &doc); err != nil {
		return nil, resource.Malformed("%v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, resource.Malformed("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, resource.Malformed("line %d: document root is not a mapping", root.Line)
	}
	return root, nil
}

// Pairs returns the key/value node pairs of a mapping in document order.
func Pairs(n *yaml.Node) [][2]*yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	pairs := make([][2]*yaml.Node, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		pairs = append(pairs, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
	}
	return pairs
}

// Expect fails unless n has the given kind.
func Expect(n *yaml.Node, kind yaml.Kind, what string) error {
	if n.Kind != kind {
		return resource.Malformed("line %d: %s must be a %s", n.Line, what, kindName(kind))
	}
	return nil
}

// Parse converts a value node. ok is false for nodes that carry no
// property type (mappings, double-quoted scalars); callers skip them.
func Parse(n *yaml.Node) (v Value, ok bool, err error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch {
		case n.Style&yaml.SingleQuotedStyle != 0:
			return StringValue(n.Value), true, nil
		case n.Style&(yaml.DoubleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0:
			return Value{}, false, nil
		case n.Value == "true":
			return BoolValue(true), true, nil
		case n.Value == "false":
			return BoolValue(false), true, nil
		}
		f, err := parseFloat(n)
		if err != nil {
			return Value{}, false, err
		}
		return FloatValue(f), true, nil

	case yaml.SequenceNode:
		fs := make([]float32, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return Value{}, false, resource.Malformed("line %d: array element must be a number", c.Line)
			}
			f, err := parseFloat(c)
			if err != nil {
				return Value{}, false, err
			}
			fs = append(fs, f)
		}
		return FloatsValue(fs...), true, nil
	}
	return Value{}, false, nil
}

// ReadMapping appends the properties of a mapping node, skipping keys for
// which skip returns true. Unsupported value nodes are logged and dropped.
func ReadMapping(dst []Property, n *yaml.Node, skip func(key string) bool, log *zap.Logger) ([]Property, error) {
	if err := Expect(n, yaml.MappingNode, "property block"); err != nil {
		return nil, err
	}
	for _, kv := range Pairs(n) {
		key := kv[0].Value
		if skip != nil && skip(key) {
			continue
		}
		v, ok, err := Parse(kv[1])
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", key, err)
		}
		if !ok {
			log.Warn("unsupported property node", zap.String("key", key), zap.Int("line", kv[1].Line))
			continue
		}
		dst = append(dst, Property{Name: key, Value: v})
	}
	return dst, nil
}

func parseFloat(n *yaml.Node) (float32, error) {
	f, err := strconv.ParseFloat(n.Value, 32)
	if err != nil {
		return 0, resource.Malformed("line %d: %q is not a number", n.Line, n.Value)
	}
	return float32(f), nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	}
	return "node"
}
