// Package yamlcodec provides a YAML codec for documents built on yaml.v3
// node trees, which keep mapping order.
package yamlcodec

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec"
)

const name = "yaml"

// maxAliasDepth stops alias chains that refer back to themselves.
const maxAliasDepth = 64

func init() {
	codec.MustRegister(New())
}

// Codec implements codec.Codec using YAML.
type Codec struct {
	indent int
}

var _ codec.Codec = &Codec{}

// New creates a new YAML codec writing two-space indentation.
func New() *Codec {
	return &Codec{indent: 2}
}

func (c *Codec) Name() string        { return name }
func (c *Codec) ContentType() string { return "application/yaml" }

// Encode serializes doc as a block mapping.
func (c *Codec) Encode(doc *docmap.Document) ([]byte, error) {
	node, err := toNode(doc, nil)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(c.indent)
	if err := enc.Encode(node); err != nil {
		return nil, codec.Malformed(name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, codec.Malformed(name, err)
	}
	return buf.Bytes(), nil
}

// ToNode converts a document value to a yaml.v3 node.
func ToNode(v any) (*yaml.Node, error) {
	return toNode(v, nil)
}

func toNode(v any, path []string) (*yaml.Node, error) {
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}

	switch t := v.(type) {
	case nil:
		return scalar("!!null", "null"), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(t)), nil
	case int64:
		return scalar("!!int", strconv.FormatInt(t, 10)), nil
	case float64:
		return scalar("!!float", formatFloat(t)), nil
	case string:
		return scalar("!!str", t), nil
	case *docmap.Document:
		if t == nil {
			return scalar("!!null", "null"), nil
		}
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, el := range t.Elements() {
			val, err := toNode(el.Value, append(path, el.Key))
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, scalar("!!str", el.Key), val)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(t) == 0 {
			node.Style = yaml.FlowStyle
		}
		for i, e := range t {
			val, err := toNode(e, append(path, "["+strconv.Itoa(i)+"]"))
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, val)
		}
		return node, nil
	default:
		return nil, codec.UnsupportedValue(name, path, v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Decode parses a YAML mapping. Empty input and a null top level decode to
// an empty document.
func (c *Codec) Decode(data []byte) (*docmap.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, codec.Malformed(name, err)
	}
	if root.Kind == 0 {
		return docmap.NewDocument(), nil
	}

	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return docmap.NewDocument(), nil
		}
		node = node.Content[0]
	}
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return docmap.NewDocument(), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, codec.NotADocument(name, nodeKind(node))
	}

	v, err := FromNode(node)
	if err != nil {
		return nil, codec.Malformed(name, err)
	}
	return v.(*docmap.Document), nil
}

// FromNode converts a yaml.v3 node to a document value.
func FromNode(node *yaml.Node) (any, error) {
	return fromNode(node, 0)
}

func fromNode(node *yaml.Node, aliases int) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return fromNode(node.Content[0], aliases)

	case yaml.AliasNode:
		if aliases >= maxAliasDepth || node.Alias == nil {
			return nil, fmt.Errorf("line %d: alias nesting too deep", node.Line)
		}
		return fromNode(node.Alias, aliases+1)

	case yaml.MappingNode:
		doc := docmap.NewDocument(len(node.Content) / 2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", k.Line)
			}
			val, err := fromNode(v, aliases)
			if err != nil {
				return nil, err
			}
			doc.Set(k.Value, val)
		}
		return doc, nil

	case yaml.SequenceNode:
		seq := make([]any, 0, len(node.Content))
		for _, e := range node.Content {
			val, err := fromNode(e, aliases)
			if err != nil {
				return nil, err
			}
			seq = append(seq, val)
		}
		return seq, nil

	case yaml.ScalarNode:
		return scalarValue(node)

	default:
		return nil, fmt.Errorf("line %d: unexpected node kind %d", node.Line, node.Kind)
	}
}

func scalarValue(node *yaml.Node) (any, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err == nil {
			return i, nil
		}
		// beyond int64
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		// strings, timestamps and binary keep their text
		return node.Value, nil
	}
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return docmap.KindSequence.String()
	case yaml.ScalarNode:
		v, err := scalarValue(node)
		if err != nil {
			return docmap.KindInvalid.String()
		}
		return docmap.KindOf(v).String()
	default:
		return docmap.KindInvalid.String()
	}
}
