package starlark

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"gopkg.in/yaml.v3"
)

// NodeValue carries an unresolved or resolved YAML node through Starlark
// without converting it.
type NodeValue struct {
	Node *yaml.Node
}

var _ starlark.Value = (*NodeValue)(nil)

func (n *NodeValue) String() string {
	if n.Node == nil {
		return "<yaml node>"
	}
	return "<yaml " + kindName(n.Node) + ">"
}

func (n *NodeValue) Type() string          { return "yaml.node" }
func (n *NodeValue) Freeze()               {}
func (n *NodeValue) Truth() starlark.Bool  { return n.Node != nil }
func (n *NodeValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: yaml.node") }

// ToStarlark converts a scope value to a Starlark value. Scope values are
// YAML nodes, plain Go values from values files, or native Starlark values
// produced by definitions.
func ToStarlark(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return val, nil
	case *yaml.Node:
		return NodeToStarlark(val)
	case string:
		return starlark.String(val), nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int8:
		return starlark.MakeInt64(int64(val)), nil
	case int16:
		return starlark.MakeInt64(int64(val)), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint:
		return starlark.MakeUint(val), nil
	case uint8:
		return starlark.MakeUint64(uint64(val)), nil
	case uint16:
		return starlark.MakeUint64(uint64(val)), nil
	case uint32:
		return starlark.MakeUint64(uint64(val)), nil
	case uint64:
		return starlark.MakeUint64(val), nil
	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil
	case time.Time:
		return starlark.String(val.Format(time.RFC3339)), nil
	case []string:
		items := make([]starlark.Value, len(val))
		for i, s := range val {
			items[i] = starlark.String(s)
		}
		return starlark.NewList(items), nil
	case []any:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := ToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case []map[string]any:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := ToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]any:
		// Go maps are unordered; sort keys for deterministic output.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := ToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case map[any]any:
		converted := make(map[string]any, len(val))
		for k, item := range val {
			converted[fmt.Sprint(k)] = item
		}
		return ToStarlark(converted)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// NodeToStarlark converts a resolved YAML node to native Starlark values.
// Mapping order is kept since Starlark dicts are insertion ordered.
func NodeToStarlark(n *yaml.Node) (starlark.Value, error) {
	if n == nil {
		return starlark.None, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return starlark.None, nil
		}
		return NodeToStarlark(n.Content[0])
	case yaml.AliasNode:
		return NodeToStarlark(n.Alias)
	case yaml.SequenceNode:
		items := make([]starlark.Value, len(n.Content))
		for i, item := range n.Content {
			sv, err := NodeToStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case yaml.MappingNode:
		dict := starlark.NewDict(len(n.Content) / 2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := NodeToStarlark(n.Content[i])
			if err != nil {
				return nil, err
			}
			v, err := NodeToStarlark(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(k, v); err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Content[i].Line, err)
			}
		}
		return dict, nil
	default:
		return scalarToStarlark(n), nil
	}
}

func scalarToStarlark(n *yaml.Node) starlark.Value {
	switch n.ShortTag() {
	case "!!null":
		return starlark.None
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return starlark.Bool(b)
		}
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return starlark.MakeInt64(i)
		}
		var u uint64
		if err := n.Decode(&u); err == nil {
			return starlark.MakeUint64(u)
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return starlark.Float(f)
		}
	}
	return starlark.String(n.Value)
}

// ToNode converts a Starlark value to a YAML node.
func ToNode(v starlark.Value) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return scalar("!!null", "null"), nil
	case *NodeValue:
		if val.Node == nil {
			return scalar("!!null", "null"), nil
		}
		return val.Node, nil
	case starlark.Bool:
		return scalar("!!bool", strconv.FormatBool(bool(val))), nil
	case starlark.Int:
		return scalar("!!int", val.String()), nil
	case starlark.Float:
		return scalar("!!float", formatFloat(float64(val))), nil
	case starlark.String:
		return scalar("!!str", string(val)), nil
	case starlark.Bytes:
		return scalar("!!str", string(val)), nil
	case *starlark.List:
		return sequenceNode(val.Len(), val.Index)
	case starlark.Tuple:
		return sequenceNode(val.Len(), val.Index)
	case *starlark.Set:
		items := make([]starlark.Value, 0, val.Len())
		iter := val.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			items = append(items, x)
		}
		return sequenceNode(len(items), func(i int) starlark.Value { return items[i] })
	case *starlark.Dict:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, item := range val.Items() {
			k, err := ToNode(item[0])
			if err != nil {
				return nil, err
			}
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("dict key %s is not a scalar", item[0])
			}
			vn, err := ToNode(item[1])
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, k, vn)
		}
		return out, nil
	case *starlarkstruct.Struct:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			vn, err := ToNode(attr)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			out.Content = append(out.Content, scalar("!!str", name), vn)
		}
		return out, nil
	case starlark.Callable:
		return nil, fmt.Errorf("cannot convert %s %s to YAML", val.Type(), val.Name())
	default:
		return scalar("!!str", v.String()), nil
	}
}

// ToGo converts a Starlark value to plain Go values for text/template data.
func ToGo(v starlark.Value) any {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case *NodeValue:
		var out any
		if val.Node != nil {
			_ = val.Node.Decode(&out)
		}
		return out
	case starlark.Bool:
		return bool(val)
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i
		}
		return val.String()
	case starlark.Float:
		return float64(val)
	case starlark.String:
		return string(val)
	case *starlark.List:
		out := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			out[i] = ToGo(val.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ToGo(item)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			out[key] = ToGo(item[1])
		}
		return out
	case *starlarkstruct.Struct:
		d := make(starlark.StringDict)
		val.ToStringDict(d)
		out := make(map[string]any, len(d))
		for k, item := range d {
			out[k] = ToGo(item)
		}
		return out
	default:
		return v.String()
	}
}

func sequenceNode(n int, index func(int) starlark.Value) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for i := 0; i < n; i++ {
		item, err := ToNode(index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out.Content = append(out.Content, item)
	}
	return out, nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// formatFloat renders f so that YAML reads it back as a float.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "scalar"
	}
}
