package domain

import (
	"fmt"
	"strconv"
)

// Node is one category of a marketplace taxonomy tree as read from its source
// file. Fields keeps the raw attributes; Children holds only structured child
// nodes, in source order. HasChildren is set when the raw children value is
// present and non-empty, even if none of its entries is a usable node.
type Node struct {
	Fields      map[string]any
	Children    []Node
	HasChildren bool
}

// IsLeaf reports whether the node had no children value or an empty one.
func (n Node) IsLeaf() bool {
	return !n.HasChildren && len(n.Children) == 0
}

// FieldNames names the attributes a marketplace uses for id, name and children.
type FieldNames struct {
	ID       string `json:"id_field" yaml:"id_field" mapstructure:"id_field"`
	Name     string `json:"name_field" yaml:"name_field" mapstructure:"name_field"`
	Children string `json:"children_field" yaml:"children_field" mapstructure:"children_field"`
}

// DefaultFieldNames is used for any field name a marketplace leaves empty.
var DefaultFieldNames = FieldNames{ID: "id", Name: "name", Children: "children"}

// WithDefaults fills empty field names from DefaultFieldNames.
func (f FieldNames) WithDefaults() FieldNames {
	if f.ID == "" {
		f.ID = DefaultFieldNames.ID
	}
	if f.Name == "" {
		f.Name = DefaultFieldNames.Name
	}
	if f.Children == "" {
		f.Children = DefaultFieldNames.Children
	}
	return f
}

// String returns the attribute as a string, or "" when it is absent or null.
func (n Node) String(field string) string {
	v, ok := n.Fields[field]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// DecodeNodes converts a decoded JSON/YAML document into taxonomy roots.
// An object is a single tree, an array is a list of trees. Entries that are
// not objects are skipped at every level.
func DecodeNodes(raw any, childrenField string) []Node {
	switch v := raw.(type) {
	case map[string]any:
		return []Node{decodeNode(v, childrenField)}
	case []any:
		roots := make([]Node, 0, len(v))
		for _, item := range v {
			if obj, ok := asObject(item); ok {
				roots = append(roots, decodeNode(obj, childrenField))
			}
		}
		return roots
	default:
		if obj, ok := asObject(raw); ok {
			return []Node{decodeNode(obj, childrenField)}
		}
		return nil
	}
}

func decodeNode(obj map[string]any, childrenField string) Node {
	node := Node{Fields: make(map[string]any, len(obj))}
	for k, v := range obj {
		if k == childrenField {
			continue
		}
		node.Fields[k] = v
	}

	node.HasChildren = nonEmpty(obj[childrenField])
	if items, ok := obj[childrenField].([]any); ok {
		for _, item := range items {
			if child, ok := asObject(item); ok {
				node.Children = append(node.Children, decodeNode(child, childrenField))
			}
		}
	}
	return node
}

// nonEmpty treats null, false, zero, and empty strings, lists and maps as an
// absent children value.
func nonEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case map[any]any:
		return len(t) > 0
	default:
		return true
	}
}

// asObject accepts the map shapes produced by the JSON and YAML decoders.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
