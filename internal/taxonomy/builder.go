package taxonomy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownParent = errors.New("unknown parent code")

const unsetLevel = 9999

// FlatRecord is one category of a flat taxonomy export, linked to its parent
// by code.
type FlatRecord struct {
	Code              string `json:"code"`
	Label             string `json:"label"`
	Name              string `json:"name,omitempty"`
	LabelTranslations []any  `json:"label_translations,omitempty"`
	Level             *int   `json:"level,omitempty"`
	ParentCode        string `json:"parent_code"`
}

// HierarchyNode is a category of a built taxonomy tree. Path and Level are
// filled in for every node once the tree is complete.
type HierarchyNode struct {
	Label             string           `json:"label"`
	Code              string           `json:"code"`
	Level             *int             `json:"level"`
	Path              string           `json:"path,omitempty"`
	LabelTranslations []any            `json:"label_translations,omitempty"`
	Children          []*HierarchyNode `json:"children"`
}

// ParseFlatExport extracts flat records from a decoded document. Records
// without a code are dropped; labels fall back to name, then code.
func ParseFlatExport(raw any) ([]FlatRecord, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := v["hierarchies"].([]any)
		if !ok {
			return nil, fmt.Errorf("flat taxonomy must be a list or an object with a 'hierarchies' list")
		}
		items = list
	default:
		return nil, fmt.Errorf("flat taxonomy must be a list or an object with a 'hierarchies' list")
	}

	records := make([]FlatRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		code := stringField(obj, "code")
		if code == "" {
			continue
		}
		label := firstNonEmpty(stringField(obj, "label"), stringField(obj, "name"), code)

		rec := FlatRecord{
			Code:       code,
			Label:      label,
			ParentCode: strings.TrimSpace(stringField(obj, "parent_code")),
		}
		if tr, ok := obj["label_translations"].([]any); ok {
			rec.LabelTranslations = tr
		}
		switch lv := obj["level"].(type) {
		case float64:
			level := int(lv)
			rec.Level = &level
		case int:
			level := lv
			rec.Level = &level
		}
		records = append(records, rec)
	}
	return records, nil
}

// BuildHierarchy nests flat records under a synthetic root labelled
// rootLabel. Records whose parent appears later are deferred across passes.
// Records whose parent never appears attach to the root, or fail the build
// when strict is set.
func BuildHierarchy(records []FlatRecord, rootLabel string, strict bool) (*HierarchyNode, error) {
	if rootLabel == "" {
		rootLabel = "Root"
	}
	root := &HierarchyNode{Label: rootLabel, Code: "root", Children: []*HierarchyNode{}}
	index := map[string]*HierarchyNode{root.Code: root}

	pending := append([]FlatRecord(nil), records...)
	sort.SliceStable(pending, func(i, j int) bool {
		li, lj := levelOf(pending[i].Level), levelOf(pending[j].Level)
		if li != lj {
			return li < lj
		}
		if pending[i].Label != pending[j].Label {
			return pending[i].Label < pending[j].Label
		}
		return pending[i].Code < pending[j].Code
	})

	findParent := func(code string) *HierarchyNode {
		if code == "" || strings.EqualFold(code, "root") {
			return root
		}
		return index[code]
	}

	for progress := true; len(pending) > 0 && progress; {
		progress = false
		var next []FlatRecord
		for _, rec := range pending {
			parent := findParent(rec.ParentCode)
			if parent == nil {
				next = append(next, rec)
				continue
			}
			attach(parent, getOrCreate(index, rec))
			progress = true
		}
		pending = next
	}

	if len(pending) > 0 {
		if strict {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, strings.Join(missingParents(pending), ", "))
		}
		for _, rec := range pending {
			attach(root, getOrCreate(index, rec))
		}
	}

	finalize(root, "", 0)
	sortChildren(root)
	return root, nil
}

func getOrCreate(index map[string]*HierarchyNode, rec FlatRecord) *HierarchyNode {
	if node, ok := index[rec.Code]; ok {
		if node.Label == "" {
			node.Label = rec.Label
		}
		if node.Level == nil {
			node.Level = rec.Level
		}
		if len(node.LabelTranslations) == 0 {
			node.LabelTranslations = rec.LabelTranslations
		}
		return node
	}

	node := &HierarchyNode{
		Label:             firstNonEmpty(rec.Label, rec.Code),
		Code:              rec.Code,
		Level:             rec.Level,
		LabelTranslations: rec.LabelTranslations,
		Children:          []*HierarchyNode{},
	}
	index[rec.Code] = node
	return node
}

func attach(parent, child *HierarchyNode) {
	for _, existing := range parent.Children {
		if existing.Code == child.Code {
			return
		}
	}
	parent.Children = append(parent.Children, child)
}

func finalize(node *HierarchyNode, parentPath string, depth int) {
	label := firstNonEmpty(node.Label, node.Code)
	if parentPath != "" {
		node.Path = parentPath + PathSeparator + label
	} else {
		node.Path = label
	}
	if node.Level == nil {
		level := depth
		node.Level = &level
	}

	for _, child := range node.Children {
		finalize(child, node.Path, depth+1)
	}
}

func sortChildren(node *HierarchyNode) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if la, lb := levelOf(a.Level), levelOf(b.Level); la != lb {
			return la < lb
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.Code < b.Code
	})
	for _, child := range node.Children {
		sortChildren(child)
	}
}

func missingParents(pending []FlatRecord) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, rec := range pending {
		if rec.ParentCode == "" {
			continue
		}
		if _, ok := seen[rec.ParentCode]; !ok {
			seen[rec.ParentCode] = struct{}{}
			out = append(out, rec.ParentCode)
		}
	}
	sort.Strings(out)
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

func levelOf(level *int) int {
	if level == nil {
		return unsetLevel
	}
	return *level
}

func stringField(obj map[string]any, key string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
