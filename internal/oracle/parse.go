package oracle

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// selectionStrategy finds the object holding the category fields inside a
// decoded response.
type selectionStrategy func(doc map[string]any) (map[string]any, bool)

// selectionStrategies are tried in order; the first match wins.
var selectionStrategies = []selectionStrategy{
	directSelection,
	nestedSelection,
	firstOfSelections,
}

func directSelection(doc map[string]any) (map[string]any, bool) {
	return doc, hasCategoryFields(doc)
}

func nestedSelection(doc map[string]any) (map[string]any, bool) {
	sel, ok := doc["selection"].(map[string]any)
	return sel, ok && hasCategoryFields(sel)
}

func firstOfSelections(doc map[string]any) (map[string]any, bool) {
	list, ok := doc["selections"].([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	first, ok := list[0].(map[string]any)
	return first, ok && hasCategoryFields(first)
}

func hasCategoryFields(obj map[string]any) bool {
	_, hasID := obj["category_id"]
	_, hasName := obj["category_name"]
	return hasID && hasName
}

// ParseProposal extracts the category choice from a raw oracle reply. The
// returned proposal is empty when nothing usable was found. Confidence is
// only read when requested and only kept when it is a number in [0, 1].
func ParseProposal(text string, includeConfidence bool) *Proposal {
	p := &Proposal{Raw: text}

	doc, ok := decodeObject(text)
	if !ok {
		return p
	}

	for _, strategy := range selectionStrategies {
		sel, ok := strategy(doc)
		if !ok {
			continue
		}
		id, name := stringValue(sel["category_id"]), stringValue(sel["category_name"])
		if id == "" || name == "" {
			return p
		}
		p.CategoryID, p.CategoryName = id, name
		if includeConfidence {
			p.Confidence = confidenceValue(sel["confidence"])
			if p.Confidence == nil {
				p.Confidence = confidenceValue(doc["confidence"])
			}
		}
		return p
	}
	return p
}

// decodeObject parses a JSON object out of text, tolerating code fences and
// prose around the object.
func decodeObject(text string) (map[string]any, bool) {
	text = stripCodeFences(text)
	if text == "" {
		return nil, false
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err == nil {
		return doc, doc != nil
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &doc); err != nil {
		return nil, false
	}
	return doc, doc != nil
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.Trim(text, "`")
	// Drop the language tag line, if any.
	if nl := strings.IndexByte(text, '\n'); nl != -1 {
		first := strings.TrimSpace(text[:nl])
		if !strings.HasPrefix(first, "{") && !strings.HasPrefix(first, "[") {
			text = text[nl+1:]
		}
	}
	return strings.TrimSpace(text)
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func confidenceValue(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return nil
	}
	return &f
}
