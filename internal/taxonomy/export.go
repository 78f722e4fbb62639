package taxonomy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"marketplace/categorizer/internal/domain"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// HierarchyFieldNames lets a registry entry point at a tree written by
// BuildFile.
var HierarchyFieldNames = domain.FieldNames{ID: "code", Name: "label", Children: "children"}

// BuildFile nests the flat export at inPath into a single tree and writes it
// as indented JSON to outPath.
func BuildFile(inPath, outPath, rootLabel string, strict bool) (*HierarchyNode, error) {
	raw, err := readDocument(inPath)
	if err != nil {
		return nil, err
	}

	records, err := ParseFlatExport(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", inPath, err)
	}

	root, err := BuildHierarchy(records, rootLabel, strict)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode hierarchy: %w", err)
	}
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	log.Infof("🌳 Built taxonomy with %d records into %s", len(records), outPath)
	return root, nil
}
