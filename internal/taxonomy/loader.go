package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marketplace/categorizer/internal/domain"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

var ErrSourceNotFound = errors.New("taxonomy source not found")

// SourceExists reports whether a taxonomy file is present.
func SourceExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadSource reads a taxonomy file holding one tree or a list of trees.
// YAML is used for .yaml/.yml files, JSON otherwise.
func LoadSource(path, childrenField string) ([]domain.Node, error) {
	raw, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return domain.DecodeNodes(raw, childrenField), nil
}

// readDocument decodes a JSON or YAML file into generic values.
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("failed to read taxonomy %s: %w", path, err)
	}

	var raw any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode taxonomy %s: %w", path, err)
	}

	return raw, nil
}

// LoadLeaves reads and flattens the taxonomy of one marketplace.
func LoadLeaves(mp domain.Marketplace) ([]domain.Leaf, error) {
	fields := mp.FieldNames.WithDefaults()
	roots, err := LoadSource(mp.TaxonomyFile, fields.Children)
	if err != nil {
		return nil, err
	}
	return FlattenAll(roots, fields), nil
}
