package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marketplace/categorizer/internal/domain"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Registry is the marketplaces file: the ordered list of marketplaces and
// where each one's taxonomy lives.
type Registry struct {
	Marketplaces []domain.Marketplace `json:"marketplaces" yaml:"marketplaces"`
}

// LoadMarketplaces reads the marketplace registry. YAML is used for
// .yaml/.yml files, JSON otherwise. Empty field names fall back to
// id/name/children, and a relative taxonomy path that does not exist as
// given is looked up next to the registry file.
func LoadMarketplaces(path string) ([]domain.Marketplace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read marketplaces file: %w", err)
	}

	var registry Registry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &registry)
	default:
		err = json.Unmarshal(data, &registry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode marketplaces file %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	marketplaces := make([]domain.Marketplace, 0, len(registry.Marketplaces))
	for i, mp := range registry.Marketplaces {
		if strings.TrimSpace(mp.Name) == "" {
			return nil, fmt.Errorf("marketplace #%d in %s has no name", i+1, path)
		}
		mp.FieldNames = mp.FieldNames.WithDefaults()
		mp.TaxonomyFile = resolveTaxonomyPath(baseDir, mp.TaxonomyFile)
		marketplaces = append(marketplaces, mp)
	}

	return marketplaces, nil
}

func resolveTaxonomyPath(baseDir, file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	if _, err := os.Stat(file); err == nil {
		return file
	}
	candidate := filepath.Join(baseDir, file)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return file
}
