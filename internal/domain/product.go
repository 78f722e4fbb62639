package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidProduct = errors.New("invalid product")

// Product is the listing to categorize.
type Product struct {
	SKU         string         `json:"sku"`
	Name        string         `json:"name"`
	Brand       string         `json:"brand,omitempty"`
	Description string         `json:"description,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Validate checks the fields every categorization needs.
func (p *Product) Validate() error {
	var missing []string
	if strings.TrimSpace(p.SKU) == "" {
		missing = append(missing, "sku")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidProduct, strings.Join(missing, ", "))
	}
	if p.Attributes == nil {
		p.Attributes = map[string]any{}
	}
	return nil
}
