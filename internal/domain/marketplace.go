package domain

// Marketplace is one registry entry: where its taxonomy lives and how its
// nodes name their fields.
type Marketplace struct {
	Name         string `json:"name" yaml:"name"`
	TaxonomyFile string `json:"taxonomy_file" yaml:"taxonomy_file"`
	FieldNames   `yaml:",inline"`
}

// MarketplaceTaxonomy is the flattened taxonomy of one marketplace. It is built
// once per load and never mutated afterwards.
type MarketplaceTaxonomy struct {
	Marketplace Marketplace
	Leaves      []IndexedLeaf
}

// PlainLeaves returns the leaves without their search tokens.
func (t *MarketplaceTaxonomy) PlainLeaves() []Leaf {
	if t == nil {
		return nil
	}
	out := make([]Leaf, len(t.Leaves))
	for i, l := range t.Leaves {
		out[i] = l.Leaf
	}
	return out
}
