package service

import (
	"fmt"

	"marketplace/categorizer/internal/config"
	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/taxonomy"

	log "github.com/sirupsen/logrus"
)

// Catalog is one generation of the marketplace registry together with the
// taxonomies preloaded for it. Store is nil when taxonomies are read per
// request.
type Catalog struct {
	Marketplaces []domain.Marketplace
	Store        *taxonomy.Store
}

// LoadCatalog reads the registry and, when preload is set, flattens every
// marketplace whose taxonomy file exists. Marketplaces with a missing file
// stay in the registry so requests report them as skipped.
func LoadCatalog(marketplacesFile string, preload bool) (*Catalog, error) {
	marketplaces, err := config.LoadMarketplaces(marketplacesFile)
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{Marketplaces: marketplaces}
	if !preload {
		log.Infof("📋 Registry loaded with %d marketplaces (taxonomies read per request)", len(marketplaces))
		return catalog, nil
	}

	available := make([]domain.Marketplace, 0, len(marketplaces))
	for _, mp := range marketplaces {
		if !taxonomy.SourceExists(mp.TaxonomyFile) {
			log.Warnf("⚠️ Taxonomy file for %s not found, it will be skipped: %s", mp.Name, mp.TaxonomyFile)
			continue
		}
		available = append(available, mp)
	}

	store, err := taxonomy.LoadAll(available)
	if err != nil {
		return nil, fmt.Errorf("failed to preload taxonomies: %w", err)
	}
	catalog.Store = store

	log.Infof("📋 Registry loaded with %d marketplaces, %d taxonomies preloaded", len(marketplaces), len(available))
	return catalog, nil
}

// Find returns the registry entry with the given name, ignoring case.
func (c *Catalog) Find(name string) (domain.Marketplace, bool) {
	for _, mp := range c.Marketplaces {
		if mp.Name == name {
			return mp, true
		}
	}
	for _, mp := range c.Marketplaces {
		if equalFold(mp.Name, name) {
			return mp, true
		}
	}
	return domain.Marketplace{}, false
}

// Leaves returns the flattened taxonomy of a marketplace, from the preloaded
// store when it has one, otherwise straight from the source file.
func (c *Catalog) Leaves(mp domain.Marketplace) ([]domain.Leaf, error) {
	if t, ok := c.Store.Taxonomy(mp.Name); ok {
		return t.PlainLeaves(), nil
	}
	return taxonomy.LoadLeaves(mp)
}

// Shortlist fuzzy-matches a query against one marketplace taxonomy. Without a
// preloaded store the taxonomy is loaded for this call only.
func (c *Catalog) Shortlist(mp domain.Marketplace, query string, k int) ([]domain.Candidate, error) {
	if _, ok := c.Store.Taxonomy(mp.Name); ok {
		return c.Store.Shortlist(mp.Name, query, k), nil
	}

	store, err := taxonomy.LoadAll([]domain.Marketplace{mp})
	if err != nil {
		return nil, err
	}
	return store.Shortlist(mp.Name, query, k), nil
}
