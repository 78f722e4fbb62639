package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"marketplace/categorizer/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Store is one loaded generation of marketplace taxonomies. It is read-only
// once built; reloading produces a new Store.
type Store struct {
	order        []string
	marketplaces map[string]*domain.MarketplaceTaxonomy
}

// LoadAll loads and flattens the taxonomy of every configured marketplace.
// A missing source file fails the whole load.
func LoadAll(marketplaces []domain.Marketplace) (*Store, error) {
	s := &Store{marketplaces: make(map[string]*domain.MarketplaceTaxonomy, len(marketplaces))}

	for _, mp := range marketplaces {
		mp.FieldNames = mp.FieldNames.WithDefaults()
		if !SourceExists(mp.TaxonomyFile) {
			return nil, fmt.Errorf("%w for %s: %s", ErrSourceNotFound, mp.Name, mp.TaxonomyFile)
		}

		leaves, err := LoadLeaves(mp)
		if err != nil {
			return nil, fmt.Errorf("failed to load taxonomy for %s: %w", mp.Name, err)
		}

		s.add(mp, leaves)
		log.Infof("📚 Loaded %d leaves for %s from %s", len(leaves), mp.Name, mp.TaxonomyFile)
	}

	return s, nil
}

// LoadDir loads every *.json file in dir as a marketplace named after the
// file stem, using the default field names.
func LoadDir(dir string) (*Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	marketplaces := make([]domain.Marketplace, 0, len(matches))
	for _, path := range matches {
		marketplaces = append(marketplaces, domain.Marketplace{
			Name:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			TaxonomyFile: path,
		})
	}
	return LoadAll(marketplaces)
}

func (s *Store) add(mp domain.Marketplace, leaves []domain.Leaf) {
	indexed := make([]domain.IndexedLeaf, len(leaves))
	for i, leaf := range leaves {
		indexed[i] = domain.IndexedLeaf{
			Leaf:   leaf,
			Tokens: NormalizeTokens(leaf.Path + " " + leaf.Name),
		}
	}

	if _, exists := s.marketplaces[mp.Name]; !exists {
		s.order = append(s.order, mp.Name)
	}
	s.marketplaces[mp.Name] = &domain.MarketplaceTaxonomy{Marketplace: mp, Leaves: indexed}
}

// ListMarketplaces returns the loaded marketplace names in load order.
func (s *Store) ListMarketplaces() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Taxonomy returns the flattened taxonomy of one marketplace.
func (s *Store) Taxonomy(marketplace string) (*domain.MarketplaceTaxonomy, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.marketplaces[marketplace]
	return t, ok
}

// GetLeaves returns the leaves of a marketplace, or nil when it is unknown.
func (s *Store) GetLeaves(marketplace string) []domain.Leaf {
	t, ok := s.Taxonomy(marketplace)
	if !ok {
		return nil
	}
	return t.PlainLeaves()
}

// Shortlist fuzzy-matches queryText against every leaf of a marketplace and
// returns at most k candidates, best first, with duplicate paths collapsed
// onto their best-scoring entry.
func (s *Store) Shortlist(marketplace, queryText string, k int) []domain.Candidate {
	t, ok := s.Taxonomy(marketplace)
	if !ok || len(t.Leaves) == 0 || k < 1 {
		return nil
	}

	matcher := NewPartialMatcher(NormalizeTokens(queryText))
	scored := make([]domain.Candidate, len(t.Leaves))
	for i, leaf := range t.Leaves {
		scored[i] = domain.Candidate{Leaf: leaf.Leaf, Match: matcher.Ratio(leaf.Tokens)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Match > scored[j].Match
	})
	if k < len(scored) {
		scored = scored[:k]
	}

	byPath := make(map[string]int, len(scored))
	unique := make([]domain.Candidate, 0, len(scored))
	for _, c := range scored {
		if idx, seen := byPath[c.Path]; seen {
			if c.Match > unique[idx].Match {
				unique[idx] = c
			}
			continue
		}
		byPath[c.Path] = len(unique)
		unique = append(unique, c)
	}
	return unique
}
