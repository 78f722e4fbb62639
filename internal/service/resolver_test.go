package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/oracle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headphonesTaxonomy = `{"name": "Electronics", "children": [
	{"name": "Audio", "children": [
		{"id": "L1", "name": "Headphones", "children": []}
	]}
]}`

const audioTaxonomy = `{"name": "Electronics", "children": [
	{"name": "Audio", "children": [
		{"id": "L1", "name": "Headphones"},
		{"id": "L2", "name": "Speakers"},
		{"id": "L3", "name": "Microphones"}
	]},
	{"name": "Home", "children": [
		{"id": "H1", "name": "Cookware"}
	]}
]}`

type fakeOracle struct {
	mu       sync.Mutex
	requests []*oracle.Request
	propose  func(req *oracle.Request) (*oracle.Proposal, error)
}

func (f *fakeOracle) ProposeCategory(_ context.Context, req *oracle.Request) (*oracle.Proposal, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.propose == nil {
		return nil, nil
	}
	return f.propose(req)
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func answer(id, name string, confidence *float64) func(*oracle.Request) (*oracle.Proposal, error) {
	return func(*oracle.Request) (*oracle.Proposal, error) {
		return &oracle.Proposal{
			CategoryID:   id,
			CategoryName: name,
			Confidence:   confidence,
			Usage:        domain.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		}, nil
	}
}

// writeRegistry creates taxonomy files and a registry listing them in the
// given order. A nil taxonomy is listed but never written.
func writeRegistry(t *testing.T, taxonomies [][2]*string) string {
	t.Helper()
	dir := t.TempDir()

	var entries []string
	for _, tx := range taxonomies {
		name := *tx[0]
		file := filepath.Join(dir, name+".json")
		if tx[1] != nil {
			require.NoError(t, os.WriteFile(file, []byte(*tx[1]), 0o644))
		}
		entries = append(entries, fmt.Sprintf(`{"name": %q, "taxonomy_file": %q}`, name, file))
	}

	registry := filepath.Join(dir, "marketplaces.json")
	doc := `{"marketplaces": [` + strings.Join(entries, ",") + `]}`
	require.NoError(t, os.WriteFile(registry, []byte(doc), 0o644))
	return registry
}

func entry(name string, taxonomy *string) [2]*string {
	return [2]*string{&name, taxonomy}
}

func str(s string) *string { return &s }

func newTestResolver(t *testing.T, preload bool, o oracle.Oracle, taxonomies ...[2]*string) *Resolver {
	t.Helper()
	catalog, err := LoadCatalog(writeRegistry(t, taxonomies), preload)
	require.NoError(t, err)
	return NewResolver(catalog, o, Settings{ShortlistMax: 300, MaxNameChars: 300, MaxDescChars: 2000, MaxParallel: 4})
}

var headphones = domain.Product{SKU: "SKU-1", Name: "Wireless Headphones"}

func TestResolveFallbackWithoutOracle(t *testing.T) {
	for _, preload := range []bool{true, false} {
		t.Run(fmt.Sprintf("preload=%v", preload), func(t *testing.T) {
			r := newTestResolver(t, preload, oracle.NoAnswer(), entry("amazon", str(headphonesTaxonomy)))

			resp, err := r.Resolve(context.Background(), headphones, Options{})
			require.NoError(t, err)

			assert.Equal(t, "SKU-1", resp.SKU)
			assert.Equal(t, []domain.Assignment{{
				Marketplace:  "amazon",
				CategoryName: "Headphones",
				CategoryID:   "L1",
				CategoryPath: "Electronics > Audio > Headphones",
			}}, resp.Categories)
			assert.Equal(t, domain.Usage{}, resp.Usage)
			assert.Equal(t, int64(1), r.Stats().Fallbacks)
		})
	}
}

func TestResolveFallbackIsDeterministic(t *testing.T) {
	r := newTestResolver(t, true, oracle.NoAnswer(), entry("amazon", str(audioTaxonomy)))
	product := domain.Product{SKU: "SKU-2", Name: "Studio gear", Description: "for the home"}

	first, err := r.Resolve(context.Background(), product, Options{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), product, Options{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "H1", first.Categories[0].CategoryID)
}

func TestResolveSkipsMissingTaxonomy(t *testing.T) {
	for _, preload := range []bool{true, false} {
		t.Run(fmt.Sprintf("preload=%v", preload), func(t *testing.T) {
			o := &fakeOracle{propose: answer("L1", "Headphones", nil)}
			r := newTestResolver(t, preload, o, entry("ghost", nil))

			resp, err := r.Resolve(context.Background(), headphones, Options{})
			require.NoError(t, err)
			require.Len(t, resp.Categories, 1)

			got := resp.Categories[0]
			assert.Equal(t, domain.Unmapped, got.CategoryName)
			assert.Equal(t, domain.NotApplicable, got.CategoryID)
			assert.Equal(t, domain.NotApplicable, got.CategoryPath)
			require.NotNil(t, got.Note)
			assert.Contains(t, *got.Note, "ghost.json")
			assert.True(t, got.Skipped())

			stats := r.Stats()
			assert.Equal(t, int64(1), stats.Skipped)
			assert.Zero(t, stats.Shortlists)
			assert.Zero(t, stats.OracleCalls)
			assert.Zero(t, o.calls())
		})
	}
}

func TestResolveSkipsTaxonomyDeletedAfterPreload(t *testing.T) {
	r := newTestResolver(t, true, oracle.NoAnswer(), entry("amazon", str(headphonesTaxonomy)))
	require.NoError(t, os.Remove(r.Catalog().Marketplaces[0].TaxonomyFile))

	resp, err := r.Resolve(context.Background(), headphones, Options{})
	require.NoError(t, err)
	assert.True(t, resp.Categories[0].Skipped())
}

func TestResolveEmptyTaxonomyIsUnmapped(t *testing.T) {
	o := &fakeOracle{}
	r := newTestResolver(t, true, o, entry("empty", str(`[]`)))

	resp, err := r.Resolve(context.Background(), headphones, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.UnmappedAssignment("empty"), resp.Categories[0])
	assert.Zero(t, o.calls())
}

func TestResolveBindsOracleAnswer(t *testing.T) {
	tests := []struct {
		name    string
		propose func(*oracle.Request) (*oracle.Proposal, error)
		wantID  string
		matched bool
	}{
		{"by id", answer("L2", "whatever", nil), "L2", true},
		{"by id wins over name", answer("L2", "Headphones", nil), "L2", true},
		{"by name ignoring case and space", answer("nope", "  speakers ", nil), "L2", true},
		{"outside shortlist", answer("X9", "Turntables", nil), "L1", false},
		{"empty answer", answer("", "", nil), "L1", false},
		{"no answer", func(*oracle.Request) (*oracle.Proposal, error) { return nil, nil }, "L1", false},
		{"oracle error", func(*oracle.Request) (*oracle.Proposal, error) { return nil, errors.New("timeout") }, "L1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &fakeOracle{propose: tt.propose}
			r := newTestResolver(t, true, o, entry("amazon", str(audioTaxonomy)))

			resp, err := r.Resolve(context.Background(), headphones, Options{})
			require.NoError(t, err)

			assert.Equal(t, tt.wantID, resp.Categories[0].CategoryID)
			assert.Equal(t, 1, o.calls())
			if tt.matched {
				assert.Equal(t, int64(1), r.Stats().Matched)
			} else {
				assert.Equal(t, int64(1), r.Stats().Fallbacks)
			}
		})
	}
}

func TestResolveResultIsAlwaysACandidate(t *testing.T) {
	o := &fakeOracle{propose: answer("L3", "Microphones", nil)}
	r := NewResolver(mustCatalog(t, audioTaxonomy), o, Settings{ShortlistMax: 1})

	resp, err := r.Resolve(context.Background(), headphones, Options{})
	require.NoError(t, err)

	require.Len(t, o.requests, 1)
	require.Len(t, o.requests[0].Candidates, 1)
	assert.Equal(t, o.requests[0].Candidates[0].ID, resp.Categories[0].CategoryID)
	assert.Equal(t, "L1", resp.Categories[0].CategoryID)
}

func TestResolveConfidence(t *testing.T) {
	conf := 0.87

	t.Run("reported when requested", func(t *testing.T) {
		r := newTestResolver(t, true, &fakeOracle{propose: answer("L1", "Headphones", &conf)}, entry("amazon", str(audioTaxonomy)))
		resp, err := r.Resolve(context.Background(), headphones, Options{IncludeConfidence: true})
		require.NoError(t, err)
		require.NotNil(t, resp.Categories[0].Confidence)
		assert.InDelta(t, conf, *resp.Categories[0].Confidence, 1e-9)
	})

	t.Run("absent when not requested", func(t *testing.T) {
		r := newTestResolver(t, true, &fakeOracle{propose: answer("L1", "Headphones", &conf)}, entry("amazon", str(audioTaxonomy)))
		resp, err := r.Resolve(context.Background(), headphones, Options{})
		require.NoError(t, err)
		assert.Nil(t, resp.Categories[0].Confidence)
	})

	t.Run("absent on fallback", func(t *testing.T) {
		r := newTestResolver(t, true, &fakeOracle{propose: answer("X", "Y", &conf)}, entry("amazon", str(audioTaxonomy)))
		resp, err := r.Resolve(context.Background(), headphones, Options{IncludeConfidence: true})
		require.NoError(t, err)
		assert.Nil(t, resp.Categories[0].Confidence)
	})
}

func TestResolveKeepsRegistryOrderAndSumsUsage(t *testing.T) {
	o := &fakeOracle{propose: answer("L1", "Headphones", nil)}
	r := newTestResolver(t, true, o,
		entry("zeta", str(audioTaxonomy)),
		entry("ghost", nil),
		entry("alpha", str(headphonesTaxonomy)),
		entry("empty", str(`[]`)),
	)

	resp, err := r.Resolve(context.Background(), headphones, Options{})
	require.NoError(t, err)

	var names []string
	for _, a := range resp.Categories {
		names = append(names, a.Marketplace)
	}
	assert.Equal(t, []string{"zeta", "ghost", "alpha", "empty"}, names)
	assert.True(t, resp.Categories[1].Skipped())
	assert.Equal(t, domain.UnmappedAssignment("empty"), resp.Categories[3])
	assert.Equal(t, domain.Usage{PromptTokens: 20, CompletionTokens: 4, TotalTokens: 24}, resp.Usage)
	assert.Equal(t, 2, o.calls())
}

func TestResolveSingleMarketplace(t *testing.T) {
	o := &fakeOracle{}
	r := newTestResolver(t, true, o, entry("Amazon", str(audioTaxonomy)), entry("Etsy", str(headphonesTaxonomy)))

	resp, err := r.Resolve(context.Background(), headphones, Options{Marketplace: "etsy"})
	require.NoError(t, err)
	require.Len(t, resp.Categories, 1)
	assert.Equal(t, "Etsy", resp.Categories[0].Marketplace)

	_, err = r.Resolve(context.Background(), headphones, Options{Marketplace: "ebay"})
	assert.ErrorIs(t, err, ErrUnknownMarketplace)
}

func TestResolveRejectsInvalidProduct(t *testing.T) {
	r := newTestResolver(t, true, oracle.NoAnswer(), entry("amazon", str(audioTaxonomy)))

	_, err := r.Resolve(context.Background(), domain.Product{Name: "No sku"}, Options{})
	require.ErrorIs(t, err, domain.ErrInvalidProduct)
	assert.Contains(t, err.Error(), "sku")
}

func TestResolveIsolatesPanics(t *testing.T) {
	o := &fakeOracle{propose: func(req *oracle.Request) (*oracle.Proposal, error) {
		if req.Marketplace.Name == "broken" {
			panic("provider bug")
		}
		return answer("L1", "Headphones", nil)(req)
	}}
	r := newTestResolver(t, true, o, entry("broken", str(audioTaxonomy)), entry("fine", str(audioTaxonomy)))

	resp, err := r.Resolve(context.Background(), headphones, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.UnmappedAssignment("broken"), resp.Categories[0])
	assert.Equal(t, "L1", resp.Categories[1].CategoryID)
}

func TestResolveSendsPlainTextDescription(t *testing.T) {
	o := &fakeOracle{}
	r := newTestResolver(t, true, o, entry("amazon", str(audioTaxonomy)))

	product := headphones
	product.Description = "<p>Great <b>speakers</b></p>"
	_, err := r.Resolve(context.Background(), product, Options{})
	require.NoError(t, err)

	require.Len(t, o.requests, 1)
	assert.Equal(t, "Great speakers", o.requests[0].Product.Description)
}

func TestSwapPublishesNewGeneration(t *testing.T) {
	r := newTestResolver(t, true, oracle.NoAnswer(), entry("amazon", str(audioTaxonomy)))
	old := r.Catalog()

	next, err := LoadCatalog(writeRegistry(t, [][2]*string{entry("etsy", str(headphonesTaxonomy))}), true)
	require.NoError(t, err)
	r.Swap(next)

	assert.Equal(t, "amazon", old.Marketplaces[0].Name)
	assert.Equal(t, "etsy", r.Catalog().Marketplaces[0].Name)

	r.Swap(nil)
	assert.Empty(t, r.Catalog().Marketplaces)
}

func TestBindProposalFirstMatchWins(t *testing.T) {
	candidates := []domain.Candidate{
		{Leaf: domain.Leaf{ID: "A", Name: "Cases", Path: "Phones > Cases"}},
		{Leaf: domain.Leaf{ID: "A", Name: "Cases", Path: "Tablets > Cases"}},
		{Leaf: domain.Leaf{ID: "B", Name: "cases", Path: "Laptops > Cases"}},
	}

	leaf, ok := BindProposal(candidates, &oracle.Proposal{CategoryID: "A", CategoryName: "x"})
	require.True(t, ok)
	assert.Equal(t, "Phones > Cases", leaf.Path)

	leaf, ok = BindProposal(candidates, &oracle.Proposal{CategoryID: "Z", CategoryName: "CASES"})
	require.True(t, ok)
	assert.Equal(t, "Phones > Cases", leaf.Path)

	_, ok = BindProposal(candidates, nil)
	assert.False(t, ok)
}

func mustCatalog(t *testing.T, taxonomy string) *Catalog {
	t.Helper()
	catalog, err := LoadCatalog(writeRegistry(t, [][2]*string{entry("amazon", str(taxonomy))}), true)
	require.NoError(t, err)
	return catalog
}
