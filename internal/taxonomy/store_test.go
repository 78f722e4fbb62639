package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"marketplace/categorizer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	amazon := writeFile(t, dir, "amazon.json", electronicsTree)
	etsy := writeFile(t, dir, "etsy.yaml", `
label: Crafts
items:
  - code: C1
    label: Knitting
  - code: C2
    label: Pottery
`)

	store, err := LoadAll([]domain.Marketplace{
		{Name: "amazon", TaxonomyFile: amazon},
		{Name: "etsy", TaxonomyFile: etsy, FieldNames: domain.FieldNames{ID: "code", Name: "label", Children: "items"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"amazon", "etsy"}, store.ListMarketplaces())
	assert.Len(t, store.GetLeaves("amazon"), 4)
	assert.Equal(t, []domain.Leaf{
		{ID: "C1", Name: "Knitting", Path: "Crafts > Knitting", Depth: 2},
		{ID: "C2", Name: "Pottery", Path: "Crafts > Pottery", Depth: 2},
	}, store.GetLeaves("etsy"))
	assert.Nil(t, store.GetLeaves("ebay"))

	tax, ok := store.Taxonomy("amazon")
	require.True(t, ok)
	assert.Equal(t, "electronics audio headphones headphones", tax.Leaves[0].Tokens)
	assert.Equal(t, domain.DefaultFieldNames, tax.Marketplace.FieldNames)
}

func TestLoadAllMissingSource(t *testing.T) {
	_, err := LoadAll([]domain.Marketplace{
		{Name: "ghost", TaxonomyFile: filepath.Join(t.TempDir(), "missing.json")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadAllInvalidDocument(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.json", `{"name": `)
	_, err := LoadAll([]domain.Marketplace{{Name: "broken", TaxonomyFile: path}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceNotFound)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zalando.json", `{"name": "Shoes", "children": [{"id": "1", "name": "Sneakers"}]}`)
	writeFile(t, dir, "amazon.json", electronicsTree)
	writeFile(t, dir, "notes.txt", "ignored")

	store, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"amazon", "zalando"}, store.ListMarketplaces())
	assert.Equal(t, "Shoes > Sneakers", store.GetLeaves("zalando")[0].Path)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestShortlist(t *testing.T) {
	path := writeFile(t, t.TempDir(), "amazon.json", electronicsTree)
	store, err := LoadAll([]domain.Marketplace{{Name: "amazon", TaxonomyFile: path}})
	require.NoError(t, err)

	t.Run("best match first", func(t *testing.T) {
		got := store.Shortlist("amazon", "Headphones", 10)
		require.NotEmpty(t, got)
		assert.Equal(t, "101", got[0].ID)
		assert.Equal(t, 100, got[0].Match)
	})

	t.Run("bounded by k", func(t *testing.T) {
		for k := 1; k <= 5; k++ {
			assert.LessOrEqual(t, len(store.Shortlist("amazon", "audio", k)), k)
		}
	})

	t.Run("scores in range and descending", func(t *testing.T) {
		got := store.Shortlist("amazon", "kitchen dining", 10)
		for i, c := range got {
			assert.GreaterOrEqual(t, c.Match, 0)
			assert.LessOrEqual(t, c.Match, 100)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].Match, c.Match)
			}
		}
	})

	t.Run("unique paths", func(t *testing.T) {
		seen := map[string]bool{}
		for _, c := range store.Shortlist("amazon", "electronics", 10) {
			assert.False(t, seen[c.Path], c.Path)
			seen[c.Path] = true
		}
	})

	t.Run("unknown marketplace", func(t *testing.T) {
		assert.Empty(t, store.Shortlist("ebay", "headphones", 10))
	})

	t.Run("non-positive k", func(t *testing.T) {
		assert.Empty(t, store.Shortlist("amazon", "headphones", 0))
	})
}

func TestShortlistCollapsesDuplicatePaths(t *testing.T) {
	doc := `[
		{"name": "Audio", "children": [{"id": "1", "name": "Headphones"}]},
		{"name": "Audio", "children": [{"id": "2", "name": "Headphones"}]}
	]`
	path := writeFile(t, t.TempDir(), "dupes.json", doc)
	store, err := LoadAll([]domain.Marketplace{{Name: "dupes", TaxonomyFile: path}})
	require.NoError(t, err)

	got := store.Shortlist("dupes", "headphones", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestNilStore(t *testing.T) {
	var store *Store
	assert.Nil(t, store.ListMarketplaces())
	assert.Nil(t, store.GetLeaves("amazon"))
	assert.Nil(t, store.Shortlist("amazon", "x", 3))
}
