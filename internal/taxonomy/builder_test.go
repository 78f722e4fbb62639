package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func level(n int) *int { return &n }

func TestParseFlatExport(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`{"hierarchies": [
		{"code": "1", "label": "Electronics", "level": 1},
		{"code": "2", "name": "Audio", "parent_code": " 1 ", "level": 2},
		{"code": "3", "parent_code": "2"},
		{"label": "no code"},
		"junk"
	]}`), &raw))

	records, err := ParseFlatExport(raw)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Electronics", records[0].Label)
	assert.Equal(t, 1, *records[0].Level)
	assert.Equal(t, "Audio", records[1].Label)
	assert.Equal(t, "1", records[1].ParentCode)
	assert.Equal(t, "3", records[2].Label)
	assert.Nil(t, records[2].Level)
}

func TestParseFlatExportRejectsScalars(t *testing.T) {
	_, err := ParseFlatExport("nope")
	assert.Error(t, err)
	_, err = ParseFlatExport(map[string]any{"other": []any{}})
	assert.Error(t, err)
}

func TestBuildHierarchy(t *testing.T) {
	records := []FlatRecord{
		{Code: "3", Label: "Headphones", Level: level(3), ParentCode: "2"},
		{Code: "2", Label: "Audio", Level: level(2), ParentCode: "1"},
		{Code: "1", Label: "Electronics", Level: level(1)},
		{Code: "4", Label: "Books", Level: level(1), ParentCode: "root"},
		{Code: "5", Label: "Cables", ParentCode: "1"},
	}

	root, err := BuildHierarchy(records, "", false)
	require.NoError(t, err)

	assert.Equal(t, "Root", root.Label)
	assert.Equal(t, 0, *root.Level)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Books", root.Children[0].Label)
	electronics := root.Children[1]
	assert.Equal(t, "Root > Electronics", electronics.Path)

	require.Len(t, electronics.Children, 2)
	audio := electronics.Children[0]
	assert.Equal(t, "Audio", audio.Label)
	cables := electronics.Children[1]
	assert.Equal(t, "Cables", cables.Label)
	assert.Equal(t, 2, *cables.Level)

	require.Len(t, audio.Children, 1)
	assert.Equal(t, "Root > Electronics > Audio > Headphones", audio.Children[0].Path)
}

func TestBuildHierarchyOrphans(t *testing.T) {
	records := []FlatRecord{
		{Code: "1", Label: "Electronics"},
		{Code: "9", Label: "Lost", ParentCode: "404"},
	}

	root, err := BuildHierarchy(records, "Catalog", false)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Catalog > Lost", root.Children[1].Path)

	_, err = BuildHierarchy(records, "Catalog", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownParent)
	assert.Contains(t, err.Error(), "404")
}

func TestBuildHierarchyFlattensBack(t *testing.T) {
	records := []FlatRecord{
		{Code: "1", Label: "Electronics", Level: level(1)},
		{Code: "2", Label: "Audio", Level: level(2), ParentCode: "1"},
	}
	root, err := BuildHierarchy(records, "", false)
	require.NoError(t, err)

	data, err := json.Marshal(root)
	require.NoError(t, err)
	nodes := decodeTree(t, string(data), "children")

	leaves := FlattenAll(nodes, HierarchyFieldNames)
	require.Len(t, leaves, 1)
	assert.Equal(t, "2", leaves[0].ID)
	assert.Equal(t, "Electronics > Audio", leaves[0].Path)
}

func TestBuildFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "flat.yaml", `
- code: "1"
  label: Garden
  level: 1
- code: "2"
  label: Tools
  parent_code: "1"
  level: 2
`)
	out := filepath.Join(dir, "out", "tree.json")

	root, err := BuildFile(in, out, "", true)
	require.NoError(t, err)
	assert.Equal(t, "Root > Garden > Tools", root.Children[0].Children[0].Path)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Root > Garden > Tools"`)
}
