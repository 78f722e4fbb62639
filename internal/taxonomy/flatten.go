package taxonomy

import (
	"strings"

	"marketplace/categorizer/internal/domain"
)

// explicitPathField is trusted over the ancestor chain when a node carries it.
const explicitPathField = "path"

// Flatten walks one taxonomy tree depth-first and returns its leaves in
// pre-order, deduplicated by (id, name, path).
func Flatten(root domain.Node, fields domain.FieldNames) []domain.Leaf {
	return FlattenAll([]domain.Node{root}, fields)
}

// FlattenAll flattens several trees and deduplicates across all of them.
func FlattenAll(roots []domain.Node, fields domain.FieldNames) []domain.Leaf {
	fields = fields.WithDefaults()

	var leaves []domain.Leaf
	for _, root := range roots {
		leaves = walk(root, fields, nil, leaves)
	}
	return dedupe(leaves)
}

func walk(node domain.Node, fields domain.FieldNames, ancestors []string, acc []domain.Leaf) []domain.Leaf {
	name := node.String(fields.Name)

	own := ancestors
	if name != "" {
		own = append(ancestors[:len(ancestors):len(ancestors)], name)
	}

	if node.IsLeaf() {
		var path string
		if explicit := node.String(explicitPathField); explicit != "" {
			path = NormalizePath(explicit)
		} else {
			path = NormalizePath(strings.Join(own, PathSeparator))
		}
		return append(acc, domain.Leaf{
			ID:    node.String(fields.ID),
			Name:  name,
			Path:  path,
			Depth: PathDepth(path),
		})
	}

	for _, child := range node.Children {
		acc = walk(child, fields, own, acc)
	}
	return acc
}

func dedupe(leaves []domain.Leaf) []domain.Leaf {
	seen := make(map[domain.LeafKey]struct{}, len(leaves))
	unique := make([]domain.Leaf, 0, len(leaves))
	for _, leaf := range leaves {
		if _, ok := seen[leaf.Key()]; ok {
			continue
		}
		seen[leaf.Key()] = struct{}{}
		unique = append(unique, leaf)
	}
	return unique
}
