package domain

// Leaf is a terminal category of a marketplace taxonomy.
type Leaf struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`  // normalized, e.g. "Electronics > Audio > Headphones"
	Depth int    `json:"depth"` // number of path segments
}

// Key is the identity used to deduplicate leaves.
func (l Leaf) Key() LeafKey {
	return LeafKey{ID: l.ID, Name: l.Name, Path: l.Path}
}

type LeafKey struct {
	ID   string
	Name string
	Path string
}

// IndexedLeaf is a Leaf with its normalized search tokens.
type IndexedLeaf struct {
	Leaf
	Tokens string `json:"-"`
}

// Candidate is a leaf scored against one product. Score holds the heuristic
// relevance, Match the 0-100 fuzzy score when the candidate came from a
// fuzzy shortlist.
type Candidate struct {
	Leaf
	Score float64 `json:"score,omitempty"`
	Match int     `json:"match,omitempty"`
}

// Leaves strips the scores off a candidate list.
func Leaves(candidates []Candidate) []Leaf {
	out := make([]Leaf, len(candidates))
	for i, c := range candidates {
		out[i] = c.Leaf
	}
	return out
}
