package shortlist

import (
	"regexp"
	"sort"
	"strings"

	"marketplace/categorizer/internal/domain"
)

const (
	nameWeight        = 2.0
	descriptionWeight = 1.0
	depthBonus        = 0.1
	minKeywordLength  = 3
)

var wordRegex = regexp.MustCompile(`[A-Za-z0-9]+`)

// Keywords returns the distinct lowercase alphanumeric words of text that
// are longer than two characters.
func Keywords(text string) map[string]struct{} {
	words := wordRegex.FindAllString(text, -1)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) >= minKeywordLength {
			out[strings.ToLower(w)] = struct{}{}
		}
	}
	return out
}

// Score rates a leaf against a product name and description. Name words
// count double, and deeper leaves get a small bonus.
func Score(name, description string, leaf domain.Leaf) float64 {
	leafWords := Keywords(leaf.Path + " " + leaf.Name)
	return nameWeight*float64(overlap(Keywords(name), leafWords)) +
		descriptionWeight*float64(overlap(Keywords(description), leafWords)) +
		depthBonus*float64(leaf.Depth)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// Shortlister ranks a marketplace's leaves against one product.
type Shortlister struct {
	MaxNameChars int
	MaxDescChars int
}

func New(maxNameChars, maxDescChars int) *Shortlister {
	return &Shortlister{MaxNameChars: maxNameChars, MaxDescChars: maxDescChars}
}

// Top scores every leaf and returns the best k (at least one), highest
// score first. Equal scores keep the order of leaves.
func (s *Shortlister) Top(name, description string, leaves []domain.Leaf, k int) []domain.Candidate {
	if len(leaves) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}

	name = Truncate(name, s.MaxNameChars)
	description = Truncate(description, s.MaxDescChars)

	scored := make([]domain.Candidate, len(leaves))
	for i, leaf := range leaves {
		scored[i] = domain.Candidate{Leaf: leaf, Score: Score(name, description, leaf)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// Truncate cuts text to at most limit characters. A limit of zero or less
// leaves text unchanged.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
