package taxonomy

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"marketplace/categorizer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "headphones", "headphones", 100},
		{"substring", "headphones", "electronics audio headphones", 100},
		{"empty left", "", "headphones", 0},
		{"empty right", "headphones", "", 0},
		{"no shared characters", "abc", "xyz", 0},
		{"one substitution", "abcd", "abxd", 75},
		{"pattern longer than one word", strings.Repeat("headphones ", 8), "audio " + strings.Repeat("headphones ", 8), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartialRatio(tt.a, tt.b))
		})
	}
}

func TestPartialRatioOrderIndependent(t *testing.T) {
	a, b := "wireless headphone", "electronics audio headphones wireless"
	assert.Equal(t, PartialRatio(a, b), PartialRatio(b, a))
}

func TestPartialRatioRanksCloserMatchHigher(t *testing.T) {
	query := "headphones"
	assert.Greater(t,
		PartialRatio(query, "electronics audio headphone"),
		PartialRatio(query, "home kitchen cookware"))
}

// slowPartialRatio scores every window with a quadratic LCS table.
func slowPartialRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	m, n := len(short), len(long)
	present := map[byte]bool{}
	for i := 0; i < m; i++ {
		present[short[i]] = true
	}

	best := 0.0
	consider := func(window string) {
		if r := 200 * float64(slowLCS(short, window)) / float64(m+len(window)); r > best {
			best = r
		}
	}
	for end := 1; end < m; end++ {
		if present[long[end-1]] {
			consider(long[:end])
		}
	}
	for start := 0; start+m <= n; start++ {
		if present[long[start]] {
			consider(long[start : start+m])
		}
	}
	for start := n - m + 1; start < n; start++ {
		if present[long[start]] {
			consider(long[start:])
		}
	}
	return int(best)
}

func slowLCS(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func randomText(rng *rand.Rand, maxLen int) string {
	const alphabet = "abcdef "
	b := make([]byte, 1+rng.Intn(maxLen))
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

func TestPartialRatioMatchesQuadraticScoring(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a, b := randomText(rng, 150), randomText(rng, 150)
		require.Equal(t, slowPartialRatio(a, b), PartialRatio(a, b), "a=%q b=%q", a, b)
	}
}

func TestPartialMatcherReusesQuery(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	query := randomText(rng, 90)
	matcher := NewPartialMatcher(query)
	for i := 0; i < 200; i++ {
		text := randomText(rng, 160)
		assert.Equal(t, PartialRatio(query, text), matcher.Ratio(text), "text=%q", text)
	}
	assert.Equal(t, 0, matcher.Ratio(""))
}

func largeTaxonomy(rng *rand.Rand, size int) []domain.Leaf {
	words := []string{"electronics", "audio", "headphones", "kitchen", "garden", "outdoor",
		"lighting", "storage", "accessories", "replacement", "professional", "wireless"}
	leaves := make([]domain.Leaf, size)
	for i := range leaves {
		var parts []string
		for len(strings.Join(parts, " > ")) < 70 {
			parts = append(parts, words[rng.Intn(len(words))])
		}
		name := "item " + strconv.Itoa(i)
		path := strings.Join(append(parts, name), " > ")
		leaves[i] = domain.Leaf{ID: strconv.Itoa(i), Name: name, Path: path, Depth: len(parts) + 1}
	}
	return leaves
}

const longQuery = "wireless noise cancelling over ear headphones with charging case black"

func TestShortlistLargeTaxonomyIsFast(t *testing.T) {
	if testing.Short() {
		t.Skip("large taxonomy")
	}
	s := &Store{marketplaces: map[string]*domain.MarketplaceTaxonomy{}}
	s.add(domain.Marketplace{Name: "big"}, largeTaxonomy(rand.New(rand.NewSource(1)), 20000))

	start := time.Now()
	candidates := s.Shortlist("big", longQuery, 20)
	elapsed := time.Since(start)

	assert.Len(t, candidates, 20)
	assert.Less(t, elapsed, 10*time.Second)
}

func BenchmarkShortlist(b *testing.B) {
	s := &Store{marketplaces: map[string]*domain.MarketplaceTaxonomy{}}
	s.add(domain.Marketplace{Name: "big"}, largeTaxonomy(rand.New(rand.NewSource(1)), 20000))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Shortlist("big", longQuery, 20)
	}
}
