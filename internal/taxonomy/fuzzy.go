package taxonomy

import "math/bits"

// PartialRatio scores how well the shorter string aligns with the best
// matching stretch of the longer one, on a 0-100 scale. Each alignment is
// scored with the indel ratio 2*LCS/(len(a)+len(b)).
func PartialRatio(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	return NewPartialMatcher(a).against(b)
}

// PartialMatcher scores many texts against one query, reusing the query's
// bit masks across calls.
type PartialMatcher struct {
	query   string
	fwd     *pattern
	rev     *pattern
	present [256]bool
}

func NewPartialMatcher(query string) *PartialMatcher {
	pm := &PartialMatcher{
		query: query,
		fwd:   newPattern(query),
		rev:   newPattern(reverse(query)),
	}
	for i := 0; i < len(query); i++ {
		pm.present[query[i]] = true
	}
	return pm
}

// Ratio is PartialRatio(query, text).
func (pm *PartialMatcher) Ratio(text string) int {
	if len(text) < len(pm.query) {
		return NewPartialMatcher(text).against(pm.query)
	}
	return pm.against(text)
}

// against scores the query against every window of long, which must be at
// least as long as the query. Windows that hang off either edge are scanned
// in a single pass each; only windows starting (or ending) on a character of
// the query are considered.
func (pm *PartialMatcher) against(long string) int {
	m, n := len(pm.query), len(long)
	if m == 0 || n == 0 {
		return 0
	}

	best := 0.0
	consider := func(common, windowLen int) bool {
		if r := 200 * float64(common) / float64(m+windowLen); r > best {
			best = r
		}
		return best >= 100
	}

	// Windows that hang off the left edge: long[:end].
	done := false
	pm.fwd.scan(long[:m-1], func(end, common int) bool {
		if pm.present[long[end-1]] && consider(common, end) {
			done = true
		}
		return done
	})
	if done {
		return 100
	}

	// Full-length windows.
	for start := 0; start+m <= n; start++ {
		if pm.present[long[start]] && consider(pm.fwd.lcs(long[start:start+m]), m) {
			return 100
		}
	}

	// Windows that hang off the right edge: long[n-k:], scanned backwards.
	pm.rev.scan(reverse(long[n-m+1:]), func(k, common int) bool {
		if pm.present[long[n-k]] && consider(common, k) {
			done = true
		}
		return done
	})
	if done {
		return 100
	}

	return int(best)
}

// pattern holds the per-byte match masks of a string for the bit-parallel
// LCS of Hyyrö, split into 64-bit words.
type pattern struct {
	size  int
	words int
	masks []uint64 // 256 rows of words
}

func newPattern(s string) *pattern {
	p := &pattern{size: len(s), words: (len(s) + 63) / 64}
	p.masks = make([]uint64, 256*p.words)
	for i := 0; i < len(s); i++ {
		p.masks[int(s[i])*p.words+i/64] |= 1 << (uint(i) % 64)
	}
	return p
}

// scan feeds text through the automaton and calls fn with the LCS of the
// pattern and text[:i] after every character i (1-based). Scanning stops
// when fn returns true.
func (p *pattern) scan(text string, fn func(i, common int) bool) {
	if p.words == 0 {
		return
	}
	v := make([]uint64, p.words)
	for w := range v {
		v[w] = ^uint64(0)
	}
	for i := 0; i < len(text); i++ {
		p.step(v, text[i])
		if fn(i+1, p.common(v)) {
			return
		}
	}
}

func (p *pattern) lcs(text string) int {
	common := 0
	p.scan(text, func(_, c int) bool {
		common = c
		return false
	})
	return common
}

func (p *pattern) step(v []uint64, c byte) {
	row := p.masks[int(c)*p.words : int(c)*p.words+p.words]
	var carry uint64
	for w := range v {
		u := v[w] & row[w]
		var sum uint64
		sum, carry = bits.Add64(v[w], u, carry)
		v[w] = sum | (v[w] &^ u)
	}
}

// common counts the zero bits of v within the pattern length.
func (p *pattern) common(v []uint64) int {
	zeros := 0
	for w := range v {
		width := 64
		if w == p.words-1 && p.size%64 != 0 {
			width = p.size % 64
		}
		mask := ^uint64(0) >> (64 - uint(width))
		zeros += width - bits.OnesCount64(v[w]&mask)
	}
	return zeros
}

func reverse(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b[len(s)-1-i] = s[i]
	}
	return string(b)
}
