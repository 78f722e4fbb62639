package taxonomy

import (
	"regexp"
	"strings"
)

// PathSeparator joins the segments of every normalized path.
const PathSeparator = " > "

var (
	delimiterRegex = regexp.MustCompile(`\s*[/|>→»]\s*`)
	nonAlnumRegex  = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizePath rewrites a category path that uses any of "/", "|", ">", "→"
// or "»" as delimiter into "A > B > C" form. Segments are trimmed, empty
// segments dropped, and a leading "Root" segment removed.
func NormalizePath(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = delimiterRegex.ReplaceAllString(s, ">")

	parts := make([]string, 0, strings.Count(s, ">")+1)
	for _, p := range strings.Split(s, ">") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 && strings.EqualFold(parts[0], "root") {
		parts = parts[1:]
	}
	return strings.Join(parts, PathSeparator)
}

// PathDepth counts the non-empty segments of a normalized path.
func PathDepth(path string) int {
	depth := 0
	for _, p := range strings.Split(path, PathSeparator) {
		if strings.TrimSpace(p) != "" {
			depth++
		}
	}
	return depth
}

// NormalizeTokens lowercases s and collapses every run of non-alphanumeric
// characters into a single space.
func NormalizeTokens(s string) string {
	s = nonAlnumRegex.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(s)
}
