package shortlist

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// PlainText returns the visible text of an HTML product description. Text
// without markup is returned unchanged.
func PlainText(description string) string {
	if !strings.Contains(description, "<") {
		return description
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		log.Debugf("Failed to parse description markup, using raw text: %v", err)
		return description
	}

	doc.Find("script, style").Remove()

	var parts []string
	collectText(doc.Find("body"), &parts)
	return strings.Join(strings.Fields(strings.Join(parts, "")), " ")
}

// collectText gathers text node by node so adjacent block elements do not
// run their words together. Inline elements are joined without a gap.
func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(i int, c *goquery.Selection) {
		switch {
		case goquery.NodeName(c) == "#text":
			*parts = append(*parts, c.Text())
		case blockElements[goquery.NodeName(c)]:
			*parts = append(*parts, " ")
			collectText(c, parts)
			*parts = append(*parts, " ")
		default:
			collectText(c, parts)
		}
	})
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "ol": true, "p": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}
