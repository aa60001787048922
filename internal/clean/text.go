package clean

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ExtractText pulls readable plain text out of an HTML document: a
// readability pass first, falling back to a boilerplate-stripped goquery
// walk when readability finds nothing.
func ExtractText(rawHTML, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err == nil {
		if article, err := readability.FromReader(strings.NewReader(rawHTML), base); err == nil {
			if text := collapseWhitespace(article.TextContent); text != "" {
				return text
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript").Remove()

	var text string
	for _, selector := range []string{"article", "main", ".main-content", ".content", "#content", ".post-body", ".entry-content"} {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text += s.Text() + " "
		})
		if strings.TrimSpace(text) != "" {
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}
	return collapseWhitespace(text)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
