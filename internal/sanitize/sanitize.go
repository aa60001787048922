// Package sanitize reduces article HTML to a fixed allow-list of tags,
// attributes, and URL protocols. It is the last step on every path that
// returns HTML to a client, cache hits included, so policy changes apply
// retroactively to old cache entries.
package sanitize

import "github.com/microcosm-cc/bluemonday"

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"article", "section", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr",
		"a", "em", "strong", "b", "i", "u", "s", "sub", "sup", "mark", "small",
		"blockquote", "q", "cite",
		"ul", "ol", "li", "dl", "dt", "dd",
		"pre", "code", "kbd",
		"img", "figure", "figcaption", "picture",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
		"iframe",
	)

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "loading", "referrerpolicy").OnElements("img")
	p.AllowAttrs("src", "allowfullscreen", "frameborder").OnElements("iframe")
	p.AllowAttrs("class").Globally()

	// Metadata sidecar embedded in the cleaned container element.
	p.AllowAttrs(
		"data-title", "data-author", "data-published",
		"data-thumbnail", "data-tags", "data-source",
	).OnElements("div", "article")

	p.AllowURLSchemes("http", "https")
	p.RequireNoFollowOnLinks(false)

	return p
}

// HTML applies the allow-list policy to the given fragment. The policy is a
// pure projection: HTML(HTML(x)) == HTML(x).
func HTML(fragment string) string {
	return policy.Sanitize(fragment)
}
