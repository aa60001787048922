package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/fetch"
)

// openAlexAdapter resolves a work ID from an openalex.org URL, calls the
// OpenAlex metadata API, and synthesizes an HTML fragment server-side from
// the structured fields. No readability step is involved.
type openAlexAdapter struct {
	client *fetch.Client
	apiURL string
}

func newOpenAlexAdapter(client *fetch.Client) *openAlexAdapter {
	return &openAlexAdapter{client: client, apiURL: "https://api.openalex.org"}
}

func (a *openAlexAdapter) Name() string          { return "openalex" }
func (a *openAlexAdapter) License() core.License { return core.LicenseOpenAccess }

func (a *openAlexAdapter) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	return (host == "openalex.org" || host == "www.openalex.org") && workID(u.Path) != ""
}

// workID pulls the W-prefixed work identifier out of a URL path.
func workID(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if len(seg) > 1 && (seg[0] == 'W' || seg[0] == 'w') && isDigits(seg[1:]) {
			return strings.ToUpper(seg)
		}
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

type openAlexWork struct {
	Title       string `json:"title"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PublicationDate       string           `json:"publication_date"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	PrimaryLocation       struct {
		LandingPageURL string `json:"landing_page_url"`
	} `json:"primary_location"`
}

func (a *openAlexAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, err
	}
	id := workID(u.Path)
	if id == "" {
		return nil, nil, nil
	}

	resp, err := a.client.Get(ctx, a.apiURL+"/works/"+id)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil, nil
	}

	var work openAlexWork
	if err := json.Unmarshal(resp.Body, &work); err != nil {
		return nil, nil, fmt.Errorf("decode openalex work %s: %w", id, err)
	}
	if work.Title == "" {
		return nil, nil, nil
	}

	authors := make([]string, 0, len(work.Authorships))
	for _, as := range work.Authorships {
		if as.Author.DisplayName != "" {
			authors = append(authors, as.Author.DisplayName)
		}
	}
	abstract := reconstructAbstract(work.AbstractInvertedIndex)

	meta := core.Metadata{
		Title:     work.Title,
		Author:    strings.Join(authors, ", "),
		Published: work.PublicationDate,
	}
	fragment := paperFragment(work.Title, abstract, work.PrimaryLocation.LandingPageURL)
	return &core.RenderedContent{HTML: clean.Compose(fragment, meta), Meta: meta}, nil, nil
}

func (a *openAlexAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	rendered, _, err := a.FetchRendered(ctx, rawURL)
	if err != nil || rendered == nil {
		return "", err
	}
	return clean.ExtractText(rendered.HTML, rawURL), nil
}

// reconstructAbstract rebuilds abstract text from OpenAlex's inverted index
// (word -> positions).
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	type posWord struct {
		pos  int
		word string
	}
	var words []posWord
	for word, positions := range index {
		for _, p := range positions {
			words = append(words, posWord{pos: p, word: word})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}

// paperFragment synthesizes the article body shared by the metadata-API
// adapters: heading, abstract, landing link.
func paperFragment(title, abstract, landing string) string {
	var b strings.Builder
	b.WriteString("<h1>" + html.EscapeString(title) + "</h1>")
	if abstract != "" {
		b.WriteString("<h2>Abstract</h2><p>" + html.EscapeString(abstract) + "</p>")
	}
	if landing != "" {
		b.WriteString(`<p><a href="` + html.EscapeString(landing) + `">Read the full paper</a></p>`)
	}
	return b.String()
}
