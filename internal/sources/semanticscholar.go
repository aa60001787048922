package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/fetch"
)

// semanticScholarAdapter resolves a paper ID from a semanticscholar.org URL
// and synthesizes an article from the Graph API response. The API requires a
// key; without one the adapter declines every URL so it contributes nothing.
type semanticScholarAdapter struct {
	client *fetch.Client
	apiURL string
	apiKey string
}

func newSemanticScholarAdapter(client *fetch.Client, apiKey string) *semanticScholarAdapter {
	return &semanticScholarAdapter{
		client: client,
		apiURL: "https://api.semanticscholar.org/graph/v1",
		apiKey: apiKey,
	}
}

func (a *semanticScholarAdapter) Name() string          { return "semanticscholar" }
func (a *semanticScholarAdapter) License() core.License { return core.LicenseOpenAccess }

func (a *semanticScholarAdapter) CanHandle(u *url.URL) bool {
	if a.apiKey == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return (host == "semanticscholar.org" || host == "www.semanticscholar.org") &&
		paperID(u.Path) != ""
}

// paperID extracts the hex paper identifier from a /paper/<slug>/<id> or
// /paper/<id> path.
func paperID(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || segs[0] != "paper" {
		return ""
	}
	last := segs[len(segs)-1]
	if len(last) == 40 && isHex(last) {
		return last
	}
	return ""
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return s != ""
}

type semanticScholarPaper struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	PublicationDate string `json:"publicationDate"`
	URL             string `json:"url"`
}

func (a *semanticScholarAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, err
	}
	id := paperID(u.Path)
	if id == "" {
		return nil, nil, nil
	}

	endpoint := a.apiURL + "/paper/" + id + "?fields=title,abstract,authors,publicationDate,url"
	resp, err := a.client.GetWithHeaders(ctx, endpoint, map[string]string{"x-api-key": a.apiKey})
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil, nil
	}

	var paper semanticScholarPaper
	if err := json.Unmarshal(resp.Body, &paper); err != nil {
		return nil, nil, fmt.Errorf("decode semantic scholar paper %s: %w", id, err)
	}
	if paper.Title == "" {
		return nil, nil, nil
	}

	authors := make([]string, 0, len(paper.Authors))
	for _, au := range paper.Authors {
		if au.Name != "" {
			authors = append(authors, au.Name)
		}
	}

	meta := core.Metadata{
		Title:     paper.Title,
		Author:    strings.Join(authors, ", "),
		Published: paper.PublicationDate,
	}
	fragment := paperFragment(paper.Title, paper.Abstract, paper.URL)
	return &core.RenderedContent{HTML: clean.Compose(fragment, meta), Meta: meta}, nil, nil
}

func (a *semanticScholarAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	rendered, _, err := a.FetchRendered(ctx, rawURL)
	if err != nil || rendered == nil {
		return "", err
	}
	return clean.ExtractText(rendered.HTML, rawURL), nil
}
