package sources

import (
	"context"
	"net/url"
	"strings"

	"nook/internal/core"
	"nook/internal/fetch"
	"nook/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// libgenAdapter resolves book URLs to a direct PDF download pointer. It
// handles Libgen search-query URLs (fanned out across mirrors), direct
// Libgen detail URLs, and Anna's Archive detail URLs. It only ever produces
// ExternalFile outcomes and never contributes to the plain-text path.
type libgenAdapter struct {
	client  *fetch.Client
	mirrors []string
}

func newLibgenAdapter(client *fetch.Client, mirrors []string) *libgenAdapter {
	return &libgenAdapter{client: client, mirrors: mirrors}
}

func (a *libgenAdapter) Name() string          { return "libgen" }
func (a *libgenAdapter) License() core.License { return core.LicenseCopyrighted }

func (a *libgenAdapter) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, "annas-archive") {
		return strings.HasPrefix(u.Path, "/md5/")
	}
	return strings.Contains(host, "libgen")
}

func (a *libgenAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, err
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "annas-archive"):
		file, err := a.fromAnnasArchive(ctx, rawURL)
		return nil, file, err
	case strings.Contains(u.Path, "search") || u.Query().Get("req") != "":
		file, err := a.fromSearch(ctx, u)
		return nil, file, err
	default:
		file, err := a.fromDetailPage(ctx, rawURL)
		return nil, file, err
	}
}

// FetchText: document retrieval never contributes plain text.
func (a *libgenAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	return "", nil
}

// fromSearch replays the search query against each configured mirror in
// turn, parses the largest result table, filters to PDF rows, and follows
// the first result's detail page.
func (a *libgenAdapter) fromSearch(ctx context.Context, original *url.URL) (*core.ExternalFile, error) {
	for _, mirror := range a.mirrors {
		scheme, host := "https", mirror
		if i := strings.Index(mirror, "://"); i >= 0 {
			scheme, host = mirror[:i], mirror[i+3:]
		}
		target := *original
		target.Scheme = scheme
		target.Host = host

		resp, err := a.client.Get(ctx, target.String())
		if err != nil || resp.StatusCode != 200 {
			continue
		}

		detailPath := firstPDFDetailLink(string(resp.Body))
		if detailPath == "" {
			continue
		}
		detailURL := resolveAgainst(&target, detailPath)
		file, err := a.fromDetailPage(ctx, detailURL)
		if err != nil {
			logger.Debug("libgen detail page failed", "mirror", mirror, "error", err.Error())
			continue
		}
		if file != nil {
			return file, nil
		}
	}
	return nil, nil
}

// firstPDFDetailLink picks the largest table on a search-results page,
// filters its rows to ones advertising a pdf extension, and returns the
// first row's detail link.
func firstPDFDetailLink(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var biggest *goquery.Selection
	maxRows := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if rows := table.Find("tr").Length(); rows > maxRows {
			maxRows = rows
			biggest = table
		}
	})
	if biggest == nil {
		return ""
	}

	link := ""
	biggest.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(row.Text()), "pdf") {
			return true
		}
		row.Find("a").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
			href, ok := anchor.Attr("href")
			if ok && (strings.Contains(href, "md5=") || strings.Contains(href, "/book/")) {
				link = href
				return false
			}
			return true
		})
		return link == ""
	})
	return link
}

// fromDetailPage finds the final download link on a Libgen detail (or
// library.lol-style landing) page.
func (a *libgenAdapter) fromDetailPage(ctx context.Context, detailURL string) (*core.ExternalFile, error) {
	resp, err := a.client.Get(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, err
	}

	download := findGetLink(doc)
	if download == "" {
		return nil, nil
	}
	base, _ := url.Parse(detailURL)
	title, author := detailMetadata(doc)

	return &core.ExternalFile{
		Kind:        "pdf",
		DownloadURL: resolveAgainst(base, download),
		Title:       title,
		Author:      author,
	}, nil
}

// fromAnnasArchive follows an embedded mirror link from an Anna's Archive
// detail page to a landing page carrying the final GET link.
func (a *libgenAdapter) fromAnnasArchive(ctx context.Context, rawURL string) (*core.ExternalFile, error) {
	resp, err := a.client.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, err
	}

	mirrorLink := ""
	doc.Find("a").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, ok := anchor.Attr("href")
		if ok && (strings.Contains(href, "libgen") || strings.Contains(href, "library.lol")) {
			mirrorLink = href
			return false
		}
		return true
	})
	if mirrorLink == "" {
		return nil, nil
	}

	base, _ := url.Parse(rawURL)
	return a.fromDetailPage(ctx, resolveAgainst(base, mirrorLink))
}

// findGetLink locates the "GET" download anchor on a landing page.
func findGetLink(doc *goquery.Document) string {
	link := ""
	doc.Find("a").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(anchor.Text()), "GET") {
			link, _ = anchor.Attr("href")
			return false
		}
		return true
	})
	return link
}

func detailMetadata(doc *goquery.Document) (title, author string) {
	title = strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	doc.Find("p, td").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, "Author(s):") {
			author = strings.TrimSpace(strings.TrimPrefix(text, "Author(s):"))
			return false
		}
		return true
	})
	return title, author
}

func resolveAgainst(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
