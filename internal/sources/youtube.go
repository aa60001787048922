package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/fetch"
	"nook/internal/logger"
)

// transcriptParagraphGap is the silence between consecutive captions that
// starts a new paragraph.
const transcriptParagraphGap = 2.0 // seconds

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([a-zA-Z0-9_-]{11})`),
}

var captionTracksPattern = regexp.MustCompile(`"captionTracks":(\[[^\]]*\])`)

// youTubeAdapter turns a video URL into a paragraphed transcript article,
// degrading to an embed-only page when no transcript exists.
type youTubeAdapter struct {
	client *fetch.Client
}

func newYouTubeAdapter(client *fetch.Client) *youTubeAdapter {
	return &youTubeAdapter{client: client}
}

func (a *youTubeAdapter) Name() string          { return "youtube" }
func (a *youTubeAdapter) License() core.License { return core.LicenseStandard }

func (a *youTubeAdapter) CanHandle(u *url.URL) bool {
	return extractVideoID(u.String()) != ""
}

// extractVideoID handles short, canonical, and embed URL forms.
func extractVideoID(rawURL string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// Caption is one timed transcript line.
type Caption struct {
	Start float64
	Dur   float64
	Text  string
}

func (a *youTubeAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	videoID := extractVideoID(rawURL)
	if videoID == "" {
		return nil, nil, nil
	}

	title, author, thumbnail := a.videoInfo(ctx, videoID)
	meta := core.Metadata{Title: title, Author: author, Thumbnail: thumbnail}

	captions, err := a.listTranscripts(ctx, videoID)
	if err != nil || len(captions) == 0 {
		// Listing failed; fall back to the direct single-transcript fetch.
		captions, err = a.directTranscript(ctx, videoID)
		if err != nil {
			logger.Debug("transcript unavailable", "video_id", videoID, "error", err.Error())
		}
	}

	var b strings.Builder
	b.WriteString(embedFragment(videoID))
	if len(captions) > 0 {
		b.WriteString("<h2>Transcript</h2>")
		for _, paragraph := range GroupTranscript(captions) {
			b.WriteString("<p>" + html.EscapeString(paragraph) + "</p>")
		}
	}

	return &core.RenderedContent{HTML: clean.Compose(b.String(), meta), Meta: meta}, nil, nil
}

func (a *youTubeAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	videoID := extractVideoID(rawURL)
	if videoID == "" {
		return "", nil
	}
	captions, err := a.listTranscripts(ctx, videoID)
	if err != nil || len(captions) == 0 {
		captions, _ = a.directTranscript(ctx, videoID)
	}
	if len(captions) == 0 {
		return "", nil
	}
	return strings.Join(GroupTranscript(captions), "\n\n"), nil
}

// GroupTranscript merges caption lines into paragraphs, inserting a break
// wherever the silence between one caption's end and the next one's start
// exceeds transcriptParagraphGap.
func GroupTranscript(captions []Caption) []string {
	var paragraphs []string
	var current []string
	prevEnd := 0.0

	for i, c := range captions {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		if i > 0 && c.Start-prevEnd > transcriptParagraphGap && len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = current[:0]
		}
		current = append(current, text)
		prevEnd = c.Start + c.Dur
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}
	return paragraphs
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" marks auto-generated captions
}

// listTranscripts scrapes the watch page for available caption tracks and
// picks English, then English auto-generated, then the first available.
func (a *youTubeAdapter) listTranscripts(ctx context.Context, videoID string) ([]Caption, error) {
	resp, err := a.client.Get(ctx, "https://www.youtube.com/watch?v="+videoID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("watch page returned status %d", resp.StatusCode)
	}

	m := captionTracksPattern.FindSubmatch(resp.Body)
	if m == nil {
		return nil, fmt.Errorf("no caption tracks for video %s", videoID)
	}
	var tracks []captionTrack
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks: %w", err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("empty caption track list for video %s", videoID)
	}

	track := pickTrack(tracks)
	return a.fetchTrack(ctx, track.BaseURL)
}

func pickTrack(tracks []captionTrack) captionTrack {
	for _, t := range tracks {
		if t.LanguageCode == "en" && t.Kind != "asr" {
			return t
		}
	}
	for _, t := range tracks {
		if t.LanguageCode == "en" {
			return t
		}
	}
	return tracks[0]
}

// directTranscript is the fallback single-transcript fetch against the
// legacy timedtext endpoint.
func (a *youTubeAdapter) directTranscript(ctx context.Context, videoID string) ([]Caption, error) {
	return a.fetchTrack(ctx, "https://video.google.com/timedtext?lang=en&v="+videoID)
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

func (a *youTubeAdapter) fetchTrack(ctx context.Context, trackURL string) ([]Caption, error) {
	resp, err := a.client.Get(ctx, trackURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 || len(resp.Body) == 0 {
		return nil, fmt.Errorf("transcript track returned status %d", resp.StatusCode)
	}

	var parsed timedText
	if err := xml.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("parse transcript xml: %w", err)
	}

	captions := make([]Caption, 0, len(parsed.Texts))
	for _, t := range parsed.Texts {
		captions = append(captions, Caption{
			Start: t.Start,
			Dur:   t.Dur,
			Text:  html.UnescapeString(t.Body),
		})
	}
	return captions, nil
}

// videoInfo fetches title/author/thumbnail via the public oEmbed endpoint.
// Metadata failure degrades to placeholders, never aborts the adapter.
func (a *youTubeAdapter) videoInfo(ctx context.Context, videoID string) (title, author, thumbnail string) {
	title, author = "YouTube Video", "Unknown"
	thumbnail = "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"

	oembedURL := "https://www.youtube.com/oembed?url=" +
		url.QueryEscape("https://www.youtube.com/watch?v="+videoID) + "&format=json"
	resp, err := a.client.Get(ctx, oembedURL)
	if err != nil || resp.StatusCode != 200 {
		return title, author, thumbnail
	}

	var oembed struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.Unmarshal(resp.Body, &oembed); err != nil {
		return title, author, thumbnail
	}
	if oembed.Title != "" {
		title = oembed.Title
	}
	if oembed.AuthorName != "" {
		author = oembed.AuthorName
	}
	if oembed.ThumbnailURL != "" {
		thumbnail = oembed.ThumbnailURL
	}
	return title, author, thumbnail
}

func embedFragment(videoID string) string {
	return `<iframe src="https://www.youtube.com/embed/` + videoID + `" allowfullscreen="true"></iframe>`
}
