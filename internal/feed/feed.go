// Package feed parses syndication feeds into entries the ingestor consumes.
package feed

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
)

// DefaultTitle is used for entries that carry no title.
const DefaultTitle = "No Title"

// Enclosure is a feed attachment.
type Enclosure struct {
	URL  string
	Type string
}

// Media is one media:content element.
type Media struct {
	URL    string
	Medium string
	Type   string
}

// Entry is a single feed item.
type Entry struct {
	Title        string
	Description  string
	Link         string
	Published    time.Time
	Enclosures   []Enclosure
	MediaContent []Media
	Image        string
}

// Feed is a parsed feed document.
type Feed struct {
	URL     string
	Title   string
	Entries []Entry
}

// SourceName is the label stored with each article: the feed title, or the
// feed URL when the feed has none.
func (f *Feed) SourceName() string {
	if t := strings.TrimSpace(f.Title); t != "" {
		return t
	}
	return f.URL
}

// Source fetches and parses a feed.
type Source interface {
	Fetch(ctx context.Context, feedURL string) (*Feed, error)
}

// GofeedSource implements Source with gofeed, which handles RSS, Atom and
// JSON feeds.
type GofeedSource struct {
	parser *gofeed.Parser
	now    func() time.Time
}

// NewGofeedSource creates a Source using client for HTTP requests.
func NewGofeedSource(client *http.Client, userAgent string) *GofeedSource {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	if userAgent != "" {
		p.UserAgent = userAgent
	}
	return &GofeedSource{parser: p, now: time.Now}
}

// Fetch downloads and parses feedURL.
func (s *GofeedSource) Fetch(ctx context.Context, feedURL string) (*Feed, error) {
	f, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: parse %s", feedURL)
	}
	return convert(feedURL, f, s.now()), nil
}

// Parse converts an already-downloaded feed document.
func (s *GofeedSource) Parse(feedURL, body string) (*Feed, error) {
	f, err := s.parser.ParseString(body)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: parse %s", feedURL)
	}
	return convert(feedURL, f, s.now()), nil
}

func convert(feedURL string, f *gofeed.Feed, now time.Time) *Feed {
	out := &Feed{URL: feedURL, Title: f.Title}
	for _, item := range f.Items {
		if item == nil {
			continue
		}
		out.Entries = append(out.Entries, convertItem(item, now))
	}
	return out
}

func convertItem(item *gofeed.Item, now time.Time) Entry {
	e := Entry{
		Title:       strings.TrimSpace(item.Title),
		Description: item.Description,
		Link:        strings.TrimSpace(item.Link),
		Published:   now,
	}
	if e.Title == "" {
		e.Title = DefaultTitle
	}
	if e.Description == "" {
		e.Description = item.Content
	}

	switch {
	case item.PublishedParsed != nil:
		e.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		e.Published = *item.UpdatedParsed
	}

	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		e.Enclosures = append(e.Enclosures, Enclosure{URL: enc.URL, Type: enc.Type})
	}
	for _, m := range item.Extensions["media"]["content"] {
		e.MediaContent = append(e.MediaContent, Media{
			URL:    m.Attrs["url"],
			Medium: m.Attrs["medium"],
			Type:   m.Attrs["type"],
		})
	}
	if item.Image != nil {
		e.Image = item.Image.URL
	}
	return e
}
