package fetcher

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
)

// Page is the extracted view of an HTML document.
type Page struct {
	Title string
	Text  string
	Image string
}

const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"

// Extract decodes body to UTF-8 using contentType and the document's meta
// tags, then pulls the main text with readability. When readability finds
// nothing, the page's paragraphs are used instead.
func Extract(body []byte, contentType, pageURL string) (*Page, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		r = bytes.NewReader(body)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: decode body")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse html")
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", pageURL)
	}

	page := &Page{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Image: metaImage(doc, base),
	}

	if article, err := readability.FromReader(bytes.NewReader(raw), base); err == nil {
		if article.Title != "" {
			page.Title = article.Title
		}
		if content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			page.Text = flatten(content.Selection)
		}
	}
	if page.Text == "" {
		page.Text = flatten(doc.Find("body"))
	}
	return page, nil
}

// flatten joins the text of block elements under sel with blank lines,
// collapsing whitespace inside each block. Nested blocks are read once.
func flatten(sel *goquery.Selection) string {
	var parts []string
	sel.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.Join(strings.Fields(sel.Text()), " ")
	}
	return strings.Join(parts, "\n\n")
}

func metaImage(doc *goquery.Document, base *url.URL) string {
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[name="og:image"]`,
		`meta[name="twitter:image"]`,
		`meta[property="twitter:image"]`,
	} {
		content, ok := doc.Find(sel).First().Attr("content")
		content = strings.TrimSpace(content)
		if !ok || content == "" {
			continue
		}
		ref, err := url.Parse(content)
		if err != nil {
			return content
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
