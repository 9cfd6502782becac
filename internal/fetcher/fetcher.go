// Package fetcher downloads article pages and extracts their main text.
package fetcher

import "context"

// Result is the outcome of fetching one article.
type Result struct {
	// Content is the extracted main text. Empty means nothing usable was
	// found and the caller should retry on a later run.
	Content string
	// Image is the page's open graph or twitter image, if any.
	Image string
	// UsedProxy is set when Content came from the bypass proxy.
	UsedProxy bool
}

// Fetcher retrieves the full text of an article.
type Fetcher interface {
	// Fetch tries rawURL directly and falls back to proxyURL when the
	// direct page is unusable. proxyURL may be empty.
	Fetch(ctx context.Context, rawURL, proxyURL string) (*Result, error)
}
