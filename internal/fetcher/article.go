package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/quality"
	"github.com/sells-group/briefing-cli/pkg/jina"
)

// ArticleFetcher implements Fetcher. The direct page is tried first, then
// the bypass proxy, then the Jina reader when one is configured.
type ArticleFetcher struct {
	http   *HTTPFetcher
	reader jina.Client
}

// NewArticleFetcher creates an ArticleFetcher. reader may be nil.
func NewArticleFetcher(h *HTTPFetcher, reader jina.Client) *ArticleFetcher {
	return &ArticleFetcher{http: h, reader: reader}
}

// Fetch returns the best content found for rawURL. Failures of individual
// sources are logged; an empty Result means no source produced text.
func (a *ArticleFetcher) Fetch(ctx context.Context, rawURL, proxyURL string) (*Result, error) {
	log := zap.L().With(zap.String("url", rawURL))

	direct, err := a.page(ctx, rawURL)
	if err != nil {
		log.Debug("fetcher: direct fetch failed", zap.Error(err))
	}
	if direct != nil && quality.Validate(direct.Text).Accepted {
		return &Result{Content: direct.Text, Image: direct.Image}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var directImage, directText string
	if direct != nil {
		directImage, directText = direct.Image, direct.Text
	}

	if proxyURL != "" {
		proxied, err := a.page(ctx, proxyURL)
		switch {
		case err != nil:
			log.Debug("fetcher: proxy fetch failed", zap.Error(err))
		case proxied.Text != "":
			image := proxied.Image
			if image == "" {
				image = directImage
			}
			return &Result{Content: proxied.Text, Image: image, UsedProxy: true}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if a.reader != nil {
		resp, err := a.reader.Read(ctx, rawURL)
		switch {
		case err != nil:
			log.Debug("fetcher: reader fallback failed", zap.Error(err))
		case resp.Data.Content != "":
			return &Result{Content: resp.Data.Content, Image: directImage}, nil
		}
	}

	return &Result{Content: directText, Image: directImage}, nil
}

func (a *ArticleFetcher) page(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := a.http.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Extract(resp.body, resp.contentType, resp.finalURL)
}
