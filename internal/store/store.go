// Package store persists articles and briefs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/briefing-cli/internal/model"
)

// Store is the persistence contract for every pipeline stage. Each method
// commits on its own; SaveBrief is the only multi-row write.
type Store interface {
	// Articles
	CountArticles(ctx context.Context, profile string) (int, error)
	ArticleExists(ctx context.Context, url string) (bool, error)
	// CreateArticle reports created=false, with no error, when the url or
	// encoded url already exists.
	CreateArticle(ctx context.Context, a *model.Article) (id int64, created bool, err error)
	GetArticle(ctx context.Context, id int64) (*model.Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error)
	MarkProcessed(ctx context.Context, id int64, summary string, embedding []float64, at time.Time) error
	SetFilterScore(ctx context.Context, id int64, score int) error
	SetImpactScore(ctx context.Context, id int64, score int) error
	ListProfiles(ctx context.Context) ([]string, error)

	// Briefs
	// SaveBrief stores b, marks every considered article briefing_analyzed
	// and appends the new id to the brief_ids of each contributing article.
	SaveBrief(ctx context.Context, b *model.Brief, consideredIDs []int64) (int64, error)
	GetBrief(ctx context.Context, id int64) (*model.Brief, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func validateProcessed(summary string, embedding []float64) error {
	if summary == "" || len(embedding) == 0 {
		return eris.New("store: processed article needs both summary and embedding")
	}
	return nil
}

func validateScore(kind string, score, lo, hi int) error {
	if score < lo || score > hi {
		return eris.Errorf("store: %s score %d outside %d-%d", kind, score, lo, hi)
	}
	return nil
}

func notFound(kind string, id int64) error {
	return eris.Errorf("%s not found: %d", kind, id)
}
