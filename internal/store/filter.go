package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/briefing-cli/internal/model"
)

// State selects articles by pipeline progress.
type State int

const (
	// StateAny applies no progress predicate.
	StateAny State = iota
	// StateUnprocessed: content present, not summarized, not demoted.
	StateUnprocessed
	// StateUnrated: summarized but without an impact score.
	StateUnrated
	// StateCandidate: rated at or above MinImpact and not yet briefed.
	StateCandidate
)

// SortKey orders results by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// ArticleFilter specifies criteria for listing articles.
type ArticleFilter struct {
	Profile   string
	State     State
	MinImpact int
	Limit     int
	Offset    int
	Sort      []SortKey
}

// UnprocessedFilter selects the processing stage's work, newest fetch first.
func UnprocessedFilter(profile string, limit int) ArticleFilter {
	return ArticleFilter{
		Profile: profile,
		State:   StateUnprocessed,
		Limit:   limit,
		Sort:    []SortKey{{Column: "fetched_at", Desc: true}},
	}
}

// UnratedFilter selects the rating stage's work, newest summary first.
func UnratedFilter(profile string, limit int) ArticleFilter {
	return ArticleFilter{
		Profile: profile,
		State:   StateUnrated,
		Limit:   limit,
		Sort:    []SortKey{{Column: "processed_at", Desc: true}},
	}
}

// CandidateFilter selects briefing candidates, highest impact first.
func CandidateFilter(profile string, minImpact int) ArticleFilter {
	return ArticleFilter{
		Profile:   profile,
		State:     StateCandidate,
		MinImpact: minImpact,
		Sort: []SortKey{
			{Column: "impact_score", Desc: true},
			{Column: "processed_at", Desc: true},
		},
	}
}

var articleColumns = []string{
	"id", "url", "encoded_url", "title", "published_date", "feed_source",
	"feed_profile", "fetched_at", "raw_content", "image_url",
	"processed_content", "embedding", "processed_at", "impact_score",
	"initial_filter_score", "briefing_analyzed", "brief_ids", "bypass_used",
}

var sortableColumns = map[string]bool{
	"id":             true,
	"fetched_at":     true,
	"published_date": true,
	"processed_at":   true,
	"impact_score":   true,
}

// buildArticleQuery renders f for the given placeholder format.
func buildArticleQuery(f ArticleFilter, ph sq.PlaceholderFormat) (string, []any, error) {
	q := sq.Select(articleColumns...).From("articles").PlaceholderFormat(ph)

	if f.Profile != "" {
		q = q.Where(sq.Eq{"feed_profile": f.Profile})
	}

	switch f.State {
	case StateAny:
	case StateUnprocessed:
		q = q.Where(sq.NotEq{"raw_content": nil}).
			Where(sq.NotEq{"raw_content": ""}).
			Where(sq.Eq{"processed_at": nil}).
			Where(sq.Or{
				sq.Eq{"initial_filter_score": nil},
				sq.Gt{"initial_filter_score": model.DemotedFilterScore},
			})
	case StateUnrated:
		q = q.Where(sq.NotEq{"processed_content": nil}).
			Where(sq.NotEq{"processed_content": ""}).
			Where(sq.NotEq{"processed_at": nil}).
			Where(sq.Eq{"impact_score": nil})
	case StateCandidate:
		q = q.Where(sq.NotEq{"processed_at": nil}).
			Where(sq.NotEq{"embedding": nil}).
			Where(sq.NotEq{"impact_score": nil}).
			Where(sq.GtOrEq{"impact_score": f.MinImpact}).
			Where(sq.Eq{"briefing_analyzed": false})
	default:
		return "", nil, eris.Errorf("store: unknown article state %d", f.State)
	}

	for _, s := range f.Sort {
		if !sortableColumns[s.Column] {
			return "", nil, eris.Errorf("store: cannot sort by %q", s.Column)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		q = q.OrderBy(fmt.Sprintf("%s %s", s.Column, dir))
	}
	if len(f.Sort) == 0 {
		q = q.OrderBy("id ASC")
	}

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return "", nil, eris.Wrap(err, "store: build article query")
	}
	return sql, args, nil
}
