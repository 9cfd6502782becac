package model

import "time"

// DemotedFilterScore is the terminal initial filter score given to articles
// that must never be fetched, summarized or briefed again.
const DemotedFilterScore = 1

// Article is a syndicated item. An article with no RawContent is a
// placeholder that only records a terminal ingestion decision.
type Article struct {
	ID                 int64      `json:"id"`
	URL                string     `json:"url"`
	EncodedURL         string     `json:"encoded_url"`
	Title              string     `json:"title"`
	PublishedDate      time.Time  `json:"published_date"`
	FeedSource         string     `json:"feed_source"`
	FeedProfile        string     `json:"feed_profile"`
	FetchedAt          time.Time  `json:"fetched_at"`
	RawContent         *string    `json:"raw_content,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
	ProcessedContent   *string    `json:"processed_content,omitempty"`
	Embedding          []float64  `json:"embedding,omitempty"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	ImpactScore        *int       `json:"impact_score,omitempty"`
	InitialFilterScore *int       `json:"initial_filter_score,omitempty"`
	BriefingAnalyzed   bool       `json:"briefing_analyzed"`
	BriefIDs           []int64    `json:"brief_ids,omitempty"`
	BypassUsed         bool       `json:"bypass_used"`
}

// IsPlaceholder reports whether the article carries no content.
func (a *Article) IsPlaceholder() bool {
	return a.RawContent == nil
}

// IsProcessed reports whether summary, embedding and timestamp are all set.
func (a *Article) IsProcessed() bool {
	return a.ProcessedAt != nil && a.ProcessedContent != nil && len(a.Embedding) > 0
}

// Summary returns the processed content or "".
func (a *Article) Summary() string {
	if a.ProcessedContent == nil {
		return ""
	}
	return *a.ProcessedContent
}

// LinkURL is the address readers should follow: the proxied URL when the
// content could only be fetched through the bypass proxy.
func (a *Article) LinkURL() string {
	if a.BypassUsed && a.EncodedURL != "" {
		return a.EncodedURL
	}
	return a.URL
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
