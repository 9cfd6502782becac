package model

import "time"

// Brief is a synthesized briefing. It is immutable once stored.
type Brief struct {
	ID                     int64     `json:"id"`
	GeneratedAt            time.Time `json:"generated_at"`
	Markdown               string    `json:"brief_markdown"`
	ContributingArticleIDs []int64   `json:"contributing_article_ids"`
	FeedProfile            string    `json:"feed_profile"`
}
