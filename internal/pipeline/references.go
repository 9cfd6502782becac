package pipeline

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/model"
)

// RenderReferences builds the references section appended to a brief: one
// numbered line per article, highest impact first, unscored articles last.
// The input slice is not reordered.
func RenderReferences(articles []model.Article, labels config.References) string {
	sorted := append([]model.Article(nil), articles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].ImpactScore, sorted[j].ImpactScore
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})

	intro := labels.Intro
	if strings.Contains(intro, "%d") {
		intro = fmt.Sprintf(intro, len(articles))
	}

	var b strings.Builder
	b.WriteString("\n\n---\n\n")
	b.WriteString(labels.Heading)
	b.WriteString("\n\n")
	b.WriteString(intro)
	b.WriteString("\n\n")

	for i, a := range sorted {
		fmt.Fprintf(&b, `%d. <strong><a href="%s" target="_blank" rel="noopener noreferrer">%s</a></strong>`,
			i+1, html.EscapeString(a.LinkURL()), html.EscapeString(a.Title))

		var meta []string
		if a.FeedSource != "" {
			meta = append(meta, a.FeedSource)
		}
		if !a.PublishedDate.IsZero() && labels.DateLayout != "" {
			meta = append(meta, a.PublishedDate.Format(labels.DateLayout))
		}
		if a.ImpactScore != nil {
			meta = append(meta, fmt.Sprintf("%s: %d/10", labels.ImpactLabel, *a.ImpactScore))
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " - *%s*", strings.Join(meta, " | "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
