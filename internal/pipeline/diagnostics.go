package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/model"
)

const rule = "================================================================================"

// writeSummaryDiagnostic records a failed summary prompt for postmortem.
// With no diagnostics directory the failure is only logged.
func (p *Pipeline) writeSummaryDiagnostic(ctx context.Context, a *model.Article, summaryModel, prompt string) {
	log := p.logger(ctx, a.FeedProfile, "process").With(zap.Int64("article_id", a.ID))
	if p.opts.DiagnosticsDir == "" {
		log.Warn("pipeline: summary failed",
			zap.String("model", summaryModel),
			zap.Int("prompt_chars", len(prompt)),
		)
		return
	}

	path, err := p.saveSummaryDiagnostic(a, summaryModel, prompt)
	if err != nil {
		log.Warn("pipeline: could not save diagnostic", zap.Error(err))
		return
	}
	log.Warn("pipeline: summary failed, diagnostic saved", zap.String("path", path))
}

func (p *Pipeline) saveSummaryDiagnostic(a *model.Article, summaryModel, prompt string) (string, error) {
	now := p.now()
	if err := os.MkdirAll(p.opts.DiagnosticsDir, 0o755); err != nil {
		return "", eris.Wrap(err, "pipeline: create diagnostics dir")
	}

	name := fmt.Sprintf("failed_summary_%s_%d.txt", now.Format("20060102_150405"), a.ID)
	path := filepath.Join(p.opts.DiagnosticsDir, name)

	var b strings.Builder
	b.WriteString("Failed Prompt Debug Information\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "Model attempted: %s\n", summaryModel)
	if fb := p.llm.Fallback(summaryModel); fb != "" {
		fmt.Fprintf(&b, "Fallback attempted: %s\n", fb)
	}
	fmt.Fprintf(&b, "Timestamp: %s\n", now.Format("2006-01-02T15:04:05.000000"))
	fmt.Fprintf(&b, "Article ID: %d\n", a.ID)
	fmt.Fprintf(&b, "Article URL: %s\n", a.URL)
	fmt.Fprintf(&b, "Prompt length: %d characters\n", len([]rune(prompt)))
	b.WriteString("\n" + rule + "\n")
	b.WriteString("FULL PROMPT:\n")
	b.WriteString(rule + "\n\n")
	b.WriteString(prompt)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", eris.Wrap(err, "pipeline: write diagnostic")
	}
	return path, nil
}
