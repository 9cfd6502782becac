package pipeline

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/cluster"
	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/llm"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/store"
)

// BriefStatus is the outcome of one brief attempt.
type BriefStatus string

const (
	BriefGenerated              BriefStatus = "generated"
	BriefInsufficientCandidates BriefStatus = "insufficient_candidates"
	BriefInfeasibleK            BriefStatus = "infeasible_k"
	BriefClusteringFailed       BriefStatus = "clustering_failed"
	BriefNoAnalyses             BriefStatus = "no_analyses"
	BriefSynthesisFailed        BriefStatus = "synthesis_failed"
)

// BriefResult describes one brief attempt. Only BriefGenerated mutates the
// store.
type BriefResult struct {
	Status       BriefStatus
	BriefID      int64
	Candidates   int
	Clusters     int
	Analyses     int
	Contributing int
}

type clusterAnalysis struct {
	size     int
	text     string
	articles []int64
}

// Brief clusters the profile's unbriefed candidates, analyses each cluster,
// synthesizes a briefing from the largest ones and stores it. Every early
// exit leaves the candidates untouched for the next attempt.
func (p *Pipeline) Brief(ctx context.Context, prof config.Profile) (*BriefResult, error) {
	ctx = startRun(ctx)
	log := p.logger(ctx, prof.Name, "brief")
	th := prof.Thresholds

	candidates, err := p.store.ListArticles(ctx, store.CandidateFilter(prof.Name, th.MinImpactScore))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list candidates")
	}
	res := &BriefResult{Candidates: len(candidates)}

	if len(candidates) < th.MinArticlesForBriefing {
		res.Status = BriefInsufficientCandidates
		log.Info("pipeline: not enough candidates",
			zap.Int("candidates", len(candidates)),
			zap.Int("required", th.MinArticlesForBriefing),
		)
		return res, nil
	}

	k := cluster.EffectiveK(len(candidates), th.TargetClusters)
	if k < 2 {
		res.Status = BriefInfeasibleK
		log.Info("pipeline: too few candidates to cluster", zap.Int("k", k))
		return res, nil
	}
	res.Clusters = k

	points := make([][]float64, len(candidates))
	for i, a := range candidates {
		points[i] = a.Embedding
	}
	km, err := cluster.KMeans(points, k, cluster.Options{
		Seed:     p.opts.ClusterSeed,
		Restarts: p.opts.ClusterRestarts,
	})
	if err != nil {
		res.Status = BriefClusteringFailed
		log.Error("pipeline: clustering failed", zap.Error(err))
		return res, nil
	}

	analyses, err := p.analyseClusters(ctx, prof, candidates, km.Members())
	if err != nil {
		return res, err
	}
	res.Analyses = len(analyses)
	if len(analyses) == 0 {
		res.Status = BriefNoAnalyses
		log.Info("pipeline: no cluster analyses survived")
		return res, nil
	}

	sort.SliceStable(analyses, func(i, j int) bool { return analyses[i].size > analyses[j].size })
	top := analyses[:min(p.opts.TopClusters, len(analyses))]

	var analysesText strings.Builder
	var contributing []int64
	for i, ca := range top {
		fmt.Fprintf(&analysesText, "--- Cluster %d (%d articles) ---\nAnalysis: %s\n\n", i+1, ca.size, ca.text)
		contributing = append(contributing, ca.articles...)
	}

	body, ok := p.llm.Invoke(ctx, llm.Request{
		Prompt: render(prof.Prompts.Synthesis, map[string]string{
			"cluster_analyses_text": analysesText.String(),
			"feed_profile":          prof.Name,
		}),
		Model: prof.Models.Brief,
		Phase: "synthesis",
	})
	if !ok {
		res.Status = BriefSynthesisFailed
		log.Error("pipeline: synthesis failed, candidates kept for next run")
		return res, nil
	}

	considered := make([]int64, len(candidates))
	for i, a := range candidates {
		considered[i] = a.ID
	}
	brief := &model.Brief{
		GeneratedAt:            p.now(),
		Markdown:               body + RenderReferences(candidates, prof.References),
		ContributingArticleIDs: contributing,
		FeedProfile:            prof.Name,
	}
	id, err := p.store.SaveBrief(ctx, brief, considered)
	if err != nil {
		return res, eris.Wrap(err, "pipeline: save brief")
	}

	res.Status = BriefGenerated
	res.BriefID = id
	res.Contributing = len(contributing)
	log.Info("pipeline: brief generated",
		zap.Int64("brief_id", id),
		zap.Int("candidates", res.Candidates),
		zap.Int("clusters", res.Clusters),
		zap.Int("contributing", res.Contributing),
	)

	p.notify(ctx, prof, id, len(candidates))
	return res, nil
}

// analyseClusters asks the model to describe each non-empty cluster. An
// analysis calling its articles unrelated is dropped for clusters of two or
// fewer.
func (p *Pipeline) analyseClusters(ctx context.Context, prof config.Profile, candidates []model.Article, members [][]int) ([]clusterAnalysis, error) {
	log := p.logger(ctx, prof.Name, "brief")
	pace := pacer(p.opts.ClusterDelay)

	var out []clusterAnalysis
	for c, idx := range members {
		if len(idx) == 0 {
			continue
		}
		if err := pace.Wait(ctx); err != nil {
			return nil, err
		}

		ids := make([]int64, len(idx))
		var summaries []string
		for i, j := range idx {
			ids[i] = candidates[j].ID
			if i < p.opts.MaxSummariesPerCluster {
				summaries = append(summaries, "- "+candidates[j].Summary())
			}
		}

		text, ok := p.llm.Invoke(ctx, llm.Request{
			Prompt: render(prof.Prompts.ClusterAnalysis, map[string]string{
				"cluster_summaries_text": strings.Join(summaries, "\n\n"),
				"feed_profile":           prof.Name,
			}),
			Model: prof.Models.Cluster,
			Phase: "cluster",
		})
		if !ok {
			log.Warn("pipeline: cluster analysis failed", zap.Int("cluster", c), zap.Int("size", len(idx)))
			continue
		}
		if strings.Contains(strings.ToLower(text), "unrelated") && len(idx) <= 2 {
			log.Info("pipeline: dropping unrelated cluster", zap.Int("cluster", c), zap.Int("size", len(idx)))
			continue
		}
		out = append(out, clusterAnalysis{size: len(idx), text: text, articles: ids})
	}
	return out, nil
}

func (p *Pipeline) notify(ctx context.Context, prof config.Profile, briefID int64, articles int) {
	recipients := make([]string, 0, len(prof.Recipients))
	for r := range prof.Recipients {
		recipients = append(recipients, r)
	}
	sort.Strings(recipients)

	for _, r := range recipients {
		p.notifier.Notify(ctx, r, NotificationMessage(prof.Name, articles, briefID, prof.Recipients[r]))
	}
}

// NotificationMessage is the HTML text sent to a recipient for a new brief.
func NotificationMessage(profile string, articles int, briefID int64, destination string) string {
	var b strings.Builder
	b.WriteString("<b>📰 New Briefing Available</b>\n\n")
	fmt.Fprintf(&b, "<b>Feed:</b> %s\n", html.EscapeString(profile))
	fmt.Fprintf(&b, "<b>Articles:</b> %d\n", articles)
	fmt.Fprintf(&b, "<b>ID:</b> %d\n", briefID)
	if destination != "" {
		fmt.Fprintf(&b, "\nOpen: %s\n", html.EscapeString(destination))
	}
	return b.String()
}
