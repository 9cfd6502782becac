package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Profile is the fully resolved configuration of one feed profile.
type Profile struct {
	Name       string            `yaml:"name" mapstructure:"name"`
	Feeds      []string          `yaml:"feeds" mapstructure:"feeds"`
	Prompts    Prompts           `yaml:"prompts" mapstructure:"prompts"`
	Models     Models            `yaml:"models" mapstructure:"models"`
	Thresholds Thresholds        `yaml:"thresholds" mapstructure:"thresholds"`
	Recipients map[string]string `yaml:"recipients" mapstructure:"recipients"`
	References References        `yaml:"references" mapstructure:"references"`
}

// Prompts holds the prompt templates. Placeholders use {name} syntax.
type Prompts struct {
	Filter          string `yaml:"filter" mapstructure:"filter"`
	Summary         string `yaml:"summary" mapstructure:"summary"`
	Rating          string `yaml:"rating" mapstructure:"rating"`
	ClusterAnalysis string `yaml:"cluster_analysis" mapstructure:"cluster_analysis"`
	Synthesis       string `yaml:"synthesis" mapstructure:"synthesis"`
}

// Models selects the model used by each stage.
type Models struct {
	Filter    string `yaml:"filter" mapstructure:"filter"`
	Summary   string `yaml:"summary" mapstructure:"summary"`
	Rating    string `yaml:"rating" mapstructure:"rating"`
	Cluster   string `yaml:"cluster" mapstructure:"cluster"`
	Brief     string `yaml:"brief" mapstructure:"brief"`
	Embedding string `yaml:"embedding" mapstructure:"embedding"`
}

// Thresholds gate each stage.
type Thresholds struct {
	MinFilterScore         int `yaml:"min_filter_score" mapstructure:"min_filter_score"`
	MinImpactScore         int `yaml:"min_impact_score" mapstructure:"min_impact_score"`
	MinArticlesForBriefing int `yaml:"min_articles_for_briefing" mapstructure:"min_articles_for_briefing"`
	TargetClusters         int `yaml:"target_clusters" mapstructure:"target_clusters"`
	MaxAgeDaysInitial      int `yaml:"max_age_days_initial" mapstructure:"max_age_days_initial"`
	MaxAgeDaysNormal       int `yaml:"max_age_days_normal" mapstructure:"max_age_days_normal"`
}

// References labels the references section appended to every brief.
// Intro is a format string receiving the article count.
type References struct {
	Heading     string `yaml:"heading" mapstructure:"heading"`
	Intro       string `yaml:"intro" mapstructure:"intro"`
	ImpactLabel string `yaml:"impact_label" mapstructure:"impact_label"`
	DateLayout  string `yaml:"date_layout" mapstructure:"date_layout"`
}

// ProfileOverride is the per-profile layer read from profiles/<name>.yaml.
// Nil fields inherit from the base layer. Lists and maps replace the base
// value wholesale when present.
type ProfileOverride struct {
	Feeds      []string          `yaml:"feeds"`
	Recipients map[string]string `yaml:"recipients"`
	Prompts    struct {
		Filter          *string `yaml:"filter"`
		Summary         *string `yaml:"summary"`
		Rating          *string `yaml:"rating"`
		ClusterAnalysis *string `yaml:"cluster_analysis"`
		Synthesis       *string `yaml:"synthesis"`
	} `yaml:"prompts"`
	Models struct {
		Filter    *string `yaml:"filter"`
		Summary   *string `yaml:"summary"`
		Rating    *string `yaml:"rating"`
		Cluster   *string `yaml:"cluster"`
		Brief     *string `yaml:"brief"`
		Embedding *string `yaml:"embedding"`
	} `yaml:"models"`
	Thresholds struct {
		MinFilterScore         *int `yaml:"min_filter_score"`
		MinImpactScore         *int `yaml:"min_impact_score"`
		MinArticlesForBriefing *int `yaml:"min_articles_for_briefing"`
		TargetClusters         *int `yaml:"target_clusters"`
		MaxAgeDaysInitial      *int `yaml:"max_age_days_initial"`
		MaxAgeDaysNormal       *int `yaml:"max_age_days_normal"`
	} `yaml:"thresholds"`
	References struct {
		Heading     *string `yaml:"heading"`
		Intro       *string `yaml:"intro"`
		ImpactLabel *string `yaml:"impact_label"`
		DateLayout  *string `yaml:"date_layout"`
	} `yaml:"references"`
}

// Apply returns base with every set override field taking precedence.
func (o *ProfileOverride) Apply(base Profile) Profile {
	p := base
	p.Feeds = append([]string(nil), base.Feeds...)
	p.Recipients = cloneMap(base.Recipients)

	if o.Feeds != nil {
		p.Feeds = append([]string(nil), o.Feeds...)
	}
	if o.Recipients != nil {
		p.Recipients = cloneMap(o.Recipients)
	}

	set(&p.Prompts.Filter, o.Prompts.Filter)
	set(&p.Prompts.Summary, o.Prompts.Summary)
	set(&p.Prompts.Rating, o.Prompts.Rating)
	set(&p.Prompts.ClusterAnalysis, o.Prompts.ClusterAnalysis)
	set(&p.Prompts.Synthesis, o.Prompts.Synthesis)

	set(&p.Models.Filter, o.Models.Filter)
	set(&p.Models.Summary, o.Models.Summary)
	set(&p.Models.Rating, o.Models.Rating)
	set(&p.Models.Cluster, o.Models.Cluster)
	set(&p.Models.Brief, o.Models.Brief)
	set(&p.Models.Embedding, o.Models.Embedding)

	set(&p.Thresholds.MinFilterScore, o.Thresholds.MinFilterScore)
	set(&p.Thresholds.MinImpactScore, o.Thresholds.MinImpactScore)
	set(&p.Thresholds.MinArticlesForBriefing, o.Thresholds.MinArticlesForBriefing)
	set(&p.Thresholds.TargetClusters, o.Thresholds.TargetClusters)
	set(&p.Thresholds.MaxAgeDaysInitial, o.Thresholds.MaxAgeDaysInitial)
	set(&p.Thresholds.MaxAgeDaysNormal, o.Thresholds.MaxAgeDaysNormal)

	set(&p.References.Heading, o.References.Heading)
	set(&p.References.Intro, o.References.Intro)
	set(&p.References.ImpactLabel, o.References.ImpactLabel)
	set(&p.References.DateLayout, o.References.DateLayout)

	return p
}

// Validate checks the resolved profile for values the stages cannot use.
func (p Profile) Validate() error {
	t := p.Thresholds
	switch {
	case p.Name == "":
		return eris.New("profile: name is required")
	case t.MinFilterScore < 1 || t.MinFilterScore > 5:
		return eris.Errorf("profile %s: min_filter_score %d outside 1-5", p.Name, t.MinFilterScore)
	case t.MinImpactScore < 1 || t.MinImpactScore > 10:
		return eris.Errorf("profile %s: min_impact_score %d outside 1-10", p.Name, t.MinImpactScore)
	case t.TargetClusters < 2:
		return eris.Errorf("profile %s: target_clusters must be at least 2", p.Name)
	case t.MaxAgeDaysInitial <= 0 || t.MaxAgeDaysNormal <= 0:
		return eris.Errorf("profile %s: age windows must be positive", p.Name)
	}
	return nil
}

// LoadOverride decodes a profile override file.
func LoadOverride(path string) (*ProfileOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}
	var o ProfileOverride
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}
	return &o, nil
}

// ResolveProfile merges profiles/<name>.yaml over the base layer. A missing
// file resolves to the base layer alone.
func (c *Config) ResolveProfile(name string) (Profile, error) {
	base := c.Defaults
	base.Name = name

	path := filepath.Join(c.Profiles.Dir, name+".yaml")
	o := &ProfileOverride{}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zap.L().Warn("profile: no override file, using defaults",
			zap.String("profile", name),
			zap.String("path", path),
		)
	} else {
		if o, err = LoadOverride(path); err != nil {
			return Profile{}, err
		}
	}

	p := o.Apply(base)
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// OverrideNames lists the profile names that have an override file in dir.
// A missing dir yields no names.
func OverrideNames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, eris.Wrapf(err, "profile: list %s", dir)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
