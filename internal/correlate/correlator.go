package correlate

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/cohort/internal/config"
	"github.com/thebtf/cohort/pkg/models"
)

const titleSnippetLen = 60

// Correlator clusters signals into groups. Input order is significant: the
// greedy pass is intentionally order-dependent, trading global optimality
// for determinism.
type Correlator struct {
	sim       Similarity
	threshold float64
	maxGroups int
	mapper    *FeatureMapper // nil disables feature mapping
}

// New creates a correlator over the given similarity. The threshold is on
// the normalized [0,1] scale.
func New(sim Similarity, threshold float64, cfg *config.Config) *Correlator {
	maxGroups := cfg.MaxGroups
	if maxGroups <= 0 {
		maxGroups = 50
	}
	return &Correlator{
		sim:       sim,
		threshold: threshold,
		maxGroups: maxGroups,
	}
}

// WithFeatureMapper attaches a feature mapper applied to every group.
func (c *Correlator) WithFeatureMapper(m *FeatureMapper) *Correlator {
	c.mapper = m
	return c
}

// Correlate clusters the signals, builds groups sorted by descending member
// count, caps the result, and reports signals from dropped groups as
// ungrouped.
func (c *Correlator) Correlate(ctx context.Context, signals []*models.Signal) (*models.CorrelationResult, error) {
	clusters, err := cluster(ctx, signals, c.sim, c.threshold)
	if err != nil {
		return nil, err
	}

	groups := make([]*models.Group, 0, len(clusters))
	for _, members := range clusters {
		g, err := c.buildGroup(ctx, members)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Signals) > len(groups[j].Signals)
	})

	result := &models.CorrelationResult{Groups: groups}
	if len(groups) > c.maxGroups {
		for _, g := range groups[c.maxGroups:] {
			result.Ungrouped = append(result.Ungrouped, g.Signals...)
		}
		result.Groups = groups[:c.maxGroups]
	}

	log.Info().
		Int("signals", len(signals)).
		Int("groups", len(result.Groups)).
		Int("ungrouped", len(result.Ungrouped)).
		Float64("threshold", c.threshold).
		Msg("Correlation run complete")
	return result, nil
}

// FindDuplicates runs the clustering primitive at the duplicate threshold
// and reports only multi-member clusters. Duplicate reporting is a separate,
// higher-bar check; it never feeds back into primary clustering.
func (c *Correlator) FindDuplicates(ctx context.Context, signals []*models.Signal, threshold float64) ([]*models.Group, error) {
	clusters, err := cluster(ctx, signals, c.sim, threshold)
	if err != nil {
		return nil, err
	}

	var groups []*models.Group
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		g, err := c.buildGroup(ctx, members)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (c *Correlator) buildGroup(ctx context.Context, members []*models.Signal) (*models.Group, error) {
	similarity, err := meanPairwise(ctx, members, c.sim)
	if err != nil {
		return nil, err
	}

	g := &models.Group{
		ID:             uuid.NewString(),
		Signals:        members,
		Similarity:     similarity,
		SuggestedTitle: suggestTitle(members),
		CanonicalIssue: canonicalIssue(members),
	}

	if c.mapper != nil {
		features, err := c.mapper.Map(ctx, members)
		if err != nil {
			return nil, err
		}
		g.AffectsFeatures = features
		g.IsCrossCutting = len(features) > 1
	}
	return g, nil
}

// canonicalIssue picks the group representative: tracker-sourced signals are
// preferred; within the preferred set the most recently active wins.
func canonicalIssue(members []*models.Signal) *models.Signal {
	candidates := make([]*models.Signal, 0, len(members))
	for _, s := range members {
		if s.IsIssue() {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		candidates = members
	}

	best := candidates[0]
	for _, s := range candidates[1:] {
		if s.LastActivity().After(best.LastActivity()) {
			best = s
		}
	}
	return best
}

// suggestTitle prefers a tracker issue's title, then a chat thread's title,
// then a snippet of the first signal's body, then a fixed placeholder.
func suggestTitle(members []*models.Signal) string {
	for _, s := range members {
		if s.IsIssue() && strings.TrimSpace(s.Title) != "" {
			return strings.TrimSpace(s.Title)
		}
	}
	for _, s := range members {
		if strings.TrimSpace(s.Title) != "" {
			return strings.TrimSpace(s.Title)
		}
	}

	body := strings.TrimSpace(members[0].Body)
	if body != "" {
		runes := []rune(body)
		if len(runes) > titleSnippetLen {
			return string(runes[:titleSnippetLen]) + "..."
		}
		return body
	}
	return models.UntitledGroupTitle
}
