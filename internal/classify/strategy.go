// Package classify matches incoming chat-thread signals against open tracker
// issues. Scoring is pluggable: an embedding strategy when a provider is
// configured, a lexical strategy otherwise, with automatic fallback between
// them.
package classify

import (
	"context"
	"sort"

	"github.com/thebtf/cohort/internal/embedcache"
	"github.com/thebtf/cohort/internal/scoring"
	"github.com/thebtf/cohort/pkg/models"
)

// Strategy scores one message against a set of candidate issues on the
// shared [0,100] scale.
type Strategy interface {
	Name() string

	// Prepare runs once per batch before scoring, e.g. to warm issue
	// embeddings.
	Prepare(ctx context.Context, issues []*models.Signal) error

	// Score returns one candidate match per issue, in issue order.
	Score(ctx context.Context, msg *models.Signal, issues []*models.Signal) ([]models.CandidateMatch, error)
}

// LexicalStrategy scores by weighted keyword and phrase overlap. It needs no
// provider and never fails.
type LexicalStrategy struct{}

// NewLexicalStrategy creates a keyword-overlap scoring strategy.
func NewLexicalStrategy() *LexicalStrategy { return &LexicalStrategy{} }

func (s *LexicalStrategy) Name() string { return "lexical" }

func (s *LexicalStrategy) Prepare(ctx context.Context, issues []*models.Signal) error { return nil }

func (s *LexicalStrategy) Score(ctx context.Context, msg *models.Signal, issues []*models.Signal) ([]models.CandidateMatch, error) {
	text := msg.Text()
	matches := make([]models.CandidateMatch, len(issues))
	for i, issue := range issues {
		score, terms := scoring.Keyword(text, issue.Title, issue.Body)
		matches[i] = models.CandidateMatch{Issue: issue, Score: score, MatchedTerms: terms}
	}
	return matches, nil
}

// EmbeddingStrategy scores by cosine similarity of cached embeddings.
type EmbeddingStrategy struct {
	cache *embedcache.Cache
}

// NewEmbeddingStrategy creates a cosine-similarity scoring strategy over the
// given embedding cache.
func NewEmbeddingStrategy(cache *embedcache.Cache) *EmbeddingStrategy {
	return &EmbeddingStrategy{cache: cache}
}

func (s *EmbeddingStrategy) Name() string { return "embedding" }

// Prepare warms the issue embeddings so per-message scoring only has to
// embed the message itself.
func (s *EmbeddingStrategy) Prepare(ctx context.Context, issues []*models.Signal) error {
	_, err := s.cache.Warm(ctx, issues)
	return err
}

func (s *EmbeddingStrategy) Score(ctx context.Context, msg *models.Signal, issues []*models.Signal) ([]models.CandidateMatch, error) {
	msgVec, err := s.cache.Fetch(ctx, models.EntityTypeFor(msg), msg.SourceID, msg.Text())
	if err != nil {
		return nil, err
	}

	matches := make([]models.CandidateMatch, len(issues))
	for i, issue := range issues {
		issueVec, err := s.cache.Fetch(ctx, models.EntityTypeFor(issue), issue.SourceID, issue.Text())
		if err != nil {
			return nil, err
		}
		score, err := scoring.CosineScore(msgVec, issueVec)
		if err != nil {
			return nil, err
		}
		matches[i] = models.CandidateMatch{Issue: issue, Score: score}
	}
	return matches, nil
}

// rankMatches filters matches below minScore, orders the rest by score
// descending with issue ID as a deterministic tiebreak, and truncates to
// maxMatches.
func rankMatches(matches []models.CandidateMatch, minScore float64, maxMatches int) []models.CandidateMatch {
	kept := make([]models.CandidateMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Issue.SourceID < kept[j].Issue.SourceID
	})

	if len(kept) > maxMatches {
		kept = kept[:maxMatches]
	}
	return kept
}
