package classify

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/cohort/internal/config"
	"github.com/thebtf/cohort/pkg/models"
)

// Classifier matches chat-thread signals against candidate tracker issues
// and keeps the top matches per message.
type Classifier struct {
	strategy    Strategy
	minScore    float64
	maxMatches  int
	maxParallel int
}

// New creates a classifier over the given scoring strategy.
func New(strategy Strategy, cfg *config.Config) *Classifier {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Classifier{
		strategy:    strategy,
		minScore:    cfg.MinMatchScore,
		maxMatches:  config.MaxMatchesPerMessage,
		maxParallel: maxParallel,
	}
}

// ClassifyBatch scores every message against every issue and returns ranked
// matches per message, preserving input order. Messages with no scorable
// text are skipped; per-message scoring failures are counted and the batch
// continues.
func (c *Classifier) ClassifyBatch(ctx context.Context, msgs, issues []*models.Signal) (*models.ClassificationResult, error) {
	result := &models.ClassificationResult{}
	if len(msgs) == 0 {
		return result, nil
	}

	if len(issues) == 0 {
		result.Messages = make([]models.ClassifiedMessage, len(msgs))
		for i, m := range msgs {
			result.Messages[i] = models.ClassifiedMessage{Signal: m}
		}
		return result, nil
	}

	if err := c.strategy.Prepare(ctx, issues); err != nil {
		return nil, err
	}

	classified := make([]*models.ClassifiedMessage, len(msgs))
	var skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)

	for i, msg := range msgs {
		g.Go(func() error {
			if msg.Text() == "" {
				skipped.Add(1)
				return nil
			}

			matches, err := c.strategy.Score(gctx, msg, issues)
			if err != nil {
				failed.Add(1)
				log.Warn().Err(err).
					Str("signal", msg.Key()).
					Msg("Failed to score message, continuing batch")
				return nil
			}

			classified[i] = &models.ClassifiedMessage{
				Signal:  msg,
				Matches: rankMatches(matches, c.minScore, c.maxMatches),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Skipped = int(skipped.Load())
	result.Failed = int(failed.Load())
	result.Messages = make([]models.ClassifiedMessage, 0, len(msgs))
	for _, cm := range classified {
		if cm != nil {
			result.Messages = append(result.Messages, *cm)
		}
	}

	log.Info().
		Int("messages", len(result.Messages)).
		Int("issues", len(issues)).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Str("strategy", c.strategy.Name()).
		Msg("Classification batch complete")
	return result, nil
}
