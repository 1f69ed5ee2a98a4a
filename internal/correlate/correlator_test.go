package correlate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/cohort/internal/config"
	"github.com/thebtf/cohort/pkg/models"
)

// pairSim is a stub similarity defined by an explicit pair table; unknown
// pairs score 0. Lookups are symmetric.
func pairSim(pairs map[string]float64) Similarity {
	return func(ctx context.Context, a, b *models.Signal) (float64, error) {
		if s, ok := pairs[a.SourceID+"|"+b.SourceID]; ok {
			return s, nil
		}
		if s, ok := pairs[b.SourceID+"|"+a.SourceID]; ok {
			return s, nil
		}
		return 0, nil
	}
}

func thread(id, title, body string, updated time.Time) *models.Signal {
	return &models.Signal{
		Source:    models.SourceChatThread,
		SourceID:  id,
		Title:     title,
		Body:      body,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func trackerIssue(id, title string, updated time.Time) *models.Signal {
	return &models.Signal{
		Source:    models.SourceTrackerIssue,
		SourceID:  id,
		Title:     title,
		Body:      "issue body",
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

var baseTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestCorrelate_TwoSimilarOneApart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := thread("a", "", "payment webhook timeout", baseTime)
	b := thread("b", "", "webhook payments timing out", baseTime)
	c := thread("c", "", "dark mode toggle", baseTime)

	sim := pairSim(map[string]float64{
		"a|b": 0.8,
		"a|c": 0.2,
		"b|c": 0.2,
	})

	corr := New(sim, 0.6, config.Default())
	result, err := corr.Correlate(ctx, []*models.Signal{a, b, c})
	require.NoError(t, err)

	require.Len(t, result.Groups, 2, "expected a pair group plus a singleton")
	assert.Len(t, result.Groups[0].Signals, 2)
	assert.Len(t, result.Groups[1].Signals, 1)
	assert.Equal(t, "c", result.Groups[1].Signals[0].SourceID)
	assert.Empty(t, result.Ungrouped)
}

func TestCorrelate_SeedOnlyMembership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// b and c are both similar to the seed a but not to each other. The
	// greedy pass still puts all three in one cluster: membership is judged
	// against the seed only.
	a := thread("a", "", "seed", baseTime)
	b := thread("b", "", "near seed", baseTime)
	c := thread("c", "", "also near seed", baseTime)

	sim := pairSim(map[string]float64{
		"a|b": 0.7,
		"a|c": 0.7,
		"b|c": 0.1,
	})

	corr := New(sim, 0.6, config.Default())
	result, err := corr.Correlate(ctx, []*models.Signal{a, b, c})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Signals, 3)

	// Mean pairwise similarity reflects the weak b-c edge.
	assert.InDelta(t, (0.7+0.7+0.1)/3, result.Groups[0].Similarity, 1e-9)
}

func TestCorrelate_ThresholdMonotonicity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	signals := make([]*models.Signal, 6)
	for i := range signals {
		signals[i] = thread(fmt.Sprintf("s%d", i), "", fmt.Sprintf("body %d", i), baseTime)
	}
	pairs := map[string]float64{
		"s0|s1": 0.9, "s0|s2": 0.7, "s0|s3": 0.5,
		"s4|s5": 0.65,
	}
	sim := pairSim(pairs)

	countMembers := func(threshold float64) (nonSingleton int, largest int) {
		corr := New(sim, threshold, config.Default())
		result, err := corr.Correlate(ctx, signals)
		require.NoError(t, err)
		for _, g := range result.Groups {
			if len(g.Signals) > 1 {
				nonSingleton++
			}
			if len(g.Signals) > largest {
				largest = len(g.Signals)
			}
		}
		return
	}

	prevNonSingleton, prevLargest := countMembers(0.4)
	for _, threshold := range []float64{0.6, 0.8, 0.95} {
		nonSingleton, largest := countMembers(threshold)
		assert.LessOrEqual(t, nonSingleton, prevNonSingleton,
			"raising the threshold must not create more non-singleton clusters")
		assert.LessOrEqual(t, largest, prevLargest,
			"raising the threshold must not grow clusters")
		prevNonSingleton, prevLargest = nonSingleton, largest
	}
}

func TestCorrelate_CanonicalIssuePrefersTrackerThenRecency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	older := trackerIssue("i1", "Old issue", baseTime.Add(-48*time.Hour))
	newer := trackerIssue("i2", "New issue", baseTime)
	chat := thread("t1", "", "chat about it", baseTime.Add(24*time.Hour))

	sim := pairSim(map[string]float64{
		"i1|i2": 0.9, "i1|t1": 0.9, "i2|t1": 0.9,
	})

	corr := New(sim, 0.6, config.Default())
	result, err := corr.Correlate(ctx, []*models.Signal{older, newer, chat})
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)

	canonical := result.Groups[0].CanonicalIssue
	require.NotNil(t, canonical)
	assert.Equal(t, "i2", canonical.SourceID,
		"tracker signals win over chat, most recent tracker wins overall")
}

func TestCorrelate_TitleSelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		signals []*models.Signal
		want    string
	}{
		{
			name: "tracker title preferred",
			signals: []*models.Signal{
				thread("t1", "Chat title", "body", baseTime),
				trackerIssue("i1", "Issue title", baseTime),
			},
			want: "Issue title",
		},
		{
			name: "chat title when no tracker",
			signals: []*models.Signal{
				thread("t1", "", "first body", baseTime),
				thread("t2", "Chat title", "body", baseTime),
			},
			want: "Chat title",
		},
		{
			name: "body snippet when untitled",
			signals: []*models.Signal{
				thread("t1", "", "short body only", baseTime),
			},
			want: "short body only",
		},
		{
			name: "placeholder when empty",
			signals: []*models.Signal{
				thread("t1", "", "", baseTime),
			},
			want: models.UntitledGroupTitle,
		},
	}

	always := func(ctx context.Context, a, b *models.Signal) (float64, error) { return 1, nil }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			corr := New(always, 0.6, config.Default())
			result, err := corr.Correlate(ctx, tt.signals)
			require.NoError(t, err)
			require.Len(t, result.Groups, 1)
			assert.Equal(t, tt.want, result.Groups[0].SuggestedTitle)
		})
	}
}

func TestCorrelate_LongBodySnippetEllipsized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	long := "this body is deliberately much longer than sixty characters so the title gets truncated"
	corr := New(LexicalSimilarity(), 0.5, config.Default())
	result, err := corr.Correlate(ctx, []*models.Signal{thread("t1", "", long, baseTime)})
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)

	title := result.Groups[0].SuggestedTitle
	assert.True(t, len([]rune(title)) <= titleSnippetLen+3)
	assert.Contains(t, title, "...")
}

func TestCorrelate_GroupCapReportsUngrouped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	signals := make([]*models.Signal, 5)
	for i := range signals {
		signals[i] = thread(fmt.Sprintf("s%d", i), "", fmt.Sprintf("distinct body %d", i), baseTime)
	}

	cfg := config.Default()
	cfg.MaxGroups = 2
	never := func(ctx context.Context, a, b *models.Signal) (float64, error) { return 0, nil }

	corr := New(never, 0.6, cfg)
	result, err := corr.Correlate(ctx, signals)
	require.NoError(t, err)

	assert.Len(t, result.Groups, 2)
	assert.Len(t, result.Ungrouped, 3, "signals from dropped groups are reported ungrouped")
}

func TestCorrelate_SortedByMemberCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// s2..s4 cluster with seed s2; s0 pairs with s1 only after s2's pass?
	// Input order: the s0 seed claims s1; then s2 claims s3 and s4.
	signals := []*models.Signal{
		thread("s0", "", "pair seed", baseTime),
		thread("s1", "", "pair member", baseTime),
		thread("s2", "", "trio seed", baseTime),
		thread("s3", "", "trio member", baseTime),
		thread("s4", "", "trio member two", baseTime),
	}
	sim := pairSim(map[string]float64{
		"s0|s1": 0.9,
		"s2|s3": 0.9, "s2|s4": 0.9, "s3|s4": 0.9,
	})

	corr := New(sim, 0.6, config.Default())
	result, err := corr.Correlate(ctx, signals)
	require.NoError(t, err)

	require.Len(t, result.Groups, 2)
	assert.Len(t, result.Groups[0].Signals, 3, "largest group first")
	assert.Len(t, result.Groups[1].Signals, 2)
}

func TestCorrelate_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	signals := []*models.Signal{
		thread("a", "", "csrf trusted origins misconfigured", baseTime),
		thread("b", "", "trusted-origins csrf errors on valid requests", baseTime),
		thread("c", "", "dark mode toggle broken", baseTime),
	}

	corr := New(LexicalSimilarity(), 0.3, config.Default())
	first, err := corr.Correlate(ctx, signals)
	require.NoError(t, err)
	second, err := corr.Correlate(ctx, signals)
	require.NoError(t, err)

	require.Equal(t, len(first.Groups), len(second.Groups))
	for i := range first.Groups {
		assert.Equal(t, first.Groups[i].Signals, second.Groups[i].Signals)
		assert.Equal(t, first.Groups[i].Similarity, second.Groups[i].Similarity)
		assert.Equal(t, first.Groups[i].SuggestedTitle, second.Groups[i].SuggestedTitle)
	}
}

func TestFindDuplicates_HighBarVsClusterBar(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := thread("a", "", "export fails on large CSV files", baseTime)
	b := thread("b", "", "export fails on large CSV files 2026-08-01T12:00:00Z", baseTime)
	c := thread("c", "", "unrelated billing question", baseTime)

	sim := pairSim(map[string]float64{
		"a|b": 0.95,
		"a|c": 0.55, "b|c": 0.55,
	})
	corr := New(sim, 0.5, config.Default())

	// At the 0.9 duplicate bar, only the near-identical pair is reported.
	dups, err := corr.FindDuplicates(ctx, []*models.Signal{a, b, c}, 0.9)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Len(t, dups[0].Signals, 2)

	// The same population clusters more loosely at 0.5, but clustering
	// together does not make signals duplicates.
	result, err := corr.Correlate(ctx, []*models.Signal{a, b, c})
	require.NoError(t, err)
	assert.Len(t, result.Groups, 1, "all three cluster at the low bar")
}
