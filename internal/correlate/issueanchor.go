package correlate

import (
	"sort"

	"github.com/thebtf/cohort/pkg/models"
)

// GroupByIssue groups classified chat threads by the issue their best match
// points at, keeping only matches at or above minScore (on the [0,100]
// classifier scale). Anchoring on the issue identity avoids the transitive
// chains direct signal-to-signal clustering can produce, so this mode is
// preferred when a trustworthy classification already exists.
func GroupByIssue(result *models.ClassificationResult, minScore float64) []*models.IssueGroup {
	byIssue := make(map[string]*models.IssueGroup)
	var order []string

	for _, msg := range result.Messages {
		if len(msg.Matches) == 0 {
			continue
		}
		best := msg.Matches[0]
		if best.Score < minScore {
			continue
		}

		id := best.Issue.SourceID
		g, ok := byIssue[id]
		if !ok {
			g = &models.IssueGroup{IssueID: id, Issue: best.Issue}
			byIssue[id] = g
			order = append(order, id)
		}
		g.Threads = append(g.Threads, models.ScoredSignal{Signal: msg.Signal, Score: best.Score})
	}

	groups := make([]*models.IssueGroup, 0, len(byIssue))
	for _, id := range order {
		g := byIssue[id]
		sort.SliceStable(g.Threads, func(i, j int) bool {
			return g.Threads[i].Score > g.Threads[j].Score
		})
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Threads) != len(groups[j].Threads) {
			return len(groups[i].Threads) > len(groups[j].Threads)
		}
		return groups[i].IssueID < groups[j].IssueID
	})
	return groups
}
