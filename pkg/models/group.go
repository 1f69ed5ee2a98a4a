package models

// UntitledGroupTitle is the placeholder title for groups whose signals carry
// no usable title or body text.
const UntitledGroupTitle = "Untitled discussion group"

// Group is a cluster of one or more signals believed to concern the same
// topic. Groups are recomputed wholesale on each correlation run; they are
// never incrementally patched.
type Group struct {
	ID              string    `json:"id"`
	Signals         []*Signal `json:"signals"`
	Similarity      float64   `json:"similarity"`
	SuggestedTitle  string    `json:"suggested_title"`
	AffectsFeatures []string  `json:"affects_features,omitempty"`
	IsCrossCutting  bool      `json:"is_cross_cutting"`
	CanonicalIssue  *Signal   `json:"canonical_issue,omitempty"`
}

// CorrelationResult is the output of a correlation run: the retained groups
// plus any signals that fell outside the group cap.
type CorrelationResult struct {
	Groups    []*Group  `json:"groups"`
	Ungrouped []*Signal `json:"ungrouped"`
}

// ScoredSignal pairs a signal with its similarity score against an anchor.
type ScoredSignal struct {
	Signal *Signal `json:"signal"`
	Score  float64 `json:"score"`
}

// IssueGroup is a group produced by issue-anchored grouping: all chat
// threads whose best classification match was the same issue, above a
// threshold. Grounding groups in an external identity avoids transitive
// similarity chains.
type IssueGroup struct {
	IssueID string         `json:"issue_id"`
	Issue   *Signal        `json:"issue"`
	Threads []ScoredSignal `json:"threads"`
}
