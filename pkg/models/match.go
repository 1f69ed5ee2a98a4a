package models

// CandidateMatch is the result of scoring one signal against one issue.
// Score is on the [0,100] scale shared by both scorers. MatchedTerms lists
// phrase matches (quoted) followed by standalone token matches; it is empty
// for embedding-based scoring.
type CandidateMatch struct {
	Issue        *Signal  `json:"issue"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// ClassifiedMessage is a signal together with its ranked issue matches.
type ClassifiedMessage struct {
	Signal  *Signal          `json:"signal"`
	Matches []CandidateMatch `json:"matches"`
}

// ClassificationResult is the output of a classification run over a batch of
// signals. Skipped and Failed count items that could not be scored; partial
// failures never abort a run.
type ClassificationResult struct {
	Messages []ClassifiedMessage `json:"messages"`
	Skipped  int                 `json:"skipped"`
	Failed   int                 `json:"failed"`
}
