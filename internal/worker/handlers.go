package worker

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/cohort/internal/classify"
	"github.com/thebtf/cohort/internal/correlate"
	"github.com/thebtf/cohort/pkg/models"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body, reporting a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// handleHealth handles health check requests.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":    "ready",
		"version":   s.version,
		"uptime_s":  int(time.Since(s.startTime).Seconds()),
		"embedding": s.cache != nil,
		"backend":   s.config.StoreBackend,
	})
}

// handleVersion returns the worker version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": s.version})
}

// handleGetFeatures returns the current feature catalog.
func (s *Service) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	features := s.getFeatures()
	// Strip embeddings from the response; they are an internal detail.
	out := make([]map[string]string, len(features))
	for i, f := range features {
		out[i] = map[string]string{
			"id":          f.ID,
			"name":        f.Name,
			"description": f.Description,
		}
	}
	writeJSON(w, map[string]interface{}{"features": out})
}

type classifyRequest struct {
	Messages []*models.Signal `json:"messages"`
	Issues   []*models.Signal `json:"issues"`
	MinScore float64          `json:"min_score,omitempty"`
}

// handleClassify scores a batch of messages against a set of issues and
// persists the result when a group store is available.
func (s *Service) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := *s.config
	if req.MinScore > 0 {
		cfg.MinMatchScore = req.MinScore
	}

	classifier := classify.New(s.newStrategy(), &cfg)
	result, err := classifier.ClassifyBatch(r.Context(), req.Messages, req.Issues)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.groupStore != nil {
		if err := s.groupStore.SaveClassifications(r.Context(), result.Messages); err != nil {
			log.Warn().Err(err).Msg("Failed to persist classifications")
		}
	}
	writeJSON(w, result)
}

type correlateRequest struct {
	Signals   []*models.Signal `json:"signals"`
	Threshold float64          `json:"threshold,omitempty"`
}

// handleCorrelate clusters a signal population into groups and persists the
// result when a group store is available.
func (s *Service) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	var req correlateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	correlator := s.newCorrelator(req.Threshold)
	result, err := correlator.Correlate(r.Context(), req.Signals)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.groupStore != nil {
		if err := s.groupStore.ReplaceGroups(r.Context(), result.Groups); err != nil {
			log.Warn().Err(err).Msg("Failed to persist groups")
		}
	}
	writeJSON(w, result)
}

type groupByIssueRequest struct {
	Messages []*models.Signal `json:"messages"`
	Issues   []*models.Signal `json:"issues"`
	MinScore float64          `json:"min_score,omitempty"`
}

// handleGroupByIssue runs classification and then groups threads by their
// best-matching issue. More reliable than direct clustering when the issue
// set is trustworthy.
func (s *Service) handleGroupByIssue(w http.ResponseWriter, r *http.Request) {
	var req groupByIssueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	minScore := req.MinScore
	if minScore <= 0 {
		minScore = s.config.MinMatchScore
	}

	cfg := *s.config
	cfg.MinMatchScore = minScore

	classifier := classify.New(s.newStrategy(), &cfg)
	result, err := classifier.ClassifyBatch(r.Context(), req.Messages, req.Issues)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	groups := correlate.GroupByIssue(result, minScore)
	writeJSON(w, map[string]interface{}{
		"groups":  groups,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	})
}

type duplicatesRequest struct {
	Signals   []*models.Signal `json:"signals"`
	Threshold float64          `json:"threshold,omitempty"`
}

// handleDuplicates reports near-identical signals as multi-member groups.
func (s *Service) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.config.DuplicateThreshold
	}

	correlator := s.newCorrelator(0)
	groups, err := correlator.FindDuplicates(r.Context(), req.Signals, threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"groups": groups})
}
