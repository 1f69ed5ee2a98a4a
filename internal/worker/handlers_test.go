package worker

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/cohort/internal/config"
	"github.com/thebtf/cohort/pkg/models"
)

// testService builds a lexical-only service with no store, enough for
// handler-level tests.
func testService(t *testing.T) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.MinMatchScore = 10

	svc := &Service{
		version: "test",
		config:  cfg,
		router:  chi.NewRouter(),
	}
	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

func postJSON(t *testing.T, svc *Service, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, false, body["embedding"])
}

func TestHandleClassify(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	rec := postJSON(t, svc, "/api/classify", classifyRequest{
		Messages: []*models.Signal{{
			Source:   models.SourceChatThread,
			SourceID: "t1",
			Body:     "csrf trusted origins misconfigured",
		}},
		Issues: []*models.Signal{{
			Source:   models.SourceTrackerIssue,
			SourceID: "42",
			Title:    "Fix trusted-origins CORS bug",
			Body:     "csrf errors on valid requests",
		}},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ClassificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Messages, 1)
	require.NotEmpty(t, result.Messages[0].Matches)
	assert.Equal(t, "42", result.Messages[0].Matches[0].Issue.SourceID)
}

func TestHandleClassify_BadJSON(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClassify_RejectsWrongContentType(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandleCorrelate(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	rec := postJSON(t, svc, "/api/correlate", correlateRequest{
		Signals: []*models.Signal{
			{Source: models.SourceChatThread, SourceID: "t1", Body: "csrf trusted origins misconfigured login"},
			{Source: models.SourceChatThread, SourceID: "t2", Body: "trusted-origins csrf login errors"},
			{Source: models.SourceChatThread, SourceID: "t3", Body: "dark mode toggle colors"},
		},
		Threshold: 0.3,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.CorrelationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Groups)

	total := len(result.Ungrouped)
	for _, g := range result.Groups {
		total += len(g.Signals)
	}
	assert.Equal(t, 3, total, "every signal is either grouped or ungrouped")
}

func TestHandleGroupByIssue(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	issues := []*models.Signal{{
		Source:   models.SourceTrackerIssue,
		SourceID: "42",
		Title:    "Payment webhook timeout",
		Body:     "the payment webhook times out under load",
	}}
	rec := postJSON(t, svc, "/api/groups/by-issue", groupByIssueRequest{
		Messages: []*models.Signal{
			{Source: models.SourceChatThread, SourceID: "t1", Body: "payment webhook timeout again"},
			{Source: models.SourceChatThread, SourceID: "t2", Body: "webhook for payments keeps hitting timeout"},
		},
		Issues:   issues,
		MinScore: 10,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Groups []*models.IssueGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Groups, 1)
	assert.Equal(t, "42", body.Groups[0].IssueID)
	assert.Len(t, body.Groups[0].Threads, 2)
}

func TestHandleDuplicates(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	rec := postJSON(t, svc, "/api/duplicates", duplicatesRequest{
		Signals: []*models.Signal{
			{Source: models.SourceChatThread, SourceID: "t1", Body: "export fails on large csv files"},
			{Source: models.SourceChatThread, SourceID: "t2", Body: "billing invoice question"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Groups []*models.Group `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Groups, "unrelated signals produce no duplicate groups")
}

func TestHandleGetFeatures_EmptyCatalog(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/features", nil)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Features []map[string]string `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Features)
}
