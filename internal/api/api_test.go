package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/aspectflow/internal/aspects"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/pipeline"
	"github.com/spacesedan/aspectflow/internal/reporting"
	"github.com/spacesedan/aspectflow/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func keywordClassifier() sentiment.Classifier {
	return sentiment.ClassifierFunc(func(_ context.Context, text string) (sentiment.Classification, error) {
		t := strings.ToLower(text)
		switch {
		case strings.Contains(t, "terrible"), strings.Contains(t, "late"):
			return sentiment.Classification{Label: models.SentimentNegative}, nil
		case strings.Contains(t, "love"), strings.Contains(t, "great"):
			return sentiment.Classification{Label: models.SentimentPositive}, nil
		}
		return sentiment.Classification{Label: models.SentimentNeutral}, nil
	})
}

type server struct {
	router  *gin.Engine
	store   *pipeline.MemoryItemStore
	queued  []models.UploadRequest
	enqueue bool
}

func newServer(t *testing.T, enqueue bool) *server {
	t.Helper()
	s := &server{store: pipeline.NewMemoryItemStore(), enqueue: enqueue}
	service := reporting.NewService(reporting.NewMemoryHistory(), nil, reporting.Options{})
	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Ingestor: pipeline.NewIngestor(s.store, nil),
		Analyzer: pipeline.NewAnalyzer(aspects.NewDetector(aspects.DefaultTaxonomy(), aspects.Options{}),
			keywordClassifier(), nil, pipeline.AnalyzerOptions{}),
		Recorder: service,
	})

	var q Enqueue
	if enqueue {
		q = func(batchID string, req models.UploadRequest) error {
			s.queued = append(s.queued, req)
			return nil
		}
	}
	s.router = SetupRouter(NewHandlers(orch, service, nil, q))
	return s
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

var upload = models.UploadRequest{
	BatchID: "b1",
	Feedback: []string{
		"The price is terrible and way too high",
		"Delivery was late and the box was damaged",
		"I love the product quality a lot",
		"x",
	},
}

func TestUploadAnalyzesBatch(t *testing.T) {
	s := newServer(t, false)
	w := s.do(t, http.MethodPost, "/api/feedback", upload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "b1", resp.BatchID)
	assert.Equal(t, 3, resp.Accepted)
	assert.Equal(t, []models.Rejection{{Index: 3, Reason: "too short (1 words)"}}, resp.Rejected)
	assert.Equal(t, models.RunCompleted, resp.Run.Status)
	require.NotNil(t, resp.Run.Result)
	assert.Len(t, resp.Run.Result.Aspects, 3)
}

func TestUploadRejectsBadRequests(t *testing.T) {
	s := newServer(t, false)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/feedback", map[string]any{"feedback": []string{}}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/feedback", "not an object").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/feedback?async=true", upload).Code,
		"async is disabled without a queue")
}

func TestUploadAllInvalid(t *testing.T) {
	s := newServer(t, false)
	w := s.do(t, http.MethodPost, "/api/feedback", models.UploadRequest{Feedback: []string{"", "hi"}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Rejected, 2)
	assert.Equal(t, models.RunFailed, resp.Run.Status)
	assert.Equal(t, "ingesting", resp.Run.FailedStage)
}

func TestUploadAsync(t *testing.T) {
	s := newServer(t, true)
	req := upload
	req.BatchID = ""
	w := s.do(t, http.MethodPost, "/api/feedback?async=true", req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body["batch_id"], "feedback_"))
	require.Len(t, s.queued, 1)
	assert.Equal(t, body["batch_id"], s.queued[0].BatchID)
}

func TestAnalyzeExistingBatch(t *testing.T) {
	s := newServer(t, false)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/feedback", upload).Code)

	w := s.do(t, http.MethodPost, "/api/feedback/b1/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run models.AnalysisRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "b1", run.BatchID)
	assert.Equal(t, 3, run.ItemCount)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/feedback/missing/analyze", nil).Code)
}

func TestUploadDuplicateBatchID(t *testing.T) {
	s := newServer(t, false)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/feedback", upload).Code)

	again := upload
	again.Feedback = []string{"The box was wet and the price doubled"}
	w := s.do(t, http.MethodPost, "/api/feedback", again)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "already exists")

	items, err := s.store.Load(context.Background(), "b1")
	require.NoError(t, err)
	assert.Len(t, items, 3, "stored batch is untouched")
}

func TestSummaryAfterUploads(t *testing.T) {
	s := newServer(t, false)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/feedback", upload).Code)
	// re-analysis must not double count
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/feedback/b1/analyze", nil).Code)

	w := s.do(t, http.MethodGet, "/api/aspects/summary?days=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Aspects, 3)
	for _, a := range result.Aspects {
		assert.Equal(t, 1, a.MentionCount, a.Aspect)
	}

	w = s.do(t, http.MethodGet, "/api/aspects/summary?sort=aspect&priority=high", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	var names []string
	for _, a := range result.Aspects {
		names = append(names, a.Aspect)
	}
	assert.Equal(t, []string{"DELIVERY", "PRICE"}, names)
}

func TestStatistics(t *testing.T) {
	s := newServer(t, false)
	w := s.do(t, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_batches":0,"total_feedback":0,"total_analyses":0}`, w.Body.String())

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/feedback", upload).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/feedback/b1/analyze", nil).Code)

	w = s.do(t, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_batches":1,"total_feedback":3,"total_analyses":2}`, w.Body.String())
}

func TestSummaryCanonicalShapeWhenEmpty(t *testing.T) {
	s := newServer(t, false)
	w := s.do(t, http.MethodGet, "/api/aspects/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"aspects":[],"recommendations":{"strengths":[],"improvements":[]}}`, w.Body.String())
}

func TestSummaryRejectsBadParameters(t *testing.T) {
	s := newServer(t, false)
	for _, q := range []string{"days=0", "days=abc", "sort=loudest", "priority=urgent", "min_mentions=-1"} {
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/aspects/summary?"+q, nil).Code, q)
	}
}

func TestHistory(t *testing.T) {
	s := newServer(t, false)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/feedback", upload).Code)

	w := s.do(t, http.MethodGet, "/api/aspects/history?aspect=price", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count   int                   `json:"count"`
		History []models.AspectRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "PRICE", body.History[0].Aspect)
	assert.Equal(t, "b1", body.History[0].BatchID)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/aspects/history?limit=0", nil).Code)
}

type busyAnalyzer struct{}

func (busyAnalyzer) Process(context.Context, models.UploadRequest) (models.UploadResponse, error) {
	return models.UploadResponse{}, errs.ErrBatchBusy
}

func (busyAnalyzer) AnalyzeExisting(context.Context, string) (models.AnalysisRun, error) {
	return models.AnalysisRun{}, errs.ErrBatchBusy
}

type failingReports struct{}

func (failingReports) GetAspectSummary(context.Context, int) (models.AnalysisResult, error) {
	return models.AnalysisResult{}, errors.New("postgres down")
}

func (failingReports) GetAspectHistory(context.Context, string, int) ([]models.AspectRecord, error) {
	return nil, errors.New("postgres down")
}

func (failingReports) Statistics(context.Context) (models.Statistics, error) {
	return models.Statistics{}, errors.New("postgres down")
}

type staticHealth map[string]bool

func (h staticHealth) Snapshot() map[string]bool { return h }

func (h staticHealth) Unhealthy() []string {
	var out []string
	for k, ok := range h {
		if !ok {
			out = append(out, k)
		}
	}
	return out
}

func TestErrorStatuses(t *testing.T) {
	s := &server{router: SetupRouter(NewHandlers(busyAnalyzer{}, failingReports{}, staticHealth{"postgres": false}, nil))}

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/feedback", upload).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/feedback/b1/analyze", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodGet, "/api/aspects/summary", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodGet, "/api/aspects/history", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodGet, "/api/statistics", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/health", nil).Code)
}

func TestHealthOK(t *testing.T) {
	s := &server{router: SetupRouter(NewHandlers(busyAnalyzer{}, failingReports{}, staticHealth{"postgres": true}, nil))}
	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","dependencies":{"postgres":true}}`, w.Body.String())
}
