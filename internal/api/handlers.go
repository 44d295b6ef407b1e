package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/pipeline"
	"github.com/spacesedan/aspectflow/internal/reporting"
)

// Analyzer is satisfied by *pipeline.Orchestrator.
type Analyzer interface {
	Process(ctx context.Context, req models.UploadRequest) (models.UploadResponse, error)
	AnalyzeExisting(ctx context.Context, batchID string) (models.AnalysisRun, error)
}

// Reports is satisfied by *reporting.Service.
type Reports interface {
	GetAspectSummary(ctx context.Context, days int) (models.AnalysisResult, error)
	GetAspectHistory(ctx context.Context, aspect string, limit int) ([]models.AspectRecord, error)
	Statistics(ctx context.Context) (models.Statistics, error)
}

// Health is satisfied by *monitoring.Monitor.
type Health interface {
	Snapshot() map[string]bool
	Unhealthy() []string
}

// Enqueue hands an upload to the asynchronous pipeline, keyed by batch id.
type Enqueue func(batchID string, req models.UploadRequest) error

type Handlers struct {
	analyzer Analyzer
	reports  Reports
	health   Health
	enqueue  Enqueue
}

// NewHandlers wires the routes. health and enqueue may be nil; without
// enqueue, async uploads are rejected.
func NewHandlers(a Analyzer, r Reports, health Health, enqueue Enqueue) *Handlers {
	return &Handlers{analyzer: a, reports: r, health: health, enqueue: enqueue}
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// UploadFeedback ingests and analyzes a batch. With ?async=true the upload
// is queued and only the batch id is returned.
func (h *Handlers) UploadFeedback(c *gin.Context) {
	var req models.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Feedback) == 0 {
		errorJSON(c, http.StatusBadRequest, errors.New("feedback must contain at least one entry"))
		return
	}

	if c.Query("async") == "true" {
		h.enqueueUpload(c, req)
		return
	}

	resp, err := h.analyzer.Process(c.Request.Context(), req)
	var stageErr *errs.StageError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, resp)
	case errors.Is(err, errs.ErrBatchBusy), errors.Is(err, errs.ErrBatchExists):
		errorJSON(c, http.StatusConflict, err)
	case errors.As(err, &stageErr) && stageErr.Stage == string(pipeline.StageIngesting):
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.As(err, &stageErr):
		c.JSON(http.StatusInternalServerError, resp)
	default:
		errorJSON(c, http.StatusInternalServerError, err)
	}
}

func (h *Handlers) enqueueUpload(c *gin.Context, req models.UploadRequest) {
	if h.enqueue == nil {
		errorJSON(c, http.StatusBadRequest, errors.New("asynchronous uploads are not enabled"))
		return
	}
	if req.BatchID == "" {
		req.BatchID = pipeline.NewBatchID()
	}
	if err := h.enqueue(req.BatchID, req); err != nil {
		slog.Error("[API] Failed to queue upload",
			slog.String("batch_id", req.BatchID),
			slog.String("error", err.Error()))
		errorJSON(c, http.StatusServiceUnavailable, errors.New("upload could not be queued"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"batch_id": req.BatchID, "status": "queued"})
}

func (h *Handlers) AnalyzeBatch(c *gin.Context) {
	run, err := h.analyzer.AnalyzeExisting(c.Request.Context(), c.Param("batchId"))
	var stageErr *errs.StageError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, run)
	case errors.Is(err, errs.ErrBatchBusy):
		errorJSON(c, http.StatusConflict, err)
	case errors.Is(err, errs.ErrBatchNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case errors.As(err, &stageErr):
		c.JSON(http.StatusInternalServerError, run)
	default:
		errorJSON(c, http.StatusInternalServerError, err)
	}
}

// AspectSummary returns the canonical shape over the trailing window,
// optionally re-sorted and filtered.
func (h *Handlers) AspectSummary(c *gin.Context) {
	days, err := intQuery(c, "days", 0, 1)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	view, err := parseView(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.reports.GetAspectSummary(c.Request.Context(), days)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	result.Aspects = reporting.ApplyView(result.Aspects, view)
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) AspectHistory(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0, 1)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	records, err := h.reports.GetAspectHistory(c.Request.Context(), c.Query("aspect"), limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"aspect": c.Query("aspect"), "count": len(records), "history": records})
}

func (h *Handlers) Statistics(c *gin.Context) {
	stats, err := h.reports.Statistics(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handlers) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if down := h.health.Unhealthy(); len(down) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": h.health.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": h.health.Snapshot()})
}

func parseView(c *gin.Context) (reporting.View, error) {
	var v reporting.View

	key, ok := reporting.ParseSortKey(c.Query("sort"))
	if !ok {
		return v, errors.New("sort must be one of mentions, negative, positive, aspect")
	}
	v.Sort = key

	if raw := c.Query("priority"); raw != "" {
		p, err := models.ParsePriority(raw)
		if err != nil {
			return v, err
		}
		v.Priority = p
	}

	minMentions, err := intQuery(c, "min_mentions", 0, 0)
	if err != nil {
		return v, err
	}
	v.MinMentions = minMentions
	return v, nil
}

// intQuery reads an optional integer parameter no smaller than floor.
func intQuery(c *gin.Context, name string, def, floor int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < floor {
		return 0, errors.New(name + " must be an integer >= " + strconv.Itoa(floor))
	}
	return v, nil
}
