package reporting

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/aspectflow/internal/models"
)

// HistoryStore persists analysis runs as one marker plus per-aspect rows.
type HistoryStore interface {
	SaveRun(ctx context.Context, run models.AnalysisRun) error
	// RunsSince returns the markers of runs created at or after since.
	RunsSince(ctx context.Context, since time.Time) ([]models.RunRecord, error)
	AspectRecordsSince(ctx context.Context, since time.Time) ([]models.AspectRecord, error)
	// AspectHistory returns rows newest first. An empty aspect matches all.
	AspectHistory(ctx context.Context, aspect string, limit int) ([]models.AspectRecord, error)
}

// Records flattens a run into rows. Runs without a result produce none.
func Records(run models.AnalysisRun) []models.AspectRecord {
	if run.Result == nil {
		return nil
	}
	out := make([]models.AspectRecord, 0, len(run.Result.Aspects))
	for i, a := range run.Result.Aspects {
		out = append(out, models.AspectRecord{
			RunID:         run.RunID,
			BatchID:       run.BatchID,
			CreatedAt:     run.CreatedAt,
			AspectSummary: a,
			Order:         i,
		})
	}
	return out
}

// Marker returns the run marker; only runs with a result have one.
func Marker(run models.AnalysisRun) (models.RunRecord, bool) {
	if run.Result == nil {
		return models.RunRecord{}, false
	}
	return models.RunRecord{
		RunID:       run.RunID,
		BatchID:     run.BatchID,
		CreatedAt:   run.CreatedAt,
		Status:      run.Status,
		ItemCount:   run.ItemCount,
		AspectCount: len(run.Result.Aspects),
	}, true
}

type MemoryHistory struct {
	mu      sync.RWMutex
	runs    []models.RunRecord
	records []models.AspectRecord
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (m *MemoryHistory) SaveRun(_ context.Context, run models.AnalysisRun) error {
	marker, ok := Marker(run)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.RunID == run.RunID {
			return nil
		}
	}
	m.runs = append(m.runs, marker)
	m.records = append(m.records, Records(run)...)
	return nil
}

func (m *MemoryHistory) RunsSince(_ context.Context, since time.Time) ([]models.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RunRecord
	for _, r := range m.runs {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryHistory) AspectRecordsSince(_ context.Context, since time.Time) ([]models.AspectRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AspectRecord
	for _, r := range m.records {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryHistory) AspectHistory(_ context.Context, aspect string, limit int) ([]models.AspectRecord, error) {
	m.mu.RLock()
	var out []models.AspectRecord
	for _, r := range m.records {
		if aspect == "" || strings.EqualFold(r.Aspect, aspect) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
