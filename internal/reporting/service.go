package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spacesedan/aspectflow/internal/aggregation"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/ranking"
)

const (
	DEFAULT_SUMMARY_DAYS  = 30
	DEFAULT_HISTORY_LIMIT = 20
)

// SummaryCache holds computed trailing-window summaries keyed by days under
// a version that Invalidate advances. GetSummary reads the current version;
// SetSummary writes under the version the caller read before loading, so a
// summary computed across an invalidation is never served.
type SummaryCache interface {
	Version(ctx context.Context) (int64, error)
	GetSummary(ctx context.Context, days int) (models.AnalysisResult, bool, error)
	SetSummary(ctx context.Context, version int64, days int, result models.AnalysisResult) error
	Invalidate(ctx context.Context) error
}

type Options struct {
	Order        aggregation.Order
	Recommend    ranking.Config
	DefaultDays  int
	HistoryLimit int
	Cache        SummaryCache
}

type Service struct {
	store      HistoryStore
	normalizer *aggregation.Normalizer
	opts       Options
	now        func() time.Time
}

func NewService(store HistoryStore, ranker *ranking.Ranker, opts Options) *Service {
	if opts.Recommend.TopN <= 0 {
		opts.Recommend = ranking.DefaultConfig()
	}
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = DEFAULT_SUMMARY_DAYS
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DEFAULT_HISTORY_LIMIT
	}
	return &Service{
		store:      store,
		normalizer: aggregation.NewNormalizer(ranker, opts.Order),
		opts:       opts,
		now:        time.Now,
	}
}

// SaveRun records a run and drops cached summaries.
func (s *Service) SaveRun(ctx context.Context, run models.AnalysisRun) error {
	if err := s.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("[Reporting] failed to save run %s: %w", run.RunID, err)
	}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Invalidate(ctx); err != nil {
			slog.Warn("[Reporting] Failed to invalidate summary cache", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Service) GetAspectSummary(ctx context.Context, days int) (models.AnalysisResult, error) {
	if days <= 0 {
		days = s.opts.DefaultDays
	}
	if s.opts.Cache != nil {
		cached, ok, err := s.opts.Cache.GetSummary(ctx, days)
		if err != nil {
			slog.Warn("[Reporting] Summary cache read failed", slog.Int("days", days), slog.String("error", err.Error()))
		} else if ok {
			return cached, nil
		}
	}
	return s.RefreshSummary(ctx, days)
}

// RefreshSummary recomputes the trailing window and stores it in the cache.
func (s *Service) RefreshSummary(ctx context.Context, days int) (models.AnalysisResult, error) {
	if days <= 0 {
		days = s.opts.DefaultDays
	}

	version, cacheable := s.cacheVersion(ctx)

	since := s.now().UTC().AddDate(0, 0, -days)
	runs, err := s.store.RunsSince(ctx, since)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("[Reporting] failed to load runs since %s: %w", since.Format(time.RFC3339), err)
	}
	records, err := s.store.AspectRecordsSince(ctx, since)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("[Reporting] failed to load records since %s: %w", since.Format(time.RFC3339), err)
	}

	result, err := s.normalizer.Result(combine(latestPerBatch(runs, records)), s.opts.Recommend)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("[Reporting] failed to build summary: %w", err)
	}

	if cacheable {
		if err := s.opts.Cache.SetSummary(ctx, version, days, result); err != nil {
			slog.Warn("[Reporting] Summary cache write failed", slog.Int("days", days), slog.String("error", err.Error()))
		}
	}
	return result, nil
}

// cacheVersion reads the cache version before any store read.
func (s *Service) cacheVersion(ctx context.Context) (int64, bool) {
	if s.opts.Cache == nil {
		return 0, false
	}
	v, err := s.opts.Cache.Version(ctx)
	if err != nil {
		slog.Warn("[Reporting] Summary cache version read failed, skipping cache write", slog.String("error", err.Error()))
		return 0, false
	}
	return v, true
}

// Statistics counts every recorded batch and analysis. Feedback is counted
// once per batch from its latest run.
func (s *Service) Statistics(ctx context.Context) (models.Statistics, error) {
	runs, err := s.store.RunsSince(ctx, time.Time{})
	if err != nil {
		return models.Statistics{}, fmt.Errorf("[Reporting] failed to load runs: %w", err)
	}
	stats := models.Statistics{TotalAnalyses: len(runs)}
	for _, r := range latestRuns(runs) {
		stats.TotalBatches++
		stats.TotalFeedback += r.ItemCount
	}
	return stats, nil
}

func (s *Service) GetAspectHistory(ctx context.Context, aspect string, limit int) ([]models.AspectRecord, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	records, err := s.store.AspectHistory(ctx, strings.ToUpper(strings.TrimSpace(aspect)), limit)
	if err != nil {
		return nil, fmt.Errorf("[Reporting] failed to load history for %q: %w", aspect, err)
	}
	if records == nil {
		records = []models.AspectRecord{}
	}
	return records, nil
}

// latestRuns picks the newest run marker of each batch; equal timestamps
// fall back to the larger run id.
func latestRuns(runs []models.RunRecord) map[string]models.RunRecord {
	latest := map[string]models.RunRecord{}
	for _, r := range runs {
		cur, ok := latest[r.BatchID]
		if !ok || r.CreatedAt.After(cur.CreatedAt) || (r.CreatedAt.Equal(cur.CreatedAt) && r.RunID > cur.RunID) {
			latest[r.BatchID] = r
		}
	}
	return latest
}

// latestPerBatch keeps only the rows of each batch's newest run so
// re-analysis never double counts. A newer run without aspects hides the
// rows of older runs.
func latestPerBatch(runs []models.RunRecord, records []models.AspectRecord) []models.AspectRecord {
	latest := latestRuns(runs)

	var out []models.AspectRecord
	for _, r := range records {
		if cur, ok := latest[r.BatchID]; ok && cur.RunID == r.RunID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].RunID != out[j].RunID {
			return out[i].RunID < out[j].RunID
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// combine sums rows per aspect in first-seen order.
func combine(records []models.AspectRecord) aggregation.Sequence {
	index := map[string]int{}
	seq := aggregation.Sequence{}
	for _, r := range records {
		i, ok := index[r.Aspect]
		if !ok {
			i = len(seq)
			index[r.Aspect] = i
			seq = append(seq, models.AspectSummary{Aspect: r.Aspect})
		}
		seq[i].MentionCount += r.MentionCount
		seq[i].SentimentBreakdown.Positive += r.SentimentBreakdown.Positive
		seq[i].SentimentBreakdown.Neutral += r.SentimentBreakdown.Neutral
		seq[i].SentimentBreakdown.Negative += r.SentimentBreakdown.Negative
	}
	return seq
}
