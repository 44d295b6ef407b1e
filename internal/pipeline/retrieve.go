package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
)

const (
	DEFAULT_RETRIEVAL_K = 3
	MAX_RETRIEVAL_QUERY = 3
)

type DefaultRetrieval struct {
	retriever Retriever
	k         int
}

// NewRetrieval accepts a nil retriever, in which case the stage is a no-op.
func NewRetrieval(r Retriever, k int) *DefaultRetrieval {
	if k <= 0 {
		k = DEFAULT_RETRIEVAL_K
	}
	return &DefaultRetrieval{retriever: r, k: k}
}

// Retrieve looks up feedback similar to the aspects that need attention.
// Failed queries mark the output degraded; successful ones are kept.
func (r *DefaultRetrieval) Retrieve(ctx context.Context, batch models.Batch, analysis AnalysisOutput) RetrievalOutput {
	if r.retriever == nil {
		return RetrievalOutput{Skipped: true}
	}

	out := RetrievalOutput{}
	for _, aspect := range retrievalAspects(analysis.Result) {
		query := strings.ToLower(aspect)
		similar, err := r.retriever.SimilaritySearch(ctx, query, r.k)
		if err != nil {
			rErr := &errs.RetrievalError{Query: query, Err: err}
			slog.Warn("[Retrieval] Similarity search failed",
				slog.String("batch_id", batch.ID),
				slog.String("error", rErr.Error()))
			out.Degraded = true
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out.Context = append(out.Context, models.AspectContext{
			Aspect:  aspect,
			Query:   query,
			Similar: similar,
		})
	}
	return out
}

// retrievalAspects prefers improvements, then HIGH priority aspects.
func retrievalAspects(result models.AnalysisResult) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(a string) {
		if _, ok := seen[a]; ok || len(out) >= MAX_RETRIEVAL_QUERY {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, a := range result.Recommendations.Improvements {
		add(a)
	}
	for _, a := range result.Aspects {
		if a.Priority == models.PriorityHigh {
			add(a.Aspect)
		}
	}
	return out
}
