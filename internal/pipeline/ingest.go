package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
)

const (
	MIN_WORDS         = 3
	MIN_CLEANED_CHARS = 10
)

var (
	urlRegex     = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRegex   = regexp.MustCompile(`\S+@\S+`)
	specialRegex = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?;:\-'"()]`)
)

// CleanText strips urls, emails and unusual symbols and collapses whitespace.
func CleanText(text string) string {
	text = urlRegex.ReplaceAllString(text, "")
	text = emailRegex.ReplaceAllString(text, "")
	text = specialRegex.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// ValidateEntry returns the cleaned text or a ValidationError.
func ValidateEntry(index int, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &errs.ValidationError{Index: index, Reason: "empty entry"}
	}
	if n := len(strings.Fields(raw)); n < MIN_WORDS {
		return "", &errs.ValidationError{Index: index, Reason: fmt.Sprintf("too short (%d words)", n)}
	}
	cleaned := CleanText(raw)
	if len([]rune(cleaned)) < MIN_CLEANED_CHARS {
		return "", &errs.ValidationError{Index: index, Reason: "invalid content after cleaning"}
	}
	return cleaned, nil
}

// NewBatchID returns ids of the form feedback_<12 hex>.
func NewBatchID() string {
	return "feedback_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ItemID is zero padded so lexical order matches upload order.
func ItemID(batchID string, index int) string {
	return fmt.Sprintf("%s_%05d", batchID, index)
}

type DefaultIngestor struct {
	store   ItemStore
	indexer Indexer
	now     func() time.Time
}

func NewIngestor(store ItemStore, indexer Indexer) *DefaultIngestor {
	return &DefaultIngestor{store: store, indexer: indexer, now: time.Now}
}

func (in *DefaultIngestor) Ingest(ctx context.Context, input IngestInput) (IngestOutput, error) {
	out := IngestOutput{
		Batch:    models.Batch{ID: input.BatchID},
		Rejected: []models.Rejection{},
	}

	var invalid []error
	ts := in.now().UTC()
	for i, raw := range input.Texts {
		cleaned, err := ValidateEntry(i, raw)
		if err != nil {
			var vErr *errs.ValidationError
			if errors.As(err, &vErr) {
				out.Rejected = append(out.Rejected, models.Rejection{Index: vErr.Index, Reason: vErr.Reason})
			}
			invalid = append(invalid, err)
			continue
		}
		out.Batch.Items = append(out.Batch.Items, models.FeedbackItem{
			ID:        ItemID(input.BatchID, i),
			Text:      cleaned,
			Timestamp: ts,
			BatchID:   input.BatchID,
		})
	}

	slog.Info("[Ingestor] Validation complete",
		slog.String("batch_id", input.BatchID),
		slog.Int("valid", len(out.Batch.Items)),
		slog.Int("invalid", len(invalid)))

	if len(out.Batch.Items) == 0 {
		if len(invalid) == 0 {
			invalid = append(invalid, &errs.ValidationError{Index: -1, Reason: "no feedback entries"})
		}
		return out, fmt.Errorf("[Ingestor] no valid feedback in batch %s: %w", input.BatchID, errors.Join(invalid...))
	}

	if err := in.store.Store(ctx, input.BatchID, out.Batch.Items); err != nil {
		return out, fmt.Errorf("[Ingestor] failed to store batch %s: %w", input.BatchID, err)
	}

	if in.indexer != nil {
		if err := in.indexer.IndexFeedback(ctx, out.Batch.Items); err != nil {
			slog.Warn("[Ingestor] Failed to index feedback, retrieval may be degraded",
				slog.String("batch_id", input.BatchID),
				slog.String("error", err.Error()))
		}
	}

	return out, nil
}

func (in *DefaultIngestor) Exists(ctx context.Context, batchID string) (bool, error) {
	ok, err := in.store.Exists(ctx, batchID)
	if err != nil {
		return false, fmt.Errorf("[Ingestor] failed to look up batch %s: %w", batchID, err)
	}
	return ok, nil
}

func (in *DefaultIngestor) Reload(ctx context.Context, batchID string) (IngestOutput, error) {
	items, err := in.store.Load(ctx, batchID)
	if err != nil {
		return IngestOutput{}, fmt.Errorf("[Ingestor] failed to load batch %s: %w", batchID, err)
	}
	if len(items) == 0 {
		return IngestOutput{}, fmt.Errorf("[Ingestor] batch %s: %w", batchID, errs.ErrBatchNotFound)
	}
	return IngestOutput{
		Batch:    models.Batch{ID: batchID, Items: items},
		Rejected: []models.Rejection{},
	}, nil
}
