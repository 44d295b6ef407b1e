package pipeline

import (
	"context"
	"time"

	"github.com/spacesedan/aspectflow/internal/models"
)

type Stage string

const (
	StageIngesting    Stage = "ingesting"
	StageAnalyzing    Stage = "analyzing"
	StageRetrieving   Stage = "retrieving"
	StageSynthesizing Stage = "synthesizing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

var stageOrder = []Stage{StageIngesting, StageAnalyzing, StageRetrieving, StageSynthesizing, StageCompleted}

type Transition struct {
	RunID   string
	BatchID string
	From    Stage
	To      Stage
	// FailedStage is set when To is StageFailed.
	FailedStage Stage
	At          time.Time
}

type Observer func(Transition)

// Collaborators.

// ItemStore never overwrites a stored batch; Store on an existing id
// returns errs.ErrBatchExists where the backend can detect it.
type ItemStore interface {
	Store(ctx context.Context, batchID string, items []models.FeedbackItem) error
	Load(ctx context.Context, batchID string) ([]models.FeedbackItem, error)
	Exists(ctx context.Context, batchID string) (bool, error)
}

type Indexer interface {
	IndexFeedback(ctx context.Context, items []models.FeedbackItem) error
}

type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.FeedbackItem, error)
}

type EmotionScorer interface {
	Analyze(ctx context.Context, text string) models.EmotionScores
}

type TopicExtractor interface {
	Extract(ctx context.Context, texts []string) (models.TopicResult, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, result models.AnalysisResult, insights []string) (string, error)
}

// BatchLocker grants at most one active analysis per batch id. Acquire
// returns errs.ErrBatchBusy when the batch is already held.
type BatchLocker interface {
	Acquire(ctx context.Context, batchID string) (release func(), err error)
}

type Recorder interface {
	SaveRun(ctx context.Context, run models.AnalysisRun) error
}

// Stage contracts.

type IngestInput struct {
	BatchID string
	Texts   []string
}

type IngestOutput struct {
	Batch    models.Batch
	Rejected []models.Rejection
}

type Ingestor interface {
	Ingest(ctx context.Context, in IngestInput) (IngestOutput, error)
	Reload(ctx context.Context, batchID string) (IngestOutput, error)
	Exists(ctx context.Context, batchID string) (bool, error)
}

type SkippedItem struct {
	ItemID string
	Reason string
}

type AnalysisOutput struct {
	Result   models.AnalysisResult
	Examples []models.AspectExamples
	Skipped  []SkippedItem
	// Emotions and Topics are nil when disabled or not run.
	Emotions *models.EmotionSummary
	Topics   *models.TopicResult
}

func (a AnalysisOutput) Partial() bool {
	return len(a.Skipped) > 0
}

type Analyzer interface {
	Analyze(ctx context.Context, batch models.Batch) (AnalysisOutput, error)
}

type RetrievalOutput struct {
	Context  []models.AspectContext
	Degraded bool
	// Skipped means no retriever is configured; it is not a degradation.
	Skipped bool
}

// RetrievalStage never fails the pipeline; problems surface as Degraded.
type RetrievalStage interface {
	Retrieve(ctx context.Context, batch models.Batch, analysis AnalysisOutput) RetrievalOutput
}

type Synthesizer interface {
	Synthesize(ctx context.Context, batch models.Batch, analysis AnalysisOutput, retrieval RetrievalOutput) (models.Report, error)
}
