package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
)

type Deps struct {
	Ingestor    Ingestor
	Analyzer    Analyzer
	Retrieval   RetrievalStage
	Synthesizer Synthesizer
	Locker      BatchLocker

	// Optional.
	Recorder Recorder
	Observer Observer
}

type Orchestrator struct {
	deps Deps
	now  func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Locker == nil {
		d.Locker = NewMemoryLocker()
	}
	if d.Retrieval == nil {
		d.Retrieval = NewRetrieval(nil, 0)
	}
	if d.Synthesizer == nil {
		d.Synthesizer = NewSynthesizer(nil)
	}
	return &Orchestrator{deps: d, now: time.Now}
}

// Process ingests an upload and analyzes it. The returned error is a
// *errs.StageError when the run failed; the response still carries the run.
// A caller supplied batch id that is already stored is rejected with
// errs.ErrBatchExists before any run starts; use AnalyzeExisting instead.
func (o *Orchestrator) Process(ctx context.Context, req models.UploadRequest) (models.UploadResponse, error) {
	batchID := req.BatchID
	if batchID == "" {
		batchID = NewBatchID()
	}
	resp := models.UploadResponse{BatchID: batchID, Rejected: []models.Rejection{}}

	release, err := o.deps.Locker.Acquire(ctx, batchID)
	if err != nil {
		return resp, err
	}
	defer release()

	if req.BatchID != "" {
		exists, err := o.deps.Ingestor.Exists(ctx, batchID)
		if err != nil {
			return resp, err
		}
		if exists {
			return resp, fmt.Errorf("[Orchestrator] batch %s: %w", batchID, errs.ErrBatchExists)
		}
	}

	r := o.newRun(batchID)
	in, err := o.deps.Ingestor.Ingest(ctx, IngestInput{BatchID: batchID, Texts: req.Feedback})
	resp.Accepted = len(in.Batch.Items)
	resp.Rejected = in.Rejected
	if err != nil {
		resp.Run = o.fail(ctx, r, StageIngesting, err)
		return resp, r.err
	}

	resp.Run = o.analyze(ctx, r, in.Batch)
	return resp, r.err
}

// AnalyzeExisting re-runs analysis over a stored batch and appends a new run.
func (o *Orchestrator) AnalyzeExisting(ctx context.Context, batchID string) (models.AnalysisRun, error) {
	release, err := o.deps.Locker.Acquire(ctx, batchID)
	if err != nil {
		return models.AnalysisRun{}, err
	}
	defer release()

	r := o.newRun(batchID)
	in, err := o.deps.Ingestor.Reload(ctx, batchID)
	if err != nil {
		return o.fail(ctx, r, StageIngesting, err), r.err
	}
	return o.analyze(ctx, r, in.Batch), r.err
}

type run struct {
	model models.AnalysisRun
	stage Stage
	err   error
}

func (o *Orchestrator) newRun(batchID string) *run {
	r := &run{
		model: models.AnalysisRun{
			RunID:     uuid.NewString(),
			BatchID:   batchID,
			CreatedAt: o.now().UTC(),
		},
	}
	o.transition(r, StageIngesting, "")
	return r
}

func (o *Orchestrator) analyze(ctx context.Context, r *run, batch models.Batch) models.AnalysisRun {
	r.model.ItemCount = len(batch.Items)

	o.transition(r, StageAnalyzing, "")
	analysis, err := o.deps.Analyzer.Analyze(ctx, batch)
	if err != nil {
		return o.fail(ctx, r, StageAnalyzing, err)
	}
	result := analysis.Result
	r.model.Result = &result
	r.model.Examples = analysis.Examples
	r.model.Partial = analysis.Partial()
	r.model.SkippedCount = len(analysis.Skipped)
	r.model.Emotions = analysis.Emotions
	r.model.Topics = analysis.Topics

	o.transition(r, StageRetrieving, "")
	retrieval := o.deps.Retrieval.Retrieve(ctx, batch, analysis)
	r.model.RetrievalDegraded = retrieval.Degraded

	o.transition(r, StageSynthesizing, "")
	report, err := o.deps.Synthesizer.Synthesize(ctx, batch, analysis, retrieval)
	if err != nil {
		return o.fail(ctx, r, StageSynthesizing, err)
	}
	r.model.Report = &report

	r.model.Status = models.RunCompleted
	if r.model.Partial || r.model.RetrievalDegraded {
		r.model.Status = models.RunDegraded
	}
	o.transition(r, StageCompleted, "")
	o.record(ctx, r.model)
	return r.model
}

func (o *Orchestrator) fail(ctx context.Context, r *run, at Stage, err error) models.AnalysisRun {
	r.err = &errs.StageError{Stage: string(at), Err: err}
	r.model.Status = models.RunFailed
	r.model.FailedStage = string(at)
	r.model.Error = err.Error()

	slog.Error("[Orchestrator] Run failed",
		slog.String("run_id", r.model.RunID),
		slog.String("batch_id", r.model.BatchID),
		slog.String("stage", string(at)),
		slog.String("error", err.Error()))

	o.transition(r, StageFailed, at)
	o.record(context.WithoutCancel(ctx), r.model)
	return r.model
}

// transition enforces the stage order: each stage follows its predecessor
// or moves to failed.
func (o *Orchestrator) transition(r *run, to Stage, failedStage Stage) {
	from := r.stage
	if to != StageFailed {
		want := 0
		if from != "" {
			want = slices.Index(stageOrder, from) + 1
		}
		if slices.Index(stageOrder, to) != want {
			panic(fmt.Sprintf("[Orchestrator] illegal transition %q -> %q", from, to))
		}
	}
	r.stage = to

	t := Transition{
		RunID:       r.model.RunID,
		BatchID:     r.model.BatchID,
		From:        from,
		To:          to,
		FailedStage: failedStage,
		At:          o.now().UTC(),
	}
	slog.Debug("[Orchestrator] Stage transition",
		slog.String("run_id", t.RunID),
		slog.String("batch_id", t.BatchID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	if o.deps.Observer != nil {
		o.deps.Observer(t)
	}
}

func (o *Orchestrator) record(ctx context.Context, run models.AnalysisRun) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.SaveRun(ctx, run); err != nil {
		slog.Warn("[Orchestrator] Failed to record run",
			slog.String("run_id", run.RunID),
			slog.String("error", err.Error()))
	}
}
