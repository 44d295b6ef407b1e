package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// newSession opens the ONNX Runtime backed session; swapped in tests.
var newSession = func() (*hugot.Session, error) {
	return hugot.NewORTSession()
}

type textClassificationPipeline interface {
	RunPipeline(inputs []string) (*pipelines.TextClassificationOutput, error)
}

// HugotClassifier runs a local transformer text-classification model. Star
// rating models (1-5 stars) and plain positive/neutral/negative heads both work.
type HugotClassifier struct {
	pipeline textClassificationPipeline
	session  *hugot.Session
	mu       sync.Mutex
}

func NewHugotClassifier(modelPath string) (*HugotClassifier, error) {
	slog.Info("[HugotClassifier] Initializing session", slog.String("model_path", modelPath))

	session, err := newSession()
	if err != nil {
		return nil, fmt.Errorf("[HugotClassifier] failed to create session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "aspectSentimentPipeline",
	}
	p, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("[HugotClassifier] failed to create pipeline: %w", err)
	}

	slog.Info("[HugotClassifier] Pipeline ready")
	return &HugotClassifier{pipeline: p, session: session}, nil
}

func (h *HugotClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	h.mu.Lock()
	out, err := h.pipeline.RunPipeline([]string{text})
	h.mu.Unlock()
	if err != nil {
		return Classification{}, fmt.Errorf("[HugotClassifier] pipeline failed: %w", err)
	}

	if out == nil || len(out.ClassificationOutputs) == 0 || len(out.ClassificationOutputs[0]) == 0 {
		return Classification{}, fmt.Errorf("[HugotClassifier] empty pipeline output")
	}

	best := out.ClassificationOutputs[0][0]
	for _, c := range out.ClassificationOutputs[0][1:] {
		if c.Score > best.Score {
			best = c
		}
	}

	label, err := ResolveLabel(best.Label)
	if err != nil {
		return Classification{}, err
	}
	score := float64(best.Score)
	return Classification{Label: label, Score: &score}, nil
}

func (h *HugotClassifier) Close() error {
	if h.session == nil {
		return nil
	}
	return h.session.Destroy()
}
