package sentiment

import (
	"context"

	"github.com/spacesedan/aspectflow/internal/clients"
)

type Scorer interface {
	Score(ctx context.Context, text string) (clients.SentimentServiceResponse, error)
}

// RemoteClassifier delegates to a hosted sentiment service.
type RemoteClassifier struct {
	scorer Scorer
}

func NewRemoteClassifier(scorer Scorer) *RemoteClassifier {
	return &RemoteClassifier{scorer: scorer}
}

func (r *RemoteClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	resp, err := r.scorer.Score(ctx, text)
	if err != nil {
		return Classification{}, err
	}
	label, err := ResolveLabel(resp.Label)
	if err != nil {
		return Classification{}, err
	}
	return Classification{Label: label, Score: resp.Score}, nil
}
