package sentiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spacesedan/aspectflow/config"
	"github.com/spacesedan/aspectflow/internal/clients"
)

const (
	BACKEND_VADER  = "vader"
	BACKEND_HUGOT  = "hugot"
	BACKEND_REMOTE = "remote"
)

// NewFromConfig builds the configured backend. The returned close func is
// never nil.
func NewFromConfig(ctx context.Context, cfg config.SentimentConfig) (Classifier, func() error, error) {
	noop := func() error { return nil }

	slog.Info("[Sentiment] Selecting classifier backend", slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case "", BACKEND_VADER:
		return NewVaderClassifier(), noop, nil
	case BACKEND_HUGOT:
		h, err := NewHugotClassifier(cfg.ModelPath)
		if err != nil {
			return nil, noop, err
		}
		return h, h.Close, nil
	case BACKEND_REMOTE:
		if cfg.Endpoint == "" {
			return nil, noop, fmt.Errorf("[Sentiment] remote backend requires SENTIMENT_SERVICE_ENDPOINT")
		}
		client := clients.NewSentimentServiceClient(ctx, clients.SentimentServiceOptions{
			Endpoint:     cfg.Endpoint,
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		})
		return NewRemoteClassifier(client), noop, nil
	default:
		return nil, noop, fmt.Errorf("[Sentiment] unknown backend %q", cfg.Backend)
	}
}
