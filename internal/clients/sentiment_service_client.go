package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

type SentimentServiceRequest struct {
	Text string `json:"text"`
}

type SentimentServiceResponse struct {
	Label string   `json:"label"`
	Score *float64 `json:"score,omitempty"`
}

type SentimentServiceOptions struct {
	Endpoint     string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// SentimentServiceClient talks to a hosted sentiment model over HTTP.
type SentimentServiceClient struct {
	Client         *http.Client
	endpoint       string
	initialBackoff time.Duration
	maxRetries     int
}

func NewSentimentServiceClient(ctx context.Context, opts SentimentServiceOptions) *SentimentServiceClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if opts.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
	}

	slog.Info("[SentimentServiceClient] Initializing Client",
		slog.String("endpoint", opts.Endpoint),
		slog.Bool("oauth", opts.TokenURL != ""),
		slog.Duration("timeout", timeout))

	return &SentimentServiceClient{
		Client:         httpClient,
		endpoint:       opts.Endpoint,
		initialBackoff: INITIAL_BACKOFF,
		maxRetries:     MAX_RETRIES,
	}
}

// WithBackoff overrides the retry schedule.
func (s *SentimentServiceClient) WithBackoff(initial time.Duration, retries int) *SentimentServiceClient {
	s.initialBackoff = initial
	s.maxRetries = retries
	return s
}

func (s *SentimentServiceClient) Score(ctx context.Context, text string) (SentimentServiceResponse, error) {
	var result SentimentServiceResponse
	start := time.Now()

	if err := s.postJSON(ctx, s.endpoint, SentimentServiceRequest{Text: text}, &result); err != nil {
		slog.Error("[SentimentServiceClient] Sentiment request failed",
			slog.Duration("elapsed", time.Since(start)))
		return result, err
	}

	slog.Debug("[SentimentServiceClient] Sentiment request successful",
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (s *SentimentServiceClient) DoWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := s.initialBackoff

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		req, buildErr := build()
		if buildErr != nil {
			return nil, buildErr
		}

		resp, err = s.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if resp != nil {
			resp.Body.Close()
		}

		slog.Warn("[SentimentServiceClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MAX_BACKOFF)
	}

	if err == nil {
		err = fmt.Errorf("status code %d", resp.StatusCode)
	}
	return nil, err
}

func (s *SentimentServiceClient) postJSON(ctx context.Context, endpoint string, input any, output any) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("[SentimentServiceClient] failed to marshal input: %w", err)
	}

	resp, err := s.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("[SentimentServiceClient] failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("[SentimentServiceClient] request failed after retries: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("[SentimentServiceClient] failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("[SentimentServiceClient] rejected request: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[SentimentServiceClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			getPreview(respBody))
		return fmt.Errorf("[SentimentServiceClient] failed to unmarshal response: %w", err)
	}

	return nil
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
