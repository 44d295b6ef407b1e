package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentimentServiceClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, USER_AGENT, r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(SentimentServiceResponse{Label: "neutral"})
	}))
	defer srv.Close()

	client := NewSentimentServiceClient(context.Background(), SentimentServiceOptions{Endpoint: srv.URL}).
		WithBackoff(time.Millisecond, 5)

	resp, err := client.Score(context.Background(), "fine I guess")
	require.NoError(t, err)
	assert.Equal(t, "neutral", resp.Label)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSentimentServiceClientGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewSentimentServiceClient(context.Background(), SentimentServiceOptions{Endpoint: srv.URL}).
		WithBackoff(time.Millisecond, 2)

	_, err := client.Score(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSentimentServiceClientRejectsClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewSentimentServiceClient(context.Background(), SentimentServiceOptions{Endpoint: srv.URL}).
		WithBackoff(time.Millisecond, 5)

	_, err := client.Score(context.Background(), "anything")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSentimentServiceClientUsesClientCredentials(t *testing.T) {
	var sawToken atomic.Bool
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc123","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawToken.Store(r.Header.Get("Authorization") == "Bearer abc123")
		_ = json.NewEncoder(w).Encode(SentimentServiceResponse{Label: "positive"})
	}))
	defer apiSrv.Close()

	client := NewSentimentServiceClient(context.Background(), SentimentServiceOptions{
		Endpoint:     apiSrv.URL,
		TokenURL:     tokenSrv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	})

	_, err := client.Score(context.Background(), "nice")
	require.NoError(t, err)
	assert.True(t, sawToken.Load())
}
