package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	mu      sync.Mutex
	indexed map[string]models.FeedbackItem
	search  map[string]any
	fail    bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if f.fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"unavailable","status":503}`)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/_search"):
		json.NewDecoder(r.Body).Decode(&f.search)
		var hits []map[string]any
		for _, item := range f.indexed {
			hits = append(hits, map[string]any{"_id": item.ID, "_source": item})
		}
		json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})
	case strings.Contains(r.URL.Path, "/_doc/"):
		var item models.FeedbackItem
		json.NewDecoder(r.Body).Decode(&item)
		f.indexed[item.ID] = item
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"result":"created"}`)
	default:
		io.WriteString(w, `{"status":"green"}`)
	}
}

func newTestOpensearch(t *testing.T, f *fakeCluster) Opensearch {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	o, err := NewOpensearch(opensearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return o
}

func TestOpensearchIndexAndSearch(t *testing.T) {
	f := &fakeCluster{indexed: map[string]models.FeedbackItem{}}
	o := newTestOpensearch(t, f)

	items := []models.FeedbackItem{{ID: "b1_00000", Text: "price is too high", BatchID: "b1"}}
	require.NoError(t, o.IndexFeedback(context.Background(), items))
	assert.Contains(t, f.indexed, "b1_00000")

	got, err := o.SimilaritySearch(context.Background(), "price", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "price is too high", got[0].Text)

	assert.EqualValues(t, 3, f.search["size"])
	match := f.search["query"].(map[string]any)["match"].(map[string]any)["text"].(map[string]any)
	assert.Equal(t, "price", match["query"])

	assert.True(t, o.IsHealthy(context.Background()))
}

func TestOpensearchErrors(t *testing.T) {
	f := &fakeCluster{indexed: map[string]models.FeedbackItem{}, fail: true}
	o := newTestOpensearch(t, f)

	_, err := o.SimilaritySearch(context.Background(), "price", 3)
	assert.Error(t, err)
	assert.Error(t, o.IndexFeedback(context.Background(), []models.FeedbackItem{{ID: "x"}}))
	assert.False(t, o.IsHealthy(context.Background()))
}
