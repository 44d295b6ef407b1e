package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/spacesedan/aspectflow/internal/models"
)

const FEEDBACK_INDEX = "feedback-items"

var (
	opensearchInstance Opensearch
	openseachOnce      sync.Once
)

type Opensearch struct {
	Client *opensearch.Client
	Index  string
}

func GetOpensearchClient(ctx context.Context) Opensearch {
	openseachOnce.Do(func() {
		appEnv := os.Getenv("APP_ENV")

		var cfg opensearch.Config

		if appEnv == "prod" {
			awsCfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				log.Fatalf("failed to laod AWS config: %v", err)
			}

			cfg = opensearch.Config{
				Addresses: []string{os.Getenv("AWS_OPENSEARCH_ENDPOINT")},
				Transport: NewSigV4Transport(awsCfg.Credentials, v4.NewSigner(), awsCfg.Region, "es"),
			}

		} else {

			if os.Getenv("OPENSEARCH_ENDPOINT") == "" || os.Getenv("OPENSEARCH_PASSWORD") == "" {
				log.Fatal("Missing credentials for opensearch")
			}
			cfg = opensearch.Config{
				Addresses: []string{os.Getenv("OPENSEARCH_ENDPOINT")},
				Username:  "admin",
				Password:  os.Getenv("OPENSEARCH_PASSWORD"),
			}
		}

		client, err := NewOpensearch(cfg)
		if err != nil {
			log.Fatalf("failed to initialize OpenSearch Client: %v", err.Error())
		}
		opensearchInstance = client
	})
	return opensearchInstance
}

func NewOpensearch(cfg opensearch.Config) (Opensearch, error) {
	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return Opensearch{}, err
	}
	return Opensearch{Client: client, Index: FEEDBACK_INDEX}, nil
}

type sigV4Transport struct {
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	region      string
	service     string
	next        http.RoundTripper
}

func NewSigV4Transport(creds aws.CredentialsProvider, signer *v4.Signer, region string, service string) http.RoundTripper {
	return &sigV4Transport{
		credentials: creds,
		signer:      signer,
		region:      region,
		service:     service,
		next:        http.DefaultTransport,
	}
}

func (t *sigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	creds, err := t.credentials.Retrieve(req.Context())
	if err != nil {
		return nil, err
	}

	signedReq := req.Clone(req.Context())
	signedReq.Header.Del("Authorization")

	err = t.signer.SignHTTP(
		req.Context(),
		creds,
		signedReq,
		v4.GetPayloadHash(req.Context()),
		t.service,
		t.region,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	return t.next.RoundTrip(signedReq)
}

func (o Opensearch) IsHealthy(ctx context.Context) bool {
	res, err := o.Client.Do(ctx, opensearchapi.ClusterHealthReq{}, nil)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	if res.IsError() {
		return false
	}

	return res.StatusCode == http.StatusOK
}

// IndexFeedback makes items available to later similarity searches.
// Item ids are document ids, so re-indexing a batch overwrites it.
func (o Opensearch) IndexFeedback(ctx context.Context, items []models.FeedbackItem) error {
	slog.Info("[OpenSearchClient] Indexing feedback",
		slog.Int("count", len(items)))

	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("[OpenSearchClient] failed to marshal item %s: %w", item.ID, err)
		}

		req := opensearchapi.IndexReq{
			Index:      o.Index,
			DocumentID: item.ID,
			Body:       bytes.NewReader(payload),
		}

		res, err := o.Client.Do(ctx, req, nil)
		if err != nil {
			slog.Error("[OpenSearchClient] Failed to index feedback",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()))
			return err
		}
		res.Body.Close()

		if res.IsError() {
			slog.Error("[OpenSearchClient] OpenSearch indexing error",
				slog.String("status", res.Status()))
			return fmt.Errorf("opensearch error: %s", res.Status())
		}
	}

	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.FeedbackItem `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SimilaritySearch returns the k stored items whose text best matches query.
func (o Opensearch) SimilaritySearch(ctx context.Context, query string, k int) ([]models.FeedbackItem, error) {
	body, err := json.Marshal(map[string]any{
		"size": k,
		"query": map[string]any{
			"match": map[string]any{
				"text": map[string]any{"query": query},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	req := opensearchapi.SearchReq{
		Indices: []string{o.Index},
		Body:    bytes.NewReader(body),
	}

	res, err := o.Client.Do(ctx, req, nil)
	if err != nil {
		return nil, fmt.Errorf("[OpenSearchClient] search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch error: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("[OpenSearchClient] failed to decode search response: %w", err)
	}

	items := make([]models.FeedbackItem, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		items = append(items, h.Source)
	}
	return items, nil
}
