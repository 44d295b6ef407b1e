package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/valkey-io/valkey-go"
)

var (
	valkeyInstance *ValkeyClient
	valkeyOnce     sync.Once
)

type ValkeyClient struct {
	Client valkey.Client
	mu     sync.Mutex
}

const (
	VALKEY_LOCK_PREFIX      = "aspectflow:lock:"
	VALKEY_SUMMARY_PREFIX   = "aspectflow:summary:"
	VALKEY_SUMMARY_VERSION  = "aspectflow:summary:version"
	VALKEY_DEFAULT_RETRIES  = 3
	VALKEY_SUMMARY_TTL_SECS = 3600
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func valkeyOptions() valkey.ClientOption {
	opts := valkey.ClientOption{
		InitAddress: []string{
			os.Getenv("VALKEY_INIT_ADDRESS"),
		},
		Password:         os.Getenv("VALKEY_PASSWORD"),
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if os.Getenv("VALKEY_TLS") == "true" {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}
	return opts
}

func connectValkey(opts valkey.ClientOption) (valkey.Client, error) {
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey")
	return client, nil
}

func InitValkey() *ValkeyClient {
	valkeyOnce.Do(func() {
		client, err := connectValkey(valkeyOptions())
		if err != nil {
			panic(err)
		}
		valkeyInstance = &ValkeyClient{Client: client}
	})
	return valkeyInstance
}

// NewValkeyClient wraps an existing connection, mostly for tests.
func NewValkeyClient(client valkey.Client) *ValkeyClient {
	return &ValkeyClient{Client: client}
}

func (vc *ValkeyClient) recreateClient() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ValkeyClient] Recreate failed and was recovered from panic",
				slog.Any("panic", r))
		}
	}()

	vc.mu.Lock()
	defer vc.mu.Unlock()
	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")

	client, err := connectValkey(valkeyOptions())
	if err != nil {
		slog.Error("[ValkeyClient] Failed to recreate client", slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
}

func CloseValkey() {
	if valkeyInstance != nil {
		valkeyInstance.Client.Close()
	}
}

func GetValkeyClient() *ValkeyClient {
	if valkeyInstance == nil {
		panic("[ValkeyClient] Error: Valkey client is not initilialized")
	}
	return valkeyInstance
}

// BatchLocker returns a lock that holds a batch for at most ttl.
func (vc *ValkeyClient) BatchLocker(ttl time.Duration) *ValkeyBatchLocker {
	return &ValkeyBatchLocker{vc: vc, ttl: ttl}
}

type ValkeyBatchLocker struct {
	vc  *ValkeyClient
	ttl time.Duration
}

func (l *ValkeyBatchLocker) Acquire(ctx context.Context, batchID string) (func(), error) {
	key := VALKEY_LOCK_PREFIX + batchID
	token := uuid.NewString()
	secs := int64(max(l.ttl.Seconds(), 1))

	res := l.vc.DoWithRetry(ctx, func(b valkey.Builder) valkey.Completed {
		return b.Set().Key(key).Value(token).Nx().ExSeconds(secs).Build()
	}, VALKEY_DEFAULT_RETRIES)
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, errs.ErrBatchBusy
		}
		return nil, fmt.Errorf("[ValkeyClient] failed to lock batch %s: %w", batchID, err)
	}

	slog.Debug("[ValkeyClient] Batch locked", slog.String("batch_id", batchID))

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer cancel()
			if err := releaseScript.Exec(ctx, l.vc.Client, []string{key}, []string{token}).Error(); err != nil {
				slog.Warn("[ValkeyClient] Failed to release batch lock",
					slog.String("batch_id", batchID),
					slog.String("error", err.Error()))
			}
		})
	}, nil
}

// SummaryCache stores trailing-window summaries under a version counter;
// bumping the counter invalidates every window at once.
func (vc *ValkeyClient) SummaryCache() *ValkeySummaryCache {
	return &ValkeySummaryCache{vc: vc}
}

type ValkeySummaryCache struct {
	vc *ValkeyClient
}

func (c *ValkeySummaryCache) Version(ctx context.Context) (int64, error) {
	res := c.vc.DoWithRetry(ctx, func(b valkey.Builder) valkey.Completed {
		return b.Get().Key(VALKEY_SUMMARY_VERSION).Build()
	}, VALKEY_DEFAULT_RETRIES)
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return res.AsInt64()
}

func summaryKey(version int64, days int) string {
	return VALKEY_SUMMARY_PREFIX + strconv.FormatInt(version, 10) + ":" + strconv.Itoa(days)
}

func (c *ValkeySummaryCache) GetSummary(ctx context.Context, days int) (models.AnalysisResult, bool, error) {
	v, err := c.Version(ctx)
	if err != nil {
		return models.AnalysisResult{}, false, fmt.Errorf("[ValkeyClient] failed to read summary version: %w", err)
	}

	res := c.vc.DoWithRetry(ctx, func(b valkey.Builder) valkey.Completed {
		return b.Get().Key(summaryKey(v, days)).Build()
	}, VALKEY_DEFAULT_RETRIES)
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return models.AnalysisResult{}, false, nil
		}
		return models.AnalysisResult{}, false, err
	}

	raw, err := res.ToString()
	if err != nil {
		return models.AnalysisResult{}, false, err
	}
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return models.AnalysisResult{}, false, fmt.Errorf("[ValkeyClient] corrupt cached summary: %w", err)
	}
	return result, true, nil
}

// SetSummary writes under version; once Invalidate has moved past it the
// entry is never read and expires with its TTL.
func (c *ValkeySummaryCache) SetSummary(ctx context.Context, version int64, days int, result models.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.vc.DoWithRetry(ctx, func(b valkey.Builder) valkey.Completed {
		return b.Set().Key(summaryKey(version, days)).Value(string(payload)).ExSeconds(VALKEY_SUMMARY_TTL_SECS).Build()
	}, VALKEY_DEFAULT_RETRIES).Error()
}

func (c *ValkeySummaryCache) Invalidate(ctx context.Context) error {
	return c.vc.DoWithRetry(ctx, func(b valkey.Builder) valkey.Completed {
		return b.Incr().Key(VALKEY_SUMMARY_VERSION).Build()
	}, VALKEY_DEFAULT_RETRIES).Error()
}

// DoWithRetry retries transport failures. A nil reply is an answer, not
// a failure, and is returned immediately. Commands are rebuilt per attempt
// because the client recycles them after Do.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, build func(b valkey.Builder) valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.Client.Do(ctx, build(vc.Client.B()))
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) || ctx.Err() != nil {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if isConnectionError(err) {
			vc.recreateClient()
		}

		time.Sleep(250 * time.Millisecond)
	}

	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}

func (vc *ValkeyClient) IsHealthy(ctx context.Context) bool {
	return vc.Client.Do(ctx, vc.Client.B().Ping().Build()).Error() == nil
}
