package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spacesedan/aspectflow/internal/models"
)

const (
	openAIRequestTimeout = 60 * time.Second // Timeout for individual OpenAI API requests
	DEFAULT_OPENAI_MODEL = openai.ChatModelGPT4oMini

	MAX_OPENAI_TOPICS     = 10
	MIN_OPENAI_TOPIC_SIZE = 2
)

const summaryPrompt = `You summarize customer feedback analysis for a product team.
You receive aspect-level sentiment statistics as JSON followed by a list of insights.
Write a short executive summary of 3 to 5 sentences.
- Lead with the most urgent problem, if any.
- Mention the strongest positive aspect.
- Do not invent numbers that are not in the input.
- Plain text only, no Markdown.`

const topicPrompt = `You group customer feedback into discussion themes.
You receive a JSON array of feedback texts. Their positions are their ids.
- Return at most %d themes; each theme needs at least %d texts.
- A text belongs to at most one theme. Leave texts that fit no theme out.
- Give each theme up to 10 short lowercase keywords, most characteristic first.

### **STRICT OUTPUT FORMAT**
You MUST return only valid JSON, formatted exactly as follows:
{
  "topics": [
    {"keywords": ["XXX"], "documents": [0]}
  ]
}
No Markdown formatting and no extra text before or after the JSON output.`

const OPENAI_TOPIC_ATTEMPTS = 3

var (
	openAIClientInstance *OpenAIClient
	openAIOnce           sync.Once
)

type OpenAIClient struct {
	Client *openai.Client
	Model  openai.ChatModel
}

func GetOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		slog.Error("[OpenAIClient] Missing OPENAI_API_KEY in environment variables")
		panic("[OpenAIClient] Missing OPENAI_API_KEY in environment variables")
	}
	openAIOnce.Do(func() {
		model := openai.ChatModel(os.Getenv("OPENAI_MODEL"))
		if model == "" {
			model = DEFAULT_OPENAI_MODEL
		}
		openAIClientInstance = NewOpenAIClient(model,
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{Timeout: openAIRequestTimeout}),
		)
		slog.Info("[OpenAIClient] OpenAI client initialized with custom HTTP timeout",
			slog.Duration("timeout", openAIRequestTimeout),
			slog.String("model", string(model)))
	})
	return openAIClientInstance
}

func NewOpenAIClient(model openai.ChatModel, opts ...option.RequestOption) *OpenAIClient {
	return &OpenAIClient{Client: openai.NewClient(opts...), Model: model}
}

// Summarize writes an executive summary of an analysis result.
func (c *OpenAIClient) Summarize(ctx context.Context, result models.AnalysisResult, insights []string) (string, error) {
	stats, err := json.Marshal(result)
	if err != nil {
		return "", err
	}

	var user strings.Builder
	user.Write(stats)
	user.WriteString("\n\nInsights:\n")
	for _, in := range insights {
		user.WriteString("- ")
		user.WriteString(in)
		user.WriteString("\n")
	}

	chatCompletion, err := c.Client.Chat.Completions.New(ctx,
		openai.ChatCompletionNewParams{
			Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(summaryPrompt),
				openai.UserMessage(user.String()),
			}),
			Model:       openai.F(c.Model),
			Temperature: openai.Float(0.3),
		})
	if err != nil {
		return "", fmt.Errorf("[OpenAIClient] chat completion failed: %w", err)
	}

	if len(chatCompletion.Choices) == 0 || strings.TrimSpace(chatCompletion.Choices[0].Message.Content) == "" {
		return "", errors.New("[OpenAIClient] empty completion")
	}

	return cleanCompletion(chatCompletion.Choices[0].Message.Content), nil
}

type topicReply struct {
	Topics []struct {
		Keywords  []string `json:"keywords"`
		Documents []int    `json:"documents"`
	} `json:"topics"`
}

// ExtractTopics asks the model to cluster texts. Replies that fail to parse
// are retried; document ids outside the input or already taken are dropped.
func (c *OpenAIClient) ExtractTopics(ctx context.Context, texts []string) (models.TopicResult, error) {
	payload, err := json.Marshal(texts)
	if err != nil {
		return models.TopicResult{}, err
	}
	prompt := fmt.Sprintf(topicPrompt, MAX_OPENAI_TOPICS, MIN_OPENAI_TOPIC_SIZE)

	var lastErr error
	for attempt := 1; attempt <= OPENAI_TOPIC_ATTEMPTS; attempt++ {
		chatCompletion, err := c.Client.Chat.Completions.New(ctx,
			openai.ChatCompletionNewParams{
				Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(prompt),
					openai.UserMessage(string(payload)),
				}),
				Model:       openai.F(c.Model),
				Temperature: openai.Float(0.2),
			})
		if err != nil {
			return models.TopicResult{}, fmt.Errorf("[OpenAIClient] chat completion failed: %w", err)
		}
		if len(chatCompletion.Choices) == 0 || strings.TrimSpace(chatCompletion.Choices[0].Message.Content) == "" {
			lastErr = errors.New("[OpenAIClient] empty completion")
			slog.Warn("[OpenAIClient] Empty topic completion, retrying", slog.Int("attempt", attempt))
			continue
		}

		var reply topicReply
		raw := cleanCompletion(chatCompletion.Choices[0].Message.Content)
		if err := json.Unmarshal([]byte(raw), &reply); err != nil {
			lastErr = fmt.Errorf("[OpenAIClient] invalid topic reply: %w", err)
			slog.Warn("[OpenAIClient] Failed to parse topic reply, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}
		return reply.result(texts), nil
	}
	return models.TopicResult{}, lastErr
}

func (r topicReply) result(texts []string) models.TopicResult {
	taken := make([]bool, len(texts))
	out := models.TopicResult{Topics: []models.Topic{}}
	for _, t := range r.Topics {
		if len(out.Topics) == MAX_OPENAI_TOPICS {
			break
		}
		if len(t.Keywords) == 0 {
			continue
		}
		var docs []int
		for _, d := range t.Documents {
			if d >= 0 && d < len(texts) && !taken[d] {
				taken[d] = true
				docs = append(docs, d)
			}
		}
		if len(docs) == 0 {
			continue
		}
		reps := make([]string, 0, 3)
		for _, d := range docs[:min(len(docs), 3)] {
			reps = append(reps, texts[d])
		}
		out.Topics = append(out.Topics, models.Topic{
			ID:                      len(out.Topics),
			Keywords:                t.Keywords[:min(len(t.Keywords), 10)],
			Count:                   len(docs),
			RepresentativeDocuments: reps,
		})
	}
	for _, ok := range taken {
		if !ok {
			out.Outliers++
		}
	}
	return out
}

// cleanCompletion drops markdown fences some models add anyway.
func cleanCompletion(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```text")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}
