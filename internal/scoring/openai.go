package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"veritas/internal/models"
	"veritas/internal/observability"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 8 * time.Second

	systemPrompt = "You are a careful fact-checking assistant. Rate how factually reliable the post is " +
		"on a scale from 0 (fabricated or misleading) to 100 (well-established fact). " +
		"Opinions and unverifiable personal statements should land in the middle. " +
		"Answer with JSON only."
)

// chatCompleter is the part of *openai.Client the classifier needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures an OpenAIClassifier.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClassifier asks a chat completion model for a 0-100 reliability score.
type OpenAIClassifier struct {
	client  chatCompleter
	model   string
	timeout time.Duration
}

// NewOpenAIClassifier builds a classifier against the OpenAI API or any
// compatible endpoint set through BaseURL.
func NewOpenAIClassifier(cfg OpenAIConfig) *OpenAIClassifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return newOpenAIClassifier(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.Timeout)
}

func newOpenAIClassifier(client chatCompleter, model string, timeout time.Duration) *OpenAIClassifier {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAIClassifier{client: client, model: model, timeout: timeout}
}

// New picks the oracle-backed classifier when an API key is configured and
// the no-op classifier otherwise.
func New(cfg OpenAIConfig) Classifier {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NoopClassifier{}
	}
	return NewOpenAIClassifier(cfg)
}

func userPrompt(text string) string {
	return "Post:\n\"\"\"\n" + text + "\n\"\"\"\n" +
		`Return JSON strictly like {"score": 0-100, "rationale": "..."}`
}

// Classify implements Classifier. Blank text is not sent to the oracle.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		observability.ScoringRequests.WithLabelValues("skipped").Inc()
		return Unverified()
	}

	ctx, span := observability.StartClientSpan(ctx, "openai", "chat.completions")
	span.SetAttributes(attribute.String("llm.model", c.model))

	raw, err := c.complete(ctx, text)
	if err != nil {
		observability.ScoringRequests.WithLabelValues("oracle_error").Inc()
		observability.LogDegraded(ctx, "scoring.classify", models.NewScoringError(err), map[string]any{"model": c.model})
		observability.EndSpan(span, err)
		return Unverified()
	}

	result, ok := Interpret(raw)
	if !ok {
		observability.ScoringRequests.WithLabelValues("unparsable").Inc()
		observability.LogDegraded(ctx, "scoring.interpret", models.NewScoringError(errors.New("no usable score in oracle output")),
			map[string]any{"model": c.model, "output_len": len(raw)})
		observability.EndSpan(span, nil)
		return Unverified()
	}

	observability.ScoringRequests.WithLabelValues("scored").Inc()
	span.SetAttributes(attribute.Int("scoring.score", *result.Score), attribute.String("scoring.label", string(result.Label)))
	observability.EndSpan(span, nil)
	return result
}

func (c *OpenAIClassifier) complete(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(text)},
		},
		Temperature: 0.2,
		MaxTokens:   150,
	})
	observability.ScoringLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
