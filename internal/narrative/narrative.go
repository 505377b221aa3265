package narrative

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eduquiz/examinsight/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Request carries the structured analysis data the narrative generator works
// from. History presence is explicit; prompt construction branches on it
// rather than on stringly-typed inputs.
type Request struct {
	Subject    string
	Score      float64
	Timing     model.Timing
	Strengths  []string
	Weaknesses []string
	TopicStats []model.TopicStat
	History    model.HistoryTrend
	Language   string
}

// CostRates prices token usage, per 1000 tokens.
type CostRates struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Client wraps an OpenAI-compatible API client for suggestion generation.
type Client struct {
	api   *openai.Client
	model string
	rates CostRates
}

// New creates a narrative client. An empty baseURL keeps the library default.
func New(baseURL, apiKey, modelName string, rates CostRates) (*Client, error) {
	if err := loadTemplates(); err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		rates: rates,
	}, nil
}

// Ping verifies the API endpoint answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Defaults is the zero-value narrative used when generation fails: all text
// fields empty, all token and cost counters zero.
func Defaults() model.Narrative {
	return model.Narrative{}
}

// Generate produces the free-text suggestion fields for one analysis.
// A transport or API failure is returned as an error so the caller can fall
// back to Defaults. A response that merely fails to parse as JSON is
// recovered locally via a positional split; unusable sections end up as
// empty strings with token accounting intact.
func (c *Client) Generate(ctx context.Context, req Request) (model.Narrative, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Defaults(), fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return Defaults(), fmt.Errorf("narrative API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Defaults(), fmt.Errorf("narrative API returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("narrative response", "raw", raw)

	sections := parseSuggestions(raw)

	n := model.Narrative{
		StrengthsAnalysis:       sections.StrengthsAnalysis,
		WeaknessesAnalysis:      sections.WeaknessesAnalysis,
		ImprovementSuggestions:  sections.ImprovementSuggestions,
		TimeAnalysisSuggestions: sections.TimeAnalysisSuggestions,
		Usage: model.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	n.Usage.InputCost = float64(n.Usage.InputTokens) * c.rates.InputPer1K / 1000
	n.Usage.OutputCost = float64(n.Usage.OutputTokens) * c.rates.OutputPer1K / 1000
	n.Usage.TotalCost = n.Usage.InputCost + n.Usage.OutputCost
	return n, nil
}
