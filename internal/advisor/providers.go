package advisor

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landuse-cli/internal/config"
	"github.com/sells-group/landuse-cli/pkg/anthropic"
	"github.com/sells-group/landuse-cli/pkg/xai"
)

// XAICompleter completes prompts with xAI chat completions.
type XAICompleter struct {
	Client      xai.Client
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider implements Completer.
func (c *XAICompleter) Provider() string { return config.ProviderXAI }

// Complete implements Completer.
func (c *XAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temp := c.Temperature
	req := xai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    []xai.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}
	if c.MaxTokens > 0 {
		mt := c.MaxTokens
		req.MaxTokens = &mt
	}
	resp, err := c.Client.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content()
}

// AnthropicCompleter completes prompts with the Anthropic Messages API.
type AnthropicCompleter struct {
	Client      anthropic.Client
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider implements Completer.
func (c *AnthropicCompleter) Provider() string { return config.ProviderAnthropic }

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.Model
	if model == "" {
		model = anthropic.DefaultModel
	}
	maxTokens := int64(c.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	temp := c.Temperature
	resp, err := c.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(model, "advise")

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", eris.New("anthropic: empty reply")
	}
	return text, nil
}

// NewCompleter builds the Completer selected by cfg.Advisor.Provider.
func NewCompleter(cfg *config.Config) (Completer, error) {
	timeout := time.Duration(cfg.Advisor.TimeoutSecs) * time.Second
	switch cfg.Advisor.Provider {
	case config.ProviderXAI, "":
		return &XAICompleter{
			Client: xai.NewClient(cfg.XAI.Key,
				xai.WithBaseURL(cfg.XAI.BaseURL),
				xai.WithModel(cfg.XAI.Model),
				xai.WithTimeout(timeout),
			),
			Model:       cfg.XAI.Model,
			Temperature: cfg.Advisor.Temperature,
			MaxTokens:   cfg.Advisor.MaxTokens,
		}, nil
	case config.ProviderAnthropic:
		return &AnthropicCompleter{
			Client:      anthropic.NewClient(cfg.Anthropic.Key, anthropic.WithTimeout(timeout)),
			Model:       cfg.Anthropic.Model,
			Temperature: cfg.Advisor.Temperature,
			MaxTokens:   cfg.Advisor.MaxTokens,
		}, nil
	default:
		return nil, eris.Errorf("advisor: unknown provider %q", cfg.Advisor.Provider)
	}
}

// NewFromConfig builds an Advisor for the configured provider.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Advisor, error) {
	c, err := NewCompleter(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithDefaultUserType(cfg.Advisor.UserType)}, opts...)
	return New(c, opts...), nil
}
