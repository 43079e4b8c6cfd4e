package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
)

// ClaudeClient generates answers with the Anthropic messages API
type ClaudeClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClaudeClient creates a client authenticated with config.APIKey.
// An empty BaseURL uses the public API.
func NewClaudeClient(config model.ClaudeConfig, logger *slog.Logger) (*ClaudeClient, error) {
	if config.APIKey == "" {
		return nil, helper.NewError("claude validation", fmt.Errorf("api key is empty"))
	}
	if config.Model == "" {
		return nil, helper.NewError("claude validation", fmt.Errorf("model is empty"))
	}
	if config.MaxTokens <= 0 {
		return nil, helper.NewError("claude validation", fmt.Errorf("max tokens must be positive, got %d", config.MaxTokens))
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(1),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &ClaudeClient{
		client:    anthropic.NewClient(opts...),
		model:     config.Model,
		maxTokens: int64(config.MaxTokens),
		timeout:   model.Duration(config.Timeout),
		logger:    logger,
	}, nil
}

// Generate sends prompt as a single user message and returns the concatenated text blocks
func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := c.complete(ctx, prompt, c.maxTokens)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Generated with claude", slog.String("model", c.model), slog.Int("length", len(answer)), slog.Duration("duration", time.Since(start)))

	return answer, nil
}

// Ping sends a minimal message to check the key and the model
func (c *ClaudeClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	_, err := c.complete(ctx, "Hi", 10)
	if err != nil {
		return helper.NewError("claude ping", err)
	}
	return nil
}

func (c *ClaudeClient) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", helper.NewError("claude request", err)
	}

	var answer strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}
	if answer.Len() == 0 {
		return "", helper.NewError("claude request", fmt.Errorf("response contained no text"))
	}

	return answer.String(), nil
}
