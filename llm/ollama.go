package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
)

// PingTimeout bounds every health probe
const PingTimeout = 5 * time.Second

// OllamaClient generates answers with a local Ollama server
type OllamaClient struct {
	baseURL    string
	model      string
	options    ollamaOptions
	httpClient *http.Client
	logger     *slog.Logger
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaClient creates a client for the server at config.BaseURL
func NewOllamaClient(config model.OllamaConfig, logger *slog.Logger) (*OllamaClient, error) {
	if config.BaseURL == "" {
		return nil, helper.NewError("ollama validation", fmt.Errorf("base url is empty"))
	}
	if config.Model == "" {
		return nil, helper.NewError("ollama validation", fmt.Errorf("model is empty"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OllamaClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		model:   config.Model,
		options: ollamaOptions{
			Temperature: config.Temperature,
			TopP:        config.TopP,
			NumPredict:  config.NumPredict,
		},
		httpClient: &http.Client{Timeout: model.Duration(config.Timeout)},
		logger:     logger,
	}, nil
}

// Generate sends prompt to /api/generate without streaming and returns the response text
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options,
	})
	if err != nil {
		return "", helper.NewError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", helper.NewError("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", helper.NewError("ollama request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", helper.NewError("ollama request", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var generated ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", helper.NewError("decode response", err)
	}
	if generated.Error != "" {
		return "", helper.NewError("ollama generate", fmt.Errorf("%s", generated.Error))
	}

	c.logger.Debug("Generated with ollama", slog.String("model", c.model), slog.Int("length", len(generated.Response)), slog.Duration("duration", time.Since(start)))

	return generated.Response, nil
}

// Ping checks that the server answers GET /api/tags
func (c *OllamaClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return helper.NewError("create request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return helper.NewError("ollama ping", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return helper.NewError("ollama ping", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}
