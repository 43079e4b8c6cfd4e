package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siherrmann/grimoire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type claudeRequest struct {
	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func claudeResponse(texts ...string) map[string]interface{} {
	content := make([]map[string]interface{}, 0, len(texts))
	for _, text := range texts {
		content = append(content, map[string]interface{}{"type": "text", "text": text})
	}
	return map[string]interface{}{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-3-5-haiku-20241022",
		"content":       content,
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]interface{}{"input_tokens": 10, "output_tokens": 5},
	}
}

func newTestClaude(t *testing.T, handler http.HandlerFunc) *ClaudeClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := model.DefaultConfig().Claude
	config.APIKey = "test-key"
	config.BaseURL = server.URL
	client, err := NewClaudeClient(config, nil)
	require.NoError(t, err, "Expected NewClaudeClient to not return an error")
	return client
}

func TestNewClaudeClient(t *testing.T) {
	t.Run("Missing api key", func(t *testing.T) {
		_, err := NewClaudeClient(model.DefaultConfig().Claude, nil)
		assert.Error(t, err, "Expected an error for an empty api key")
	})

	t.Run("Invalid max tokens", func(t *testing.T) {
		config := model.DefaultConfig().Claude
		config.APIKey = "key"
		config.MaxTokens = 0
		_, err := NewClaudeClient(config, nil)
		assert.Error(t, err, "Expected an error for zero max tokens")
	})
}

func TestClaudeGenerate(t *testing.T) {
	t.Run("Sends one user message and joins text blocks", func(t *testing.T) {
		var received claudeRequest
		client := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(claudeResponse("Grappling uses ", "Athletics."))
		})

		answer, err := client.Generate(context.Background(), "How does grappling work?")

		require.NoError(t, err, "Expected Generate to not return an error")
		assert.Equal(t, "Grappling uses Athletics.", answer)
		assert.Equal(t, int64(1024), received.MaxTokens)
		require.Len(t, received.Messages, 1)
		assert.Equal(t, "user", received.Messages[0].Role)
		require.Len(t, received.Messages[0].Content, 1)
		assert.Equal(t, "How does grappling work?", received.Messages[0].Content[0].Text)
	})

	t.Run("Response without text is an error", func(t *testing.T) {
		client := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(claudeResponse())
		})

		_, err := client.Generate(context.Background(), "q")
		assert.ErrorContains(t, err, "no text")
	})

	t.Run("API error is returned", func(t *testing.T) {
		client := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		})

		_, err := client.Generate(context.Background(), "q")
		assert.Error(t, err, "Expected an error for status 401")
	})
}

func TestClaudePing(t *testing.T) {
	var maxTokens int64
	client := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		var received claudeRequest
		_ = json.NewDecoder(r.Body).Decode(&received)
		maxTokens = received.MaxTokens
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(claudeResponse("Hello"))
	})

	assert.NoError(t, client.Ping(context.Background()), "Expected Ping to not return an error")
	assert.Equal(t, int64(10), maxTokens, "Expected a minimal probe")
}
