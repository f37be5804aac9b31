package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushi-Mampfer/notes/config"
)

func TestSummarizeSendsFixedInstructionAndSettings(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "short summary"},
		})
	}))
	defer server.Close()

	client := New(config.LLM{Endpoint: server.URL, Model: "qwen2.5:14b", TimeoutSeconds: 5})
	summary, err := client.Summarize(context.Background(), "the transcript")
	require.NoError(t, err)
	assert.Equal(t, "short summary", summary)

	assert.Equal(t, "qwen2.5:14b", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, systemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "the transcript", got.Messages[1].Content)
	assert.InDelta(t, 0.2, got.Options.Temperature, 1e-6)
	assert.InDelta(t, 0.9, got.Options.TopP, 1e-6)
	assert.InDelta(t, 1.1, got.Options.RepeatPenalty, 1e-6)
}

func TestSummarizeNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(config.LLM{Endpoint: server.URL, Model: "qwen2.5:14b", TimeoutSeconds: 5})
	_, err := client.Summarize(context.Background(), "text")
	assert.ErrorContains(t, err, "status 500")
}
