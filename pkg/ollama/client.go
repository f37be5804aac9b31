package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sushi-Mampfer/notes/config"
)

const systemPrompt = `You are given the raw transcript of a voice recording. Write a short summary of what was said: the main topic, the key points and any decisions or follow-ups that were mentioned. Keep it to a few sentences and do not invent anything that is not in the transcript.`

// Client produces summaries through an Ollama chat endpoint.
type Client struct {
	cfg        config.LLM
	httpClient *http.Client
}

func New(cfg config.LLM) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
}

type options struct {
	Temperature   float32 `json:"temperature"`
	TopP          float32 `json:"top_p"`
	RepeatPenalty float32 `json:"repeat_penalty"`
}

// Summarize sends the transcript with a fixed system instruction and
// low-temperature sampling and returns the single response message.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		Stream:  false,
		Options: options{Temperature: 0.2, TopP: 0.9, RepeatPenalty: 1.1},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("llm returned status %d: %s", resp.StatusCode, raw)
	}

	var parsed struct {
		Message message `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	return parsed.Message.Content, nil
}
