package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/Sushi-Mampfer/notes/config"
	"github.com/Sushi-Mampfer/notes/pkg/audio"
)

// Segment is one recognized span of speech. Start and End are seconds
// from the beginning of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Client talks to a whisper-server style HTTP endpoint: multipart wav in,
// verbose JSON with segments out.
type Client struct {
	cfg        config.ASR
	httpClient *http.Client
}

func New(cfg config.ASR) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Ping checks the endpoint is reachable; the server refuses to accept
// traffic when the engine is down.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("asr endpoint unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("asr endpoint unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Transcribe sends mono 16 kHz samples to the engine and returns the
// recognized segments in order. Transient failures are retried with
// exponential backoff.
func (c *Client) Transcribe(ctx context.Context, samples []float32) ([]Segment, error) {
	wavData, err := audio.Encode16kMono(samples)
	if err != nil {
		return nil, err
	}

	operation := func() ([]Segment, error) {
		segments, err := c.doRequest(ctx, wavData)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("asr request failed")
			return nil, err
		}
		return segments, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
}

func (c *Client) doRequest(ctx context.Context, wavData []byte) ([]Segment, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, err
	}
	// Beam search favors accuracy over latency; the engine's own console
	// output stays suppressed through response_format.
	_ = writer.WriteField("language", c.cfg.Language)
	_ = writer.WriteField("beam_size", strconv.Itoa(c.cfg.BeamSize))
	_ = writer.WriteField("temperature", "0.0")
	_ = writer.WriteField("response_format", "verbose_json")
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("asr returned status %d: %s", resp.StatusCode, raw)
	}

	var parsed struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode asr response: %w", err)
	}
	return parsed.Segments, nil
}
