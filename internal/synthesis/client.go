// Package synthesis talks to the remote text-to-speech provider. The client
// is a thin adapter: one HTTPS call per synthesis, no persistence, no retries.
// Retrying is the scheduler's job.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"tts-worker-service/internal/faults"
)

const DefaultTimeout = 30 * time.Second

// Controls are the per-request voice settings, each independently defaulted
// by the caller before submission.
type Controls struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Emotion         string  `json:"emotion"`
	Pitch           float64 `json:"pitch"`
	Rate            float64 `json:"rate"`
}

type synthesizeRequest struct {
	Text          string   `json:"text"`
	VoiceSettings Controls `json:"voice_settings"`
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	httpc   *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		httpc:   &http.Client{},
	}
}

// Synthesize sends one synthesis call and returns the raw audio bytes.
// Failures come back classified: InvalidInput for caller errors, RateLimited
// for 429, Timeout for an elapsed deadline, Provider for everything else.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, ctl Controls) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", faults.ErrInvalidInput)
	}
	if voiceID == "" {
		return nil, fmt.Errorf("%w: empty voice id", faults.ErrInvalidInput)
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, VoiceSettings: ctl})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", faults.ErrProvider, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/v1/text-to-speech/" + voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", faults.ErrProvider, err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: provider returned 429", faults.ErrRateLimited)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: provider returned %d", faults.ErrInvalidInput, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: provider returned %d", faults.ErrProvider, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", faults.ErrProvider)
	}
	return audio, nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", faults.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", faults.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", faults.ErrProvider, err)
}
