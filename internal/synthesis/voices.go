package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"tts-worker-service/internal/faults"
)

// DefaultCatalogTTL bounds how stale the cached voice list may get. The
// catalog changes rarely but is read on every submission-form render.
const DefaultCatalogTTL = 300 * time.Second

// Voice is one catalog entry from the provider.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ListVoices fetches the provider's voice catalog.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", faults.ErrProvider, err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: provider returned %d", faults.ErrProvider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}

	var parsed struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode voices: %v", faults.ErrProvider, err)
	}
	return parsed.Voices, nil
}

// VoiceLister is the catalog's view of the provider client.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Catalog caches the voice list for a freshness window. At most one re-fetch
// is in flight at a time; callers arriving during a refresh get the last
// known list rather than piling onto the provider. A failed fetch degrades
// to an empty catalog; voice listing is advisory.
type Catalog struct {
	lister VoiceLister
	ttl    time.Duration

	mu         sync.Mutex
	voices     []Voice
	fetchedAt  time.Time
	refreshing bool
}

func NewCatalog(lister VoiceLister, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{lister: lister, ttl: ttl}
}

// Voices returns the cached catalog, refreshing it first if the freshness
// window has expired.
func (cat *Catalog) Voices(ctx context.Context) []Voice {
	cat.mu.Lock()
	fresh := !cat.fetchedAt.IsZero() && time.Since(cat.fetchedAt) < cat.ttl
	if fresh || cat.refreshing {
		voices := cat.voices
		cat.mu.Unlock()
		return voices
	}
	cat.refreshing = true
	cat.mu.Unlock()

	voices, err := cat.lister.ListVoices(ctx)
	if err != nil {
		// advisory data: cache the miss too, so a broken provider is not
		// hammered on every render
		voices = nil
	}

	cat.mu.Lock()
	cat.voices = voices
	cat.fetchedAt = time.Now()
	cat.refreshing = false
	cat.mu.Unlock()

	return voices
}
