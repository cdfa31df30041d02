package langfuse

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/moch-ai/moch-gateway/internal/config"
)

// Client talks to the Langfuse public API: versioned prompt retrieval and the
// event ingestion endpoint used for generation tracing. A single Client is
// built at startup and shared across requests; it holds no mutable state
// beyond the underlying *http.Client and is safe for concurrent use.
type Client struct {
	cfg    config.LangfuseConfig
	client *http.Client
}

func New(cfg config.LangfuseConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// Prompt is one versioned text artifact from the prompt store.
type Prompt struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
	Prompt  string `json:"prompt"`
	Type    string `json:"type"`
}

// GetPrompt fetches the production-labeled version of a named prompt. Caching
// is deliberately disabled so every call observes the latest published version.
func (c *Client) GetPrompt(ctx context.Context, name string) (*Prompt, error) {
	u := fmt.Sprintf("%s/api/public/v2/prompts/%s?label=production&cacheTtlSeconds=0",
		c.cfg.BaseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create prompt request: %w", err)
	}
	req.SetBasicAuth(c.cfg.PublicKey, c.cfg.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prompt %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read prompt response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prompt store returned status %d for %s: %s", resp.StatusCode, name, string(body))
	}

	var p Prompt
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("unmarshal prompt %s: %w", name, err)
	}
	return &p, nil
}

// IngestionEvent is one entry in an ingestion batch. Body is one of the
// typed event payloads below.
type IngestionEvent struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Body      interface{} `json:"body"`
}

type TraceBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

type GenerationBody struct {
	ID              string                 `json:"id"`
	TraceID         string                 `json:"traceId"`
	Name            string                 `json:"name,omitempty"`
	Model           string                 `json:"model,omitempty"`
	ModelParameters map[string]interface{} `json:"modelParameters,omitempty"`
	Input           interface{}            `json:"input,omitempty"`
	Output          interface{}            `json:"output,omitempty"`
	StartTime       string                 `json:"startTime,omitempty"`
	EndTime         string                 `json:"endTime,omitempty"`
	Level           string                 `json:"level,omitempty"`
	StatusMessage   string                 `json:"statusMessage,omitempty"`
	Usage           *UsageBody             `json:"usage,omitempty"`
}

type UsageBody struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Ingest posts a batch of events. The ingestion endpoint answers 207 for
// partially accepted batches; anything under 300 counts as accepted.
func (c *Client) Ingest(ctx context.Context, events []IngestionEvent) error {
	payload, err := json.Marshal(struct {
		Batch []IngestionEvent `json:"batch"`
	}{Batch: events})
	if err != nil {
		return fmt.Errorf("marshal ingestion batch: %w", err)
	}

	u := c.cfg.BaseURL + "/api/public/ingestion"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.PublicKey, c.cfg.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ingestion batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ingestion returned status %d: %s", resp.StatusCode, string(body))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// NewEventID returns a random identifier for ingestion events and traces.
func NewEventID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
