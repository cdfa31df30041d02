package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/moch-ai/moch-gateway/internal/config"
	"github.com/moch-ai/moch-gateway/internal/types"
)

// InvocationError is any failure talking to the model runtime: network errors,
// non-200 statuses, and malformed response bodies. It is the only error kind
// the invocation path surfaces.
type InvocationError struct {
	ModelID    string
	StatusCode int
	Err        error
}

func (e *InvocationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model %s: provider returned status %d: %v", e.ModelID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model %s: %v", e.ModelID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Invoker sends assembled request bodies to the model runtime. One Invoker is
// built at startup; its HTTP client is shared across concurrent requests.
type Invoker struct {
	cfg    config.ProviderConfig
	client *http.Client
	logger *slog.Logger
}

func NewInvoker(cfg config.ProviderConfig) *Invoker {
	return &Invoker{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		logger: slog.Default(),
	}
}

func (inv *Invoker) newRequest(ctx context.Context, modelID, action string, body []byte, accept string) (*http.Request, error) {
	u := fmt.Sprintf("%s/model/%s/%s", inv.cfg.BaseURL, url.PathEscape(modelID), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if inv.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+inv.cfg.APIKey)
	}
	return req, nil
}

// Invoke performs one blocking model invocation and returns the generated
// text (response-tag unwrapped) together with the reported usage.
func (inv *Invoker) Invoke(ctx context.Context, modelID string, body []byte) (string, types.Usage, error) {
	req, err := inv.newRequest(ctx, modelID, "invoke", body, "application/json")
	if err != nil {
		return "", types.Usage{}, &InvocationError{ModelID: modelID, Err: err}
	}

	inv.logger.Info("invoking model", "model_id", modelID)

	resp, err := inv.client.Do(req)
	if err != nil {
		return "", types.Usage{}, &InvocationError{ModelID: modelID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.Usage{}, &InvocationError{ModelID: modelID, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", types.Usage{}, &InvocationError{
			ModelID:    modelID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", string(raw)),
		}
	}

	inv.logger.Debug("provider response", "model_id", modelID, "body", string(raw))

	text, usage, err := parseResponse(modelID, raw)
	if err != nil {
		return "", types.Usage{}, &InvocationError{ModelID: modelID, Err: err}
	}

	return UnwrapResponse(text), usage, nil
}

// InvokeStream starts a streaming invocation. The caller owns the returned
// Stream and must Close it to release the underlying connection.
func (inv *Invoker) InvokeStream(ctx context.Context, modelID string, body []byte) (*Stream, error) {
	req, err := inv.newRequest(ctx, modelID, "invoke-with-response-stream", body, "text/event-stream")
	if err != nil {
		return nil, &InvocationError{ModelID: modelID, Err: err}
	}

	inv.logger.Info("invoking model with streaming", "model_id", modelID)

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, &InvocationError{ModelID: modelID, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &InvocationError{
			ModelID:    modelID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", string(raw)),
		}
	}

	return newStream(modelID, resp), nil
}
