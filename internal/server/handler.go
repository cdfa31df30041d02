package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/moch-ai/moch-gateway/internal/chat"
	"github.com/moch-ai/moch-gateway/internal/config"
	"github.com/moch-ai/moch-gateway/internal/httputil"
	"github.com/moch-ai/moch-gateway/internal/telemetry"
	"github.com/moch-ai/moch-gateway/internal/types"
)

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	service *chat.Service
	cfg     func() *config.Config
	metrics *telemetry.Metrics
}

func NewHandler(service *chat.Service, cfg func() *config.Config, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
		metrics: metrics,
	}
}

func (h *Handler) parseChatRequest(w http.ResponseWriter, r *http.Request, reqID string) (types.ChatRequest, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return types.ChatRequest{}, false
	}
	defer r.Body.Close()

	var req types.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return types.ChatRequest{}, false
	}
	if err := req.Validate(); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return types.ChatRequest{}, false
	}
	return req, true
}

// Chat handles POST /api/v1/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	req, ok := h.parseChatRequest(w, r, reqID)
	if !ok {
		return
	}

	resp, usage, err := h.service.Generate(r.Context(), req)
	if err != nil {
		slog.Error("chat request failed", "request_id", reqID, "error", err)
		h.recordRequest("chat", req.ModelID, "500", receivedAt, types.Usage{})
		httputil.WriteInternalError(w, reqID, "Error processing request: "+err.Error())
		return
	}

	slog.Info("chat request completed",
		"request_id", reqID,
		"model_id", resp.ModelID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)
	h.recordRequest("chat", resp.ModelID, "200", receivedAt, usage)

	httputil.WriteJSON(w, resp)
}

// ChatStream handles POST /api/v1/chat/stream
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	req, ok := h.parseChatRequest(w, r, reqID)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, reqID, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	modelID, usage, err := h.service.GenerateStream(r.Context(), req, func(fragment string) error {
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", fragment); werr != nil {
			return werr
		}
		flusher.Flush()
		if h.metrics != nil {
			h.metrics.RecordStreamFragment(req.ModelID)
		}
		return nil
	})
	if err != nil {
		// The response is already streaming; the only error channel left is an
		// in-band terminal event.
		slog.Error("stream failed", "request_id", reqID, "model_id", modelID, "error", err)
		fmt.Fprintf(w, "data: [ERROR: %s]\n\n", err.Error())
		flusher.Flush()
		h.recordRequest("chat_stream", modelID, "error", receivedAt, usage)
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	slog.Info("streaming request completed",
		"request_id", reqID,
		"model_id", modelID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)
	h.recordRequest("chat_stream", modelID, "200", receivedAt, usage)
}

// ListModels handles GET /api/v1/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, modelListResponse{Models: h.cfg().Provider.Models})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, map[string]string{"status": "ok"})
}

type modelListResponse struct {
	Models []string `json:"models"`
}

func (h *Handler) recordRequest(endpoint, modelID, status string, receivedAt time.Time, usage types.Usage) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(telemetry.RequestLabels{
		Endpoint:     endpoint,
		Model:        modelID,
		Status:       status,
		DurationMs:   float64(time.Since(receivedAt).Milliseconds()),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
}
