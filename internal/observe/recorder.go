package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/moch-ai/moch-gateway/internal/langfuse"
	"github.com/moch-ai/moch-gateway/internal/types"
)

// Ingester posts tracing events to the observability provider.
// *langfuse.Client satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, events []langfuse.IngestionEvent) error
}

// Recorder brackets model invocations with generation spans. It must never be
// the cause of a request failure: every internal error is logged at warn and
// swallowed. A nil Recorder, or one built with a nil client, is a no-op.
type Recorder struct {
	client Ingester
	logger *slog.Logger
}

func NewRecorder(client Ingester) *Recorder {
	return &Recorder{
		client: client,
		logger: slog.Default(),
	}
}

// GenerationParams describes the invocation being recorded.
type GenerationParams struct {
	Name        string
	ModelID     string
	Input       []types.Message
	Temperature float64
	MaxTokens   int
}

// Generation is one open span. End closes it; a nil Generation is inert.
type Generation struct {
	recorder *Recorder
	traceID  string
	genID    string
	started  time.Time
}

// StartGeneration opens a trace and generation span. It returns nil when the
// recorder is disabled or the provider rejects the events; callers need not
// care which.
func (r *Recorder) StartGeneration(ctx context.Context, p GenerationParams) *Generation {
	if r == nil || r.client == nil {
		return nil
	}

	now := time.Now().UTC()
	ts := now.Format(time.RFC3339Nano)
	traceID := langfuse.NewEventID()
	genID := langfuse.NewEventID()

	events := []langfuse.IngestionEvent{
		{
			ID:        langfuse.NewEventID(),
			Type:      "trace-create",
			Timestamp: ts,
			Body:      langfuse.TraceBody{ID: traceID, Name: p.Name, Timestamp: ts},
		},
		{
			ID:        langfuse.NewEventID(),
			Type:      "generation-create",
			Timestamp: ts,
			Body: langfuse.GenerationBody{
				ID:      genID,
				TraceID: traceID,
				Name:    p.Name,
				Model:   p.ModelID,
				ModelParameters: map[string]interface{}{
					"temperature": p.Temperature,
					"max_tokens":  p.MaxTokens,
				},
				Input:     p.Input,
				StartTime: ts,
			},
		},
	}

	if err := r.client.Ingest(ctx, events); err != nil {
		r.logger.Warn("could not create generation span", "error", err)
		return nil
	}

	return &Generation{recorder: r, traceID: traceID, genID: genID, started: now}
}

// End closes the span with the invocation outcome. When invokeErr is non-nil
// the span is marked as an error; the caller's error is otherwise untouched.
// End must be called even after partial streaming so the span is not leaked.
func (g *Generation) End(ctx context.Context, output string, usage types.Usage, invokeErr error) {
	if g == nil {
		return
	}

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	body := langfuse.GenerationBody{
		ID:      g.genID,
		TraceID: g.traceID,
		Output:  output,
		EndTime: ts,
		Usage:   &langfuse.UsageBody{Input: usage.InputTokens, Output: usage.OutputTokens},
	}
	if invokeErr != nil {
		body.Level = "ERROR"
		body.StatusMessage = invokeErr.Error()
	}

	events := []langfuse.IngestionEvent{
		{
			ID:        langfuse.NewEventID(),
			Type:      "generation-update",
			Timestamp: ts,
			Body:      body,
		},
	}

	// The request context may already be canceled (client disconnect); the
	// span still has to be closed, so detach with a short deadline.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := g.recorder.client.Ingest(flushCtx, events); err != nil {
		g.recorder.logger.Warn("could not update generation span", "error", err)
	}
}
