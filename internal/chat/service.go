package chat

import (
	"context"
	"io"
	"log/slog"

	"github.com/moch-ai/moch-gateway/internal/config"
	"github.com/moch-ai/moch-gateway/internal/observe"
	"github.com/moch-ai/moch-gateway/internal/provider"
	"github.com/moch-ai/moch-gateway/internal/types"
)

// Assembler produces the system prompt for one request.
// This interface is defined from the service's perspective; *prompt.Assembler
// satisfies it.
type Assembler interface {
	Assemble(ctx context.Context, forceLocal bool) string
}

const generationName = "bedrock-generation"

// Service runs the chat pipeline: prompt assembly and message normalization in
// parallel, request adaptation, then the bracketed model invocation. Each call
// is independent; the only shared state is read-only configuration and the
// long-lived provider clients.
type Service struct {
	assembler Assembler
	invoker   *provider.Invoker
	recorder  *observe.Recorder
	cfg       func() *config.Config
	logger    *slog.Logger
}

func NewService(assembler Assembler, invoker *provider.Invoker, recorder *observe.Recorder, cfg func() *config.Config) *Service {
	return &Service{
		assembler: assembler,
		invoker:   invoker,
		recorder:  recorder,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

func (s *Service) resolveParams(cfg *config.Config, req types.ChatRequest) (modelID string, temperature float64, maxTokens int) {
	modelID = req.ModelID
	if modelID == "" {
		modelID = cfg.Provider.DefaultModelID
	}
	temperature = cfg.Provider.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens = cfg.Provider.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	return modelID, temperature, maxTokens
}

// systemPrompt honors a per-request override; otherwise the assembler builds
// the prompt from the template store.
func (s *Service) systemPrompt(ctx context.Context, cfg *config.Config, req types.ChatRequest) string {
	if req.SystemPrompt != "" {
		return req.SystemPrompt
	}
	return s.assembler.Assemble(ctx, cfg.LocalDev)
}

// prepare runs prompt assembly concurrently with message normalization and
// returns the provider request body.
func (s *Service) prepare(ctx context.Context, cfg *config.Config, req types.ChatRequest, modelID string, temperature float64, maxTokens int) ([]types.Message, []byte, error) {
	promptCh := make(chan string, 1)
	go func() {
		promptCh <- s.systemPrompt(ctx, cfg, req)
	}()

	messages := Normalize(req.Message, req.ConversationHistory)
	system := <-promptCh

	body, err := provider.BuildRequestBody(messages, system, modelID, temperature, maxTokens)
	if err != nil {
		return nil, nil, err
	}
	return messages, body, nil
}

// Generate performs one blocking chat completion.
func (s *Service) Generate(ctx context.Context, req types.ChatRequest) (types.ChatResponse, types.Usage, error) {
	cfg := s.cfg()
	modelID, temperature, maxTokens := s.resolveParams(cfg, req)

	messages, body, err := s.prepare(ctx, cfg, req, modelID, temperature, maxTokens)
	if err != nil {
		return types.ChatResponse{}, types.Usage{}, err
	}

	gen := s.recorder.StartGeneration(ctx, observe.GenerationParams{
		Name:        generationName,
		ModelID:     modelID,
		Input:       messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})

	text, usage, err := s.invoker.Invoke(ctx, modelID, body)
	gen.End(ctx, text, usage, err)
	if err != nil {
		s.logger.Error("model invocation failed", "model_id", modelID, "error", err)
		return types.ChatResponse{}, types.Usage{}, err
	}

	s.logger.Info("generated response",
		"model_id", modelID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	return types.ChatResponse{Response: text, ModelID: modelID}, usage, nil
}

// GenerateStream performs one streaming chat completion, calling emit for each
// text fragment in provider-emission order. It returns the model used and the
// final usage; usage reflects whatever was observed before a mid-stream
// failure or consumer disconnect. The generation span is closed in every path.
func (s *Service) GenerateStream(ctx context.Context, req types.ChatRequest, emit func(fragment string) error) (string, types.Usage, error) {
	cfg := s.cfg()
	modelID, temperature, maxTokens := s.resolveParams(cfg, req)

	messages, body, err := s.prepare(ctx, cfg, req, modelID, temperature, maxTokens)
	if err != nil {
		return modelID, types.Usage{}, err
	}

	gen := s.recorder.StartGeneration(ctx, observe.GenerationParams{
		Name:        generationName + "-stream",
		ModelID:     modelID,
		Input:       messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})

	stream, err := s.invoker.InvokeStream(ctx, modelID, body)
	if err != nil {
		gen.End(ctx, "", types.Usage{}, err)
		s.logger.Error("streaming invocation failed", "model_id", modelID, "error", err)
		return modelID, types.Usage{}, err
	}
	defer stream.Close()

	for {
		fragment, recvErr := stream.Recv()
		if recvErr == io.EOF {
			break
		}
		if recvErr != nil {
			gen.End(ctx, stream.Text(), stream.Usage(), recvErr)
			s.logger.Error("stream interrupted", "model_id", modelID, "error", recvErr)
			return modelID, stream.Usage(), recvErr
		}
		if emitErr := emit(fragment); emitErr != nil {
			// Consumer stopped reading; close the span with what we have.
			gen.End(ctx, stream.Text(), stream.Usage(), emitErr)
			return modelID, stream.Usage(), emitErr
		}
	}

	usage := stream.Usage()
	gen.End(ctx, stream.Text(), usage, nil)

	s.logger.Info("generated streaming response",
		"model_id", modelID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	return modelID, usage, nil
}
