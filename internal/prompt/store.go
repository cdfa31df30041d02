package prompt

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/moch-ai/moch-gateway/internal/config"
	"github.com/moch-ai/moch-gateway/internal/langfuse"
	"github.com/moch-ai/moch-gateway/internal/telemetry"
)

// Artifact identifies one of the three named prompt documents.
type Artifact string

const (
	ArtifactSystemPrompt  Artifact = "system_prompt"
	ArtifactKnowledgeBase Artifact = "knowledge_base"
	ArtifactFewShots      Artifact = "few_shots"
)

// DefaultSystemPrompt is the ultimate fallback when the system prompt can be
// resolved neither remotely nor from disk. The other artifacts fall back to
// an empty document instead.
const DefaultSystemPrompt = "You are a helpful AI assistant powered by AWS Bedrock. Provide clear, accurate, and concise responses to user queries."

// RemoteSource fetches a named artifact from the prompt-management service.
// *langfuse.Client satisfies it.
type RemoteSource interface {
	GetPrompt(ctx context.Context, name string) (*langfuse.Prompt, error)
}

// Store resolves prompt artifacts, remote first with a local-file fallback.
// Remote unavailability is never an error: it is logged and treated as
// not-found. A nil remote disables remote resolution entirely.
type Store struct {
	remote  RemoteSource
	cfg     config.PromptsConfig
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewStore(remote RemoteSource, cfg config.PromptsConfig, metrics *telemetry.Metrics) *Store {
	return &Store{
		remote:  remote,
		cfg:     cfg,
		metrics: metrics,
		logger:  slog.Default(),
	}
}

// Fetch returns the artifact's text, or "" when neither source has content.
// The caller decides what an empty result means.
func (s *Store) Fetch(ctx context.Context, artifact Artifact, forceLocal bool) string {
	name, path := s.locate(artifact)

	if !forceLocal && s.remote != nil {
		p, err := s.remote.GetPrompt(ctx, name)
		if err != nil {
			s.logger.Warn("could not fetch artifact from prompt store, falling back to local file",
				"artifact", artifact, "name", name, "error", err)
		} else if p != nil && p.Prompt != "" {
			s.logger.Info("loaded artifact from prompt store",
				"artifact", artifact, "name", name, "version", p.Version)
			s.recordSource(artifact, "remote")
			return p.Prompt
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("could not read local artifact file", "artifact", artifact, "path", path, "error", err)
		return ""
	}

	s.logger.Info("loaded artifact from local file", "artifact", artifact, "path", path)
	s.recordSource(artifact, "local")
	return strings.TrimSpace(string(data))
}

func (s *Store) locate(artifact Artifact) (remoteName, localPath string) {
	switch artifact {
	case ArtifactKnowledgeBase:
		return s.cfg.KnowledgeBaseName, s.cfg.KnowledgeBaseFile
	case ArtifactFewShots:
		return s.cfg.FewShotsName, s.cfg.FewShotsFile
	default:
		return s.cfg.SystemPromptName, s.cfg.SystemPromptFile
	}
}

func (s *Store) recordSource(artifact Artifact, source string) {
	if s.metrics != nil {
		s.metrics.RecordPromptSource(string(artifact), source)
	}
}
