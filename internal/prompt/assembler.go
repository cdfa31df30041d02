package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Region tags inside the system prompt template. A region is only substituted
// when both its start and end tag are present; anything else passes through
// untouched. Regions do not nest.
const (
	regionKnowledgeBase = "knowledge_base"
	regionFewShots      = "few_shot_examples"
	regionCurrentDate   = "current_date"
)

// Assembler builds the final system prompt: template plus knowledge base,
// few-shot examples, and the current date injected into their tagged regions.
type Assembler struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

func NewAssembler(store *Store) *Assembler {
	return &Assembler{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// Assemble returns the assembled system prompt. Every artifact is fetched
// fresh; nothing is cached between calls. A malformed knowledge-base or
// few-shot document degrades to the default prompt rather than failing the
// request.
func (a *Assembler) Assemble(ctx context.Context, forceLocal bool) string {
	template := a.store.Fetch(ctx, ArtifactSystemPrompt, forceLocal)
	if template == "" {
		a.recordDefault()
		return DefaultSystemPrompt
	}

	kb := a.store.Fetch(ctx, ArtifactKnowledgeBase, forceLocal)
	if kb != "" {
		canonical, err := canonicalJSON(kb)
		if err != nil {
			a.logger.Warn("knowledge base is not valid JSON, using default prompt", "error", err)
			a.recordDefault()
			return DefaultSystemPrompt
		}
		if canonical != "" {
			template = injectRegion(template, regionKnowledgeBase, canonical)
		}
	}

	fs := a.store.Fetch(ctx, ArtifactFewShots, forceLocal)
	if fs != "" {
		canonical, err := canonicalJSON(fs)
		if err != nil {
			a.logger.Warn("few-shot examples are not valid JSON, using default prompt", "error", err)
			a.recordDefault()
			return DefaultSystemPrompt
		}
		if canonical != "" {
			template = injectRegion(template, regionFewShots, canonical)
		}
	}

	template = injectRegion(template, regionCurrentDate, a.now().Format("2006-01-02"))

	return template
}

func (a *Assembler) recordDefault() {
	if a.store.metrics != nil {
		a.store.metrics.RecordPromptSource(string(ArtifactSystemPrompt), "default")
	}
}

// canonicalJSON re-serializes a JSON document with two-space indentation.
// Empty documents ({}, [], "", null) canonicalize to "" so callers can skip
// injecting them.
func canonicalJSON(text string) (string, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	if isEmptyDocument(v) {
		return "", nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return string(out), nil
}

func isEmptyDocument(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	}
	return false
}

// injectRegion replaces everything strictly between <tag> and </tag> with a
// newline, the content, and a newline. The template is returned unchanged when
// either tag is missing or the tags appear in reverse order.
func injectRegion(template, tag, content string) string {
	startTag := "<" + tag + ">"
	endTag := "</" + tag + ">"

	start := strings.Index(template, startTag)
	end := strings.Index(template, endTag)
	if start == -1 || end == -1 || end < start+len(startTag) {
		return template
	}

	return template[:start+len(startTag)] + "\n" + content + "\n" + template[end:]
}
