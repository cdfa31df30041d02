package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moch-ai/moch-gateway/internal/types"
)

// Family selects the wire shape for a model. Anthropic Claude models on the
// runtime use the Messages-style body; everything else falls back to the
// flat completion shape.
type Family int

const (
	FamilyAnthropic Family = iota
	FamilyDefault
)

const (
	anthropicMarker  = "anthropic.claude"
	anthropicVersion = "bedrock-2023-05-31"
)

func FamilyFor(modelID string) Family {
	if strings.Contains(modelID, anthropicMarker) {
		return FamilyAnthropic
	}
	return FamilyDefault
}

type anthropicRequestBody struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	System           string          `json:"system"`
	Messages         []types.Message `json:"messages"`
}

type defaultRequestBody struct {
	Messages    []types.Message `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system"`
}

// BuildRequestBody maps the normalized messages, system prompt, and generation
// parameters to the model family's wire shape. Pure mapping, no I/O.
func BuildRequestBody(messages []types.Message, systemPrompt, modelID string, temperature float64, maxTokens int) ([]byte, error) {
	var body interface{}
	switch FamilyFor(modelID) {
	case FamilyAnthropic:
		body = anthropicRequestBody{
			AnthropicVersion: anthropicVersion,
			MaxTokens:        maxTokens,
			Temperature:      temperature,
			System:           systemPrompt,
			Messages:         messages,
		}
	default:
		body = defaultRequestBody{
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			System:      systemPrompt,
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body for %s: %w", modelID, err)
	}
	return data, nil
}

type anthropicResponseBody struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type defaultResponseBody struct {
	Completion string `json:"completion"`
}

// parseResponse extracts the generated text and usage counters from a complete
// provider response body.
func parseResponse(modelID string, body []byte) (string, types.Usage, error) {
	if FamilyFor(modelID) == FamilyAnthropic {
		var resp anthropicResponseBody
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", types.Usage{}, fmt.Errorf("unmarshal anthropic response: %w", err)
		}
		var text string
		for _, block := range resp.Content {
			if block.Type == "text" {
				text = block.Text
				break
			}
		}
		return text, types.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}, nil
	}

	var resp defaultResponseBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", types.Usage{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Completion == "" {
		// No completion field; surface the raw body rather than nothing.
		return string(body), types.Usage{}, nil
	}
	return resp.Completion, types.Usage{}, nil
}

const (
	responseStartTag = "<response>"
	responseEndTag   = "</response>"
)

// UnwrapResponse returns the trimmed inner text of a <response>...</response>
// region when one is present, and the text unmodified otherwise.
func UnwrapResponse(text string) string {
	start := strings.Index(text, responseStartTag)
	if start == -1 {
		return text
	}
	inner := text[start+len(responseStartTag):]
	end := strings.Index(inner, responseEndTag)
	if end == -1 {
		return text
	}
	return strings.TrimSpace(inner[:end])
}
