package provider

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/moch-ai/moch-gateway/internal/types"
)

// Stream is a pull-based sequence of text fragments from one streaming
// invocation. Fragments are returned in provider-emission order; Recv returns
// io.EOF when the provider's stream ends. The accumulated text and final usage
// are only meaningful after the stream has been fully consumed. A Stream is
// finite and not restartable.
type Stream struct {
	modelID string
	family  Family
	resp    *http.Response
	scanner *bufio.Scanner
	full    strings.Builder
	usage   types.Usage
}

func newStream(modelID string, resp *http.Response) *Stream {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{
		modelID: modelID,
		family:  FamilyFor(modelID),
		resp:    resp,
		scanner: scanner,
	}
}

// Recv returns the next text fragment. It skips provider events that carry no
// text (usage bookkeeping happens as a side effect) and returns io.EOF once
// the stream is exhausted.
func (s *Stream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return "", io.EOF
		}

		fragment, emit := s.parseEvent([]byte(data))
		if !emit {
			continue
		}
		s.full.WriteString(fragment)
		return fragment, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", &InvocationError{ModelID: s.modelID, Err: err}
	}
	return "", io.EOF
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		Usage struct {
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"delta"`
}

type defaultStreamEvent struct {
	Completion string `json:"completion"`
}

// parseEvent decodes one provider event. Unparseable events are skipped rather
// than failing the stream.
func (s *Stream) parseEvent(data []byte) (fragment string, emit bool) {
	if s.family == FamilyAnthropic {
		var event anthropicStreamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return "", false
		}
		switch event.Type {
		case "message_start":
			s.usage.InputTokens = event.Message.Usage.InputTokens
			return "", false
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				return event.Delta.Text, true
			}
			return "", false
		case "message_delta":
			s.usage.OutputTokens = event.Delta.Usage.OutputTokens
			return "", false
		default:
			return "", false
		}
	}

	var event defaultStreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", false
	}
	return event.Completion, true
}

// Text returns the accumulated generated text so far.
func (s *Stream) Text() string { return s.full.String() }

// Usage returns the usage counters observed so far. Final values are available
// only after the stream has been consumed to io.EOF.
func (s *Stream) Usage() types.Usage { return s.usage }

// Close releases the underlying provider connection. Safe to call after a
// partial read; the transport tears the connection down promptly.
func (s *Stream) Close() error {
	return s.resp.Body.Close()
}
