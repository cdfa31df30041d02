package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("expected event-stream accept header, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, event := range events {
			fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		}
	}))
}

func TestInvokeStream_Anthropic(t *testing.T) {
	srv := sseServer(t, []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":5}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"He"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"llo"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn","usage":{"output_tokens":2}}}`,
		`{"type":"message_stop"}`,
	})
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	stream, err := inv.InvokeStream(context.Background(), "anthropic.claude-3-haiku-20240307-v1:0", []byte(`{}`))
	if err != nil {
		t.Fatalf("InvokeStream failed: %v", err)
	}
	defer stream.Close()

	var fragments []string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		fragments = append(fragments, fragment)
	}

	if len(fragments) != 2 || fragments[0] != "He" || fragments[1] != "llo" {
		t.Errorf("unexpected fragments: %v", fragments)
	}
	if stream.Text() != "Hello" {
		t.Errorf("unexpected accumulated text: %q", stream.Text())
	}
	usage := stream.Usage()
	if usage.InputTokens != 5 {
		t.Errorf("expected input tokens from message_start, got %d", usage.InputTokens)
	}
	if usage.OutputTokens != 2 {
		t.Errorf("expected output tokens from message_delta, got %d", usage.OutputTokens)
	}
}

func TestInvokeStream_DefaultFamily(t *testing.T) {
	srv := sseServer(t, []string{
		`{"completion":"one "}`,
		`{"completion":"two"}`,
	})
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	stream, err := inv.InvokeStream(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	if err != nil {
		t.Fatalf("InvokeStream failed: %v", err)
	}
	defer stream.Close()

	var text string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		text += fragment
	}

	if text != "one two" {
		t.Errorf("unexpected text: %q", text)
	}
	if usage := stream.Usage(); usage.InputTokens != 0 || usage.OutputTokens != 0 {
		t.Errorf("expected zero usage, got %+v", usage)
	}
}

func TestInvokeStream_DoneSignalEndsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"completion\":\"x\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"completion\":\"after done\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	stream, err := inv.InvokeStream(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	if err != nil {
		t.Fatalf("InvokeStream failed: %v", err)
	}
	defer stream.Close()

	fragment, err := stream.Recv()
	if err != nil || fragment != "x" {
		t.Fatalf("expected first fragment x, got %q (%v)", fragment, err)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("expected io.EOF after [DONE], got %v", err)
	}
}

func TestInvokeStream_SkipsUnparseableEvents(t *testing.T) {
	srv := sseServer(t, []string{
		`not json at all`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"ok"}}`,
	})
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	stream, err := inv.InvokeStream(context.Background(), "anthropic.claude-v2", []byte(`{}`))
	if err != nil {
		t.Fatalf("InvokeStream failed: %v", err)
	}
	defer stream.Close()

	fragment, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if fragment != "ok" {
		t.Errorf("unexpected fragment: %q", fragment)
	}
}

func TestInvokeStream_ProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	if _, err := inv.InvokeStream(context.Background(), "anthropic.claude-v2", []byte(`{}`)); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestStream_CloseAfterPartialRead(t *testing.T) {
	srv := sseServer(t, []string{
		`{"completion":"a"}`,
		`{"completion":"b"}`,
		`{"completion":"c"}`,
	})
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	stream, err := inv.InvokeStream(context.Background(), "other-model", []byte(`{}`))
	if err != nil {
		t.Fatalf("InvokeStream failed: %v", err)
	}

	if _, err := stream.Recv(); err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
