package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moch-ai/moch-gateway/internal/config"
	"github.com/moch-ai/moch-gateway/internal/types"
)

func newTestInvoker(baseURL string) *Invoker {
	return NewInvoker(config.ProviderConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestInvoke_Anthropic(t *testing.T) {
	const modelID = "anthropic.claude-3-haiku-20240307-v1:0"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/model/"+modelID+"/invoke" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"Hello there"}],"usage":{"input_tokens":5,"output_tokens":2}}`))
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	body, _ := BuildRequestBody([]types.Message{{Role: "user", Content: "Hi"}}, "", modelID, 0.5, 100)

	text, usage, err := inv.Invoke(context.Background(), modelID, body)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if text != "Hello there" {
		t.Errorf("unexpected text: %q", text)
	}
	if usage.InputTokens != 5 || usage.OutputTokens != 2 {
		t.Errorf("unexpected usage: %+v", usage)
	}
}

func TestInvoke_UnwrapsResponseTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"<response>  inner  </response>"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	text, _, err := inv.Invoke(context.Background(), "anthropic.claude-v2", []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if text != "inner" {
		t.Errorf("expected unwrapped trimmed text, got %q", text)
	}
}

func TestInvoke_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"model is overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	_, _, err := inv.Invoke(context.Background(), "anthropic.claude-v2", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error")
	}

	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvocationError, got %T", err)
	}
	if invErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unexpected status code: %d", invErr.StatusCode)
	}
	if invErr.ModelID != "anthropic.claude-v2" {
		t.Errorf("unexpected model id: %s", invErr.ModelID)
	}
}

func TestInvoke_NetworkError(t *testing.T) {
	inv := newTestInvoker("http://127.0.0.1:1")
	_, _, err := inv.Invoke(context.Background(), "anthropic.claude-v2", []byte(`{}`))

	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvocationError, got %T (%v)", err, err)
	}
}

func TestInvoke_DefaultFamilyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"completion":"flat answer"}`))
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.URL)
	text, usage, err := inv.Invoke(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if text != "flat answer" {
		t.Errorf("unexpected text: %q", text)
	}
	if usage != (types.Usage{}) {
		t.Errorf("expected zero usage, got %+v", usage)
	}
}
