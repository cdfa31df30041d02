package chat

import (
	"reflect"
	"testing"

	"github.com/moch-ai/moch-gateway/internal/types"
)

func TestNormalize_EmptyHistory(t *testing.T) {
	got := Normalize("Hi", nil)
	want := []types.Message{{Role: types.RoleUser, Content: "Hi"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_AppendsAfterAssistant(t *testing.T) {
	history := []types.Message{
		{Role: types.RoleUser, Content: "Hi"},
		{Role: types.RoleAssistant, Content: "Hello!"},
	}
	got := Normalize("How are you?", history)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	last := got[2]
	if last.Role != types.RoleUser || last.Content != "How are you?" {
		t.Errorf("unexpected last message: %+v", last)
	}
}

func TestNormalize_DeduplicatesTrailingUserMessage(t *testing.T) {
	history := []types.Message{
		{Role: types.RoleAssistant, Content: "Hello!"},
		{Role: types.RoleUser, Content: "How are you?"},
	}
	got := Normalize("How are you?", history)
	if !reflect.DeepEqual(got, history) {
		t.Errorf("expected history unchanged, got %v", got)
	}
}

func TestNormalize_SameContentDifferentRoleAppends(t *testing.T) {
	history := []types.Message{
		{Role: types.RoleAssistant, Content: "ping"},
	}
	got := Normalize("ping", history)
	if len(got) != 2 {
		t.Fatalf("expected append when trailing role differs, got %v", got)
	}
}

func TestNormalize_SameRoleDifferentContentAppends(t *testing.T) {
	history := []types.Message{
		{Role: types.RoleUser, Content: "first question"},
	}
	got := Normalize("second question", history)
	if len(got) != 2 {
		t.Fatalf("expected append when trailing content differs, got %v", got)
	}
}

func TestNormalize_ExactContentMatchOnly(t *testing.T) {
	// Dedup is byte-for-byte; whitespace differences count as new content.
	history := []types.Message{
		{Role: types.RoleUser, Content: "hello "},
	}
	got := Normalize("hello", history)
	if len(got) != 2 {
		t.Fatalf("expected append for non-identical content, got %v", got)
	}
}

func TestNormalize_DoesNotMutateHistory(t *testing.T) {
	history := []types.Message{
		{Role: types.RoleUser, Content: "a"},
		{Role: types.RoleAssistant, Content: "b"},
	}
	snapshot := make([]types.Message, len(history))
	copy(snapshot, history)

	Normalize("c", history)

	if !reflect.DeepEqual(history, snapshot) {
		t.Error("Normalize mutated the caller's history slice")
	}
}
