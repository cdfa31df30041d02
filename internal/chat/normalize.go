package chat

import "github.com/moch-ai/moch-gateway/internal/types"

// Normalize merges the prior conversation with the new user message. Some
// clients already append the new message to the history they submit, so a
// trailing user entry with byte-identical content is not duplicated.
func Normalize(message string, history []types.Message) []types.Message {
	messages := make([]types.Message, 0, len(history)+1)
	messages = append(messages, history...)

	if n := len(messages); n > 0 {
		last := messages[n-1]
		if last.Role == types.RoleUser && last.Content == message {
			return messages
		}
	}

	return append(messages, types.Message{Role: types.RoleUser, Content: message})
}
