// Package llm provides the chat-completion client used for answer
// generation and routing classification.
package llm

import (
	"context"
	"encoding/json"
)

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles accepted by the chat-completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// JSONSchema describes a structured-output contract. The schema is passed
// verbatim to the provider's json_schema response format.
type JSONSchema struct {
	Name   string
	Schema json.RawMessage
}

// Client generates completions. Structured calls constrain the model output
// to a JSON schema and return the raw JSON for the caller to decode.
type Client interface {
	// Complete returns the assistant text for the given conversation.
	Complete(ctx context.Context, messages []Message) (string, error)

	// CompleteStructured returns assistant output constrained to schema.
	CompleteStructured(ctx context.Context, messages []Message, schema JSONSchema) (json.RawMessage, error)

	// ModelName returns the model identifier.
	ModelName() string
}
