// Package llm defines the engine's boundary with the language-model
// provider: a structured prompt, a Client interface, an Anthropic-backed
// implementation, and a scriptable mock for tests. The engine owns parsing
// of the returned text; transport, retries and provider selection live
// here and nowhere else.
package llm

import "context"

// Role labels one history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior exchange in the conversation history.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Prompt is the structured request the engine builds for one model call.
type Prompt struct {
	// System is the system instruction; empty means none.
	System string `json:"systemInstruction,omitempty"`
	// History is the prior conversation, oldest first.
	History []Message `json:"history,omitempty"`
	// Message is the new user-turn payload.
	Message string `json:"message"`
	// Title names the call for logging and error reports.
	Title string `json:"title,omitempty"`
}

// Client executes one model call. Implementations must be safe for
// sequential reuse; the session never issues concurrent calls.
type Client interface {
	// Complete sends the prompt and returns the raw response text.
	Complete(ctx context.Context, prompt Prompt) (string, error)
}
