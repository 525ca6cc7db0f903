// Package ai turns learner progress into short coaching text through
// OpenAI-compatible chat models. Callers always keep a template answer,
// so every failure here is recoverable.
package ai

import "context"

// TaskType says what the coach is asking for. It bounds the reply length
// and is logged with every request.
type TaskType int

const (
	// TaskNudge is a short daily encouragement.
	TaskNudge TaskType = iota
	// TaskExplanation walks through one knowledge point.
	TaskExplanation
	// TaskAnalysis summarises a learner's progress for a parent or teacher.
	TaskAnalysis
)

func (t TaskType) String() string {
	switch t {
	case TaskNudge:
		return "nudge"
	case TaskExplanation:
		return "explanation"
	case TaskAnalysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// MaxTokens is the reply cap applied when a request leaves MaxTokens unset.
// Pupils read short messages, so nudges stay small.
func (t TaskType) MaxTokens() int {
	switch t {
	case TaskExplanation:
		return 768
	case TaskAnalysis:
		return 1024
	default:
		return 256
	}
}

// Chat roles understood by every supported provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a coaching prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage and UserMessage build prompt turns.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// CompletionRequest asks for one coaching reply. UserID is the learner the
// tokens are charged to; it is never sent to the provider.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	UserID      string    `json:"-"`
}

// withDefaults fills the task's token cap.
func (r CompletionRequest) withDefaults() CompletionRequest {
	if r.MaxTokens <= 0 {
		r.MaxTokens = r.Task.MaxTokens()
	}
	return r
}

// CompletionResponse is a provider's reply and its token bill.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens is what the learner's daily budget is charged.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes a model a provider offers.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is one chat-completion backend behind the Router.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
