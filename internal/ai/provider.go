package ai

import "context"

// Message is one role-tagged message in a generation request.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Usage selects the sampling profile for a request. Dialogue wants warmth
// and variety; planning and analytics want low temperature and few tokens.
type Usage string

const (
	UsageDialogue  Usage = "dialogue"
	UsagePlanning  Usage = "planning"
	UsageAnalytics Usage = "analytics"
)

// Params are the category-specific sampling parameters.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// ParamsFor returns the sampling profile for a usage category. Unknown
// categories get the dialogue profile.
func ParamsFor(u Usage) Params {
	switch u {
	case UsagePlanning:
		return Params{Temperature: 0.4, MaxTokens: 500}
	case UsageAnalytics:
		return Params{Temperature: 0.2, MaxTokens: 300}
	default:
		return Params{Temperature: 0.9, MaxTokens: 700}
	}
}

// Provider is the text-generation service boundary. Implementations must be
// safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, usage Usage, messages []Message) (string, error)
}
