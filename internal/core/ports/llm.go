package ports

import "context"

// ModelResponse carries the raw model output and its reported token usage.
// TotalTokens is zero when the backend did not report usage.
type ModelResponse struct {
	Content     string
	TotalTokens int
}

// ModelClient is the external language-model backend. Implementations must
// request a JSON-object completion for the given prompt.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (ModelResponse, error)
}
