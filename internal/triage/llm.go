package triage

import "context"

// Backend is the interface for any classification LLM provider.
// Implementations send a two-message exchange (system policy + user brief)
// and return the model's raw text verbatim, decorations included: cleanup
// is the result extractor's job. Transport and API errors must propagate.
type Backend interface {
	Classify(ctx context.Context, req *ClassifyRequest) (string, error)
}

// ClassifyRequest is the input to a classification call.
type ClassifyRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}
