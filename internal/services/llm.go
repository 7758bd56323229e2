package services

import (
	"context"
)

// ResponseFormat asks the backend for plain text or a JSON object.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json_object"
)

const (
	DefaultMaxTokens           = 8192
	DefaultGenerateTemperature = 1.5
	DefaultCheckTemperature    = 0.0
)

// Request is a single-prompt completion request.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	Format      ResponseFormat
}

// LLMService defines the interface for interacting with an LLM backend
type LLMService interface {
	// GenerateResponse returns the completion text for the prompt.
	// Backend failures are returned as *LLMError.
	GenerateResponse(ctx context.Context, req Request) (string, error)

	// ModelName returns the backend model identifier
	ModelName() string
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}
