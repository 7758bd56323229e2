package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	groqBackend        = "groq"
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// GroqService implements LLMService for Groq's OpenAI-compatible endpoint
type GroqService struct {
	client    *openai.Client
	modelName string
}

// NewGroqService creates a Groq client on top of go-openai
func NewGroqService(apiKey, baseURL, modelName string, timeout time.Duration) *GroqService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	cfg.BaseURL = baseURL
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &GroqService{
		client:    openai.NewClientWithConfig(cfg),
		modelName: modelName,
	}
}

func (g *GroqService) ModelName() string {
	return g.modelName
}

func (g *GroqService) GenerateResponse(ctx context.Context, r Request) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: r.Prompt},
		},
		Temperature: float32(r.Temperature),
		MaxTokens:   r.maxTokens(),
	}
	if r.Format == FormatJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(groqBackend, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(backend string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newStatusError(backend, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newStatusError(backend, reqErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.Canceled) {
		return &LLMError{Backend: backend, Kind: KindFatal, Err: err}
	}
	return &LLMError{Backend: backend, Kind: KindTransient, Err: fmt.Errorf("request failed: %w", err)}
}
