package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openRouterBackend        = "openrouter"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api"
	DefaultOpenRouterModel   = "openai:gpt-4o-mini"
)

// OpenRouterService implements LLMService for OpenRouter's OpenAI-compatible API
type OpenRouterService struct {
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
}

type OpenRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenRouterResponseFormat struct {
	Type string `json:"type"`
}

// OpenRouterChatRequest represents the request structure for chat completions
type OpenRouterChatRequest struct {
	Model          string                    `json:"model"`
	Messages       []OpenRouterMessage       `json:"messages"`
	Temperature    float64                   `json:"temperature"`
	MaxTokens      int                       `json:"max_tokens,omitempty"`
	ResponseFormat *OpenRouterResponseFormat `json:"response_format,omitempty"`
}

// OpenRouterChatResponse represents the response structure for chat completions
type OpenRouterChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenRouterService creates a new OpenRouter service
func NewOpenRouterService(apiKey, baseURL, modelName string, timeout time.Duration) *OpenRouterService {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	if modelName == "" {
		modelName = DefaultOpenRouterModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenRouterService{
		apiKey:    apiKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		modelName: modelName,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *OpenRouterService) ModelName() string {
	return o.modelName
}

// GenerateResponse makes a chat completion request with the prompt as a single user message
func (o *OpenRouterService) GenerateResponse(ctx context.Context, r Request) (string, error) {
	orReq := OpenRouterChatRequest{
		Model:       o.modelName,
		Messages:    []OpenRouterMessage{{Role: "user", Content: r.Prompt}},
		Temperature: r.Temperature,
		MaxTokens:   r.maxTokens(),
	}
	if r.Format == FormatJSON {
		orReq.ResponseFormat = &OpenRouterResponseFormat{Type: string(FormatJSON)}
	}

	reqBody, err := json.Marshal(orReq)
	if err != nil {
		return "", &LLMError{Backend: openRouterBackend, Kind: KindFatal, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/v1/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", &LLMError{Backend: openRouterBackend, Kind: KindFatal, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		// network failures and client timeouts are worth another attempt
		return "", &LLMError{Backend: openRouterBackend, Kind: KindTransient, Err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &LLMError{Backend: openRouterBackend, Kind: KindTransient, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(openRouterBackend, resp.StatusCode,
			fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var orResp OpenRouterChatResponse
	if err := json.Unmarshal(body, &orResp); err != nil {
		return "", &LLMError{Backend: openRouterBackend, Kind: KindTransient, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	// OpenRouter reports upstream provider errors inside a 200 body
	if orResp.Error != nil {
		return "", newStatusError(openRouterBackend, orResp.Error.Code, errors.New(orResp.Error.Message))
	}

	if len(orResp.Choices) == 0 {
		return "", nil
	}

	return orResp.Choices[0].Message.Content, nil
}
