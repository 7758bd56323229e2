package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

const (
	geminiBackend      = "gemini"
	DefaultGeminiModel = "models/gemini-2.0-flash-001"
)

// GeminiService implements LLMService for Google Gemini
type GeminiService struct {
	client    *genai.Client
	modelName string
}

// NewGeminiService creates a Gemini client
func NewGeminiService(ctx context.Context, apiKey, modelName string) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiService{client: client, modelName: modelName}, nil
}

func (g *GeminiService) ModelName() string {
	return g.modelName
}

func (g *GeminiService) Close() error {
	return g.client.Close()
}

func (g *GeminiService) GenerateResponse(ctx context.Context, r Request) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(float32(r.Temperature))
	model.SetMaxOutputTokens(int32(r.maxTokens()))
	if r.Format == FormatJSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(r.Prompt))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func classifyGeminiError(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return newStatusError(geminiBackend, code, err)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			return &LLMError{Backend: geminiBackend, Kind: kindForGRPC(st.Code()), Err: err}
		}
	}
	if errors.Is(err, context.Canceled) {
		return &LLMError{Backend: geminiBackend, Kind: KindFatal, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &LLMError{Backend: geminiBackend, Kind: KindTransient, Err: err}
	}
	return &LLMError{Backend: geminiBackend, Kind: KindFatal, Err: err}
}

func kindForGRPC(code codes.Code) ErrorKind {
	switch code {
	case codes.ResourceExhausted:
		return KindRateLimited
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return KindTransient
	default:
		return KindFatal
	}
}
