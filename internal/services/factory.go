package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwebster45206/story-forge/internal/config"
)

const (
	BackendGemini     = "gemini"
	BackendGroq       = "groq"
	BackendOpenRouter = "openrouter"
)

// ResolveModel splits a model argument into backend and backend model name.
// "gemini/x" and "models/x" select Gemini, "groq/x" selects Groq and
// "openrouter/x" or any unprefixed name selects OpenRouter. An empty input
// returns the fallback backend with an empty model so the backend default applies.
func ResolveModel(input, fallbackBackend string) (backend, model string) {
	switch {
	case input == "":
		if fallbackBackend == "" {
			fallbackBackend = BackendOpenRouter
		}
		return fallbackBackend, ""
	case strings.HasPrefix(input, "gemini/"):
		return BackendGemini, strings.TrimPrefix(input, "gemini/")
	case strings.HasPrefix(input, "models/"):
		return BackendGemini, input
	case strings.HasPrefix(input, "groq/"):
		return BackendGroq, strings.TrimPrefix(input, "groq/")
	case strings.HasPrefix(input, "openrouter/"):
		return BackendOpenRouter, strings.TrimPrefix(input, "openrouter/")
	}
	if fallbackBackend != "" {
		return fallbackBackend, input
	}
	return BackendOpenRouter, input
}

// NewLLMService builds the backend selected by model. fallbackBackend is used
// for unprefixed names, which lets --check-model reuse the generation backend.
func NewLLMService(ctx context.Context, cfg *config.Config, model, fallbackBackend string) (LLMService, string, error) {
	backend, name := ResolveModel(model, fallbackBackend)
	switch backend {
	case BackendGemini:
		svc, err := NewGeminiService(ctx, cfg.GeminiAPIKey, name)
		if err != nil {
			return nil, "", err
		}
		return svc, backend, nil
	case BackendGroq:
		if cfg.GroqAPIKey == "" {
			return nil, "", fmt.Errorf("GROQ_API_KEY is not set")
		}
		if name == "" {
			return nil, "", fmt.Errorf("groq backend requires a model name")
		}
		return NewGroqService(cfg.GroqAPIKey, cfg.GroqBaseURL, name, cfg.LLMTimeout), backend, nil
	case BackendOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return nil, "", fmt.Errorf("OPENROUTER_API_KEY is not set")
		}
		return NewOpenRouterService(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, name, cfg.LLMTimeout), backend, nil
	default:
		return nil, "", fmt.Errorf("unsupported LLM backend: %s", backend)
	}
}
