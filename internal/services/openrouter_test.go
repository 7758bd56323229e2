package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenRouterService_Defaults(t *testing.T) {
	service := NewOpenRouterService("key", "", "", 0)

	if service.baseURL != DefaultOpenRouterBaseURL {
		t.Errorf("Expected baseURL %s, got %s", DefaultOpenRouterBaseURL, service.baseURL)
	}
	if service.ModelName() != DefaultOpenRouterModel {
		t.Errorf("Expected model %s, got %s", DefaultOpenRouterModel, service.ModelName())
	}
	if service.httpClient == nil {
		t.Error("Expected httpClient to be initialized")
	}
}

func TestOpenRouterService_GenerateResponse(t *testing.T) {
	var got OpenRouterChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"こんにちは"}}]}`))
	}))
	defer server.Close()

	service := NewOpenRouterService("test-key", server.URL+"/", "openai:gpt-4o-mini", time.Second)
	text, err := service.GenerateResponse(context.Background(), Request{
		Prompt:      "挨拶して",
		Temperature: 0.7,
		Format:      FormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", text)

	assert.Equal(t, "openai:gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "挨拶して", got.Messages[0].Content)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenRouterService_ErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   ErrorKind
		wantStatus int
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantKind: KindRateLimited, wantStatus: 429},
		{name: "bad gateway", status: http.StatusBadGateway, body: `{}`, wantKind: KindTransient, wantStatus: 502},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, wantKind: KindFatal, wantStatus: 401},
		{name: "error in 200 body", status: http.StatusOK, body: `{"error":{"message":"Rate limit exceeded","code":429}}`, wantKind: KindRateLimited, wantStatus: 429},
		{name: "garbage body", status: http.StatusOK, body: `not json`, wantKind: KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			service := NewOpenRouterService("k", server.URL, "m", time.Second)
			_, err := service.GenerateResponse(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)

			var llmErr *LLMError
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantKind, llmErr.Kind)
			assert.Equal(t, tt.wantStatus, llmErr.StatusCode)
			assert.Equal(t, "openrouter", llmErr.Backend)
		})
	}
}

func TestOpenRouterService_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	service := NewOpenRouterService("k", server.URL, "m", time.Second)
	text, err := service.GenerateResponse(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindFatal, KindOf(assert.AnError))
	wrapped := &LLMError{Backend: "x", Kind: KindRateLimited, Err: assert.AnError}
	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(&LLMError{Kind: KindFatal}))
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Contains(t, newStatusError("x", 503, assert.AnError).Error(), "status 503")
}
