package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(b)
}

func newTestGemini(url, model string) *GeminiService {
	s := NewGeminiService(GeminiConfig{APIKey: "k", Model: model, BaseURL: url, Enabled: true}, zerolog.Nop())
	s.retryDelay = 0
	return s
}

func TestGeminiChatRequestShape(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(geminiReply("  Drink water.  ")))
	}))
	defer srv.Close()

	s := newTestGemini(srv.URL, "gemini-test")
	text, err := s.Chat(context.Background(), []ChatMessage{
		{Role: RoleUser, Text: "I have a headache"},
		{Role: RoleModel, Text: "Since when?"},
	}, "Since this morning", "be careful")
	require.NoError(t, err)
	assert.Equal(t, "Drink water.", text)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be careful", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, []string{"user", "model", "user"}, []string{got.Contents[0].Role, got.Contents[1].Role, got.Contents[2].Role})
	assert.Equal(t, "Since this morning", got.Contents[2].Parts[0].Text)
}

func TestGeminiGenerateOmitsSystemInstruction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, has := raw["systemInstruction"]
		assert.False(t, has)
		_, _ = w.Write([]byte(geminiReply("yes")))
	}))
	defer srv.Close()

	text, err := newTestGemini(srv.URL, "").Generate(context.Background(), "is this medical?")
	require.NoError(t, err)
	assert.Equal(t, "yes", text)
}

func TestGeminiRetriesThenFallsBackToDefaultModel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if strings.Contains(r.URL.Path, "broken-model") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(geminiReply("from default")))
	}))
	defer srv.Close()

	text, err := newTestGemini(srv.URL, "broken-model").Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from default", text)
	// two attempts on the broken model, one on the default
	assert.EqualValues(t, 3, calls.Load())
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL, "").Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestGeminiDisabledAndMissingKey(t *testing.T) {
	s := NewGeminiService(GeminiConfig{APIKey: "k", Enabled: false}, zerolog.Nop())
	_, err := s.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrDisabled)

	s = NewGeminiService(GeminiConfig{Enabled: true}, zerolog.Nop())
	_, err = s.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestIsRetriable(t *testing.T) {
	assert.True(t, isRetriable(&statusError{Code: 429}))
	assert.True(t, isRetriable(&statusError{Code: 503}))
	assert.False(t, isRetriable(&statusError{Code: 400}))
	assert.False(t, isRetriable(errors.New("status 503")))
}
