// Package services talks to the hosted completion providers.
package services

import (
	"context"
	"errors"
	"fmt"

	"Aarogya/pkg/config"
	"Aarogya/pkg/logger"

	"github.com/rs/zerolog"
)

// Provider roles used in ChatMessage.Role.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	ErrDisabled      = errors.New("provider is disabled via config")
	ErrMissingAPIKey = errors.New("provider api key is not set")
	ErrEmptyResponse = errors.New("provider returned no text")
)

// ChatMessage is one provider-format turn.
type ChatMessage struct {
	Role string
	Text string
}

// Provider is a hosted (or local) text generator.
type Provider interface {
	Name() string
	// Generate answers a single prompt with no history.
	Generate(ctx context.Context, prompt string) (string, error)
	// Chat continues history with message. systemInstruction may be empty.
	Chat(ctx context.Context, history []ChatMessage, message, systemInstruction string) (string, error)
}

// NewProvider builds the provider selected by LLM_PROVIDER.
func NewProvider(cfg *config.Config, log zerolog.Logger) (Provider, error) {
	switch cfg.LLMProvider {
	case "gemini", "":
		return NewGeminiService(GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Enabled: cfg.IsGeminiEnabled,
		}, logger.Component(log, "gemini")), nil
	case "openai":
		return NewOpenAIService(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		}, logger.Component(log, "openai"))
	case "local":
		return NewLocalProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLMProvider)
	}
}
