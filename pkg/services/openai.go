package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for OpenAI-compatible gateways
}

// OpenAIService serves any OpenAI-compatible chat completions endpoint.
type OpenAIService struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

func NewOpenAIService(cfg OpenAIConfig, log zerolog.Logger) (*OpenAIService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	log.Info().Str("model", model).Msg("initializing openai client")
	return &OpenAIService{client: openai.NewClientWithConfig(oc), model: model, log: log}, nil
}

func (o *OpenAIService) Name() string { return "openai" }

func (o *OpenAIService) Generate(ctx context.Context, prompt string) (string, error) {
	return o.Chat(ctx, nil, prompt, "")
}

func (o *OpenAIService) Chat(ctx context.Context, history []ChatMessage, message, systemInstruction string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if strings.TrimSpace(systemInstruction) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemInstruction})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		o.log.Warn().Err(err).Msg("chat completion failed")
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	o.log.Debug().Str("finish_reason", string(resp.Choices[0].FinishReason)).Msg("completion received")
	return text, nil
}
