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

	"github.com/rs/zerolog"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Enabled bool
}

// GeminiService calls the generateContent REST endpoint. Each call tries the
// configured model, then the default model, retrying once on 429/503.
type GeminiService struct {
	apiKey     string
	enabled    bool
	baseURL    string
	models     []string
	http       *http.Client
	log        zerolog.Logger
	retryDelay time.Duration
}

func NewGeminiService(cfg GeminiConfig, log zerolog.Logger) *GeminiService {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	models := []string{}
	for _, m := range []string{cfg.Model, defaultGeminiModel} {
		if m = strings.TrimSpace(m); m != "" && !containsString(models, m) {
			models = append(models, m)
		}
	}
	return &GeminiService{
		apiKey:     cfg.APIKey,
		enabled:    cfg.Enabled,
		baseURL:    base,
		models:     models,
		http:       &http.Client{Timeout: 60 * time.Second},
		log:        log,
		retryDelay: 2 * time.Second,
	}
}

func (s *GeminiService) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
}

type generateRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// statusError keeps the HTTP status so retries can be decided without string matching.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	return s.Chat(ctx, nil, prompt, "")
}

func (s *GeminiService) Chat(ctx context.Context, history []ChatMessage, message, systemInstruction string) (string, error) {
	if !s.enabled {
		s.log.Warn().Msg("disabled via config (IS_GEMINI_ENABLED=0)")
		return "", ErrDisabled
	}
	if strings.TrimSpace(s.apiKey) == "" {
		s.log.Warn().Msg("GEMINI_API_KEY is not set")
		return "", ErrMissingAPIKey
	}

	req := generateRequest{
		Contents: make([]geminiContent, 0, len(history)+1),
		GenerationConfig: generationConfig{
			Temperature:     0.6,
			MaxOutputTokens: 2048,
			TopK:            40,
			TopP:            0.9,
		},
	}
	if strings.TrimSpace(systemInstruction) != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}}
	}
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != RoleUser && role != RoleModel {
			role = RoleUser
		}
		req.Contents = append(req.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Text}}})
	}
	req.Contents = append(req.Contents, geminiContent{Role: RoleUser, Parts: []geminiPart{{Text: message}}})

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var errs []error
	for _, m := range s.models {
		text, err := s.generateContent(ctx, m, body)
		if err != nil && isRetriable(err) {
			sleepWithContext(ctx, s.retryDelay)
			text, err = s.generateContent(ctx, m, body)
		}
		if err == nil {
			return text, nil
		}
		s.log.Warn().Err(err).Str("model", m).Msg("model failed")
		errs = append(errs, fmt.Errorf("%s: %w", m, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all gemini models failed: %w", errors.Join(errs...))
}

func (s *GeminiService) generateContent(ctx context.Context, model string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", s.baseURL, model)
	s.log.Debug().Str("model", model).Msg("generateContent")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBytes))}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, c := range parsed.Candidates {
		for _, p := range c.Content.Parts {
			if t := strings.TrimSpace(p.Text); t != "" {
				return t, nil
			}
		}
	}
	return "", ErrEmptyResponse
}

func isRetriable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code == http.StatusServiceUnavailable
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
