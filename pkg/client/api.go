// Package client is the client side of the chat service: an HTTP API client
// and the reconciliation layer that keeps a local view of the caller's
// conversations consistent with the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/apperr"
)

// API is the server surface the reconciliation layer needs.
type API interface {
	CreateConversation(ctx context.Context, name string) (*models.Conversation, error)
	ListConversations(ctx context.Context, query string) ([]models.Summary, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	SendPrompt(ctx context.Context, id, prompt string) (models.Message, error)
	RenameConversation(ctx context.Context, id, name string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	DeleteAllConversations(ctx context.Context) (int64, error)
	Logout(ctx context.Context) error
}

// HTTPClient talks to the JSON API under /api with a bearer token.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// a send may take the whole pipeline budget
		http: &http.Client{Timeout: 90 * time.Second},
	}
}

type envelope struct {
	Success       bool                 `json:"success"`
	Msg           string               `json:"msg"`
	Conversation  *models.Conversation `json:"conversation"`
	Conversations []models.Summary     `json:"conversations"`
	Message       *models.Message      `json:"message"`
	Count         int64                `json:"count"`
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "service unreachable", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env); err != nil && err != io.EOF {
		return nil, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("unexpected response (status %d)", resp.StatusCode), err)
	}
	if resp.StatusCode >= 300 {
		msg := env.Msg
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, apperr.New(kindForStatus(resp.StatusCode), msg)
	}
	return &env, nil
}

func kindForStatus(code int) apperr.Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.KindUnauthorized
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusBadRequest, http.StatusTooManyRequests:
		return apperr.KindValidation
	case http.StatusServiceUnavailable:
		return apperr.KindStoreUnavailable
	default:
		return apperr.KindInternal
	}
}

func conversationPath(id string) string {
	return "/api/conversations/" + url.PathEscape(id)
}

func (h *HTTPClient) CreateConversation(ctx context.Context, name string) (*models.Conversation, error) {
	env, err := h.do(ctx, http.MethodPost, "/api/conversations", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	return env.Conversation, nil
}

func (h *HTTPClient) ListConversations(ctx context.Context, query string) ([]models.Summary, error) {
	path := "/api/conversations"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	env, err := h.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return env.Conversations, nil
}

func (h *HTTPClient) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	env, err := h.do(ctx, http.MethodGet, conversationPath(id), nil)
	if err != nil {
		return nil, err
	}
	return env.Conversation, nil
}

func (h *HTTPClient) SendPrompt(ctx context.Context, id, prompt string) (models.Message, error) {
	env, err := h.do(ctx, http.MethodPost, conversationPath(id)+"/messages", map[string]string{"prompt": prompt})
	if err != nil {
		return models.Message{}, err
	}
	if env.Message == nil {
		return models.Message{}, apperr.New(apperr.KindInternal, "response had no message")
	}
	return *env.Message, nil
}

func (h *HTTPClient) RenameConversation(ctx context.Context, id, name string) (*models.Conversation, error) {
	env, err := h.do(ctx, http.MethodPatch, conversationPath(id), map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	return env.Conversation, nil
}

func (h *HTTPClient) DeleteConversation(ctx context.Context, id string) error {
	_, err := h.do(ctx, http.MethodDelete, conversationPath(id), nil)
	return err
}

func (h *HTTPClient) DeleteAllConversations(ctx context.Context) (int64, error) {
	env, err := h.do(ctx, http.MethodDelete, "/api/conversations", nil)
	if err != nil {
		return 0, err
	}
	return env.Count, nil
}

func (h *HTTPClient) Logout(ctx context.Context) error {
	_, err := h.do(ctx, http.MethodPost, "/api/logout", nil)
	return err
}
