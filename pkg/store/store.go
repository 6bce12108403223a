// Package store is the conversation persistence layer. Every read, update and
// delete is scoped by owner; a conversation owned by someone else is reported
// exactly like a missing one.
package store

import (
	"context"
	"strings"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/apperr"
	"Aarogya/pkg/metrics"
)

// Store is implemented by GormStore and MongoStore. Construct one at startup
// and share it; implementations pool their connections.
type Store interface {
	Create(ctx context.Context, ownerID, name string, initial []models.Message) (*models.Conversation, error)
	FindByIDForOwner(ctx context.Context, id, ownerID string) (*models.Conversation, error)
	ListForOwner(ctx context.Context, ownerID string, filter ListFilter) ([]models.Conversation, error)
	// AppendMessages adds messages to the end of the conversation without
	// replacing what is already stored, so concurrent appends all survive.
	AppendMessages(ctx context.Context, id, ownerID string, msgs []models.Message) (*models.Conversation, error)
	Rename(ctx context.Context, id, ownerID, newName string) (*models.Conversation, error)
	DeleteOne(ctx context.Context, id, ownerID string) (bool, error)
	DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListFilter narrows ListForOwner. Query matches name or message content,
// case-insensitively.
type ListFilter struct {
	Query string
}

func (f ListFilter) matches(c *models.Conversation) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Name), q) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.DefaultName
	}
	return name
}

func validateRename(newName string) (string, error) {
	n := strings.TrimSpace(newName)
	if n == "" {
		return "", apperr.New(apperr.KindValidation, "name must not be empty")
	}
	if len([]rune(n)) > 200 {
		return "", apperr.New(apperr.KindValidation, "name must be at most 200 characters")
	}
	return n, nil
}

func validateMessages(msgs []models.Message) error {
	if len(msgs) == 0 {
		return apperr.New(apperr.KindValidation, "no messages to append")
	}
	for _, m := range msgs {
		if !m.Valid() {
			return apperr.New(apperr.KindValidation, "invalid message")
		}
	}
	return nil
}

func observe(backend, op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
