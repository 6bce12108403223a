package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is embedded in a Conversation and has no identity of its own. ID and
// ConversationID exist only for the relational backends.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"-" bson:"-"`
	ConversationID string    `gorm:"size:36;index;not null" json:"-" bson:"-"`
	Role           Role      `gorm:"size:20;not null" json:"role" bson:"role" validate:"required,oneof=user assistant"`
	Content        string    `gorm:"type:text;not null" json:"content" bson:"content" validate:"required"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewMessage builds a message, rejecting unknown roles and blank content.
func NewMessage(role Role, content string, at time.Time) (Message, error) {
	m := Message{Role: role, Content: content, Timestamp: at}
	if err := validate.Struct(m); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("invalid message: content is blank")
	}
	return m, nil
}

// Valid reports whether m could have been produced by NewMessage. Used on
// data read back from storage.
func (m Message) Valid() bool {
	return (m.Role == RoleUser || m.Role == RoleAssistant) && strings.TrimSpace(m.Content) != ""
}
