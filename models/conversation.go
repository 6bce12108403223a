package models

import "time"

// DefaultName is given to conversations created without a name.
const DefaultName = "New Chat"

type Conversation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	OwnerID   string    `gorm:"size:191;not null;index" json:"ownerId" bson:"owner_id"`
	Name      string    `gorm:"size:200;not null" json:"name" bson:"name"`
	Messages  []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages" bson:"messages"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Summary is the list-view projection of a conversation.
type Summary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MessagesCount int       `json:"messagesCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (c *Conversation) Summary() Summary {
	return Summary{
		ID:            c.ID,
		Name:          c.Name,
		MessagesCount: len(c.Messages),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// Clone returns a deep copy so callers can mutate messages freely.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return &out
}
