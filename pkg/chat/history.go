// Package chat runs the moderated completion pipeline: topic gate, history
// adaptation, completion and a single append of the resulting exchange.
package chat

import (
	"strings"

	"Aarogya/models"
	"Aarogya/pkg/services"
)

// AdaptHistory converts stored messages into provider turns. Messages with an
// unknown role or blank content are dropped, assistant becomes model, and the
// result starts at the first user turn (empty if there is none).
func AdaptHistory(stored []models.Message) []services.ChatMessage {
	turns := make([]services.ChatMessage, 0, len(stored))
	for _, m := range stored {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		var role string
		switch m.Role {
		case models.RoleUser:
			role = services.RoleUser
		case models.RoleAssistant:
			role = services.RoleModel
		default:
			continue
		}
		turns = append(turns, services.ChatMessage{Role: role, Text: m.Content})
	}

	for i, t := range turns {
		if t.Role == services.RoleUser {
			return turns[i:]
		}
	}
	return []services.ChatMessage{}
}
