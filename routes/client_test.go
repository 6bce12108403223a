package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/apperr"
	"Aarogya/pkg/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile(t *testing.T) {
	h := newHarness(t)
	alice := token(t, "alice")
	conv := h.create(t, alice, "")
	h.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", alice, map[string]string{"prompt": "I feel dizzy"})

	w := h.do(t, http.MethodGet, "/api/profile", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[struct {
		ID            string    `json:"id"`
		Conversations int       `json:"conversations"`
		Messages      int       `json:"messages"`
		ExpiresAt     time.Time `json:"sessionExpiresAt"`
	}](t, w)
	assert.Equal(t, "alice", got.ID)
	assert.Equal(t, 1, got.Conversations)
	assert.Equal(t, 2, got.Messages)
	assert.True(t, got.ExpiresAt.After(time.Now()))
}

func TestSessionOverHTTP(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)
	ctx := context.Background()

	tok := token(t, "alice")
	s := client.NewSession(client.NewHTTPClient(srv.URL, tok), client.WithRevealInterval(time.Millisecond))
	s.SignIn("alice")

	p, err := s.Send(ctx, "My ankle is swollen after a run")
	require.NoError(t, err)
	p.Wait()

	active := s.Active()
	require.NotNil(t, active)
	require.Len(t, active.Messages, 2)
	assert.Equal(t, models.RoleAssistant, active.Messages[1].Role)
	assert.Equal(t, "Consider rest and hydration... consult a doctor if it persists.", active.Messages[1].Content)

	// the server auto-titled the conversation the same way the client did
	require.NoError(t, s.Refresh(ctx, ""))
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, active.Name, list[0].Name)
	assert.Equal(t, 2, list[0].MessagesCount)

	require.NoError(t, s.Select(ctx, active.ID))
	assert.Len(t, s.Active().Messages, 2)

	require.NoError(t, s.Rename(ctx, active.ID, "Ankle"))
	assert.Equal(t, "Ankle", s.List()[0].Name)

	err = s.Select(ctx, "does-not-exist")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.SignOut(ctx))
	// the revoked token no longer works
	_, err = client.NewHTTPClient(srv.URL, tok).ListConversations(ctx, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestSessionRollsBackOnServerRejection(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)
	ctx := context.Background()

	api := client.NewHTTPClient(srv.URL, token(t, "alice"))
	s := client.NewSession(api, client.WithRevealInterval(0))
	s.SignIn("alice")
	conv, err := s.NewConversation(ctx, "")
	require.NoError(t, err)

	// removed behind the client's back
	require.NoError(t, api.DeleteConversation(ctx, conv.ID))

	_, err = s.Send(ctx, "chest tightness when climbing stairs")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Empty(t, s.Active().Messages)
	assert.Equal(t, "chest tightness when climbing stairs", s.Draft())
	assert.False(t, s.Busy())
}
