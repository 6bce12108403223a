package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"Aarogya/pkg/services"
	"Aarogya/pkg/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers Generate from a prompt substring table and records
// every Chat call.
type fakeProvider struct {
	mu sync.Mutex

	verdicts    map[string]string // substring of the query -> reply
	generateErr error
	generates   int

	answer    string
	chatErr   error
	chatCalls []chatCall
}

type chatCall struct {
	history []services.ChatMessage
	message string
	system  string
}

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generates++
	if f.generateErr != nil {
		return "", f.generateErr
	}
	for sub, reply := range f.verdicts {
		if strings.Contains(prompt, sub) {
			return reply, nil
		}
	}
	return "yes", nil
}

func (f *fakeProvider) Chat(_ context.Context, history []services.ChatMessage, message, system string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls = append(f.chatCalls, chatCall{
		history: append([]services.ChatMessage(nil), history...),
		message: message,
		system:  system,
	})
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.answer, nil
}

func (f *fakeProvider) chats() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatCall(nil), f.chatCalls...)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	s, err := store.OpenGorm("sqlite", dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func newTestPipeline(t *testing.T, p *fakeProvider) (*Pipeline, store.Store) {
	t.Helper()
	s := newTestStore(t)
	gate := NewTopicGate(p, GateOptions{}, zerolog.Nop())
	inv := NewInvoker(p, FramingSystem, zerolog.Nop())
	return NewPipeline(s, gate, inv, 0, zerolog.Nop()), s
}
