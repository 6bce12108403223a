package chat

import (
	"context"
	"errors"
	"testing"

	"Aarogya/pkg/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokerSystemFraming(t *testing.T) {
	p := &fakeProvider{answer: "  Rest and hydrate.  "}
	inv := NewInvoker(p, FramingSystem, zerolog.Nop())
	turns := []services.ChatMessage{{Role: services.RoleUser, Text: "hi"}}

	out := inv.Complete(context.Background(), turns, "headache", Framing)
	assert.Equal(t, "Rest and hydrate.", out)

	calls := p.chats()
	require.Len(t, calls, 1)
	assert.Equal(t, "headache", calls[0].message)
	assert.Equal(t, Framing, calls[0].system)
	assert.Equal(t, turns, calls[0].history)
}

func TestInvokerInlineFraming(t *testing.T) {
	p := &fakeProvider{answer: "ok"}
	inv := NewInvoker(p, FramingInline, zerolog.Nop())

	inv.Complete(context.Background(), nil, "headache", Framing)

	calls := p.chats()
	require.Len(t, calls, 1)
	assert.Equal(t, Framing+" User question: headache", calls[0].message)
	assert.Empty(t, calls[0].system)
}

func TestInvokerFallback(t *testing.T) {
	for name, p := range map[string]*fakeProvider{
		"error": {chatErr: errors.New("boom")},
		"empty": {answer: " \n "},
	} {
		t.Run(name, func(t *testing.T) {
			inv := NewInvoker(p, "", zerolog.Nop())
			assert.Equal(t, FallbackText, inv.Complete(context.Background(), nil, "q", Framing))
		})
	}
}
