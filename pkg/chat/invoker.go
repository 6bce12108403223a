package chat

import (
	"context"
	"strings"

	"Aarogya/pkg/metrics"
	"Aarogya/pkg/services"

	"github.com/rs/zerolog"
)

const (
	// Framing establishes the assistant persona and disclaimer behaviour.
	Framing = "You are Aarogya, an AI medical assistant. Only answer questions related to medicine, health, and wellness. " +
		"Always include appropriate disclaimers about consulting healthcare professionals for proper diagnosis and treatment."

	// FallbackText replaces any completion that fails or comes back empty.
	FallbackText = "Sorry, I couldn't process your request."
)

type FramingMode string

const (
	FramingSystem FramingMode = "system" // sent as the provider system instruction
	FramingInline FramingMode = "inline" // prepended to the user prompt
)

// Chatter is the multi-turn completion the invoker needs.
type Chatter interface {
	Chat(ctx context.Context, history []services.ChatMessage, message, systemInstruction string) (string, error)
}

type Invoker struct {
	chat Chatter
	mode FramingMode
	log  zerolog.Logger
}

func NewInvoker(c Chatter, mode FramingMode, log zerolog.Logger) *Invoker {
	if mode != FramingInline {
		mode = FramingSystem
	}
	return &Invoker{chat: c, mode: mode, log: log}
}

// Complete always returns text to store: the provider's answer or FallbackText.
func (inv *Invoker) Complete(ctx context.Context, turns []services.ChatMessage, prompt, framing string) string {
	message, system := prompt, framing
	if inv.mode == FramingInline && framing != "" {
		message = framing + " User question: " + prompt
		system = ""
	}

	text, err := inv.chat.Chat(ctx, turns, message, system)
	if err != nil {
		inv.log.Warn().Err(err).Int("turns", len(turns)).Msg("completion failed, using fallback")
		metrics.CompletionFallbacks.Inc()
		return FallbackText
	}
	if text = strings.TrimSpace(text); text == "" {
		inv.log.Warn().Msg("empty completion, using fallback")
		metrics.CompletionFallbacks.Inc()
		return FallbackText
	}
	return text
}
