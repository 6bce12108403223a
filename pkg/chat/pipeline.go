package chat

import (
	"context"
	"strings"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/apperr"
	"Aarogya/pkg/metrics"
	"Aarogya/pkg/services"
	"Aarogya/pkg/store"
	utils "Aarogya/pkg/utills"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RefusalText is stored as the answer to prompts the topic gate rejects.
const RefusalText = "I'm sorry, but I can only answer questions related to medical or health topics. Please ask a health-related question instead."

// titleLength is the rune budget for titles derived from the first prompt.
const titleLength = 30

// Classifier decides whether a prompt is in scope. Implemented by TopicGate.
type Classifier interface {
	Classify(ctx context.Context, prompt string) Decision
}

// Completer produces assistant text. Implemented by Invoker.
type Completer interface {
	Complete(ctx context.Context, turns []services.ChatMessage, prompt, framing string) string
}

// Result is what a successful run appended.
type Result struct {
	User         models.Message
	Assistant    models.Message
	Conversation *models.Conversation
	ShortCircuit bool
}

type Pipeline struct {
	store       store.Store
	gate        Classifier
	completer   Completer
	maxDuration time.Duration
	log         zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewPipeline(s store.Store, gate Classifier, completer Completer, maxDuration time.Duration, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:       s,
		gate:        gate,
		completer:   completer,
		maxDuration: maxDuration,
		log:         log,
		tracer:      otel.Tracer("Aarogya/pkg/chat"),
		now:         time.Now,
	}
}

// Send runs one prompt through the pipeline and appends the user message and
// the assistant answer in a single store call. The run is detached from the
// caller's cancellation so an abandoned request still persists its exchange;
// it is bounded by the pipeline's maximum duration instead.
func (p *Pipeline) Send(ctx context.Context, ownerID, conversationID, prompt string) (res *Result, err error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)
	if p.maxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.maxDuration)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "chat.pipeline", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	log := p.log.With().Str("conversation", conversationID).Str("owner", ownerID).Logger()

	defer func() {
		outcome := "responded"
		switch {
		case err != nil:
			outcome = apperr.KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		case res.ShortCircuit:
			outcome = "short_circuit"
		}
		span.SetAttributes(attribute.String("pipeline.outcome", outcome))
		metrics.PipelineRuns.WithLabelValues(outcome).Inc()
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	// Authorizing
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.ErrUnauthorized
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperr.New(apperr.KindValidation, "prompt is required")
	}

	// Loading
	conv, err := p.load(ctx, conversationID, ownerID)
	if err != nil {
		return nil, err
	}
	userMsg, err := models.NewMessage(models.RoleUser, prompt, p.now())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid prompt", err)
	}

	// Gating
	gctx, gspan := p.tracer.Start(ctx, "chat.gate")
	decision := p.gate.Classify(gctx, prompt)
	gspan.SetAttributes(attribute.String("gate.decision", decision.String()))
	gspan.End()

	var answer string
	shortCircuit := decision == OutOfScope
	if shortCircuit {
		log.Info().Msg("prompt outside medical scope, refusing")
		answer = RefusalText
	} else {
		// Adapting works on the history before this turn.
		turns := AdaptHistory(conv.Messages)

		ictx, ispan := p.tracer.Start(ctx, "chat.invoke", trace.WithAttributes(attribute.Int("history.turns", len(turns))))
		answer = p.completer.Complete(ictx, turns, prompt, Framing)
		ispan.End()
	}

	assistantMsg, err := models.NewMessage(models.RoleAssistant, answer, p.now())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "invalid assistant message", err)
	}

	// Persisting
	pctx, pspan := p.tracer.Start(ctx, "chat.persist")
	updated, err := p.store.AppendMessages(pctx, conv.ID, ownerID, []models.Message{userMsg, assistantMsg})
	pspan.End()
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, err
		}
		log.Error().Err(err).Msg("failed to persist exchange")
		return nil, apperr.Wrap(apperr.KindInternal, "failed to save messages", err)
	}

	if conv.Name == models.DefaultName && len(conv.Messages) == 0 {
		if renamed, err := p.store.Rename(ctx, conv.ID, ownerID, utils.Truncate(prompt, titleLength)); err != nil {
			log.Warn().Err(err).Msg("auto-title failed")
		} else {
			updated = renamed
		}
	}

	log.Debug().Bool("short_circuit", shortCircuit).Dur("took", time.Since(start)).Msg("exchange saved")
	return &Result{User: userMsg, Assistant: assistantMsg, Conversation: updated, ShortCircuit: shortCircuit}, nil
}

func (p *Pipeline) load(ctx context.Context, id, ownerID string) (*models.Conversation, error) {
	ctx, span := p.tracer.Start(ctx, "chat.load")
	defer span.End()
	conv, err := p.store.FindByIDForOwner(ctx, id, ownerID)
	if err == nil {
		return conv, nil
	}
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, err
	}
	p.log.Error().Err(err).Str("conversation", id).Msg("failed to load conversation")
	return nil, apperr.Wrap(apperr.KindInternal, "failed to load conversation", err)
}
