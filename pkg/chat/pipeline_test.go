package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/apperr"
	"Aarogya/pkg/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const headacheAnswer = "Consider rest and hydration... consult a doctor if it persists."

func TestPipelineHappyPath(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{answer: headacheAnswer}
	pl, s := newTestPipeline(t, p)

	conv, err := s.Create(ctx, "owner-a", "", nil)
	require.NoError(t, err)

	res, err := pl.Send(ctx, "owner-a", conv.ID, "I have a headache, what should I do?")
	require.NoError(t, err)
	assert.False(t, res.ShortCircuit)
	assert.Equal(t, models.RoleAssistant, res.Assistant.Role)
	assert.Equal(t, headacheAnswer, res.Assistant.Content)

	got, err := s.FindByIDForOwner(ctx, conv.ID, "owner-a")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, models.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "I have a headache, what should I do?", got.Messages[0].Content)
	assert.Equal(t, headacheAnswer, got.Messages[1].Content)

	calls := p.chats()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].history, "first turn has no seed history")
	assert.Equal(t, Framing, calls[0].system)
}

func TestPipelineOffTopicShortCircuits(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{verdicts: map[string]string{"pizza": "No"}, answer: "should not be used"}
	pl, s := newTestPipeline(t, p)

	conv, err := s.Create(ctx, "owner-a", "", nil)
	require.NoError(t, err)

	res, err := pl.Send(ctx, "owner-a", conv.ID, "What's the best pizza topping?")
	require.NoError(t, err)
	assert.True(t, res.ShortCircuit)
	assert.Equal(t, RefusalText, res.Assistant.Content)
	assert.Empty(t, p.chats(), "completion must not be invoked")

	got, err := s.FindByIDForOwner(ctx, conv.ID, "owner-a")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "What's the best pizza topping?", got.Messages[0].Content)
	assert.Equal(t, RefusalText, got.Messages[1].Content)
}

func TestPipelineGateFailureStillAnswers(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{generateErr: errors.New("gate down"), answer: "Drink fluids."}
	pl, s := newTestPipeline(t, p)

	conv, err := s.Create(ctx, "owner-a", "", nil)
	require.NoError(t, err)

	res, err := pl.Send(ctx, "owner-a", conv.ID, "I have a fever")
	require.NoError(t, err)
	assert.Equal(t, "Drink fluids.", res.Assistant.Content)
}

func TestPipelineCompletionFailureStoresFallback(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{chatErr: errors.New("provider 500")}
	pl, s := newTestPipeline(t, p)

	conv, err := s.Create(ctx, "owner-a", "", nil)
	require.NoError(t, err)

	res, err := pl.Send(ctx, "owner-a", conv.ID, "I have a fever")
	require.NoError(t, err)
	assert.Equal(t, FallbackText, res.Assistant.Content)

	got, err := s.FindByIDForOwner(ctx, conv.ID, "owner-a")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2, "user message is never left unanswered")
}

func TestPipelineHistoryNeverStartsWithModelTurn(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{verdicts: map[string]string{"pizza": "no"}, answer: "ok"}
	pl, s := newTestPipeline(t, p)

	welcome, err := models.NewMessage(models.RoleAssistant, "Hi, I'm Aarogya.", time.Now())
	require.NoError(t, err)
	conv, err := s.Create(ctx, "owner-a", "", []models.Message{welcome})
	require.NoError(t, err)

	for _, prompt := range []string{"I sprained my ankle", "pizza or pasta?", "Should I ice it?"} {
		_, err := pl.Send(ctx, "owner-a", conv.ID, prompt)
		require.NoError(t, err)
	}

	calls := p.chats()
	require.Len(t, calls, 2)
	for _, c := range calls {
		if len(c.history) > 0 {
			assert.Equal(t, services.RoleUser, c.history[0].Role)
		}
	}
	// second completion sees the sprain exchange and the refused exchange
	assert.Len(t, calls[1].history, 4)
}

func TestPipelineAuthorizationAndOwnership(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{answer: "ok"}
	pl, s := newTestPipeline(t, p)

	conv, err := s.Create(ctx, "owner-a", "", nil)
	require.NoError(t, err)

	_, err = pl.Send(ctx, "", conv.ID, "fever")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = pl.Send(ctx, "owner-b", conv.ID, "fever")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = pl.Send(ctx, "owner-a", conv.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Zero(t, p.generates, "no classification before a prompt is accepted")
	assert.Empty(t, p.chats())

	got, err := s.FindByIDForOwner(ctx, conv.ID, "owner-a")
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestPipelineConcurrentSendsKeepAllMessages(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{answer: "ok"}
	pl, s := newTestPipeline(t, p)

	conv, err := s.Create(ctx, "owner-a", "Knee", nil)
	require.NoError(t, err)

	var g errgroup.Group
	for _, prompt := range []string{"My knee hurts", "It is swollen too"} {
		g.Go(func() error {
			_, err := pl.Send(ctx, "owner-a", conv.ID, prompt)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := s.FindByIDForOwner(ctx, conv.ID, "owner-a")
	require.NoError(t, err)
	require.Len(t, got.Messages, 4)
	// each exchange stays adjacent
	for i := 0; i < 4; i += 2 {
		assert.Equal(t, models.RoleUser, got.Messages[i].Role)
		assert.Equal(t, models.RoleAssistant, got.Messages[i+1].Role)
	}
}

func TestPipelineSurvivesCallerCancellation(t *testing.T) {
	p := &fakeProvider{answer: "ok"}
	pl, s := newTestPipeline(t, p)

	conv, err := s.Create(context.Background(), "owner-a", "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pl.Send(ctx, "owner-a", conv.ID, "I have a cough")
	require.NoError(t, err)

	got, err := s.FindByIDForOwner(context.Background(), conv.ID, "owner-a")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

func TestPipelineAutoTitle(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{answer: "ok"}
	pl, s := newTestPipeline(t, p)

	untitled, err := s.Create(ctx, "owner-a", "", nil)
	require.NoError(t, err)
	named, err := s.Create(ctx, "owner-a", "Allergies", nil)
	require.NoError(t, err)

	res, err := pl.Send(ctx, "owner-a", untitled.ID, "I get a rash every spring when the pollen count rises")
	require.NoError(t, err)
	assert.Equal(t, "I get a rash every spring when...", res.Conversation.Name)

	_, err = pl.Send(ctx, "owner-a", untitled.ID, "Is it contagious?")
	require.NoError(t, err)
	got, err := s.FindByIDForOwner(ctx, untitled.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, "I get a rash every spring when...", got.Name)

	_, err = pl.Send(ctx, "owner-a", named.ID, "Sneezing")
	require.NoError(t, err)
	got, err = s.FindByIDForOwner(ctx, named.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, "Allergies", got.Name)
}

func TestPipelineRespectsMaxDuration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	gate := NewTopicGate(slowGenerator{}, GateOptions{}, zerolog.Nop())
	inv := NewInvoker(&fakeProvider{answer: "ok"}, FramingSystem, zerolog.Nop())
	pl := NewPipeline(s, gate, inv, 50*time.Millisecond, zerolog.Nop())

	conv, err := s.Create(ctx, "owner-a", "", nil)
	require.NoError(t, err)

	// the gate times out with the pipeline budget and fails open; the store
	// write then runs on an expired context and must fail cleanly
	start := time.Now()
	_, err = pl.Send(ctx, "owner-a", conv.ID, "fever")
	assert.Less(t, time.Since(start), 5*time.Second)
	if err != nil {
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	}
}
