package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		reply    string
		want     Decision
		definite bool
	}{
		{"yes", InScope, true},
		{"Yes.", InScope, true},
		{"  YES\n", InScope, true},
		{"no", OutOfScope, true},
		{"No.", OutOfScope, true},
		{"No, yes", InScope, true},
		{"nobody knows", InScope, false},
		{"eyes", InScope, false},
		{"", InScope, false},
		{"maybe", InScope, false},
	}
	for _, tt := range tests {
		got, definite := ParseDecision(tt.reply)
		assert.Equal(t, tt.want, got, "reply %q", tt.reply)
		assert.Equal(t, tt.definite, definite, "reply %q", tt.reply)
	}
}

func TestGatePromptQuotesQuery(t *testing.T) {
	p := GatePrompt("I have a cough")
	assert.Contains(t, p, `Respond with only "yes" or "no".`)
	assert.Contains(t, p, `Query: "I have a cough"`)
}

func TestTopicGateFailsOpen(t *testing.T) {
	p := &fakeProvider{generateErr: errors.New("quota exceeded")}
	g := NewTopicGate(p, GateOptions{}, zerolog.Nop())
	assert.Equal(t, InScope, g.Classify(context.Background(), "best pizza topping"))
}

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestTopicGateTimeoutIsInScope(t *testing.T) {
	g := NewTopicGate(slowGenerator{}, GateOptions{Timeout: 10 * time.Millisecond}, zerolog.Nop())
	assert.Equal(t, InScope, g.Classify(context.Background(), "anything"))
}

func TestTopicGateCachesDefiniteDecisions(t *testing.T) {
	p := &fakeProvider{verdicts: map[string]string{"pizza": "no"}}
	g := NewTopicGate(p, GateOptions{CacheTTL: time.Minute, CacheMaxItems: 10}, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, OutOfScope, g.Classify(ctx, "Best pizza topping?"))
	assert.Equal(t, OutOfScope, g.Classify(ctx, "  best   PIZZA topping? "))
	assert.Equal(t, 1, p.generates)
}

func TestTopicGateDoesNotCacheFailures(t *testing.T) {
	p := &fakeProvider{generateErr: errors.New("down")}
	g := NewTopicGate(p, GateOptions{CacheTTL: time.Minute, CacheMaxItems: 10}, zerolog.Nop())
	ctx := context.Background()

	g.Classify(ctx, "pizza")
	g.Classify(ctx, "pizza")
	assert.Equal(t, 2, p.generates)
}
