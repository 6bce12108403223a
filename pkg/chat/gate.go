package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"Aarogya/pkg/cache"
	"Aarogya/pkg/metrics"
	utils "Aarogya/pkg/utills"

	"github.com/rs/zerolog"
)

// Decision is the topic gate verdict for a prompt.
type Decision int

const (
	InScope Decision = iota
	OutOfScope
)

func (d Decision) String() string {
	if d == OutOfScope {
		return "out_of_scope"
	}
	return "in_scope"
}

const gatePromptFormat = `Determine if the following query is related to medicine, health, wellness, or medical topics. Respond with only "yes" or "no".

Query: "%s"`

// GatePrompt is the classification request sent for prompt.
func GatePrompt(prompt string) string {
	return fmt.Sprintf(gatePromptFormat, prompt)
}

// Generator is the single-shot completion the gate needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GateOptions struct {
	Timeout       time.Duration
	CacheTTL      time.Duration // <=0 disables caching
	CacheMaxItems int
}

// TopicGate classifies prompts as medical or not. It fails open: provider
// errors, timeouts and unparseable replies all count as InScope.
type TopicGate struct {
	gen     Generator
	timeout time.Duration
	ttl     time.Duration
	cache   *cache.Cache[Decision]
	log     zerolog.Logger
}

func NewTopicGate(gen Generator, opts GateOptions, log zerolog.Logger) *TopicGate {
	g := &TopicGate{gen: gen, timeout: opts.Timeout, ttl: opts.CacheTTL, log: log}
	if opts.CacheTTL > 0 {
		g.cache = cache.New[Decision](opts.CacheMaxItems)
	}
	return g
}

// Classify never returns an error; see TopicGate.
func (g *TopicGate) Classify(ctx context.Context, prompt string) Decision {
	key := cache.KeyFromStrings("gate", utils.NormalizeText(prompt))
	if d, ok := g.cache.Get(key); ok {
		metrics.GateDecisions.WithLabelValues("cached_" + d.String()).Inc()
		return d
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	reply, err := g.gen.Generate(ctx, GatePrompt(prompt))
	if err != nil {
		g.log.Warn().Err(err).Msg("classification failed, treating as in scope")
		metrics.GateDecisions.WithLabelValues("fail_open").Inc()
		return InScope
	}

	d, definite := ParseDecision(reply)
	if !definite {
		g.log.Debug().Str("reply", utils.Truncate(reply, 60)).Msg("unparseable classification, treating as in scope")
		metrics.GateDecisions.WithLabelValues("fail_open").Inc()
		return InScope
	}
	g.cache.Set(key, d, g.ttl)
	metrics.GateDecisions.WithLabelValues(d.String()).Inc()
	return d
}

// ParseDecision reads a yes/no reply case-insensitively. An affirmative word
// wins over a negative one; the bool is false when neither is present.
func ParseDecision(reply string) (Decision, bool) {
	words := strings.FieldsFunc(strings.ToLower(reply), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	negative := false
	for _, w := range words {
		switch w {
		case "yes":
			return InScope, true
		case "no":
			negative = true
		}
	}
	if negative {
		return OutOfScope, true
	}
	return InScope, false
}

// StartJanitor sweeps expired cache entries every interval until Close.
func (g *TopicGate) StartJanitor(interval time.Duration) {
	if g.cache != nil {
		g.cache.StartJanitor(interval)
	}
}

func (g *TopicGate) Close() {
	if g.cache != nil {
		g.cache.Stop()
	}
}
