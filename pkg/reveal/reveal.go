// Package reveal replays a finished answer as a sequence of growing prefixes,
// one whitespace-delimited token at a time, to simulate live generation.
package reveal

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// DefaultInterval is the delay between tokens.
const DefaultInterval = 100 * time.Millisecond

// Frame is one reveal step. Prefix is everything shown so far and Delta is
// what this step added.
type Frame struct {
	Index  int
	Prefix string
	Delta  string
	Last   bool
}

// Prefixes returns the successive prefixes of text, each ending after a
// token. Whitespace is kept as written and the last prefix is always text
// itself. Empty text yields no prefixes.
func Prefixes(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	inToken := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inToken && space {
			out = append(out, text[:i])
		}
		inToken = !space
	}
	if inToken || len(out) == 0 {
		out = append(out, text)
	} else {
		out[len(out)-1] = text
	}
	return out
}

// Stream emits one Frame per prefix, waiting interval between frames. The
// first frame is sent immediately. The channel is closed after the last frame
// or as soon as ctx is done, so cancelling ctx stops the whole reveal.
func Stream(ctx context.Context, text string, interval time.Duration) <-chan Frame {
	prefixes := Prefixes(text)
	ch := make(chan Frame)
	go func() {
		defer close(ch)
		var t *time.Ticker
		if interval > 0 {
			t = time.NewTicker(interval)
			defer t.Stop()
		}
		prev := ""
		for i, p := range prefixes {
			if i > 0 && t != nil {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
			f := Frame{Index: i, Prefix: p, Delta: strings.TrimPrefix(p, prev), Last: i == len(prefixes)-1}
			select {
			case <-ctx.Done():
				return
			case ch <- f:
			}
			prev = p
		}
	}()
	return ch
}

// Tokens reports how many frames Stream will emit for text.
func Tokens(text string) int {
	return len(Prefixes(text))
}
