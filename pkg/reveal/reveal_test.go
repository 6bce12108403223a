package reveal

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixes(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"hello", []string{"hello"}},
		{"rest and hydrate", []string{"rest", "rest and", "rest and hydrate"}},
		{"  lead", []string{"  lead"}},
		{"a\n\nb ", []string{"a", "a\n\nb "}},
		{"   ", []string{"   "}},
		{"सिरदर्द है", []string{"सिरदर्द", "सिरदर्द है"}},
	}
	for _, tt := range tests {
		got := Prefixes(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		for _, p := range got {
			assert.True(t, utf8.ValidString(p))
			assert.True(t, strings.HasPrefix(tt.in, p))
		}
		if len(got) > 0 {
			assert.Equal(t, tt.in, got[len(got)-1])
		}
	}
}

func TestStreamDeliversAllFrames(t *testing.T) {
	text := "Consider rest and hydration."
	var frames []Frame
	for f := range Stream(context.Background(), text, time.Millisecond) {
		frames = append(frames, f)
	}
	require.Len(t, frames, Tokens(text))

	var rebuilt strings.Builder
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		rebuilt.WriteString(f.Delta)
		assert.Equal(t, rebuilt.String(), f.Prefix)
		assert.Equal(t, i == len(frames)-1, f.Last)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestStreamCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Stream(ctx, "one two three four five six", time.Hour)

	first, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "one", first.Prefix)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "no more frames after cancel")
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestStreamEmptyText(t *testing.T) {
	n := 0
	for range Stream(context.Background(), "", 0) {
		n++
	}
	assert.Zero(t, n)
}
