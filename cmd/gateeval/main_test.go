package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "pizza"):
		return "No.", nil
	case strings.Contains(prompt, "broken"):
		return "", errors.New("quota exceeded")
	case strings.Contains(prompt, "maybe"):
		return "It depends.", nil
	}
	return "Yes", nil
}

func TestParseQueriesMixed(t *testing.T) {
	items, err := parseQueries([]byte(`["  a  ", {"q": "b", "expect": " YES "}, {"q": ""}, 3]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, QueryItem{Q: "a"}, items[0])
	assert.Equal(t, QueryItem{Q: "b", Expect: "yes"}, items[1])

	_, err = parseQueries([]byte(`[]`))
	assert.Error(t, err)
	_, err = parseQueries([]byte(`{}`))
	assert.Error(t, err)
}

func TestEvaluateAndSummarize(t *testing.T) {
	items := []QueryItem{
		{Q: "headache", Expect: "yes"},
		{Q: "pizza", Expect: "no"},
		{Q: "pizza", Expect: "yes"},
		{Q: "broken", Expect: "yes"},
		{Q: "maybe"},
	}
	results := evaluate(context.Background(), stubGenerator{}, items, time.Second, 3, 0)
	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, items[i].Q, r.Query, "order must follow input")
	}

	assert.Equal(t, "in_scope", results[0].Decision)
	assert.True(t, results[0].Definite)
	assert.Equal(t, "out_of_scope", results[1].Decision)
	assert.Equal(t, "in_scope", results[3].Decision, "errors fail open")
	assert.NotEmpty(t, results[3].Error)
	assert.False(t, results[4].Definite)
	assert.Nil(t, results[4].Correct)

	s := summarize(results)
	assert.Equal(t, 5, s.TotalQueries)
	assert.Equal(t, 4, s.Labelled)
	assert.Equal(t, 3, s.Correct)
	assert.InDelta(t, 0.75, s.Accuracy, 1e-9)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Indefinite)
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	results := evaluate(context.Background(), stubGenerator{}, []QueryItem{{Q: "pizza, with \"quotes\"", Expect: "no"}}, time.Second, 1, 0)

	jsonPath := filepath.Join(dir, "r.json")
	csvPath := filepath.Join(dir, "r.csv")
	require.NoError(t, writeJSON(jsonPath, summarize(results)))
	require.NoError(t, writeCSV(csvPath, results))

	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "query,expect,decision"))
	assert.Contains(t, lines[1], `"pizza, with ""quotes"""`)
}
