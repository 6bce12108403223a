// Command gateeval runs the topic gate over a labelled query set and writes
// JSON and CSV reports, so changes to the gate prompt or model can be
// compared run against run.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"Aarogya/pkg/chat"
	"Aarogya/pkg/config"
	"Aarogya/pkg/logger"
	"Aarogya/pkg/services"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// QueryItem is one labelled query. Expect is "yes", "no" or empty when the
// query is unlabelled.
type QueryItem struct {
	Q      string `json:"q"`
	Expect string `json:"expect,omitempty"`
}

type ResultItem struct {
	Query      string `json:"query"`
	Expect     string `json:"expect,omitempty"`
	Raw        string `json:"raw"`
	Decision   string `json:"decision"`
	Definite   bool   `json:"definite"`
	Correct    *bool  `json:"correct,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type RunSummary struct {
	RunID        string       `json:"run_id"`
	StartedAt    string       `json:"started_at"`
	EndedAt      string       `json:"ended_at"`
	Env          string       `json:"env"`
	Provider     string       `json:"provider"`
	Model        string       `json:"model"`
	TotalQueries int          `json:"total_queries"`
	Labelled     int          `json:"labelled"`
	Correct      int          `json:"correct"`
	Accuracy     float64      `json:"accuracy"`
	Indefinite   int          `json:"indefinite"`
	Errors       int          `json:"errors"`
	Results      []ResultItem `json:"results"`
}

var (
	queriesPath string
	outDir      string
	timeout     time.Duration
	parallel    int
	perSecond   float64

	rootCmd = &cobra.Command{
		Use:          "gateeval",
		Short:        "Measure how the topic gate classifies a labelled query set",
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&queriesPath, "queries", "f", "cmd/gateeval/queries.json", "query file: [\"q\", ...] or [{\"q\":..., \"expect\":\"yes|no\"}, ...]")
	rootCmd.Flags().StringVarP(&outDir, "out", "o", "cmd/gateeval/results", "report directory")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "per-query timeout")
	rootCmd.Flags().IntVarP(&parallel, "parallel", "p", 2, "concurrent classifications")
	rootCmd.Flags().Float64Var(&perSecond, "rps", 1, "max classification requests per second, 0 for unlimited")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})

	provider, err := services.NewProvider(cfg, log)
	if err != nil {
		return err
	}
	if provider.Name() == "local" {
		log.Warn().Msg("using the local provider; results only reflect the keyword classifier")
	}

	items, err := readQueries(queriesPath)
	if err != nil {
		return err
	}

	started := time.Now()
	results := evaluate(cmd.Context(), provider, items, timeout, parallel, perSecond)
	summary := summarize(results)
	summary.RunID = fmt.Sprintf("gaterun-%s-%s", started.Format("20060102-150405"), uuid.NewString()[:8])
	summary.StartedAt = started.Format(time.RFC3339)
	summary.EndedAt = time.Now().Format(time.RFC3339)
	summary.Env = cfg.AppEnv
	summary.Provider = provider.Name()
	summary.Model = modelFor(cfg)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	stamp := started.Format("20060102-150405")
	jsonPath := filepath.Join(outDir, fmt.Sprintf("gateeval-%s.json", stamp))
	csvPath := filepath.Join(outDir, fmt.Sprintf("gateeval-%s.csv", stamp))
	if err := writeJSON(jsonPath, summary); err != nil {
		return err
	}
	if err := writeCSV(csvPath, results); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d queries, %d labelled, accuracy %.1f%%, %d indefinite, %d errors\n",
		summary.TotalQueries, summary.Labelled, summary.Accuracy*100, summary.Indefinite, summary.Errors)
	fmt.Fprintln(out, "Saved:")
	fmt.Fprintln(out, " -", jsonPath)
	fmt.Fprintln(out, " -", csvPath)
	return nil
}

func modelFor(cfg *config.Config) string {
	switch cfg.LLMProvider {
	case "openai":
		return cfg.OpenAIModel
	case "gemini":
		return cfg.GeminiModel
	}
	return cfg.LLMProvider
}

func readQueries(path string) ([]QueryItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parseQueries(data)
}

// parseQueries accepts either a list of strings or a list of QueryItem.
func parseQueries(data []byte) ([]QueryItem, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid query file: %w", err)
	}
	out := make([]QueryItem, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, QueryItem{Q: s})
			}
			continue
		}
		var it QueryItem
		if err := json.Unmarshal(r, &it); err != nil {
			continue
		}
		it.Q = strings.TrimSpace(it.Q)
		it.Expect = strings.ToLower(strings.TrimSpace(it.Expect))
		if it.Q != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("query file is empty or malformed")
	}
	return out, nil
}

// evaluate asks gen the gate question for every item. Results keep the input
// order.
func evaluate(ctx context.Context, gen chat.Generator, items []QueryItem, timeout time.Duration, parallel int, rps float64) []ResultItem {
	if parallel < 1 {
		parallel = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	limiter := rate.NewLimiter(limit, 1)

	results := make([]ResultItem, len(items))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, it := range items {
		g.Go(func() error {
			r := classifyOne(gctx, gen, limiter, it, timeout)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func classifyOne(ctx context.Context, gen chat.Generator, limiter *rate.Limiter, it QueryItem, timeout time.Duration) ResultItem {
	r := ResultItem{Query: it.Q, Expect: it.Expect, Decision: chat.InScope.String()}
	if err := limiter.Wait(ctx); err != nil {
		r.Error = err.Error()
		return r
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t0 := time.Now()
	raw, err := gen.Generate(cctx, chat.GatePrompt(it.Q))
	r.DurationMs = time.Since(t0).Milliseconds()
	if err != nil {
		// the gate fails open, so an error still counts as in scope
		r.Error = err.Error()
	} else {
		r.Raw = strings.TrimSpace(raw)
		d, definite := chat.ParseDecision(raw)
		r.Decision, r.Definite = d.String(), definite
	}
	if it.Expect == "yes" || it.Expect == "no" {
		ok := (it.Expect == "yes") == (r.Decision == chat.InScope.String())
		r.Correct = &ok
	}
	return r
}

func summarize(results []ResultItem) RunSummary {
	s := RunSummary{TotalQueries: len(results), Results: results}
	for _, r := range results {
		if r.Error != "" {
			s.Errors++
		} else if !r.Definite {
			s.Indefinite++
		}
		if r.Correct != nil {
			s.Labelled++
			if *r.Correct {
				s.Correct++
			}
		}
	}
	if s.Labelled > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Labelled)
	}
	return s
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []ResultItem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"query", "expect", "decision", "definite", "correct", "duration_ms", "error", "raw"})
	for _, it := range items {
		correct := ""
		if it.Correct != nil {
			correct = strconv.FormatBool(*it.Correct)
		}
		_ = w.Write([]string{
			it.Query,
			it.Expect,
			it.Decision,
			strconv.FormatBool(it.Definite),
			correct,
			strconv.FormatInt(it.DurationMs, 10),
			it.Error,
			it.Raw,
		})
	}
	w.Flush()
	return w.Error()
}
