package services

import (
	"context"
	"fmt"
	"strings"

	utils "Aarogya/pkg/utills"
)

// healthTerms drives the local classifier. Matching is on normalized words and
// word prefixes, so "headaches" matches "headache".
var healthTerms = []string{
	"health", "medic", "doctor", "nurse", "hospital", "clinic", "symptom", "pain", "ache",
	"headache", "migraine", "fever", "cough", "cold", "flu", "infect", "virus", "bacteri",
	"disease", "illness", "sick", "injur", "wound", "diet", "nutrition", "vitamin",
	"sleep", "stress", "anxiety", "depress", "mental", "blood", "heart", "lung", "kidney",
	"liver", "skin", "allerg", "asthma", "diabet", "cancer", "pregnan", "vaccin", "drug",
	"dose", "pill", "therapy", "treatment", "diagnos", "wellness", "exercise", "weight",
	"swell", "rash", "nausea", "dizz", "tooth", "dental", "eye", "earache", "surgery",
}

// LocalProvider answers without any network access. Generate behaves as a
// keyword classifier replying "yes" or "no"; Chat returns a templated answer.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

func (LocalProvider) Name() string { return "local" }

func (LocalProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q := prompt
	if i := strings.LastIndex(prompt, "Query:"); i >= 0 {
		q = prompt[i+len("Query:"):]
	}
	if LooksHealthRelated(q) {
		return "yes", nil
	}
	return "no", nil
}

func (LocalProvider) Chat(ctx context.Context, history []ChatMessage, message, systemInstruction string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	last := strings.TrimSpace(message)
	if i := strings.LastIndex(last, "User question:"); i >= 0 {
		last = strings.TrimSpace(last[i+len("User question:"):])
	}
	if last == "" {
		last = "your question"
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "Here is some general information about: %s\n\n", utils.Truncate(last, 80))
	fmt.Fprintln(b, "Summary:")
	fmt.Fprintln(b, "- Many common symptoms have several possible causes.")
	fmt.Fprintln(b, "- Rest, hydration and monitoring are reasonable first steps for mild cases.")
	if len(history) > 0 {
		fmt.Fprintf(b, "- This follows %d earlier turns in the conversation.\n", len(history))
	}
	fmt.Fprintln(b, "\nWhen to seek care:")
	fmt.Fprintln(b, "- Symptoms that are severe, sudden or getting worse.")
	fmt.Fprintln(b, "\nThis is not a diagnosis. Please consult a healthcare professional for proper diagnosis and treatment.")
	return b.String(), nil
}

// LooksHealthRelated reports whether text mentions a known health term.
func LooksHealthRelated(text string) bool {
	for _, w := range strings.Fields(utils.NormalizeText(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		for _, t := range healthTerms {
			if strings.HasPrefix(w, t) {
				return true
			}
		}
	}
	return false
}
