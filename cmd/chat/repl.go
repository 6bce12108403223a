package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"Aarogya/models"
	"Aarogya/pkg/apperr"
	"Aarogya/pkg/client"

	"github.com/spf13/cobra"
)

// revealWriter prints the growing assistant reply as new text arrives.
type revealWriter struct {
	out     io.Writer
	session *client.Session

	mu      sync.Mutex
	printed int
}

func newRevealWriter(out io.Writer) *revealWriter {
	return &revealWriter{out: out}
}

func (w *revealWriter) reset() {
	w.mu.Lock()
	w.printed = 0
	w.mu.Unlock()
}

func (w *revealWriter) onEvent(e client.Event) {
	if w.session == nil {
		return
	}
	if e.Kind == client.EventError {
		fmt.Fprintf(w.out, "! %s (your message was not saved)\n", apperr.Message(e.Err))
		return
	}
	c := w.session.Active()
	if c == nil || len(c.Messages) == 0 {
		return
	}
	last := c.Messages[len(c.Messages)-1]
	if last.Role != models.RoleAssistant {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(last.Content) > w.printed {
		fmt.Fprint(w.out, last.Content[w.printed:])
		w.printed = len(last.Content)
	}
}

func (w *revealWriter) finish() {
	fmt.Fprintln(w.out)
}

func runRepl(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	w := newRevealWriter(out)
	s, err := newSession(client.WithNotifier(w.onEvent))
	if err != nil {
		return err
	}
	w.session = s
	ctx := cmd.Context()
	if len(args) == 1 {
		if err := s.Select(ctx, args[0]); err != nil {
			return err
		}
		for _, m := range s.Active().Messages {
			fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintln(out, `Type a question, "/new" for a new conversation or "/quit" to leave.`)
	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			c, err := s.NewConversation(ctx, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "started %s\n", c.ID)
			continue
		}
		if err := sendAndWait(ctx, s, w, line); err != nil {
			if errors.Is(err, client.ErrBusy) {
				fmt.Fprintln(out, "still answering, try again in a moment")
				continue
			}
			// rollback already restored the draft; show it so the user can retry
			if d := s.Draft(); d != "" {
				fmt.Fprintf(out, "unsent: %s\n", d)
			}
		}
	}
}
