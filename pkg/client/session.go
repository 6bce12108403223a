package client

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"Aarogya/models"
	"Aarogya/pkg/reveal"
	utils "Aarogya/pkg/utills"
)

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrBusy        = errors.New("a reply is still in progress")
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrNotSelected = errors.New("no conversation selected")
)

type EventKind int

const (
	EventChanged EventKind = iota // state changed, re-render
	EventError                    // a send failed and was rolled back
	EventRevealDone
)

type Event struct {
	Kind           EventKind
	ConversationID string
	Err            error
}

// Session holds the caller's conversations in one map keyed by id. The list
// and the active conversation are both read from it, so they cannot drift.
// All mutation goes through Session methods.
type Session struct {
	api      API
	interval time.Duration
	onEvent  func(Event)
	now      func() time.Time

	mu       sync.Mutex
	user     string
	convs    map[string]*models.Conversation
	loaded   map[string]bool // messages fetched, not just the summary
	activeID string
	draft    string

	inFlight atomic.Bool
}

type Option func(*Session)

// WithRevealInterval sets the delay between revealed tokens.
func WithRevealInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

// WithNotifier registers a callback run after every state change. It is
// called without the session lock held and may read the session.
func WithNotifier(fn func(Event)) Option {
	return func(s *Session) { s.onEvent = fn }
}

func NewSession(api API, opts ...Option) *Session {
	s := &Session{
		api:      api,
		interval: reveal.DefaultInterval,
		now:      time.Now,
		convs:    map[string]*models.Conversation{},
		loaded:   map[string]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

// SignIn sets the principal. Sends are rejected until it is called.
func (s *Session) SignIn(userID string) {
	s.mu.Lock()
	s.user = strings.TrimSpace(userID)
	s.mu.Unlock()
}

// SignOut revokes the session server-side and clears local state.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.mu.Lock()
	s.user = ""
	s.convs = map[string]*models.Conversation{}
	s.loaded = map[string]bool{}
	s.activeID = ""
	s.draft = ""
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged})
	return err
}

// Active returns a copy of the selected conversation, or nil.
func (s *Session) Active() *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[s.activeID].Clone()
}

func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// List returns summaries, most recently updated first.
func (s *Session) List() []models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Summary, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, c.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Busy reports whether a send or reveal is in progress.
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

// Refresh reloads the summaries from the server. Conversations whose messages
// were already fetched keep them.
func (s *Session) Refresh(ctx context.Context, query string) error {
	sums, err := s.api.ListConversations(ctx, query)
	if err != nil {
		return err
	}
	s.mu.Lock()
	next := make(map[string]*models.Conversation, len(sums))
	for _, sum := range sums {
		c := s.convs[sum.ID]
		if c == nil {
			c = &models.Conversation{ID: sum.ID, Messages: []models.Message{}}
		}
		c.Name, c.CreatedAt, c.UpdatedAt = sum.Name, sum.CreatedAt, sum.UpdatedAt
		next[sum.ID] = c
	}
	for id := range s.loaded {
		if next[id] == nil {
			delete(s.loaded, id)
		}
	}
	s.convs = next
	if s.convs[s.activeID] == nil {
		s.activeID = ""
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged})
	return nil
}

// Select makes id the active conversation, fetching its messages.
func (s *Session) Select(ctx context.Context, id string) error {
	conv, err := s.api.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.put(conv)
	s.activeID = conv.ID
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, ConversationID: conv.ID})
	return nil
}

// NewConversation creates a conversation and selects it.
func (s *Session) NewConversation(ctx context.Context, name string) (*models.Conversation, error) {
	conv, err := s.api.CreateConversation(ctx, name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.put(conv)
	s.activeID = conv.ID
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, ConversationID: conv.ID})
	return conv.Clone(), nil
}

func (s *Session) Rename(ctx context.Context, id, name string) error {
	conv, err := s.api.RenameConversation(ctx, id, name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if c := s.convs[id]; c != nil {
		c.Name, c.UpdatedAt = conv.Name, conv.UpdatedAt
	} else {
		s.put(conv)
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, ConversationID: id})
	return nil
}

func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.convs, id)
	delete(s.loaded, id)
	if s.activeID == id {
		s.activeID = ""
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, ConversationID: id})
	return nil
}

func (s *Session) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.api.DeleteAllConversations(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.convs = map[string]*models.Conversation{}
	s.loaded = map[string]bool{}
	s.activeID = ""
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged})
	return n, nil
}

// caller must hold s.mu
func (s *Session) put(conv *models.Conversation) {
	c := conv.Clone()
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	s.convs[c.ID] = c
	s.loaded[c.ID] = true
}

// Pending tracks the reveal of one reply.
type Pending struct {
	ConversationID string
	Reply          models.Message

	done   chan struct{}
	cancel context.CancelFunc
}

// Done is closed when the reveal finishes or is cancelled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Cancel stops the reveal and shows the whole reply at once.
func (p *Pending) Cancel() { p.cancel() }

// Wait blocks until the reveal is over.
func (p *Pending) Wait() { <-p.done }

// Send submits prompt to the active conversation, creating one first when
// none is selected. The user message appears immediately; if the server call
// fails it is removed again and prompt goes back into the draft. On success
// the reply is revealed token by token in the background and the session
// stays busy until the reveal ends.
func (s *Session) Send(ctx context.Context, prompt string) (*Pending, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	s.mu.Lock()
	signedIn := s.user != ""
	s.mu.Unlock()
	if !signedIn {
		return nil, ErrNotSignedIn
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	convID := s.ActiveID()
	if convID == "" {
		conv, err := s.NewConversation(ctx, "")
		if err != nil {
			s.inFlight.Store(false)
			return nil, err
		}
		convID = conv.ID
	}

	optimistic := models.Message{Role: models.RoleUser, Content: prompt, Timestamp: s.now()}
	s.mu.Lock()
	conv := s.convs[convID]
	if conv == nil {
		// selected conversation vanished (deleted elsewhere)
		s.mu.Unlock()
		s.inFlight.Store(false)
		return nil, ErrNotSelected
	}
	conv.Messages = append(conv.Messages, optimistic)
	conv.UpdatedAt = optimistic.Timestamp
	s.draft = ""
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, ConversationID: convID})

	reply, err := s.api.SendPrompt(ctx, convID, prompt)
	if err != nil {
		s.rollback(convID, optimistic)
		s.inFlight.Store(false)
		s.emit(Event{Kind: EventError, ConversationID: convID, Err: err})
		return nil, err
	}

	s.mu.Lock()
	if c := s.convs[convID]; c != nil {
		c.Messages = append(c.Messages, models.Message{Role: reply.Role, Timestamp: reply.Timestamp})
		if c.Name == models.DefaultName && len(c.Messages) == 2 {
			// mirror the server's auto-title until the next refresh
			c.Name = utils.Truncate(prompt, 30)
		}
	}
	s.mu.Unlock()

	rctx, cancel := context.WithCancel(ctx)
	p := &Pending{ConversationID: convID, Reply: reply, done: make(chan struct{}), cancel: cancel}
	go s.reveal(rctx, p)
	return p, nil
}

func (s *Session) reveal(ctx context.Context, p *Pending) {
	defer close(p.done)
	defer p.cancel()
	defer s.inFlight.Store(false)

	for f := range reveal.Stream(ctx, p.Reply.Content, s.interval) {
		s.setReply(p.ConversationID, f.Prefix)
		s.emit(Event{Kind: EventChanged, ConversationID: p.ConversationID})
	}
	// cancelled or finished, the stored reply is the whole text
	s.setReply(p.ConversationID, p.Reply.Content)
	s.emit(Event{Kind: EventRevealDone, ConversationID: p.ConversationID})
}

func (s *Session) setReply(convID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.convs[convID]
	if c == nil || len(c.Messages) == 0 {
		return
	}
	last := &c.Messages[len(c.Messages)-1]
	if last.Role == models.RoleAssistant {
		last.Content = text
	}
}

func (s *Session) rollback(convID string, optimistic models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.convs[convID]; c != nil {
		for i := len(c.Messages) - 1; i >= 0; i-- {
			m := c.Messages[i]
			if m.Role == optimistic.Role && m.Content == optimistic.Content && m.Timestamp.Equal(optimistic.Timestamp) {
				c.Messages = append(c.Messages[:i:i], c.Messages[i+1:]...)
				break
			}
		}
	}
	s.draft = optimistic.Content
}
