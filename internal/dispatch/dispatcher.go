package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
)

const (
	defaultConcurrency   = 5
	defaultSearchResults = 3
	defaultHistoryLimit  = 5
	maxHistoryLimit      = 20
)

// Intent names, used in events and metrics labels.
const (
	IntentRegistration = "registration"
	IntentHelp         = "help"
	IntentSearch       = "search"
	IntentHistory      = "history"
	IntentContact      = "contact"
	IntentChat         = "chat"
	IntentFile         = "file"
	IntentUnknown      = "unknown"
)

// Dispatcher is the core engine: it classifies each inbound event into one
// intent, invokes exactly one handler, and sends the reply back through the
// message bus. Dispatch itself is stateless; the only cross-event state is
// the user profile in the store.
type Dispatcher struct {
	store       domain.Store
	responder   domain.Responder
	searcher    domain.Searcher
	bus         domain.MessageBus
	events      *bus.EventBus
	replies     *Replies
	logger      *slog.Logger
	concurrency int

	maxSearchResults  int
	lazyContactCreate bool
}

// Config holds all dependencies and tuning parameters for the dispatcher.
type Config struct {
	Store       domain.Store
	Responder   domain.Responder
	Searcher    domain.Searcher
	Bus         domain.MessageBus
	Events      *bus.EventBus
	Replies     *Replies
	Logger      *slog.Logger
	Concurrency int // max parallel messages (default 5)

	MaxSearchResults  int  // results shown per /websearch (default 3)
	LazyContactCreate bool // create a profile when a contact arrives from an unknown user
}

// New creates a dispatcher with the given configuration.
func New(cfg Config) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = defaultSearchResults
	}
	if cfg.Replies == nil {
		cfg.Replies = DefaultReplies()
	}
	return &Dispatcher{
		store:             cfg.Store,
		responder:         cfg.Responder,
		searcher:          cfg.Searcher,
		bus:               cfg.Bus,
		events:            cfg.Events,
		replies:           cfg.Replies,
		logger:            cfg.Logger,
		concurrency:       cfg.Concurrency,
		maxSearchResults:  cfg.MaxSearchResults,
		lazyContactCreate: cfg.LazyContactCreate,
	}
}

// Run consumes inbound messages and processes them with bounded concurrency.
// Handlers suspend independently at external-call boundaries; a slow AI call
// blocks only the task awaiting it.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", "concurrency", d.concurrency)

	sem := make(chan struct{}, d.concurrency)
	inbound := d.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				d.logger.Info("inbound channel closed, dispatcher stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				d.process(ctx, m)
			}(msg)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, msg domain.InboundMessage) {
	d.emit(bus.EventMessageReceived, map[string]any{
		"channel": msg.Channel,
		"sender":  msg.SenderID,
		"kind":    string(msg.Kind),
	})

	out := d.Handle(ctx, msg)
	d.bus.SendOutbound(out)

	d.emit(bus.EventMessageSent, map[string]any{
		"channel": out.Channel,
		"chat_id": out.ChatID,
	})
}

// Handle classifies one inbound event and invokes exactly one handler.
// It always produces a reply.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.InboundMessage) domain.OutboundMessage {
	out := domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Format:  "markdown",
	}

	var intent string
	switch msg.Kind {
	case domain.KindContact:
		intent = IntentContact
		out.Content = d.handleContact(ctx, msg)

	case domain.KindMedia:
		intent = IntentFile
		out.Content = d.handleFile(ctx, msg)

	default:
		cmd := ParseCommand(msg.Content)
		if cmd == nil {
			intent = IntentChat
			out.Content = d.handleChat(ctx, msg)
			break
		}

		switch cmd.Name {
		case "start":
			intent = IntentRegistration
			out.Content, out.RequestContact = d.handleStart(ctx, msg)
		case "help":
			intent = IntentHelp
			out.Content = d.replies.Help
		case "websearch":
			intent = IntentSearch
			out.Content = d.handleSearch(ctx, cmd.Args)
		case "history":
			intent = IntentHistory
			out.Content = d.handleHistory(ctx, msg, cmd.Args)
		default:
			intent = IntentUnknown
			out.Content = d.replies.Unknown
		}
	}

	d.emit(bus.EventIntentDispatched, map[string]any{
		"intent": intent,
		"sender": msg.SenderID,
	})
	d.logger.Info("intent dispatched", "intent", intent, "channel", msg.Channel, "sender", msg.SenderID)

	return out
}

// handleStart registers a first-time user and asks for their contact; a
// returning user gets a plain greeting.
func (d *Dispatcher) handleStart(ctx context.Context, msg domain.InboundMessage) (string, bool) {
	existing, err := d.store.GetUser(ctx, msg.SenderID)
	if err != nil {
		d.storeError("get user", err, msg.SenderID)
		return d.replies.ChatFailed, false
	}

	if existing != nil {
		return d.replies.Greeting, false
	}

	err = d.store.CreateUser(ctx, domain.UserProfile{
		ChatID:    msg.SenderID,
		FirstName: msg.SenderName,
		Username:  msg.SenderHandle,
	})
	if err != nil {
		d.storeError("create user", err, msg.SenderID)
		return d.replies.ChatFailed, false
	}

	d.emit(bus.EventUserRegistered, map[string]any{"sender": msg.SenderID})
	return d.replies.Onboarding, true
}

// handleContact stores the shared phone number.
func (d *Dispatcher) handleContact(ctx context.Context, msg domain.InboundMessage) string {
	err := d.store.SetPhone(ctx, msg.SenderID, msg.Phone, d.lazyContactCreate)
	if errors.Is(err, domain.ErrNoProfile) {
		return d.replies.ContactNeedStart
	}
	if err != nil {
		d.storeError("set phone", err, msg.SenderID)
		return d.replies.ChatFailed
	}

	d.emit(bus.EventContactCaptured, map[string]any{"sender": msg.SenderID})
	return d.replies.ContactSaved
}

// handleChat forwards free text to the AI responder and persists the
// exchange. Nothing is persisted when the call fails.
func (d *Dispatcher) handleChat(ctx context.Context, msg domain.InboundMessage) string {
	if err := d.ensureProfile(ctx, msg); err != nil {
		d.storeError("ensure profile", err, msg.SenderID)
		return d.replies.ChatFailed
	}

	text, err := d.responder.Generate(ctx, msg.Content)
	if err != nil {
		d.logger.Error("ai responder failed", "err", err, "sender", msg.SenderID)
		d.emit(bus.EventProviderError, map[string]any{"provider": d.responder.Name(), "err": err.Error()})
		return d.replies.ChatFailed
	}

	err = d.store.AddChat(ctx, domain.ChatRecord{
		ChatID:      msg.SenderID,
		UserInput:   msg.Content,
		BotResponse: text,
	})
	if err != nil {
		d.storeError("add chat", err, msg.SenderID)
		return d.replies.ChatFailed
	}

	d.emit(bus.EventChatAnswered, map[string]any{"sender": msg.SenderID})
	return text
}

// handleFile asks the AI responder to describe an uploaded file and persists
// the analysis. Nothing is persisted when the call fails.
func (d *Dispatcher) handleFile(ctx context.Context, msg domain.InboundMessage) string {
	if msg.File == nil || msg.File.URL == "" {
		return d.replies.FileFailed
	}

	if err := d.ensureProfile(ctx, msg); err != nil {
		d.storeError("ensure profile", err, msg.SenderID)
		return d.replies.FileFailed
	}

	prompt := fmt.Sprintf("Describe this image: %s", msg.File.URL)
	description, err := d.responder.Generate(ctx, prompt)
	if err != nil {
		d.logger.Error("file analysis failed", "err", err, "sender", msg.SenderID, "file_id", msg.File.ID)
		d.emit(bus.EventProviderError, map[string]any{"provider": d.responder.Name(), "err": err.Error()})
		return d.replies.FileFailed
	}

	err = d.store.AddFile(ctx, domain.FileRecord{
		ChatID:      msg.SenderID,
		FileID:      msg.File.ID,
		FilePath:    msg.File.URL,
		Description: description,
	})
	if err != nil {
		d.storeError("add file", err, msg.SenderID)
		return d.replies.FileFailed
	}

	d.emit(bus.EventFileAnalyzed, map[string]any{"sender": msg.SenderID})
	return d.replies.AnalysisPrefix + description
}

// handleSearch runs a web search and formats the top results. An empty query
// short-circuits to usage guidance without touching the search capability.
// Searches are not persisted.
func (d *Dispatcher) handleSearch(ctx context.Context, args []string) string {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return d.replies.SearchUsage
	}

	results, err := d.searcher.Search(ctx, query)
	if err != nil {
		d.logger.Error("search failed", "err", err, "query", query)
		d.emit(bus.EventSearchError, map[string]any{"err": err.Error()})
		return d.replies.ChatFailed
	}

	d.emit(bus.EventSearchPerformed, map[string]any{"query": query, "results": len(results)})

	if len(results) == 0 {
		return d.replies.SearchEmpty
	}

	if len(results) > d.maxSearchResults {
		results = results[:d.maxSearchResults]
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s: %s", r.Title, r.Link))
	}
	return d.replies.SearchHeader + "\n" + strings.Join(lines, "\n")
}

// handleHistory returns the user's recent chat exchanges.
func (d *Dispatcher) handleHistory(ctx context.Context, msg domain.InboundMessage, args []string) string {
	limit := defaultHistoryLimit
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = min(n, maxHistoryLimit)
		}
	}

	recs, err := d.store.RecentChats(ctx, msg.SenderID, limit)
	if err != nil {
		d.storeError("recent chats", err, msg.SenderID)
		return d.replies.ChatFailed
	}
	if len(recs) == 0 {
		return d.replies.HistoryEmpty
	}

	entries := make([]string, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, fmt.Sprintf("You: %s\nBot: %s", r.UserInput, r.BotResponse))
	}
	return strings.Join(entries, "\n\n")
}

// ensureProfile creates a minimal profile when an interaction arrives before
// /start, so no chat or file record exists without a user row.
func (d *Dispatcher) ensureProfile(ctx context.Context, msg domain.InboundMessage) error {
	existing, err := d.store.GetUser(ctx, msg.SenderID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return d.store.CreateUser(ctx, domain.UserProfile{
		ChatID:    msg.SenderID,
		FirstName: msg.SenderName,
		Username:  msg.SenderHandle,
	})
}

func (d *Dispatcher) storeError(op string, err error, sender string) {
	d.logger.Error("store operation failed", "op", op, "err", err, "sender", sender)
	d.emit(bus.EventStoreError, map[string]any{"op": op, "err": err.Error()})
}

func (d *Dispatcher) emit(eventType string, payload map[string]any) {
	if d.events == nil {
		return
	}
	d.events.Emit(bus.Event{Type: eventType, Source: "dispatch", Payload: payload})
}
