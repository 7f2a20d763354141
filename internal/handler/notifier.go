package handler

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/engine"
)

// DefaultNotifyQueue is the number of events buffered for rendering.
const DefaultNotifyQueue = 256

// Messenger sends and edits chat messages. *tele.Bot satisfies it.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type binding struct {
	msg     tele.Editable
	version uint64
}

// SessionNotifier keeps each session's chat message in step with the engine.
// Events are rendered by a single worker in arrival order; a snapshot older
// than the one already shown is skipped.
type SessionNotifier struct {
	messenger Messenger
	renderer  *Renderer
	queue     chan engine.Event

	mu       sync.Mutex
	bindings map[string]*binding
	pending  map[string]engine.Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewSessionNotifier creates a SessionNotifier. Call Run to start rendering.
func NewSessionNotifier(m Messenger, renderer *Renderer, queueSize int) *SessionNotifier {
	if queueSize <= 0 {
		queueSize = DefaultNotifyQueue
	}
	return &SessionNotifier{
		messenger: m,
		renderer:  renderer,
		queue:     make(chan engine.Event, queueSize),
		bindings:  make(map[string]*binding),
		pending:   make(map[string]engine.Event),
		done:      make(chan struct{}),
	}
}

// Notify implements engine.Notifier. It never blocks; events are dropped
// when the queue is full.
func (n *SessionNotifier) Notify(ev engine.Event) {
	select {
	case <-n.done:
		return
	default:
	}

	select {
	case n.queue <- ev:
	default:
		log.Warn().
			Str("session_id", ev.Session.ID).
			Str("event", ev.Kind.String()).
			Msg("Notify queue full, dropping event")
	}
}

// Bind attaches a session to the message showing it. version is the snapshot
// version the message was rendered from. Events that arrived before the
// binding are replayed.
func (n *SessionNotifier) Bind(sessionID string, msg tele.Editable, version uint64) {
	n.mu.Lock()
	n.bindings[sessionID] = &binding{msg: msg, version: version}
	ev, ok := n.pending[sessionID]
	delete(n.pending, sessionID)
	n.mu.Unlock()

	if ok {
		n.Notify(ev)
	}
}

// Bound reports whether a session has a message attached.
func (n *SessionNotifier) Bound(sessionID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.bindings[sessionID]
	return ok
}

// Run renders events until ctx is done or Close is called.
func (n *SessionNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case ev := <-n.queue:
			n.handle(ev)
		}
	}
}

// Close stops the worker. Queued events are discarded.
func (n *SessionNotifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

func (n *SessionNotifier) handle(ev engine.Event) {
	s := ev.Session
	evicted := ev.Kind == engine.EventEvicted

	n.mu.Lock()
	b, ok := n.bindings[s.ID]
	switch {
	case !ok && evicted:
		delete(n.pending, s.ID)
		n.mu.Unlock()
		return
	case !ok:
		if prev, seen := n.pending[s.ID]; !seen || prev.Session.Version < s.Version {
			n.pending[s.ID] = ev
		}
		n.mu.Unlock()
		return
	case evicted:
		delete(n.bindings, s.ID)
	case s.Version <= b.version:
		n.mu.Unlock()
		return
	default:
		b.version = s.Version
	}
	msg := b.msg
	n.mu.Unlock()

	text, markup := n.renderer.Render(s, evicted)
	if _, err := n.messenger.Edit(msg, text, markup); err != nil {
		log.Debug().
			Err(err).
			Str("session_id", s.ID).
			Str("event", ev.Kind.String()).
			Msg("Failed to edit session message")
	}
}
