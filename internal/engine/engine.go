// Package engine runs wagered game sessions: it gates participants through the
// registry, escrows wagers, applies moves, drives the House and settles outcomes.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"arena-game-bot/internal/game"
	"arena-game-bot/internal/ledger"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultAcceptanceWindow = 60 * time.Second
	DefaultGraceWindow      = 30 * time.Second
	DefaultThinkMin         = 500 * time.Millisecond
	DefaultThinkMax         = 1500 * time.Millisecond
	DefaultCurrency         = "coins"
)

// Config holds engine settings.
type Config struct {
	// AcceptanceWindow is how long an invitation stays open.
	AcceptanceWindow time.Duration

	// GraceWindow is how long a finished or cancelled session stays readable
	// and replayable before it is evicted.
	GraceWindow time.Duration

	// ThinkMin and ThinkMax bound the random pause before a House move when the
	// game does not set its own pacing.
	ThinkMin time.Duration
	ThinkMax time.Duration

	// InstantHouse skips every House pause.
	InstantHouse bool

	DefaultCurrency string

	Clock    clockwork.Clock
	Notifier Notifier
}

// CreateRequest asks for a new session. Invitee is game.House to play the House.
type CreateRequest struct {
	GameType game.GameType
	Inviter  int64
	Invitee  int64
	Wager    int64
	Currency string
}

type entry struct {
	mu       sync.Mutex
	s        *Session
	rules    game.Rules
	holding  *Holding
	replayed bool
	driving  bool

	acceptTimer clockwork.Timer
	evictTimer  clockwork.Timer

	// done is closed once the session is Finished or Cancelled.
	done chan struct{}
}

// Engine owns every live session.
type Engine struct {
	cfg      Config
	clock    clockwork.Clock
	games    *game.Registry
	registry *Registry
	escrow   *Escrow
	notifier Notifier

	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an engine playing the games in games and drawing wagers from l.
func New(games *game.Registry, l ledger.Ledger, cfg Config) *Engine {
	if cfg.AcceptanceWindow <= 0 {
		cfg.AcceptanceWindow = DefaultAcceptanceWindow
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = DefaultGraceWindow
	}
	if cfg.ThinkMin <= 0 {
		cfg.ThinkMin = DefaultThinkMin
	}
	if cfg.ThinkMax < cfg.ThinkMin {
		cfg.ThinkMax = max(DefaultThinkMax, cfg.ThinkMin)
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &Engine{
		cfg:      cfg,
		clock:    cfg.Clock,
		games:    games,
		registry: NewRegistry(),
		escrow:   NewEscrow(l),
		notifier: notifier,
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
	}
}

// Games returns the registry of playable games.
func (e *Engine) Games() *game.Registry { return e.games }

// SetNotifier replaces the event notifier. It must be called before the engine is used.
func (e *Engine) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	e.notifier = n
}

// CreateSession reserves the participants, escrows the inviter's wager and starts
// the session. Against the House it starts InProgress; otherwise it waits for
// the invitee to accept.
func (e *Engine) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	return e.create(ctx, req, "")
}

func (e *Engine) create(ctx context.Context, req CreateRequest, replayOf string) (*Session, error) {
	rules, ok := e.games.Get(req.GameType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, req.GameType)
	}
	if req.Inviter == game.House || req.Inviter == req.Invitee {
		return nil, fmt.Errorf("%w: %d cannot play %d", ErrInvalidOpponent, req.Inviter, req.Invitee)
	}
	if rules.HouseOnly() && req.Invitee != game.House {
		return nil, fmt.Errorf("%w: %s is played against the House", ErrInvalidOpponent, rules.Name())
	}
	if req.Wager < 0 || (rules.MaxWager() > 0 && req.Wager > rules.MaxWager()) {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrInvalidWager, req.Wager, rules.MaxWager())
	}
	currency := req.Currency
	if currency == "" {
		currency = e.cfg.DefaultCurrency
	}

	id := uuid.NewString()
	if err := e.registry.Reserve(id, req.Inviter, req.Invitee); err != nil {
		return nil, err
	}

	holding := NewHolding(id, currency)
	if err := e.escrow.Hold(ctx, holding, req.Wager, req.Inviter); err != nil {
		e.registry.Release(id)
		return nil, err
	}

	now := e.clock.Now()
	s := &Session{
		ID:           id,
		GameType:     req.GameType,
		Participants: [2]int64{req.Inviter, req.Invitee},
		Board:        rules.NewBoard(req.Wager),
		Status:       AwaitingAcceptance,
		Wager:        req.Wager,
		Currency:     currency,
		Outcome:      game.Unresolved,
		ReplayOf:     replayOf,
		Version:      1,
		CreatedAt:    now,
		LastActionAt: now,
	}
	if req.Invitee == game.House {
		s.Status = InProgress
		s.Turn = s.Board.FirstToMove()
	}
	ent := &entry{s: s, rules: rules, holding: holding, done: make(chan struct{})}

	ent.mu.Lock()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		ent.mu.Unlock()
		_ = e.escrow.Refund(context.WithoutCancel(ctx), holding)
		e.registry.Release(id)
		return nil, ErrClosed
	}
	e.sessions[id] = ent
	e.mu.Unlock()

	if s.Status == AwaitingAcceptance {
		ent.acceptTimer = e.clock.AfterFunc(e.cfg.AcceptanceWindow, func() { e.expire(id) })
	}
	snap := s.snapshot()
	houseTurn := e.houseTurnLocked(ent)
	ent.mu.Unlock()

	log.Info().
		Str("session_id", id).
		Str("game", string(req.GameType)).
		Int64("inviter", req.Inviter).
		Int64("invitee", req.Invitee).
		Int64("wager", req.Wager).
		Str("currency", currency).
		Str("status", s.Status.String()).
		Msg("Session created")

	e.emit(Event{Kind: EventCreated, Session: snap})

	if houseTurn {
		return e.driveHouse(ctx, ent), nil
	}
	return snap, nil
}

// SubmitMove applies a participant's move. In a House session the House replies
// before SubmitMove returns. A non-nil error with a non-nil session means the
// move was applied but a payout failed.
func (e *Engine) SubmitMove(ctx context.Context, id string, participant int64, move game.Move) (*Session, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	s := ent.s
	if s.Status != InProgress {
		ent.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", ErrSessionNotActive, s.Status)
	}
	slot, ok := s.SlotOf(participant)
	if !ok || participant == game.House {
		ent.mu.Unlock()
		return nil, ErrNotParticipant
	}
	if slot != s.Turn {
		ent.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	if err := s.Board.Validate(slot, move); err != nil {
		ent.mu.Unlock()
		return nil, err
	}

	var extra int64
	if st, ok := s.Board.(game.Staker); ok {
		extra = st.ExtraStake(slot, move)
	}
	if extra > 0 {
		if err := e.escrow.Raise(ctx, ent.holding, participant, extra); err != nil {
			ent.mu.Unlock()
			return nil, err
		}
	}

	again, err := s.Board.Apply(slot, move)
	if err != nil {
		if extra > 0 {
			_ = e.escrow.Return(context.WithoutCancel(ctx), ent.holding, participant, extra)
		}
		ent.mu.Unlock()
		return nil, err
	}

	events, settleErr := e.afterMoveLocked(ctx, ent, slot, move, again)
	snap := s.snapshot()
	houseTurn := e.houseTurnLocked(ent)
	ent.mu.Unlock()

	e.emit(stamp(events, snap)...)

	if houseTurn {
		snap = e.driveHouse(ctx, ent)
	}
	return snap, settleErr
}

// AcceptInvitation starts an invitation once the invitee's wager is escrowed.
// If the invitee cannot cover it the inviter is refunded and the session is cancelled.
func (e *Engine) AcceptInvitation(ctx context.Context, id string, participant int64) (*Session, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	s := ent.s
	if s.Status != AwaitingAcceptance {
		ent.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", ErrSessionNotActive, s.Status)
	}
	if participant != s.Participants[game.Slot2] {
		ent.mu.Unlock()
		return nil, ErrNotInvitee
	}

	if e.expiredLocked(ent) {
		events, _ := e.cancelLocked(ctx, ent, "expired")
		snap := s.snapshot()
		ent.mu.Unlock()
		e.emit(stamp(events, snap)...)
		return nil, fmt.Errorf("%w: invitation expired", ErrSessionNotActive)
	}

	if err := e.escrow.Hold(ctx, ent.holding, s.Wager, participant); err != nil {
		// Hold already rolled the inviter's stake back.
		events, refundErr := e.cancelLocked(ctx, ent, "invitee_insufficient_funds")
		snap := s.snapshot()
		ent.mu.Unlock()
		e.emit(stamp(events, snap)...)
		if refundErr != nil {
			return nil, fmt.Errorf("%w; %w", err, refundErr)
		}
		return nil, err
	}

	s.Status = InProgress
	s.Turn = s.Board.FirstToMove()
	s.LastActionAt = e.clock.Now()
	s.Version++
	if ent.acceptTimer != nil {
		ent.acceptTimer.Stop()
	}
	snap := s.snapshot()
	houseTurn := e.houseTurnLocked(ent)
	ent.mu.Unlock()

	log.Info().Str("session_id", id).Int64("invitee", participant).Msg("Invitation accepted")
	e.emit(Event{Kind: EventAccepted, Session: snap})

	if houseTurn {
		snap = e.driveHouse(ctx, ent)
	}
	return snap, nil
}

// DeclineInvitation cancels a pending invitation and refunds the inviter.
// The invitee declines; the inviter may use it to withdraw.
func (e *Engine) DeclineInvitation(ctx context.Context, id string, participant int64) (*Session, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	s := ent.s
	if s.Status != AwaitingAcceptance {
		ent.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", ErrSessionNotActive, s.Status)
	}
	slot, ok := s.SlotOf(participant)
	if !ok || participant == game.House {
		ent.mu.Unlock()
		return nil, ErrNotParticipant
	}

	reason := "declined"
	if slot == game.Slot1 {
		reason = "withdrawn"
	}
	events, refundErr := e.cancelLocked(ctx, ent, reason)
	snap := s.snapshot()
	ent.mu.Unlock()

	e.emit(stamp(events, snap)...)
	return snap, refundErr
}

// RequestReplay creates a new session with the same game, opponent and wager as a
// finished one. The requester becomes the inviter. Each finished session can be
// replayed once, and only until it is evicted.
func (e *Engine) RequestReplay(ctx context.Context, id string, participant int64) (*Session, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	s := ent.s
	if s.Status != Finished {
		ent.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", ErrReplayUnavailable, s.Status)
	}
	slot, ok := s.SlotOf(participant)
	if !ok || participant == game.House {
		ent.mu.Unlock()
		return nil, ErrNotParticipant
	}
	if ent.replayed {
		ent.mu.Unlock()
		return nil, fmt.Errorf("%w: already replayed", ErrReplayUnavailable)
	}
	ent.replayed = true
	req := CreateRequest{
		GameType: s.GameType,
		Inviter:  participant,
		Invitee:  s.Participants[slot.Other()],
		Wager:    s.Wager,
		Currency: s.Currency,
	}
	ent.mu.Unlock()

	replay, err := e.create(ctx, req, id)
	if err != nil {
		ent.mu.Lock()
		ent.replayed = false
		ent.mu.Unlock()
		return nil, err
	}
	return replay, nil
}

// GetSession returns a snapshot of a session that has not been evicted.
func (e *Engine) GetSession(id string) (*Session, bool) {
	ent, err := e.lookup(id)
	if err != nil {
		return nil, false
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.s.snapshot(), true
}

// ActiveSession returns the session the participant is currently reserved by.
func (e *Engine) ActiveSession(participant int64) (*Session, bool) {
	id, ok := e.registry.SessionOf(participant)
	if !ok {
		return nil, false
	}
	return e.GetSession(id)
}

// Len returns the number of sessions held in memory.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Close stops every timer and pending House pause. Sessions still in flight keep
// their escrow; nothing is refunded on shutdown.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		ents := make([]*entry, 0, len(e.sessions))
		for _, ent := range e.sessions {
			ents = append(ents, ent)
		}
		e.mu.Unlock()

		close(e.stop)
		for _, ent := range ents {
			ent.mu.Lock()
			if ent.acceptTimer != nil {
				ent.acceptTimer.Stop()
			}
			if ent.evictTimer != nil {
				ent.evictTimer.Stop()
			}
			ent.mu.Unlock()
		}
		e.wg.Wait()
	})
}

func (e *Engine) lookup(id string) (*entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ent, nil
}

func (e *Engine) entries() []*entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ents := make([]*entry, 0, len(e.sessions))
	for _, ent := range e.sessions {
		ents = append(ents, ent)
	}
	return ents
}

func (e *Engine) houseTurnLocked(ent *entry) bool {
	return ent.s.Status == InProgress && ent.s.Participants[ent.s.Turn] == game.House
}

func (e *Engine) expiredLocked(ent *entry) bool {
	return !e.clock.Now().Before(ent.s.CreatedAt.Add(e.cfg.AcceptanceWindow))
}

// houseDelay is the game's own pacing, or a random think time within the configured bounds.
func (e *Engine) houseDelay(rules game.Rules) time.Duration {
	if e.cfg.InstantHouse {
		return 0
	}
	if d := rules.HouseDelay(); d > 0 {
		return d
	}
	spread := e.cfg.ThinkMax - e.cfg.ThinkMin
	if spread <= 0 {
		return e.cfg.ThinkMin
	}
	return e.cfg.ThinkMin + time.Duration(rand.Int63n(int64(spread)+1))
}

// driveHouse plays House moves until the turn leaves the House. Pauses run on the
// engine clock without holding the session lock, and end early if the session
// closes or the engine stops.
func (e *Engine) driveHouse(ctx context.Context, ent *entry) *Session {
	ctx = context.WithoutCancel(ctx)

	ent.mu.Lock()
	if ent.driving {
		snap := ent.s.snapshot()
		ent.mu.Unlock()
		return snap
	}
	ent.driving = true
	ent.mu.Unlock()

	defer func() {
		ent.mu.Lock()
		ent.driving = false
		ent.mu.Unlock()
	}()

	for {
		ent.mu.Lock()
		if !e.houseTurnLocked(ent) {
			snap := ent.s.snapshot()
			ent.mu.Unlock()
			return snap
		}
		delay := e.houseDelay(ent.rules)
		ent.mu.Unlock()

		if delay > 0 {
			select {
			case <-e.clock.After(delay):
			case <-ent.done:
			case <-e.stop:
				return e.snapshotOf(ent)
			}
		}

		ent.mu.Lock()
		if !e.houseTurnLocked(ent) {
			snap := ent.s.snapshot()
			ent.mu.Unlock()
			return snap
		}
		events, err := e.houseMoveLocked(ctx, ent)
		snap := ent.s.snapshot()
		ent.mu.Unlock()

		e.emit(stamp(events, snap)...)
		if err != nil {
			log.Error().Err(err).Str("session_id", snap.ID).Msg("House move failed")
			return snap
		}
	}
}

func (e *Engine) houseMoveLocked(ctx context.Context, ent *entry) ([]Event, error) {
	slot := ent.s.Turn
	move, err := ent.rules.Opponent().ChooseMove(ent.s.Board, slot)
	if err != nil {
		return nil, fmt.Errorf("choose move: %w", err)
	}
	again, err := ent.s.Board.Apply(slot, move)
	if err != nil {
		return nil, fmt.Errorf("apply house move: %w", err)
	}
	return e.afterMoveLocked(ctx, ent, slot, move, again)
}

// afterMoveLocked records an applied move, then either finishes the session or
// passes the turn.
func (e *Engine) afterMoveLocked(ctx context.Context, ent *entry, slot game.Slot, move game.Move, again bool) ([]Event, error) {
	s := ent.s
	s.LastActionAt = e.clock.Now()
	s.Version++
	events := []Event{{Kind: EventMoved, Move: move, By: slot}}

	if outcome := s.Board.Outcome(); outcome != game.Unresolved {
		finished, err := e.finishLocked(ctx, ent, outcome, false)
		return append(events, finished...), err
	}
	if !again {
		s.Turn = slot.Other()
	}
	return events, nil
}

// finishLocked settles the session and releases its participants.
func (e *Engine) finishLocked(ctx context.Context, ent *entry, outcome game.Outcome, forfeit bool) ([]Event, error) {
	s := ent.s
	s.Status = Finished
	s.Version++
	s.Outcome = outcome
	s.Forfeit = forfeit
	s.Payouts = s.Board.Payouts(outcome, s.Wager, s.Humans())

	credits := make(map[int64]int64, 2)
	for slot, amount := range s.Payouts {
		if p := s.Participants[slot]; amount > 0 && p != game.House {
			credits[p] += amount
		}
	}
	err := e.escrow.Settle(context.WithoutCancel(ctx), ent.holding, credits)
	e.closeLocked(ent)

	log.Info().
		Str("session_id", s.ID).
		Str("game", string(s.GameType)).
		Str("outcome", outcome.String()).
		Bool("forfeit", forfeit).
		Int64("payout_slot1", s.Payouts[game.Slot1]).
		Int64("payout_slot2", s.Payouts[game.Slot2]).
		Msg("Session finished")

	return []Event{{Kind: EventFinished}}, err
}

// cancelLocked refunds everyone who paid and releases the participants.
func (e *Engine) cancelLocked(ctx context.Context, ent *entry, reason string) ([]Event, error) {
	s := ent.s
	s.Status = Cancelled
	s.Version++
	err := e.escrow.Refund(context.WithoutCancel(ctx), ent.holding)
	e.closeLocked(ent)

	log.Info().
		Str("session_id", s.ID).
		Str("game", string(s.GameType)).
		Str("reason", reason).
		Msg("Session cancelled")

	return []Event{{Kind: EventCancelled}}, err
}

func (e *Engine) closeLocked(ent *entry) {
	id := ent.s.ID
	e.registry.Release(id)
	if ent.acceptTimer != nil {
		ent.acceptTimer.Stop()
	}
	close(ent.done)
	ent.evictTimer = e.clock.AfterFunc(e.cfg.GraceWindow, func() { e.evict(id) })
}

// expire cancels an invitation whose acceptance window has elapsed.
func (e *Engine) expire(id string) {
	ent, err := e.lookup(id)
	if err != nil {
		return
	}
	ent.mu.Lock()
	if ent.s.Status != AwaitingAcceptance || !e.expiredLocked(ent) {
		ent.mu.Unlock()
		return
	}
	events, _ := e.cancelLocked(context.Background(), ent, "expired")
	snap := ent.s.snapshot()
	ent.mu.Unlock()
	e.emit(stamp(events, snap)...)
}

func (e *Engine) evict(id string) {
	e.mu.Lock()
	ent, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	log.Debug().Str("session_id", id).Msg("Session evicted")
	e.emit(Event{Kind: EventEvicted, Session: e.snapshotOf(ent)})
}

func (e *Engine) snapshotOf(ent *entry) *Session {
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.s.snapshot()
}

func (e *Engine) emit(events ...Event) {
	for _, ev := range events {
		e.notifier.Notify(ev)
	}
}

// stamp fills in the session snapshot of events built under the lock.
func stamp(events []Event, snap *Session) []Event {
	for i := range events {
		if events[i].Session == nil {
			events[i].Session = snap
		}
	}
	return events
}
