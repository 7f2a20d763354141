package engine

import (
	"time"

	"arena-game-bot/internal/game"
)

// Status of a session.
type Status int

const (
	AwaitingAcceptance Status = iota
	InProgress
	Finished
	Cancelled
)

func (s Status) String() string {
	switch s {
	case AwaitingAcceptance:
		return "awaiting_acceptance"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Active reports whether the session still holds its participants' reservations.
func (s Status) Active() bool {
	return s == AwaitingAcceptance || s == InProgress
}

// Session is a snapshot of one game session. Board is a private copy.
type Session struct {
	ID           string
	GameType     game.GameType
	Participants [2]int64
	Board        game.Board
	Turn         game.Slot
	Status       Status
	Wager        int64
	Currency     string
	Outcome      game.Outcome

	// Payouts credited per slot once Finished.
	Payouts [2]int64

	// Forfeit is set when the outcome was forced by the idle timeout.
	Forfeit bool

	// ReplayOf is the id of the finished session this one replays, if any.
	ReplayOf string

	// Version increases with every state change, starting at 1.
	Version uint64

	CreatedAt    time.Time
	LastActionAt time.Time
}

// SlotOf returns the slot held by participant.
func (s *Session) SlotOf(participant int64) (game.Slot, bool) {
	switch participant {
	case s.Participants[game.Slot1]:
		return game.Slot1, true
	case s.Participants[game.Slot2]:
		return game.Slot2, true
	}
	return 0, false
}

// Humans marks which slots hold real participants.
func (s *Session) Humans() [2]bool {
	return [2]bool{
		s.Participants[game.Slot1] != game.House,
		s.Participants[game.Slot2] != game.House,
	}
}

// VsHouse reports whether the second slot is the House.
func (s *Session) VsHouse() bool {
	return s.Participants[game.Slot2] == game.House
}

// Winner returns the winning participant of a finished session.
func (s *Session) Winner() (int64, bool) {
	switch s.Outcome {
	case game.Slot1Wins:
		return s.Participants[game.Slot1], true
	case game.Slot2Wins:
		return s.Participants[game.Slot2], true
	}
	return 0, false
}

func (s *Session) snapshot() *Session {
	c := *s
	if s.Board != nil {
		c.Board = s.Board.Clone()
	}
	return &c
}

// EventKind identifies a session lifecycle event.
type EventKind int

const (
	EventCreated EventKind = iota
	EventAccepted
	EventMoved
	EventFinished
	EventCancelled
	EventEvicted
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventAccepted:
		return "accepted"
	case EventMoved:
		return "moved"
	case EventFinished:
		return "finished"
	case EventCancelled:
		return "cancelled"
	case EventEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Event is emitted after every session state change.
type Event struct {
	Kind    EventKind
	Session *Session

	// Move and By are set for EventMoved.
	Move game.Move
	By   game.Slot
}

// Notifier receives session events. Notify is called outside any session lock
// and must not block for long.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ev Event) { f(ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
