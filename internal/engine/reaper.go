package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"arena-game-bot/internal/game"
)

// DefaultReapInterval is how often the Reaper sweeps sessions.
const DefaultReapInterval = 5 * time.Second

// ReapIdle sweeps every session once. Expired invitations are cancelled and
// InProgress sessions idle past their game's timeout are forfeited by whoever
// holds the turn. A stalled House turn is resumed instead of forfeited.
// It returns the number of sessions cancelled or forfeited. Repeated sweeps never
// act on a session twice.
func (e *Engine) ReapIdle(ctx context.Context) int {
	now := e.clock.Now()
	reaped := 0

	for _, ent := range e.entries() {
		var (
			events []Event
			resume bool
		)

		ent.mu.Lock()
		s := ent.s
		switch s.Status {
		case AwaitingAcceptance:
			if e.expiredLocked(ent) {
				events, _ = e.cancelLocked(ctx, ent, "expired")
				reaped++
			}
		case InProgress:
			if now.Sub(s.LastActionAt) <= ent.rules.IdleTimeout() {
				break
			}
			if s.Participants[s.Turn] == game.House {
				resume = !ent.driving
				break
			}
			log.Info().
				Str("session_id", s.ID).
				Int64("participant", s.Participants[s.Turn]).
				Dur("idle", now.Sub(s.LastActionAt)).
				Msg("Forfeiting idle session")
			events, _ = e.finishLocked(ctx, ent, game.WinFor(s.Turn.Other()), true)
			reaped++
		}
		snap := s.snapshot()
		ent.mu.Unlock()

		e.emit(stamp(events, snap)...)

		if resume {
			e.wg.Add(1)
			go func(ent *entry) {
				defer e.wg.Done()
				e.driveHouse(ctx, ent)
			}(ent)
		}
	}
	return reaped
}

// Reaper runs ReapIdle on a schedule.
type Reaper struct {
	engine    *Engine
	scheduler gocron.Scheduler
}

// NewReaper schedules a sweep of e every interval on the engine clock.
func NewReaper(e *Engine, interval time.Duration) (*Reaper, error) {
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	s, err := gocron.NewScheduler(gocron.WithClock(e.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	r := &Reaper{engine: e, scheduler: s}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.sweep),
		gocron.WithName("session-reaper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule reaper: %w", err)
	}
	return r, nil
}

func (r *Reaper) sweep() {
	if n := r.engine.ReapIdle(context.Background()); n > 0 {
		log.Info().
			Int("reaped", n).
			Int("sessions", r.engine.Len()).
			Int("reserved_participants", r.engine.registry.Len()).
			Msg("Reaper sweep finished")
	}
}

// Start begins sweeping.
func (r *Reaper) Start() {
	r.scheduler.Start()
	log.Info().Msg("Session reaper started")
}

// Stop waits for a running sweep and stops the schedule.
func (r *Reaper) Stop() error {
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop reaper: %w", err)
	}
	log.Info().Msg("Session reaper stopped")
	return nil
}
