package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"arena-game-bot/internal/model"
)

// RankStore aggregates a day's wager results per user.
type RankStore interface {
	GetDailyWinners(ctx context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error)
	GetDailyLosers(ctx context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error)
}

// RankingService builds the daily winners and losers boards.
type RankingService struct {
	store    RankStore
	currency string
	timezone *time.Location
	clock    clockwork.Clock
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(store RankStore, currency string, timezone *time.Location, clock clockwork.Clock) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RankingService{
		store:    store,
		currency: currency,
		timezone: timezone,
		clock:    clock,
	}
}

// GetDailyWinners retrieves today's users with the highest net wager profit.
func (s *RankingService) GetDailyWinners(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	ranks, err := s.store.GetDailyWinners(ctx, s.currency, s.today(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily winners: %w", err)
	}
	return ranks, nil
}

// GetDailyLosers retrieves today's users with the largest net wager loss.
func (s *RankingService) GetDailyLosers(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	ranks, err := s.store.GetDailyLosers(ctx, s.currency, s.today(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily losers: %w", err)
	}
	return ranks, nil
}

func (s *RankingService) today() time.Time {
	return s.clock.Now().In(s.timezone)
}
