package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/model"
	"arena-game-bot/internal/service"
)

// RankingHandler handles ranking-related commands.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
	}
}

// HandleDailyTop handles the /daily_top command.
// Displays today's top winners and losers across all wagered sessions.
func (h *RankingHandler) HandleDailyTop(c tele.Context) error {
	ctx := context.Background()

	winners, err := h.rankingService.GetDailyWinners(ctx, 10)
	if err != nil {
		return c.Reply("❌ 获取排行榜失败，请稍后重试")
	}

	losers, err := h.rankingService.GetDailyLosers(ctx, 10)
	if err != nil {
		return c.Reply("❌ 获取排行榜失败，请稍后重试")
	}

	return c.Reply(FormatDailyTop(winners, losers))
}

// FormatDailyTop renders the daily winners and losers boards.
func FormatDailyTop(winners, losers []*model.DailyRank) string {
	msg := "📊 今日对局榜\n"
	msg += "━━━━━━━━━━━━━━━\n"

	msg += "🏆 赢家榜 TOP 10\n"
	if len(winners) == 0 {
		msg += "暂无数据\n"
	} else {
		medals := []string{"🥇", "🥈", "🥉"}
		for i, winner := range winners {
			rank := fmt.Sprintf("%d.", i+1)
			if i < 3 {
				rank = medals[i]
			}
			msg += fmt.Sprintf("%s %s: +%d\n", rank, rankName(winner), winner.NetProfit)
		}
	}

	msg += "\n━━━━━━━━━━━━━━━\n"

	msg += "😢 输家榜 TOP 10\n"
	if len(losers) == 0 {
		msg += "暂无数据\n"
	} else {
		for i, loser := range losers {
			msg += fmt.Sprintf("%d. %s: %d\n", i+1, rankName(loser), loser.NetProfit)
		}
	}

	msg += "━━━━━━━━━━━━━━━"
	return msg
}

func rankName(r *model.DailyRank) string {
	if r.Username == "" {
		return fmt.Sprintf("User%d", r.UserID)
	}
	return r.Username
}
