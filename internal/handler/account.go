// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/model"
	"arena-game-bot/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
	names          *Directory
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService, names *Directory) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		names:          names,
	}
}

// HandleStart handles the /start command.
// Opens an account with the initial balance if the user doesn't have one.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	username := h.names.Remember(sender)

	created, err := h.accountService.EnsureUser(ctx, sender.ID, username)
	if err != nil {
		return c.Reply("❌ 创建账户失败，请稍后重试")
	}

	balance, err := h.accountService.GetBalance(ctx, sender.ID)
	if err != nil {
		return c.Reply("❌ 获取余额失败，请稍后重试")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 欢迎 @%s！\n\n"+
				"您的账户已创建，初始金币: %d\n\n"+
				"可用命令:\n"+
				"/balance - 查看余额\n"+
				"/history - 最近流水\n"+
				"/daily_top - 今日游戏榜\n"+
				"/ttt [金额] - 井字棋 (回复某人消息即可邀请对战)\n"+
				"/c4 [金额] - 四子棋 (回复某人消息即可邀请对战)\n"+
				"/bj <金额> - 21点 (对战庄家)",
			username, balance,
		))
	}

	return c.Reply(fmt.Sprintf(
		"👋 欢迎回来 @%s！\n\n"+
			"当前余额: %d 金币",
		username, balance,
	))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	balance, err := h.accountService.GetBalance(ctx, sender.ID)
	if errors.Is(err, service.ErrAccountNotFound) {
		// First contact, open the account
		if _, err = h.accountService.EnsureUser(ctx, sender.ID, h.names.Remember(sender)); err == nil {
			balance, err = h.accountService.GetBalance(ctx, sender.ID)
		}
	}
	if err != nil {
		return c.Reply("❌ 获取余额失败，请稍后重试")
	}

	return c.Reply(fmt.Sprintf("💰 当前余额: %d 金币", balance))
}

// HandleHistory handles the /history command.
// Lists the user's most recent transactions.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	txs, err := h.accountService.History(ctx, sender.ID, 10)
	if err != nil {
		return c.Reply("❌ 获取流水失败，请稍后重试")
	}
	if len(txs) == 0 {
		return c.Reply("📜 暂无流水记录")
	}

	return c.Reply(FormatHistory(txs))
}

var txTypeNames = map[string]string{
	model.TxTypeInitial:     "开户",
	model.TxTypeWagerEscrow: "下注",
	model.TxTypeWagerRefund: "退还",
	model.TxTypeWagerCredit: "派彩",
	model.TxTypeAdjust:      "调整",
}

// FormatHistory renders transactions newest first.
func FormatHistory(txs []*model.Transaction) string {
	var sb strings.Builder
	sb.WriteString("📜 最近流水\n")
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	for _, tx := range txs {
		name, ok := txTypeNames[tx.Type]
		if !ok {
			name = tx.Type
		}
		amount := fmt.Sprintf("%d", tx.Amount)
		if tx.Amount > 0 {
			amount = "+" + amount
		}
		fmt.Fprintf(&sb, "%s %s %s", tx.CreatedAt.Format("01-02 15:04"), name, amount)
		if tx.SessionID != nil {
			fmt.Fprintf(&sb, " #%s", shortID(*tx.SessionID))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("━━━━━━━━━━━━━━━")
	return sb.String()
}

// shortID trims a session id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
