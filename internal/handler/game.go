package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/engine"
	"arena-game-bot/internal/game"
	"arena-game-bot/internal/pkg/lock"
	"arena-game-bot/internal/service"
)

var errBadWager = errors.New("bad wager")

var usages = map[game.GameType]string{
	game.ThreeInRow: "❌ 用法: /ttt [金额]\n回复某人的消息即可邀请对战，否则与庄家对战",
	game.FourInRow:  "❌ 用法: /c4 [金额]\n回复某人的消息即可邀请对战，否则与庄家对战",
	game.CardDuel:   "❌ 用法: /bj <金额>\n例如: /bj 100",
}

// GameHandler handles session commands and button presses.
type GameHandler struct {
	engine         *engine.Engine
	accountService *service.AccountService
	userLock       *lock.ParticipantLock
	names          *Directory
	renderer       *Renderer
	notifier       *SessionNotifier
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(
	eng *engine.Engine,
	accountService *service.AccountService,
	userLock *lock.ParticipantLock,
	names *Directory,
	renderer *Renderer,
	notifier *SessionNotifier,
) *GameHandler {
	return &GameHandler{
		engine:         eng,
		accountService: accountService,
		userLock:       userLock,
		names:          names,
		renderer:       renderer,
		notifier:       notifier,
	}
}

// HandleThreeInRow handles the /ttt command.
func (h *GameHandler) HandleThreeInRow(c tele.Context) error {
	return h.startSession(c, game.ThreeInRow, false)
}

// HandleFourInRow handles the /c4 command.
func (h *GameHandler) HandleFourInRow(c tele.Context) error {
	return h.startSession(c, game.FourInRow, false)
}

// HandleCardDuel handles the /bj command. The card duel is always played
// against the House and needs a stake.
func (h *GameHandler) HandleCardDuel(c tele.Context) error {
	return h.startSession(c, game.CardDuel, true)
}

func (h *GameHandler) startSession(c tele.Context, gameType game.GameType, wagerRequired bool) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	wager, err := ParseWager(c.Args(), wagerRequired)
	if err != nil {
		return c.Reply(usages[gameType])
	}

	if _, err := h.accountService.EnsureUser(ctx, sender.ID, h.names.Remember(sender)); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	if active, ok := h.engine.ActiveSession(sender.ID); ok {
		return c.Reply(h.renderer.Busy(active))
	}

	invitee := game.House
	if !wagerRequired {
		if target := replyTarget(c); target != nil {
			invitee = target.ID
			if _, err := h.accountService.EnsureUser(ctx, target.ID, h.names.Remember(target)); err != nil {
				return c.Reply("❌ 操作失败，请稍后重试")
			}
		}
	}

	if !h.userLock.TryLock(sender.ID) {
		return c.Reply("⏳ 操作进行中，请稍候")
	}
	defer h.userLock.Unlock(sender.ID)

	s, err := h.engine.CreateSession(ctx, engine.CreateRequest{
		GameType: gameType,
		Inviter:  sender.ID,
		Invitee:  invitee,
		Wager:    wager,
		Currency: h.accountService.Currency(),
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidWager) {
			return c.Reply(h.wagerLimitText(gameType))
		}
		return c.Reply(ErrorText(err))
	}

	return h.present(c, s)
}

// HandleCallback handles inline button presses on session messages.
func (h *GameHandler) HandleCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()
	if callback == nil || sender == nil {
		return nil
	}

	cb, ok := DecodeCallback(callback.Data)
	if !ok {
		return c.Respond()
	}
	h.names.Remember(sender)

	if !h.userLock.TryLock(sender.ID) {
		return c.Respond(&tele.CallbackResponse{Text: "⏳ 操作太快，请稍候"})
	}
	defer h.userLock.Unlock(sender.ID)

	var (
		s   *engine.Session
		err error
	)
	switch cb.Action {
	case ActionAccept:
		if _, err := h.accountService.EnsureUser(ctx, sender.ID, h.names.Name(sender.ID)); err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "❌ 操作失败，请稍后重试", ShowAlert: true})
		}
		s, err = h.engine.AcceptInvitation(ctx, cb.SessionID, sender.ID)
	case ActionDecline:
		s, err = h.engine.DeclineInvitation(ctx, cb.SessionID, sender.ID)
	case ActionMove:
		move, perr := MoveFromParam(cb.Param)
		if perr != nil {
			return c.Respond(&tele.CallbackResponse{Text: ErrorText(engine.ErrIllegalMove)})
		}
		s, err = h.engine.SubmitMove(ctx, cb.SessionID, sender.ID, move)
	case ActionReplay:
		s, err = h.engine.RequestReplay(ctx, cb.SessionID, sender.ID)
		if err == nil {
			if perr := h.present(c, s); perr != nil {
				log.Warn().Err(perr).Str("session_id", s.ID).Msg("Failed to present replay")
			}
			return c.Respond(&tele.CallbackResponse{Text: "🔁 新对局已开始"})
		}
	default:
		return c.Respond()
	}

	if err != nil {
		log.Debug().
			Err(err).
			Int64("user_id", sender.ID).
			Str("session_id", cb.SessionID).
			Str("action", cb.Action).
			Msg("Session action rejected")
		return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: errors.Is(err, engine.ErrPayoutFailed)})
	}

	// The pressed message was never bound, e.g. its bind raced a failed send.
	if !h.notifier.Bound(s.ID) && callback.Message != nil {
		text, markup := h.renderer.Render(s, false)
		if msg, err := c.Bot().Edit(callback.Message, text, markup); err == nil {
			h.notifier.Bind(s.ID, msg, s.Version)
		}
	}
	return c.Respond()
}

// present sends a fresh message for s and binds it for live updates.
func (h *GameHandler) present(c tele.Context, s *engine.Session) error {
	text, markup := h.renderer.Render(s, false)
	msg, err := c.Bot().Send(c.Chat(), text, markup)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.ID).Msg("Failed to send session message")
		return err
	}
	h.notifier.Bind(s.ID, msg, s.Version)
	return nil
}

func (h *GameHandler) wagerLimitText(gameType game.GameType) string {
	if rules, ok := h.engine.Games().Get(gameType); ok && rules.MaxWager() > 0 {
		return fmt.Sprintf("❌ 下注金额无效，最大下注金额为 %d", rules.MaxWager())
	}
	return ErrorText(engine.ErrInvalidWager)
}

// ParseWager reads the optional wager argument. A required wager must be positive.
func ParseWager(args []string, required bool) (int64, error) {
	if len(args) == 0 {
		if required {
			return 0, errBadWager
		}
		return 0, nil
	}
	wager, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || wager < 0 || (required && wager == 0) {
		return 0, errBadWager
	}
	return wager, nil
}

// replyTarget returns the user the command replies to, unless that is a bot.
func replyTarget(c tele.Context) *tele.User {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return nil
	}
	if msg.ReplyTo.Sender.IsBot {
		return nil
	}
	return msg.ReplyTo.Sender
}

var errorTexts = []struct {
	err  error
	text string
}{
	{engine.ErrIllegalMove, "❌ 非法走法"},
	{engine.ErrNotYourTurn, "⏳ 还没轮到你"},
	{engine.ErrSessionNotActive, "❌ 对局已结束"},
	{engine.ErrAlreadyInSession, "❌ 你或对手已在对局中"},
	{engine.ErrInsufficientFunds, "❌ 余额不足"},
	{engine.ErrSessionNotFound, "❌ 对局不存在或已过期"},
	{engine.ErrNotInvitee, "❌ 只有被邀请者可以接受"},
	{engine.ErrNotParticipant, "❌ 你不是该对局的玩家"},
	{engine.ErrInvalidOpponent, "❌ 无效的对手"},
	{engine.ErrUnknownGame, "❌ 未知游戏"},
	{engine.ErrInvalidWager, "❌ 下注金额无效"},
	{engine.ErrReplayUnavailable, "❌ 无法再来一局"},
	{engine.ErrClosed, "🔧 机器人维护中，请稍后再试"},
	{engine.ErrPayoutFailed, "⚠️ 派彩失败，请联系管理员"},
}

// ErrorText maps an engine error to the message shown to the user.
func ErrorText(err error) string {
	for _, e := range errorTexts {
		if errors.Is(err, e.err) {
			return e.text
		}
	}
	return "❌ 操作失败，请稍后重试"
}
