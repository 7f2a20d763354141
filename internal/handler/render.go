package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/engine"
	"arena-game-bot/internal/game"
	"arena-game-bot/internal/game/cardduel"
)

var gameTitles = map[game.GameType]string{
	game.ThreeInRow: "⭕ 井字棋",
	game.FourInRow:  "🔴 四子棋",
	game.CardDuel:   "🃏 21点",
}

// Renderer turns session snapshots into message text and keyboards.
type Renderer struct {
	names    *Directory
	keyboard *KeyboardBuilder
}

// NewRenderer creates a Renderer resolving participant names through names.
func NewRenderer(names *Directory) *Renderer {
	return &Renderer{names: names, keyboard: NewKeyboardBuilder()}
}

// Render returns the message text and keyboard for s. Evicted sessions keep
// their final text but lose the replay button.
func (r *Renderer) Render(s *engine.Session, evicted bool) (string, *tele.ReplyMarkup) {
	return r.Text(s), r.keyboard.Build(s, !evicted)
}

// Text renders the session as message text.
func (r *Renderer) Text(s *engine.Session) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s #%s\n", gameTitle(s.GameType), shortID(s.ID))

	p1, p2 := s.Participants[game.Slot1], s.Participants[game.Slot2]
	if s.GameType == game.CardDuel {
		fmt.Fprintf(&sb, "👤 %s vs %s\n", r.mention(p1), r.mention(p2))
	} else {
		fmt.Fprintf(&sb, "👤 %s (%s) vs %s (%s)\n", r.mention(p1), slotSymbol(s.GameType, game.Slot1), r.mention(p2), slotSymbol(s.GameType, game.Slot2))
	}
	if s.Wager > 0 {
		fmt.Fprintf(&sb, "💰 下注: %d %s\n", s.Wager, s.Currency)
	}

	if s.Status != engine.AwaitingAcceptance && s.Board != nil {
		sb.WriteString("\n")
		sb.WriteString(s.Board.String())
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(r.statusLine(s))
	return sb.String()
}

// Busy tells a participant which unfinished session still holds them.
func (r *Renderer) Busy(s *engine.Session) string {
	if s.VsHouse() {
		return fmt.Sprintf("❌ 你正在与%s进行 %s #%s，请先完成对局", HouseName, gameTitle(s.GameType), shortID(s.ID))
	}
	return fmt.Sprintf("❌ 你正在进行 %s #%s，请先完成对局\n%s", gameTitle(s.GameType), shortID(s.ID), r.statusLine(s))
}

func (r *Renderer) statusLine(s *engine.Session) string {
	switch s.Status {
	case engine.AwaitingAcceptance:
		return fmt.Sprintf("⏳ 等待 %s 接受邀请", r.mention(s.Participants[game.Slot2]))

	case engine.InProgress:
		if b, ok := s.Board.(*cardduel.Board); ok && b.Phase() != cardduel.PhasePlayer {
			return "🎩 庄家行动中..."
		}
		if s.VsHouse() && s.Turn == game.Slot2 {
			return "🤔 庄家思考中..."
		}
		return fmt.Sprintf("👉 轮到 %s", r.mention(s.Participants[s.Turn]))

	case engine.Finished:
		return r.resultLine(s)

	case engine.Cancelled:
		return "🚫 对局已取消，下注已退还"
	}
	return ""
}

func (r *Renderer) resultLine(s *engine.Session) string {
	var sb strings.Builder

	winner, ok := s.Winner()
	switch {
	case ok && s.Forfeit:
		loser := s.Participants[s.Turn]
		fmt.Fprintf(&sb, "⏰ %s 超时判负，%s 获胜", r.mention(loser), r.mention(winner))
	case ok:
		fmt.Fprintf(&sb, "🎉 %s 获胜！", r.mention(winner))
	default:
		sb.WriteString("🤝 平局")
	}

	for slot, p := range s.Participants {
		if p == game.House || s.Wager == 0 {
			continue
		}
		staked := s.Wager
		if b, ok := s.Board.(*cardduel.Board); ok {
			staked = b.Staked()
		}
		net := s.Payouts[slot] - staked
		sign := ""
		if net > 0 {
			sign = "+"
		}
		fmt.Fprintf(&sb, "\n💵 %s: 派彩 %d (%s%d)", r.mention(p), s.Payouts[slot], sign, net)
	}
	return sb.String()
}

func (r *Renderer) mention(id int64) string {
	name := r.names.Name(id)
	if id == game.House {
		return name
	}
	return "@" + name
}

func gameTitle(t game.GameType) string {
	if title, ok := gameTitles[t]; ok {
		return title
	}
	return string(t)
}

func slotSymbol(t game.GameType, s game.Slot) string {
	if t == game.FourInRow {
		if s == game.Slot1 {
			return "🔴"
		}
		return "🟡"
	}
	if s == game.Slot1 {
		return "X"
	}
	return "O"
}
