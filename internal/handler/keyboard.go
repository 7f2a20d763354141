package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/engine"
	"arena-game-bot/internal/game"
	"arena-game-bot/internal/game/cardduel"
	"arena-game-bot/internal/game/fourinrow"
	"arena-game-bot/internal/game/threeinrow"
)

// CallbackPrefix is the prefix for all session callback data.
const CallbackPrefix = "arena_"

// Callback actions.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionMove    = "move"
	ActionReplay  = "replay"
)

// Callback is a decoded button press.
type Callback struct {
	Action    string
	SessionID string
	Param     string
}

// EncodeCallback encodes an action on a session into callback data.
func EncodeCallback(action, sessionID, param string) string {
	data := CallbackPrefix + action + "_" + sessionID
	if param != "" {
		data += "_" + param
	}
	return data
}

// DecodeCallback decodes callback data. ok is false for data this package did not encode.
func DecodeCallback(data string) (cb Callback, ok bool) {
	// Telebot may add a \f prefix to callback data
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, CallbackPrefix) {
		return Callback{}, false
	}

	parts := strings.SplitN(strings.TrimPrefix(data, CallbackPrefix), "_", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Callback{}, false
	}
	cb = Callback{Action: parts[0], SessionID: parts[1]}
	if len(parts) == 3 {
		cb.Param = parts[2]
	}
	return cb, true
}

// MoveFromParam turns a move button parameter back into a move.
// Grid games carry a cell or column number, the card duel an action name.
func MoveFromParam(param string) (game.Move, error) {
	if param == "" {
		return game.Move{}, fmt.Errorf("empty move")
	}
	if n, err := strconv.Atoi(param); err == nil {
		return game.Move{Position: n}, nil
	}
	switch a := game.Action(param); a {
	case game.ActionHit, game.ActionStand, game.ActionDouble, game.ActionSplit:
		return game.Move{Action: a}, nil
	}
	return game.Move{}, fmt.Errorf("unknown move %q", param)
}

// KeyboardBuilder builds inline keyboards for sessions.
type KeyboardBuilder struct{}

// NewKeyboardBuilder creates a new KeyboardBuilder instance.
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// Build returns the keyboard for a session's current state, or nil when the
// session has nothing left to press.
func (kb *KeyboardBuilder) Build(s *engine.Session, replayable bool) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton

	switch s.Status {
	case engine.AwaitingAcceptance:
		rows = [][]tele.InlineButton{{
			{Text: "✅ 接受", Data: EncodeCallback(ActionAccept, s.ID, "")},
			{Text: "❌ 拒绝", Data: EncodeCallback(ActionDecline, s.ID, "")},
		}}
	case engine.InProgress:
		rows = kb.moveRows(s)
	case engine.Finished:
		if replayable {
			rows = [][]tele.InlineButton{{
				{Text: "🔁 再来一局", Data: EncodeCallback(ActionReplay, s.ID, "")},
			}}
		}
	}

	if len(rows) == 0 {
		return &tele.ReplyMarkup{}
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func (kb *KeyboardBuilder) moveRows(s *engine.Session) [][]tele.InlineButton {
	move := func(text, param string) tele.InlineButton {
		return tele.InlineButton{Text: text, Data: EncodeCallback(ActionMove, s.ID, param)}
	}

	switch b := s.Board.(type) {
	case *threeinrow.Board:
		cells := b.Cells()
		rows := make([][]tele.InlineButton, 0, 3)
		for r := 0; r < 3; r++ {
			row := make([]tele.InlineButton, 0, 3)
			for c := 0; c < 3; c++ {
				i := r*3 + c
				label := cells[i].String()
				if cells[i] == threeinrow.Empty {
					label = "⬜"
				}
				row = append(row, move(label, strconv.Itoa(i)))
			}
			rows = append(rows, row)
		}
		return rows

	case *fourinrow.Board:
		row := make([]tele.InlineButton, 0, fourinrow.Cols)
		for c := 0; c < fourinrow.Cols; c++ {
			row = append(row, move(strconv.Itoa(c+1), strconv.Itoa(c)))
		}
		return [][]tele.InlineButton{row}

	case *cardduel.Board:
		if b.Phase() != cardduel.PhasePlayer {
			return nil
		}
		var row []tele.InlineButton
		for _, m := range b.Moves(game.Slot1) {
			row = append(row, move(actionLabels[m.Action], string(m.Action)))
		}
		return [][]tele.InlineButton{row}
	}
	return nil
}

var actionLabels = map[game.Action]string{
	game.ActionHit:    "要牌",
	game.ActionStand:  "停牌",
	game.ActionDouble: "加倍",
	game.ActionSplit:  "分牌",
}
