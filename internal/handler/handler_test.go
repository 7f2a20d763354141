package handler

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"arena-game-bot/internal/engine"
	"arena-game-bot/internal/game"
	"arena-game-bot/internal/game/cardduel"
	"arena-game-bot/internal/game/fourinrow"
	"arena-game-bot/internal/game/threeinrow"
	"arena-game-bot/internal/model"
)

const sessionID = "3f2c9a4e-1b7d-4c1e-9d3a-5e6f7a8b9c0d"

func directory() *Directory {
	d := NewDirectory()
	d.Remember(&tele.User{ID: 101, Username: "alice"})
	d.Remember(&tele.User{ID: 202, FirstName: "Bob"})
	return d
}

func deckOf(ranks ...cardduel.Rank) cardduel.Deck {
	d := make(cardduel.Deck, len(ranks))
	for i, r := range ranks {
		d[len(ranks)-1-i] = cardduel.Card{Rank: r, Suit: cardduel.Hearts}
	}
	return d
}

func session(gameType game.GameType, board game.Board, status engine.Status) *engine.Session {
	return &engine.Session{
		ID:           sessionID,
		GameType:     gameType,
		Participants: [2]int64{101, 202},
		Board:        board,
		Status:       status,
		Wager:        100,
		Currency:     "coins",
		Version:      1,
	}
}

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Callback
		ok   bool
	}{
		{"accept", EncodeCallback(ActionAccept, sessionID, ""), Callback{ActionAccept, sessionID, ""}, true},
		{"move with cell", EncodeCallback(ActionMove, sessionID, "4"), Callback{ActionMove, sessionID, "4"}, true},
		{"telebot prefix", "\f" + EncodeCallback(ActionMove, sessionID, "hit"), Callback{ActionMove, sessionID, "hit"}, true},
		{"foreign prefix", "sicbo_bet_big", Callback{}, false},
		{"missing session", CallbackPrefix + "accept", Callback{}, false},
		{"empty action", CallbackPrefix + "_" + sessionID, Callback{}, false},
		{"empty", "", Callback{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeCallback(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestCallbackDataFitsTelegramLimit checks every encoded button stays within
// Telegram's 64 byte callback data limit.
func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		action := rapid.SampledFrom([]string{ActionAccept, ActionDecline, ActionMove, ActionReplay}).Draw(t, "action")
		param := rapid.SampledFrom([]string{"", "0", "8", "6", "hit", "stand", "double", "split"}).Draw(t, "param")

		data := EncodeCallback(action, sessionID, param)
		if len(data) > 64 {
			t.Fatalf("callback data %q is %d bytes", data, len(data))
		}
		cb, ok := DecodeCallback(data)
		if !ok || cb.Action != action || cb.SessionID != sessionID || cb.Param != param {
			t.Fatalf("decode(%q) = %+v, %v", data, cb, ok)
		}
	})
}

func TestMoveFromParam(t *testing.T) {
	m, err := MoveFromParam("7")
	require.NoError(t, err)
	assert.Equal(t, game.Move{Position: 7}, m)

	m, err = MoveFromParam("double")
	require.NoError(t, err)
	assert.Equal(t, game.Move{Action: game.ActionDouble}, m)

	_, err = MoveFromParam("surrender")
	assert.Error(t, err)
	_, err = MoveFromParam("")
	assert.Error(t, err)
}

func TestParseWager(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		required bool
		want     int64
		wantErr  bool
	}{
		{"optional absent", nil, false, 0, false},
		{"optional zero", []string{"0"}, false, 0, false},
		{"optional amount", []string{"250"}, false, 250, false},
		{"required absent", nil, true, 0, true},
		{"required zero", []string{"0"}, true, 0, true},
		{"required amount", []string{"50"}, true, 50, false},
		{"negative", []string{"-5"}, false, 0, true},
		{"not a number", []string{"lots"}, false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWager(tt.args, tt.required)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorText(t *testing.T) {
	wrapped := fmt.Errorf("%w: cell 4 is taken", engine.ErrIllegalMove)
	assert.Equal(t, "❌ 非法走法", ErrorText(wrapped))
	assert.Equal(t, "❌ 余额不足", ErrorText(engine.ErrInsufficientFunds))
	assert.Equal(t, "⚠️ 派彩失败，请联系管理员", ErrorText(fmt.Errorf("settle: %w", engine.ErrPayoutFailed)))
	assert.Equal(t, "❌ 操作失败，请稍后重试", ErrorText(fmt.Errorf("%w: participant 1: timeout", engine.ErrLedgerUnavailable)))
	assert.Equal(t, "❌ 操作失败，请稍后重试", ErrorText(errors.New("boom")))
}

func TestDirectory(t *testing.T) {
	d := directory()
	assert.Equal(t, "alice", d.Name(101))
	assert.Equal(t, "Bob", d.Name(202))
	assert.Equal(t, HouseName, d.Name(game.House))
	assert.Equal(t, "User303", d.Name(303))

	// A user without any name keeps what was known before.
	assert.Equal(t, "alice", d.Remember(&tele.User{ID: 101}))
}

func TestKeyboardBuilder_Build(t *testing.T) {
	kb := NewKeyboardBuilder()

	t.Run("invitation", func(t *testing.T) {
		markup := kb.Build(session(game.ThreeInRow, threeinrow.NewBoard(), engine.AwaitingAcceptance), true)
		require.Len(t, markup.InlineKeyboard, 1)
		row := markup.InlineKeyboard[0]
		require.Len(t, row, 2)
		assert.Equal(t, EncodeCallback(ActionAccept, sessionID, ""), row[0].Data)
		assert.Equal(t, EncodeCallback(ActionDecline, sessionID, ""), row[1].Data)
	})

	t.Run("three in a row grid", func(t *testing.T) {
		var cells [threeinrow.Size]threeinrow.Mark
		cells[4] = threeinrow.X
		markup := kb.Build(session(game.ThreeInRow, threeinrow.FromCells(cells), engine.InProgress), true)
		require.Len(t, markup.InlineKeyboard, 3)
		for _, row := range markup.InlineKeyboard {
			assert.Len(t, row, 3)
		}
		center := markup.InlineKeyboard[1][1]
		assert.Equal(t, "X", center.Text)
		assert.Equal(t, EncodeCallback(ActionMove, sessionID, "4"), center.Data)
		assert.Equal(t, "⬜", markup.InlineKeyboard[0][0].Text)
	})

	t.Run("four in a row columns", func(t *testing.T) {
		markup := kb.Build(session(game.FourInRow, fourinrow.NewBoard(), engine.InProgress), true)
		require.Len(t, markup.InlineKeyboard, 1)
		row := markup.InlineKeyboard[0]
		require.Len(t, row, fourinrow.Cols)
		assert.Equal(t, "1", row[0].Text)
		assert.Equal(t, EncodeCallback(ActionMove, sessionID, "6"), row[6].Data)
	})

	t.Run("card duel actions", func(t *testing.T) {
		board := cardduel.NewBoard(deckOf(8, 10, 8, 7, 5, 5), 100)
		markup := kb.Build(session(game.CardDuel, board, engine.InProgress), true)
		require.Len(t, markup.InlineKeyboard, 1)

		var labels []string
		for _, b := range markup.InlineKeyboard[0] {
			labels = append(labels, b.Text)
		}
		assert.Equal(t, []string{"要牌", "停牌", "加倍", "分牌"}, labels)
	})

	t.Run("finished", func(t *testing.T) {
		s := session(game.ThreeInRow, threeinrow.NewBoard(), engine.Finished)
		markup := kb.Build(s, true)
		require.Len(t, markup.InlineKeyboard, 1)
		assert.Equal(t, EncodeCallback(ActionReplay, sessionID, ""), markup.InlineKeyboard[0][0].Data)

		assert.Empty(t, kb.Build(s, false).InlineKeyboard, "no replay once evicted")
	})

	t.Run("cancelled", func(t *testing.T) {
		markup := kb.Build(session(game.FourInRow, fourinrow.NewBoard(), engine.Cancelled), true)
		assert.Empty(t, markup.InlineKeyboard)
	})
}

func TestRenderer_Text(t *testing.T) {
	r := NewRenderer(directory())

	t.Run("invitation", func(t *testing.T) {
		text := r.Text(session(game.ThreeInRow, threeinrow.NewBoard(), engine.AwaitingAcceptance))
		assert.Contains(t, text, "#3f2c9a4e")
		assert.Contains(t, text, "@alice (X) vs @Bob (O)")
		assert.Contains(t, text, "💰 下注: 100 coins")
		assert.Contains(t, text, "⏳ 等待 @Bob 接受邀请")
	})

	t.Run("turn", func(t *testing.T) {
		s := session(game.FourInRow, fourinrow.NewBoard(), engine.InProgress)
		s.Turn = game.Slot2
		text := r.Text(s)
		assert.Contains(t, text, "@alice (🔴) vs @Bob (🟡)")
		assert.Contains(t, text, "👉 轮到 @Bob")
	})

	t.Run("house thinking", func(t *testing.T) {
		s := session(game.ThreeInRow, threeinrow.NewBoard(), engine.InProgress)
		s.Participants[game.Slot2] = game.House
		s.Turn = game.Slot2
		assert.Contains(t, r.Text(s), "🤔 庄家思考中...")
	})

	t.Run("win", func(t *testing.T) {
		s := session(game.ThreeInRow, threeinrow.NewBoard(), engine.Finished)
		s.Outcome = game.Slot1Wins
		s.Payouts = [2]int64{200, 0}
		text := r.Text(s)
		assert.Contains(t, text, "🎉 @alice 获胜！")
		assert.Contains(t, text, "💵 @alice: 派彩 200 (+100)")
		assert.Contains(t, text, "💵 @Bob: 派彩 0 (-100)")
	})

	t.Run("forfeit", func(t *testing.T) {
		s := session(game.ThreeInRow, threeinrow.NewBoard(), engine.Finished)
		s.Outcome = game.Slot1Wins
		s.Forfeit = true
		s.Turn = game.Slot2
		assert.Contains(t, r.Text(s), "⏰ @Bob 超时判负，@alice 获胜")
	})

	t.Run("card duel against the house", func(t *testing.T) {
		s := session(game.CardDuel, cardduel.NewBoard(deckOf(10, 10, 9, 7), 100), engine.Finished)
		s.Participants[game.Slot2] = game.House
		s.Outcome = game.Slot2Wins
		text := r.Text(s)
		assert.Contains(t, text, "👤 @alice vs "+HouseName)
		assert.Contains(t, text, "🎉 "+HouseName+" 获胜！")
		assert.Contains(t, text, "💵 @alice: 派彩 0 (-100)")
		assert.NotContains(t, text, "💵 "+HouseName)
	})

	t.Run("cancelled", func(t *testing.T) {
		text := r.Text(session(game.ThreeInRow, threeinrow.NewBoard(), engine.Cancelled))
		assert.Contains(t, text, "🚫 对局已取消，下注已退还")
	})
}

func TestRenderer_Busy(t *testing.T) {
	r := NewRenderer(directory())

	s := session(game.FourInRow, fourinrow.NewBoard(), engine.AwaitingAcceptance)
	text := r.Busy(s)
	assert.Contains(t, text, "🔴 四子棋 #3f2c9a4e")
	assert.Contains(t, text, "⏳ 等待 @Bob 接受邀请")

	s = session(game.CardDuel, cardduel.NewBoard(deckOf(10, 10, 9, 7), 100), engine.InProgress)
	s.Participants[game.Slot2] = game.House
	assert.Equal(t, "❌ 你正在与"+HouseName+"进行 🃏 21点 #3f2c9a4e，请先完成对局", r.Busy(s))
}

func TestFormatHistory(t *testing.T) {
	sid := sessionID
	at := time.Date(2026, 5, 4, 13, 7, 0, 0, time.UTC)
	text := FormatHistory([]*model.Transaction{
		{Amount: 200, Type: model.TxTypeWagerCredit, SessionID: &sid, CreatedAt: at},
		{Amount: -100, Type: model.TxTypeWagerEscrow, SessionID: &sid, CreatedAt: at},
		{Amount: 1000, Type: model.TxTypeInitial, CreatedAt: at},
	})

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "05-04 13:07 派彩 +200 #3f2c9a4e", lines[2])
	assert.Equal(t, "05-04 13:07 下注 -100 #3f2c9a4e", lines[3])
	assert.Equal(t, "05-04 13:07 开户 +1000", lines[4])
}

func TestFormatDailyTop(t *testing.T) {
	text := FormatDailyTop(
		[]*model.DailyRank{{UserID: 1, Username: "ann", NetProfit: 300}, {UserID: 2, NetProfit: 50}},
		nil,
	)
	assert.Contains(t, text, "🥇 ann: +300")
	assert.Contains(t, text, "🥈 User2: +50")
	assert.Contains(t, text, "😢 输家榜 TOP 10\n暂无数据")
}
