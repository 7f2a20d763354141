// Package cardduel implements a 21-style card duel between one player and the House dealer.
package cardduel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"arena-game-bot/internal/game"
)

const (
	// DealerStand is the total at which the dealer stops drawing, soft or hard.
	DealerStand = 17

	// DefaultIdleTimeout is longer than the board games: a hand can take several decisions.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultDealerDelay is the pause between dealer actions.
	DefaultDealerDelay = time.Second
)

var errDeckEmpty = errors.New("deck is empty")

// Phase of a deal.
type Phase int

const (
	PhasePlayer Phase = iota
	PhaseDealer
	PhaseDone
)

// Board is one deal: the player's hands, the dealer's hand and the remaining deck.
type Board struct {
	deck      Deck
	hands     []*Hand
	active    int
	dealer    Hand
	phase     Phase
	baseWager int64
	split     bool
}

// NewBoard deals from deck: player, dealer, player, dealer.
// A dealt natural stands immediately and hands the turn to the dealer.
func NewBoard(deck Deck, wager int64) *Board {
	b := &Board{
		deck:      deck,
		hands:     []*Hand{{Wager: wager}},
		baseWager: wager,
	}
	player := b.hands[0]
	for i := 0; i < 2; i++ {
		c, _ := b.deck.draw()
		player.Cards = append(player.Cards, c)
		c, _ = b.deck.draw()
		b.dealer.Cards = append(b.dealer.Cards, c)
	}
	if player.Natural() {
		player.Stood = true
		b.advance()
	}
	return b
}

// Hands returns the player's hands.
func (b *Board) Hands() []*Hand { return b.hands }

// Active returns the index of the hand being played.
func (b *Board) Active() int { return b.active }

// Dealer returns the dealer's hand.
func (b *Board) Dealer() *Hand { return &b.dealer }

// Phase returns the current phase.
func (b *Board) Phase() Phase { return b.phase }

// Staked returns the total wager across all player hands.
func (b *Board) Staked() int64 {
	var total int64
	for _, h := range b.hands {
		total += h.Wager
	}
	return total
}

// FirstToMove implements game.Board.
func (b *Board) FirstToMove() game.Slot {
	if b.phase == PhasePlayer {
		return game.Slot1
	}
	return game.Slot2
}

// Validate implements game.Board.
func (b *Board) Validate(slot game.Slot, m game.Move) error {
	switch b.phase {
	case PhaseDone:
		return fmt.Errorf("%w: deal is over", game.ErrIllegalMove)
	case PhasePlayer:
		if slot != game.Slot1 {
			return fmt.Errorf("%w: player is still acting", game.ErrIllegalMove)
		}
		return b.validatePlayer(m)
	default:
		if slot != game.Slot2 {
			return fmt.Errorf("%w: dealer is acting", game.ErrIllegalMove)
		}
		return b.validateDealer(m)
	}
}

func (b *Board) validatePlayer(m game.Move) error {
	h := b.hands[b.active]
	switch m.Action {
	case game.ActionHit, game.ActionStand:
		return nil
	case game.ActionDouble:
		if !h.fresh() {
			return fmt.Errorf("%w: double needs a fresh two-card hand", game.ErrIllegalMove)
		}
		if b.baseWager <= 0 {
			return fmt.Errorf("%w: double needs a wager", game.ErrIllegalMove)
		}
		return nil
	case game.ActionSplit:
		if b.split || !h.fresh() {
			return fmt.Errorf("%w: split needs a fresh pair", game.ErrIllegalMove)
		}
		if h.Cards[0].Value() != h.Cards[1].Value() {
			return fmt.Errorf("%w: split needs two cards of equal value", game.ErrIllegalMove)
		}
		if b.baseWager <= 0 {
			return fmt.Errorf("%w: split needs a wager", game.ErrIllegalMove)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", game.ErrIllegalMove, m.Action)
	}
}

func (b *Board) validateDealer(m game.Move) error {
	total := b.dealer.Total()
	switch m.Action {
	case game.ActionHit:
		if total >= DealerStand {
			return fmt.Errorf("%w: dealer stands on %d", game.ErrIllegalMove, total)
		}
		return nil
	case game.ActionStand:
		if total < DealerStand {
			return fmt.Errorf("%w: dealer must draw on %d", game.ErrIllegalMove, total)
		}
		return nil
	default:
		return fmt.Errorf("%w: dealer cannot %q", game.ErrIllegalMove, m.Action)
	}
}

// ExtraStake implements game.Staker: double and split need more money escrowed
// before they are applied.
func (b *Board) ExtraStake(slot game.Slot, m game.Move) int64 {
	if slot != game.Slot1 || b.phase != PhasePlayer {
		return 0
	}
	switch m.Action {
	case game.ActionDouble:
		return b.hands[b.active].Wager
	case game.ActionSplit:
		return b.baseWager
	}
	return 0
}

// Apply implements game.Board. The player keeps the turn until every hand is done;
// the dealer keeps it until standing or busting.
func (b *Board) Apply(slot game.Slot, m game.Move) (bool, error) {
	if err := b.Validate(slot, m); err != nil {
		return false, err
	}
	if b.phase == PhaseDealer {
		return b.applyDealer(m)
	}

	h := b.hands[b.active]
	switch m.Action {
	case game.ActionHit:
		if err := b.deal(h); err != nil {
			return false, err
		}
	case game.ActionStand:
		h.Stood = true
	case game.ActionDouble:
		if err := b.deal(h); err != nil {
			return false, err
		}
		h.Wager *= 2
		h.Doubled = true
		h.Stood = true
	case game.ActionSplit:
		if len(b.deck) < 2 {
			return false, fmt.Errorf("%w: %v", game.ErrIllegalMove, errDeckEmpty)
		}
		second := &Hand{Cards: []Card{h.Cards[1]}, Wager: b.baseWager, FromSplit: true}
		h.Cards = h.Cards[:1]
		h.FromSplit = true
		_ = b.deal(h)
		_ = b.deal(second)
		b.hands = append(b.hands, second)
		b.split = true
	}

	if h.Done() {
		b.advance()
	}
	return b.phase == PhasePlayer, nil
}

func (b *Board) applyDealer(m game.Move) (bool, error) {
	if m.Action == game.ActionStand {
		b.dealer.Stood = true
		b.phase = PhaseDone
		return false, nil
	}
	if err := b.deal(&b.dealer); err != nil {
		return false, err
	}
	if b.dealer.Total() >= DealerStand {
		b.dealer.Stood = true
		b.phase = PhaseDone
		return false, nil
	}
	return true, nil
}

func (b *Board) deal(h *Hand) error {
	c, ok := b.deck.draw()
	if !ok {
		return fmt.Errorf("%w: %v", game.ErrIllegalMove, errDeckEmpty)
	}
	h.Cards = append(h.Cards, c)
	return nil
}

// advance moves to the next unfinished hand, then to the dealer.
// If every player hand busted the dealer never draws.
func (b *Board) advance() {
	for b.active < len(b.hands) && b.hands[b.active].Done() {
		b.active++
	}
	if b.active < len(b.hands) {
		return
	}
	b.active = len(b.hands) - 1

	for _, h := range b.hands {
		if !h.Busted() {
			b.phase = PhaseDealer
			return
		}
	}
	b.phase = PhaseDone
}

// Moves implements game.Board.
func (b *Board) Moves(slot game.Slot) []game.Move {
	candidates := []game.Action{game.ActionHit, game.ActionStand, game.ActionDouble, game.ActionSplit}
	var moves []game.Move
	for _, a := range candidates {
		m := game.Move{Action: a}
		if b.Validate(slot, m) == nil {
			moves = append(moves, m)
		}
	}
	return moves
}

// Result of one player hand against the dealer.
type Result int

const (
	Lose Result = iota
	Push
	Win
	NaturalWin
)

// Settle compares one player hand with the dealer's final hand.
func Settle(h, dealer *Hand) Result {
	switch {
	case h.Busted():
		return Lose
	case dealer.Busted():
		if h.Natural() {
			return NaturalWin
		}
		return Win
	case h.Natural() && dealer.Natural():
		return Push
	case h.Natural():
		return NaturalWin
	case dealer.Natural():
		return Lose
	}

	pt, dt := h.Total(), dealer.Total()
	switch {
	case pt > dt:
		return Win
	case pt < dt:
		return Lose
	default:
		return Push
	}
}

// Payout returns what a hand staked at wager collects for r.
// A natural pays 2.5x rounded down.
func Payout(r Result, wager int64) int64 {
	switch r {
	case NaturalWin:
		return wager * 5 / 2
	case Win:
		return 2 * wager
	case Push:
		return wager
	default:
		return 0
	}
}

// settlement sums the payouts of every hand once the deal is done.
func (b *Board) settlement() int64 {
	var total int64
	for _, h := range b.hands {
		total += Payout(Settle(h, &b.dealer), h.Wager)
	}
	return total
}

// Outcome implements game.Board. It compares what the player collects with what
// they staked: more is a player win, less a House win, equal a draw.
func (b *Board) Outcome() game.Outcome {
	if b.phase != PhaseDone {
		return game.Unresolved
	}
	paid, staked := b.settlement(), b.Staked()
	switch {
	case paid > staked:
		return game.Slot1Wins
	case paid < staked:
		return game.Slot2Wins
	default:
		return game.Draw
	}
}

// Payouts implements game.Board. Amounts come from the hands' own wagers, which
// include doubles and splits; the wager argument is unused once a deal has
// settled. A forfeit before the deal settles pays the player nothing.
func (b *Board) Payouts(outcome game.Outcome, wager int64, humans [2]bool) [2]int64 {
	var out [2]int64
	if !humans[game.Slot1] {
		return out
	}
	if b.phase == PhaseDone && outcome == b.Outcome() {
		out[game.Slot1] = b.settlement()
		return out
	}
	switch outcome {
	case game.Slot1Wins:
		out[game.Slot1] = 2 * b.Staked()
	case game.Draw:
		out[game.Slot1] = b.Staked()
	}
	return out
}

// Clone implements game.Board.
func (b *Board) Clone() game.Board {
	c := &Board{
		deck:      append(Deck(nil), b.deck...),
		hands:     make([]*Hand, len(b.hands)),
		active:    b.active,
		dealer:    cloneHand(b.dealer),
		phase:     b.phase,
		baseWager: b.baseWager,
		split:     b.split,
	}
	for i, h := range b.hands {
		hc := cloneHand(*h)
		c.hands[i] = &hc
	}
	return c
}

func cloneHand(h Hand) Hand {
	h.Cards = append([]Card(nil), h.Cards...)
	return h
}

// String renders the dealer and player hands. The dealer's second card stays
// hidden while the player is acting.
func (b *Board) String() string {
	var sb strings.Builder

	sb.WriteString("🎩 庄家: ")
	if b.phase == PhasePlayer && len(b.dealer.Cards) == 2 {
		sb.WriteString(b.dealer.Cards[0].String())
		sb.WriteString(" 🂠")
	} else {
		sb.WriteString(b.dealer.String())
		sb.WriteString(" (" + strconv.Itoa(b.dealer.Total()) + ")")
	}

	for i, h := range b.hands {
		sb.WriteString("\n")
		marker := "🃏"
		if b.phase == PhasePlayer && i == b.active {
			marker = "👉"
		}
		sb.WriteString(fmt.Sprintf("%s 手牌%d: %s (%d)", marker, i+1, h.String(), h.Total()))
		switch {
		case h.Natural():
			sb.WriteString(" 黑杰克")
		case h.Busted():
			sb.WriteString(" 爆牌")
		case h.Doubled:
			sb.WriteString(" 加倍")
		}
	}
	return sb.String()
}

// Game implements game.Rules for the card duel.
type Game struct {
	maxWager    int64
	idleTimeout time.Duration
	dealerDelay time.Duration
	shuffle     func() Deck
	dealer      *Dealer
}

// Config holds configuration for the card duel.
type Config struct {
	MaxWager    int64
	IdleTimeout time.Duration
	DealerDelay time.Duration

	// Shuffle supplies a fresh deck per deal. Defaults to NewShuffledDeck.
	Shuffle func() Deck
}

// New creates a new Game with the given configuration.
func New(cfg *Config) *Game {
	g := &Game{
		idleTimeout: DefaultIdleTimeout,
		dealerDelay: DefaultDealerDelay,
		shuffle:     NewShuffledDeck,
		dealer:      &Dealer{},
	}
	if cfg == nil {
		return g
	}
	if cfg.MaxWager > 0 {
		g.maxWager = cfg.MaxWager
	}
	if cfg.IdleTimeout > 0 {
		g.idleTimeout = cfg.IdleTimeout
	}
	if cfg.DealerDelay > 0 {
		g.dealerDelay = cfg.DealerDelay
	}
	if cfg.Shuffle != nil {
		g.shuffle = cfg.Shuffle
	}
	return g
}

func (g *Game) Type() game.GameType { return game.CardDuel }

func (g *Game) Name() string { return "Card Duel" }

// NewBoard deals a fresh shuffled deck staked at wager.
func (g *Game) NewBoard(wager int64) game.Board { return NewBoard(g.shuffle(), wager) }

func (g *Game) Opponent() game.Opponent { return g.dealer }

// HouseOnly is true: the second seat always belongs to the dealer.
func (g *Game) HouseOnly() bool { return true }

func (g *Game) MaxWager() int64 { return g.maxWager }

func (g *Game) IdleTimeout() time.Duration { return g.idleTimeout }

// HouseDelay paces the dealer's draws.
func (g *Game) HouseDelay() time.Duration { return g.dealerDelay }
