package cardduel

import "strings"

// BustLimit is the highest total a hand may hold without busting.
const BustLimit = 21

// Hand is one player or dealer hand.
type Hand struct {
	Cards     []Card
	Wager     int64
	Stood     bool
	Doubled   bool
	FromSplit bool
}

// Value returns the best total and whether an ace is counted as 11.
// At most one ace is ever soft; the rest count as 1.
func (h *Hand) Value() (total int, soft bool) {
	aces := 0
	for _, c := range h.Cards {
		if c.Rank == Ace {
			aces++
			total++
			continue
		}
		total += c.Value()
	}
	if aces > 0 && total+10 <= BustLimit {
		return total + 10, true
	}
	return total, false
}

// Total returns the best total.
func (h *Hand) Total() int {
	t, _ := h.Value()
	return t
}

// Busted reports whether the hand is over 21.
func (h *Hand) Busted() bool {
	return h.Total() > BustLimit
}

// Natural reports a dealt two-card 21. Hands produced by a split never qualify.
func (h *Hand) Natural() bool {
	return !h.FromSplit && len(h.Cards) == 2 && h.Total() == BustLimit
}

// Done reports whether the hand takes no more actions.
func (h *Hand) Done() bool {
	return h.Stood || h.Busted()
}

// fresh reports whether the hand still holds only its first two cards.
func (h *Hand) fresh() bool {
	return len(h.Cards) == 2 && !h.Doubled && !h.Stood
}

func (h *Hand) String() string {
	parts := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
