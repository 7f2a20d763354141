package cardduel

import (
	"math/rand"
	"strconv"
)

// Suit of a playing card.
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var suitSymbols = [4]string{"♠", "♥", "♦", "♣"}

func (s Suit) String() string {
	if int(s) < len(suitSymbols) {
		return suitSymbols[s]
	}
	return "?"
}

// Rank of a playing card, Ace = 1 through King = 13.
type Rank uint8

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return strconv.Itoa(int(r))
	}
}

// Card is a single playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// Value is the card's count with an ace taken as 11.
func (c Card) Value() int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= 10:
		return 10
	default:
		return int(c.Rank)
	}
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Deck is an ordered pile of cards; the next card dealt is the last one.
type Deck []Card

// NewDeck returns the 52 cards in a fixed order.
func NewDeck() Deck {
	d := make(Deck, 0, 52)
	for s := Spades; s <= Clubs; s++ {
		for r := Ace; r <= King; r++ {
			d = append(d, Card{Rank: r, Suit: s})
		}
	}
	return d
}

// NewShuffledDeck returns a uniformly shuffled 52-card deck.
func NewShuffledDeck() Deck {
	d := NewDeck()
	rand.Shuffle(len(d), func(i, j int) { d[i], d[j] = d[j], d[i] })
	return d
}

// draw removes and returns the last card. ok is false on an empty deck.
func (d *Deck) draw() (Card, bool) {
	n := len(*d)
	if n == 0 {
		return Card{}, false
	}
	c := (*d)[n-1]
	*d = (*d)[:n-1]
	return c, true
}
