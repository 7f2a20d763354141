package handler

import (
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/game"
)

// HouseName is how the automated opponent is shown.
const HouseName = "🏠 庄家"

// Directory remembers display names of users the bot has seen.
type Directory struct {
	mu    sync.RWMutex
	names map[int64]string
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{names: make(map[int64]string)}
}

// Remember records the user's display name and returns it.
func (d *Directory) Remember(u *tele.User) string {
	name := u.Username
	if name == "" {
		name = u.FirstName
	}
	if name == "" {
		return d.Name(u.ID)
	}

	d.mu.Lock()
	d.names[u.ID] = name
	d.mu.Unlock()
	return name
}

// Name returns the display name for id.
func (d *Directory) Name(id int64) string {
	if id == game.House {
		return HouseName
	}
	d.mu.RLock()
	name, ok := d.names[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("User%d", id)
	}
	return name
}
