// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"arena-game-bot/internal/config"
	"arena-game-bot/internal/engine"
	"arena-game-bot/internal/handler"
	"arena-game-bot/internal/pkg/lock"
	"arena-game-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	notifier *handler.SessionNotifier
	cancel   context.CancelFunc
	done     chan struct{}

	// Handlers
	accountHandler *handler.AccountHandler
	rankingHandler *handler.RankingHandler
	gameHandler    *handler.GameHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	Engine         *engine.Engine
	AccountService *service.AccountService
	RankingService *service.RankingService
	UserLock       *lock.ParticipantLock
}

// New creates a new Bot instance with the given dependencies and routes the
// engine's session events to the chat messages showing them.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: deps.Config.Bot.PollTimeout},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	names := handler.NewDirectory()
	renderer := handler.NewRenderer(names)

	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		notifier: handler.NewSessionNotifier(teleBot, renderer, handler.DefaultNotifyQueue),
		done:     make(chan struct{}),
	}

	// Initialize handlers
	b.accountHandler = handler.NewAccountHandler(deps.AccountService, names)
	b.rankingHandler = handler.NewRankingHandler(deps.RankingService)
	b.gameHandler = handler.NewGameHandler(deps.Engine, deps.AccountService, deps.UserLock, names, renderer, b.notifier)

	deps.Engine.SetNotifier(b.notifier)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)

	// Ranking handler
	b.bot.Handle("/daily_top", b.rankingHandler.HandleDailyTop)

	// Session handlers
	b.bot.Handle("/ttt", b.gameHandler.HandleThreeInRow)
	b.bot.Handle("/c4", b.gameHandler.HandleFourInRow)
	b.bot.Handle("/bj", b.gameHandler.HandleCardDuel)

	// Accept, decline, move and replay buttons
	b.bot.Handle(tele.OnCallback, b.gameHandler.HandleCallback)
}

// Start starts the notifier worker and then polls until Stop is called.
func (b *Bot) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go func() {
		defer close(b.done)
		b.notifier.Run(ctx)
	}()
	log.Info().Msg("Session notifier started")

	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops polling and the notifier worker.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	b.notifier.Close()
}
