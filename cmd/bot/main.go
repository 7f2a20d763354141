// Package main is the entry point for the arena game bot.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"arena-game-bot/internal/bot"
	"arena-game-bot/internal/config"
	"arena-game-bot/internal/engine"
	"arena-game-bot/internal/game"
	"arena-game-bot/internal/game/cardduel"
	"arena-game-bot/internal/game/fourinrow"
	"arena-game-bot/internal/game/threeinrow"
	"arena-game-bot/internal/ledger"
	"arena-game-bot/internal/pkg/db"
	"arena-game-bot/internal/pkg/lock"
	"arena-game-bot/internal/repository"
	"arena-game-bot/internal/service"
)

// stores bundles the account backends chosen by the ledger driver.
type stores struct {
	ledger   ledger.Ledger
	accounts service.AccountStore
	ranks    service.RankStore
	close    func()
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("ledger", cfg.Ledger.Driver).
		Str("currency", cfg.Ledger.Currency).
		Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open account storage")
	}
	defer st.close()

	accountService := service.NewAccountService(st.accounts, st.ledger, cfg.Ledger.Currency, cfg.Ledger.InitialBalance)
	rankingService := service.NewRankingService(st.ranks, cfg.Ledger.Currency, time.Local, nil)

	gameRegistry, err := registerGames(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register games")
	}

	log.Info().
		Int("game_count", gameRegistry.Count()).
		Strs("games", gameRegistry.Types()).
		Msg("Games registered")

	eng := engine.New(gameRegistry, st.ledger, engine.Config{
		AcceptanceWindow: cfg.Engine.AcceptanceWindow,
		GraceWindow:      cfg.Engine.GraceWindow,
		ThinkMin:         cfg.Engine.ThinkMin,
		ThinkMax:         cfg.Engine.ThinkMax,
		DefaultCurrency:  cfg.Ledger.Currency,
	})

	reaper, err := engine.NewReaper(eng, cfg.Engine.ReaperInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session reaper")
	}

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:         cfg,
		Engine:         eng,
		AccountService: accountService,
		RankingService: rankingService,
		UserLock:       lock.New(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	reaper.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Stop taking updates first, then let in-flight settlements finish.
	telegramBot.Stop()
	if err := reaper.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop session reaper")
	}
	eng.Close()
	log.Info().Int("sessions_left", eng.Len()).Msg("Bot stopped gracefully")
}

// openStores builds the ledger and account stores for the configured driver.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Ledger.Driver == config.LedgerMemory {
		log.Warn().Msg("Using in-memory ledger, balances are lost on restart")
		l := ledger.NewMemory()
		store := service.NewMemoryStore(l)
		return &stores{ledger: l, accounts: store, ranks: store, close: func() {}}, nil
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, err
	}

	balances := repository.NewBalanceRepository(pool.Pool)
	store := service.NewPostgresStore(
		repository.NewUserRepository(pool.Pool),
		balances,
		repository.NewTransactionRepository(pool.Pool),
	)
	return &stores{
		ledger:   ledger.NewPostgres(balances),
		accounts: store,
		ranks:    store,
		close:    pool.Close,
	}, nil
}

// registerGames registers every playable game with its configured limits.
func registerGames(cfg *config.Config) (*game.Registry, error) {
	games := cfg.Games
	registry := game.NewRegistry()

	rules := []game.Rules{
		threeinrow.New(&threeinrow.Config{
			MaxWager:    games.ThreeInRow.MaxWager,
			IdleTimeout: games.ThreeInRow.IdleTimeout,
		}),
		fourinrow.New(&fourinrow.Config{
			MaxWager:    games.FourInRow.MaxWager,
			IdleTimeout: games.FourInRow.IdleTimeout,
			SearchDepth: games.FourInRow.SearchDepth,
		}),
		cardduel.New(&cardduel.Config{
			MaxWager:    games.CardDuel.MaxWager,
			IdleTimeout: games.CardDuel.IdleTimeout,
			DealerDelay: games.CardDuel.DealerDelay,
		}),
	}
	for _, r := range rules {
		if err := registry.Register(r); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
