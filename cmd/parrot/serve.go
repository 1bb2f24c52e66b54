package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/parrothq/parrot/internal/chat"
	"github.com/parrothq/parrot/internal/config"
	"github.com/parrothq/parrot/internal/consent"
	"github.com/parrothq/parrot/internal/corpus"
	"github.com/parrothq/parrot/internal/db"
	"github.com/parrothq/parrot/internal/dictionary"
	"github.com/parrothq/parrot/internal/games/counting"
	"github.com/parrothq/parrot/internal/games/ouija"
	"github.com/parrothq/parrot/internal/games/wordchain"
	"github.com/parrothq/parrot/internal/handlers"
	"github.com/parrothq/parrot/internal/healthcheck"
	dbchecker "github.com/parrothq/parrot/internal/healthcheck/checkers/db"
	gatewaychecker "github.com/parrothq/parrot/internal/healthcheck/checkers/gateway"
	"github.com/parrothq/parrot/internal/logger"
	"github.com/parrothq/parrot/internal/match"
	"github.com/parrothq/parrot/internal/platform/discord"
	"github.com/parrothq/parrot/internal/server"
	"github.com/parrothq/parrot/internal/transform"
)

const defaultMaxComposeDelay = 8 * time.Second

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideCorpusStore,
			provideConsentStore,
			consent.NewService,
			provideChatConfigStore,
			provideCountingStore,
			provideWordchainStore,
			provideOuijaStore,
			provideAdapter,
			provideMatcher,
			chat.NewCaches,
			provideLearner,
			provideResponder,
			provideChatService,
			provideDictionary,
			provideCountingService,
			provideWordchainService,
			provideOuijaService,
			discord.NewEvents,
			provideInteractions,
			provideCron,
			provideHealthRegistry,
			handlers.NewPingHandler,
			provideHealthHandler,
			provideCorpusHandler,
			provideServer,
		),
		fx.Invoke(
			startGateway,
			startCron,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideCorpusStore(log *slog.Logger, conn *pgxpool.Pool) corpus.Store {
	return corpus.NewPGStore(log, conn)
}
func provideConsentStore(conn *pgxpool.Pool) consent.Store { return consent.NewPGStore(conn) }
func provideChatConfigStore(conn *pgxpool.Pool) chat.ConfigStore {
	return chat.NewPGConfigStore(conn)
}
func provideCountingStore(conn *pgxpool.Pool) counting.Store  { return counting.NewPGStore(conn) }
func provideWordchainStore(conn *pgxpool.Pool) wordchain.Store { return wordchain.NewPGStore(conn) }
func provideOuijaStore(conn *pgxpool.Pool) ouija.Store        { return ouija.NewPGStore(conn) }

func provideAdapter(log *slog.Logger, cfg config.Config) (*discord.Adapter, error) {
	return discord.NewAdapter(log, cfg.Discord)
}

func provideMatcher(store corpus.Store) *match.Matcher { return match.New(store) }

func provideLearner(
	log *slog.Logger,
	store corpus.Store,
	consents *consent.Service,
	configs chat.ConfigStore,
	adapter *discord.Adapter,
	caches *chat.Caches,
) *chat.Learner {
	return chat.NewLearner(log, store, consents, configs, adapter, caches.Pending, adapter.Identity())
}

func provideResponder(
	log *slog.Logger,
	configs chat.ConfigStore,
	matcher *match.Matcher,
	adapter *discord.Adapter,
	caches *chat.Caches,
) *chat.Responder {
	reifier := transform.NewReifier(adapter.Identity().UserID)
	return chat.NewResponder(log, configs, matcher, adapter, reifier, caches.Removals, adapter.Identity())
}

func provideChatService(
	log *slog.Logger,
	cfg config.Config,
	learner *chat.Learner,
	responder *chat.Responder,
	adapter *discord.Adapter,
	store corpus.Store,
	caches *chat.Caches,
) *chat.Service {
	delay := time.Duration(cfg.Chat.MaxComposeDelayMS) * time.Millisecond
	if delay <= 0 {
		delay = defaultMaxComposeDelay
	}
	return chat.NewService(log, learner, responder, adapter, store, caches, adapter.Identity(), delay)
}

func provideDictionary(log *slog.Logger, cfg config.Config) dictionary.Lookup {
	return dictionary.NewClient(log, cfg.Dictionary)
}

func provideCountingService(log *slog.Logger, store counting.Store, adapter *discord.Adapter) *counting.Service {
	return counting.NewService(log, store, adapter, adapter.Identity())
}

func provideWordchainService(log *slog.Logger, store wordchain.Store, adapter *discord.Adapter, lookup dictionary.Lookup) *wordchain.Service {
	return wordchain.NewService(log, store, adapter, lookup, adapter.Identity())
}

func provideOuijaService(log *slog.Logger, store ouija.Store, adapter *discord.Adapter) *ouija.Service {
	return ouija.NewService(log, store, adapter, adapter.Identity())
}

func provideInteractions(
	log *slog.Logger,
	adapter *discord.Adapter,
	chatSvc *chat.Service,
	chatConfigs chat.ConfigStore,
	consents *consent.Service,
	countingStore counting.Store,
	wordchainStore wordchain.Store,
	ouijaStore ouija.Store,
) *discord.Interactions {
	return discord.NewInteractions(log, adapter, chatSvc, chatConfigs, consents, countingStore, wordchainStore, ouijaStore)
}

func provideCron(chatSvc *chat.Service) (*cron.Cron, error) {
	c := cron.New()
	if err := chatSvc.RegisterSweep(c); err != nil {
		return nil, fmt.Errorf("register sweep: %w", err)
	}
	return c, nil
}

func provideHealthRegistry(log *slog.Logger, conn *pgxpool.Pool, adapter *discord.Adapter) *healthcheck.Registry {
	return healthcheck.NewRegistry(log,
		dbchecker.NewChecker(log, conn),
		gatewaychecker.NewChecker(log, adapter),
	)
}

func provideHealthHandler(log *slog.Logger, registry *healthcheck.Registry) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, registry)
}

func provideCorpusHandler(log *slog.Logger, store corpus.Store) *handlers.CorpusHandler {
	return handlers.NewCorpusHandler(log, store)
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, health *handlers.HealthHandler, corpusHandler *handlers.CorpusHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, ping, health, corpusHandler)
}

// startGateway opens the Discord session and attaches the event and
// interaction handlers for the lifetime of the process.
func startGateway(lc fx.Lifecycle, log *slog.Logger, adapter *discord.Adapter, events *discord.Events, interactions *discord.Interactions) {
	runCtx, cancel := context.WithCancel(context.Background())
	var removers []func()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := adapter.Open(); err != nil {
				cancel()
				return err
			}
			removers = append(removers, events.Register(runCtx))
			removeInteractions, err := interactions.Register(runCtx)
			if err != nil {
				return err
			}
			removers = append(removers, removeInteractions)
			log.Info("engine online", slog.String("user_id", adapter.Identity().UserID))
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			for _, remove := range removers {
				remove()
			}
			return adapter.Close()
		},
	})
}

func startCron(lc fx.Lifecycle, c *cron.Cron) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { c.Start(); return nil },
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
