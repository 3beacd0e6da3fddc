package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/NitishMaximus/ghost-curve/internal/config"
	"github.com/NitishMaximus/ghost-curve/internal/curve"
	"github.com/NitishMaximus/ghost-curve/internal/feed"
	"github.com/NitishMaximus/ghost-curve/internal/health"
	"github.com/NitishMaximus/ghost-curve/internal/ingest"
	"github.com/NitishMaximus/ghost-curve/internal/models"
	"github.com/NitishMaximus/ghost-curve/internal/notify"
	"github.com/NitishMaximus/ghost-curve/internal/portfolio"
	"github.com/NitishMaximus/ghost-curve/internal/processor"
	"github.com/NitishMaximus/ghost-curve/internal/sim"
	"github.com/NitishMaximus/ghost-curve/internal/status"
	"github.com/NitishMaximus/ghost-curve/internal/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	manager, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := manager.Get()
	setupLogger(cfg.Logging)

	if cfg.Replay.Enabled {
		log.Fatal().Msg("replay is enabled in config; use the replay binary")
	}

	wallets := cfg.TrackedWallets()
	if len(wallets) == 0 {
		log.Fatal().Msg("wallet_tracking is empty, nothing to copy")
	}
	log.Info().Int("wallets", len(wallets)).Msg("ghost-curve simulator starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.Database.DSN,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetimeDuration())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	events := storage.NewEventStore(db)
	trades := storage.NewTradeStore(db)

	client := feed.NewClient(cfg.WebSocket.URL, cfg.WebSocket.DedupBufferSize)
	backoff := feed.NewBackoff(
		cfg.WebSocket.ReconnectBaseDelay(),
		cfg.WebSocket.ReconnectMaxDelay(),
		cfg.WebSocket.ReconnectJitterFactor,
	)
	queue := ingest.NewQueue(cfg.WebSocket.ReceiveBufferSize)
	driver := ingest.NewDriver(client, events, queue, backoff, wallets,
		cfg.WebSocket.IngestBatchSize, cfg.WebSocket.IngestFlushInterval())

	proc := buildProcessor(cfg, queue, trades, models.SourceLive)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return driver.Run(gctx) })
	group.Go(func() error { return proc.Run(gctx) })

	if cfg.Status.Enabled {
		checker := health.NewChecker(10*time.Second,
			health.Check{Name: "database", Probe: db.Ping},
			health.Check{Name: "feed", Probe: func(context.Context) error {
				if driver.State() == ingest.StateDisconnected {
					return errors.New("feed disconnected")
				}
				return nil
			}},
		)
		checker.Start(ctx)
		server := status.NewServer(cfg.Status.ListenAddr, trades, checker, proc.SessionID())
		group.Go(server.Start)
		group.Go(func() error {
			<-gctx.Done()
			return server.Shutdown()
		})
	}

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("simulator failed")
	}
	log.Info().Msg("simulator stopped")
}

func buildProcessor(cfg *config.Config, queue *ingest.Queue, trades *storage.TradeStore, mode models.EventSource) *processor.Processor {
	executor := sim.NewSimExecutor(curve.SlippageModel{
		BaseBps:           cfg.Simulation.BaseSlippageBpsDec(),
		PriceImpactFactor: cfg.Simulation.PriceImpactFactorDec(),
		MaxBps:            cfg.Simulation.MaxSlippageBpsDec(),
	})
	wallet := portfolio.NewVirtualWallet(cfg.Simulation.InitialSolBalanceDec())
	metrics := portfolio.NewMetrics()

	configJSON, err := json.Marshal(cfg.Simulation)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to serialize session config")
	}

	var notifier notify.Notifier = notify.NewLogNotifier(64)
	if mode == models.SourceReplay {
		notifier = notify.Discard{}
	}

	return processor.New(queue, executor, wallet, metrics, trades, notifier, processor.Config{
		InitialSolBalance:  cfg.Simulation.InitialSolBalanceDec(),
		PositionSizeSol:    cfg.Simulation.PositionSizeSolDec(),
		ExecutionDelayMs:   cfg.Simulation.ExecutionDelayMs,
		MaxTradesPerMinute: cfg.Simulation.MaxTradesPerWalletPerMinute,
		SnapshotInterval:   cfg.Simulation.SnapshotInterval(),
		SkipMigrated:       cfg.Simulation.SkipMigratedTokens,
		Mode:               mode,
		ConfigJSON:         string(configJSON),
	})
}

func setupLogger(cfg config.LoggingConfig) {
	if cfg.Pretty {
		log.Logger = zerolog.New(
			zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
		).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
