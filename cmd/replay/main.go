package main

import (
	"context"
	"encoding/json"
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
	"github.com/NitishMaximus/ghost-curve/internal/ingest"
	"github.com/NitishMaximus/ghost-curve/internal/models"
	"github.com/NitishMaximus/ghost-curve/internal/notify"
	"github.com/NitishMaximus/ghost-curve/internal/portfolio"
	"github.com/NitishMaximus/ghost-curve/internal/processor"
	"github.com/NitishMaximus/ghost-curve/internal/sim"
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

	from, to, err := cfg.Replay.Window()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid replay window")
	}

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

	total, err := events.CountRange(ctx, from, to)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to count replay range")
	}
	log.Info().
		Int64("events", total).
		Time("from", from).
		Time("to", to).
		Msg("replay starting")

	queue := ingest.NewQueue(cfg.WebSocket.ReceiveBufferSize)
	replayer := ingest.NewReplayer(
		func(ctx context.Context, from, to time.Time) (ingest.EventIterator, error) {
			return events.StreamRange(ctx, from, to)
		},
		queue, from, to, cfg.Replay.FilterWallets, cfg.Replay.BatchSize,
	)

	executor := sim.NewSimExecutor(curve.SlippageModel{
		BaseBps:           cfg.Simulation.BaseSlippageBpsDec(),
		PriceImpactFactor: cfg.Simulation.PriceImpactFactorDec(),
		MaxBps:            cfg.Simulation.MaxSlippageBpsDec(),
	})
	wallet := portfolio.NewVirtualWallet(cfg.Simulation.InitialSolBalanceDec())

	configJSON, err := json.Marshal(cfg.Simulation)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to serialize session config")
	}

	proc := processor.New(queue, executor, wallet, portfolio.NewMetrics(), trades,
		notify.Discard{}, processor.Config{
			InitialSolBalance:  cfg.Simulation.InitialSolBalanceDec(),
			PositionSizeSol:    cfg.Simulation.PositionSizeSolDec(),
			ExecutionDelayMs:   cfg.Simulation.ExecutionDelayMs,
			MaxTradesPerMinute: cfg.Simulation.MaxTradesPerWalletPerMinute,
			SnapshotInterval:   cfg.Simulation.SnapshotInterval(),
			SkipMigrated:       cfg.Simulation.SkipMigratedTokens,
			Mode:               models.SourceReplay,
			ConfigJSON:         string(configJSON),
		})

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return replayer.Run(gctx) })
	group.Go(func() error { return proc.Run(gctx) })

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("replay failed")
	}
	log.Info().Str("session_id", proc.SessionID().String()).Msg("replay finished")
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
