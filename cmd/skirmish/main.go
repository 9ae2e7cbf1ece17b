// Command skirmish runs the whole pipeline in one process: both
// discovery lanes, the four queue workers, and the ops API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"skirmish/internal/cache"
	"skirmish/internal/config"
	"skirmish/internal/controller"
	"skirmish/internal/credentials"
	"skirmish/internal/database"
	"skirmish/internal/discovery"
	"skirmish/internal/filestore"
	"skirmish/internal/orchestrator"
	"skirmish/internal/orchestrator/worker"
	"skirmish/internal/rabbitmq"
	"skirmish/internal/server"
	"skirmish/internal/telemetry"
	"skirmish/pkg/pubg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	// The membership cache is advisory; a missing redis only costs extra
	// ledger queries.
	var known *cache.Matches
	if redisCache, err := cache.NewRedisCache(cfg.Redis); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, discovery runs without the membership cache")
		known = cache.NewMatches(nil)
	} else {
		defer redisCache.Close()
		known = cache.NewMatches(redisCache)
	}

	rabbit, err := rabbitmq.NewClient(cfg.RabbitMQ)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer rabbit.Close()

	gateway := rabbitmq.NewGateway(rabbit, cfg.Environment, logger)
	if err := gateway.DeclareTopology(); err != nil {
		logger.Fatal().Err(err).Msg("failed to declare broker topology")
	}

	mainPool, err := credentials.NewPool("main", cfg.API.MainKeys, cfg.API.RPMLimit, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build main credential pool")
	}
	clientOpts := pubg.Options{
		RequestTimeout:  cfg.API.RequestTimeout,
		DownloadTimeout: cfg.Telemetry.DownloadTimeout,
		MaxRetries:      cfg.API.MaxRetries,
	}
	mainClient := pubg.New(cfg.API.BaseURL, cfg.API.Platform, mainPool, clientOpts)

	var tourneyClient *pubg.Client
	if len(cfg.API.TournamentKeys) > 0 {
		tourneyPool, err := credentials.NewPool("tournament", cfg.API.TournamentKeys, cfg.API.RPMLimit, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build tournament credential pool")
		}
		tourneyClient = pubg.New(cfg.API.BaseURL, cfg.API.Platform, tourneyPool, clientOpts)
	}

	files, err := filestore.NewStore(cfg.Telemetry.Root, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open the telemetry file store")
	}
	archiver, err := filestore.NewArchiver(ctx, cfg.Telemetry.ArchiveBucket, cfg.Telemetry.AWSRegion, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure the telemetry archive")
	}

	engine := telemetry.NewEngine(db, files, logger)

	var tourneyFetcher worker.MatchFetcher
	if tourneyClient != nil {
		tourneyFetcher = tourneyClient
	}
	registry := orchestrator.NewWorkerRegistry(
		worker.NewSummaryWorker(db, mainClient, tourneyFetcher, gateway, logger),
		worker.NewDownloadWorker(db, files, archiver, mainClient, gateway, logger),
		worker.NewProcessingWorker(db, engine, gateway, logger),
		worker.NewAggregationWorker(db, gateway, cfg.Services.Aggregation, logger),
	)

	mainLane := discovery.NewMainLane(db, db, mainClient, known, gateway, cfg.Services.MainDiscovery, logger)
	var tourneyLane *discovery.TournamentLane
	if tourneyClient != nil {
		tourneyLane = discovery.NewTournamentLane(db, db, tourneyClient, known, gateway, cfg.Services.TournamentDiscovery, logger)
	}

	httpServer := buildServer(cfg, db, gateway, files, registry, mainLane, tourneyLane, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.StartAll(gctx) })
	g.Go(func() error {
		return ignoreCanceled(mainLane.Run(gctx))
	})
	if tourneyLane != nil {
		g.Go(func() error {
			return ignoreCanceled(tourneyLane.Run(gctx))
		})
	}
	g.Go(func() error {
		logger.Info().Int("port", cfg.HTTPPort).Msg("ops API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info().Str("environment", cfg.Environment).Msg("pipeline started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("pipeline stopped")
	}
	logger.Info().Msg("pipeline shut down cleanly")
}

func buildServer(cfg *config.Config, db database.Database, gateway *rabbitmq.Gateway, files *filestore.Store, registry orchestrator.WorkerRegistry, mainLane *discovery.MainLane, tourneyLane *discovery.TournamentLane, logger zerolog.Logger) *http.Server {
	var tournament controller.DiscoveryLane
	if tourneyLane != nil {
		tournament = tourneyLane
	}

	return server.New(cfg,
		controller.NewSystemController(db, gateway, files, registry),
		controller.NewMatchController(db, gateway),
		controller.NewDiscoveryController(mainLane, tournament),
		controller.NewStatsController(db, db, cfg.Services.Aggregation.BackfillWindow),
		logger,
	)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func setupLogging(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Str("app", cfg.AppName).Logger()
	}
	log.Logger = logger
	return logger
}
