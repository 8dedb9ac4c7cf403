package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shein-verse-bot/internal/config"
	pgRepo "shein-verse-bot/internal/infra/adapter/persistence/postgres"
	sqliteRepo "shein-verse-bot/internal/infra/adapter/persistence/sqlite"
	"shein-verse-bot/internal/infra/catalog"
	"shein-verse-bot/internal/infra/db"
	workerPkg "shein-verse-bot/internal/infra/worker"
	"shein-verse-bot/internal/observability/logging"
	"shein-verse-bot/internal/observability/tracing"
	"shein-verse-bot/internal/repository"
	"shein-verse-bot/internal/usecase/normalize"
	"shein-verse-bot/internal/usecase/notify"
	"shein-verse-bot/internal/usecase/poll"
	"shein-verse-bot/internal/usecase/policy"
	"shein-verse-bot/internal/usecase/snapshot"
)

// shutdownGrace bounds the goodbye message and the final snapshot flush.
const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := initLogger()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("invalid configuration", logging.ErrorAttr(err))
		return err
	}
	logger = logging.New(os.Stdout, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	// Poll tunables (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		return err
	}
	logger.Info("worker configuration loaded",
		slog.Duration("poll_interval", workerConfig.PollInterval),
		slog.Duration("summary_interval", workerConfig.SummaryInterval),
		slog.String("summary_cron", workerConfig.SummaryCron),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("grace_period_cycles", workerConfig.GracePeriodCycles),
		slog.Bool("men_first", workerConfig.MenFirst),
		slog.Int("max_consecutive_failures", workerConfig.MaxConsecutiveFailures),
		slog.Int("health_port", workerConfig.HealthPort))

	shutdownTracing := tracing.Init(tracing.Config{Enabled: cfg.TracingEnabled, Logger: logger})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("failed to stop tracing", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openSnapshotRepo(ctx, logger, cfg.Storage)
	if err != nil {
		logger.Error("failed to open snapshot store", slog.String("backend", cfg.Storage.Backend), logging.ErrorAttr(err))
		return err
	}
	defer closeStore()

	channels := buildChannels(logger, cfg)
	notifyService := notify.NewService(channels, workerConfig.NotifyMaxConcurrent, workerConfig.DeliveryTimeout)
	logger.Info("notification service initialized",
		slog.Any("channels", notifyService.EnabledChannels()),
		slog.Int("max_concurrent", workerConfig.NotifyMaxConcurrent))

	loc := workerConfig.Location()
	store := snapshot.NewStore()
	formatter := policy.NewFormatter(policy.FormatConfig{Collection: cfg.Collection, Location: loc})
	alertPolicy := policy.New(policy.Config{
		MenFirst:          workerConfig.MenFirst,
		MaxAlertsPerCycle: workerConfig.MaxAlertsPerCycle,
		AttemptTimeout:    workerConfig.DeliveryTimeout,
	}, store, notifyService, formatter, logger)

	summarySchedule, err := poll.SummarySchedule(workerConfig.SummaryCron, workerConfig.SummaryInterval, loc)
	if err != nil {
		// LoadConfigFromEnv already validated the expression; fall back to the interval.
		logger.Warn("summary cron rejected, using interval", slog.Any("error", err))
		summarySchedule = nil
	}

	source := catalog.New(nil, cfg.Catalog)
	logger.Info("catalog source initialized",
		slog.String("collection_url", cfg.Catalog.CollectionURL()),
		slog.Any("strategies", source.Strategies()),
		slog.Int("proxies", len(cfg.Catalog.Proxies)),
		slog.Bool("detail_sizes", cfg.Catalog.DetailSizes))

	scheduler := poll.New(poll.Config{
		PollInterval:           workerConfig.PollInterval,
		JitterFraction:         workerConfig.JitterFraction(),
		GracePeriodCycles:      workerConfig.GracePeriodCycles,
		MaxConsecutiveFailures: workerConfig.MaxConsecutiveFailures,
		FetchTimeout:           workerConfig.FetchTimeout,
		SummaryInterval:        workerConfig.SummaryInterval,
		SummarySchedule:        summarySchedule,
	}, poll.Deps{
		Source:     source,
		Normalizer: normalize.New(cfg.Normalize),
		Store:      store,
		Repo:       repo,
		Policy:     alertPolicy,
		Recorder:   workerMetrics,
		Logger:     logger,
	})
	scheduler.LoadSnapshot(ctx)

	opsServer := workerPkg.NewOpsServer(fmt.Sprintf(":%d", workerConfig.HealthPort), logger, scheduler, notifyService)

	scheduler.SendStartup(ctx, notifyService.EnabledChannels())
	opsServer.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := opsServer.Start(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	runErr := g.Wait()
	opsServer.SetReady(false)
	if runErr != nil {
		logger.Error("worker stopped with error", slog.Any("error", runErr))
	}

	// The run context is canceled by now; the farewell gets its own deadline.
	byeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	scheduler.SendShutdown(byeCtx)
	if repo != nil {
		if err := store.Flush(byeCtx, repo); err != nil {
			logger.Error("final snapshot flush failed", slog.Any("error", err))
		}
	}
	logger.Info("worker stopped")
	return runErr
}

// initLogger builds the bootstrap logger used until the configuration is loaded.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// openSnapshotRepo opens the configured snapshot backend and migrates it.
// The memory backend returns a nil repository.
func openSnapshotRepo(ctx context.Context, logger *slog.Logger, cfg config.StorageConfig) (repository.SnapshotRepository, func(), error) {
	var (
		dialect db.Dialect
		dsn     string
	)
	switch cfg.Backend {
	case config.StoreMemory:
		logger.Warn("snapshot store is in memory, state is lost on restart")
		return nil, func() {}, nil
	case config.StorePostgres:
		dialect, dsn = db.DialectPostgres, cfg.DatabaseURL
	default:
		dialect, dsn = db.DialectSQLite, db.SQLiteDSN(cfg.SQLitePath)
	}

	database, err := db.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}
	if err := db.MigrateUp(ctx, database, dialect); err != nil {
		closeDB()
		return nil, nil, err
	}
	return newSnapshotRepo(dialect, database), closeDB, nil
}

func newSnapshotRepo(dialect db.Dialect, database *sql.DB) repository.SnapshotRepository {
	if dialect == db.DialectPostgres {
		return pgRepo.NewSnapshotRepo(database)
	}
	return sqliteRepo.NewSnapshotRepo(database)
}

// buildChannels creates a notification channel for every enabled integration.
func buildChannels(logger *slog.Logger, cfg *config.Config) []notify.Channel {
	var channels []notify.Channel
	if cfg.Telegram.Enabled {
		channels = append(channels, notify.NewTelegramChannel(cfg.Telegram))
		logger.Info("Telegram channel initialized", slog.Int64("chat_id", cfg.Telegram.ChatID))
	}
	if cfg.Discord.Enabled {
		channels = append(channels, notify.NewDiscordChannel(cfg.Discord))
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	}
	if cfg.Slack.Enabled {
		channels = append(channels, notify.NewSlackChannel(cfg.Slack))
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	}
	if cfg.ConsoleAlerts {
		channels = append(channels, notify.NewConsoleChannel(logger))
		logger.Info("console channel initialized", slog.String("status", "enabled"))
	}
	return channels
}
