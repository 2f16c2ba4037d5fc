package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"bankpipe/internal/config"
	"bankpipe/internal/crypt"
	"bankpipe/internal/ledger"
	"bankpipe/internal/logging"
	"bankpipe/internal/notify"
	"bankpipe/internal/pipeline"
	"bankpipe/internal/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"input_dir", cfg.Paths.InputDir,
		"sink", cfg.Sink.Kind,
		"ledger", cfg.Ledger.Backend,
		"workers", cfg.Processing.Workers,
	)

	// Cancel the run on SIGINT/SIGTERM; in-flight files finish.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Rules, category table and anomaly threshold
	rules, err := config.LoadRules(cfg.Paths.RulesFile)
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		return 1
	}

	// Optional field encryption
	var enc crypt.Provider
	if cfg.Encryption.KeyFile != "" {
		key, err := crypt.LoadOrCreateKey(cfg.Encryption.KeyFile)
		if err != nil {
			slog.Error("failed to load encryption key", "error", err)
			return 1
		}
		enc, err = crypt.NewAESGCM(key)
		if err != nil {
			slog.Error("failed to initialize encryption", "error", err)
			return 1
		}
	}

	// Processed-file ledger
	led, err := openLedger(cfg)
	if err != nil {
		slog.Error("failed to open ledger", "error", err)
		return 1
	}
	defer led.Close()

	// Destination for cleaned files
	output, cleanup, err := openSink(ctx, cfg, enc)
	if err != nil {
		slog.Error("failed to open sink", "error", err)
		return 1
	}
	defer cleanup()

	quarantine, err := sink.NewQuarantineSink(cfg.Paths.QuarantineDir)
	if err != nil {
		slog.Error("failed to open quarantine sink", "error", err)
		return 1
	}

	// Optional run notifications
	var notifier pipeline.Notifier
	if len(cfg.Notify.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		defer kn.Close()
		notifier = kn
	}

	executor := pipeline.NewExecutor(
		pipeline.NewReaderRegistry(),
		rules.RuleSet,
		rules.Classifier,
		output,
		quarantine,
		led,
		cfg.Processing.JobTimeout,
		cfg.Ledger.RetryAttempts,
	)
	pool := pipeline.NewPool(cfg.Processing.Workers)
	orchestrator := pipeline.NewOrchestrator(
		cfg.Paths.InputDir,
		executor,
		pool,
		led,
		rules.AnomalyThreshold,
		nil,
		notifier,
	)

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		slog.Error("run aborted", "error", err)
		return 1
	}
	return summary.ExitCode()
}

// openLedger builds the configured ledger backend.
func openLedger(cfg *config.Config) (ledger.Ledger, error) {
	if cfg.Ledger.Backend == "sqlite" {
		return ledger.OpenSQLite(cfg.Ledger.Path, cfg.Ledger.SkipFailed)
	}
	return ledger.OpenFile(cfg.Ledger.Path, cfg.Ledger.SkipFailed)
}

// openSink builds the configured output sink. The returned cleanup
// releases whatever connection the sink holds.
func openSink(ctx context.Context, cfg *config.Config, enc crypt.Provider) (sink.Sink, func(), error) {
	switch cfg.Sink.Kind {
	case "postgres":
		poolConfig, err := pgxpool.ParseConfig(cfg.Sink.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return sink.NewPostgresSink(pool, cfg.Sink.PostgresTable, enc), pool.Close, nil

	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return sink.NewGCSSink(client, cfg.Sink.GCSBucket, cfg.Sink.GCSPrefix, enc),
			func() { client.Close() }, nil

	default:
		s, err := sink.NewCSVSink(cfg.Paths.OutputDir, enc)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}
