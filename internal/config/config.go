// Package config provides centralized configuration management for the
// pipeline. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast
// on misconfiguration.
package config

import "time"

// Config holds all pipeline configuration.
// All settings can be configured via environment variables.
type Config struct {
	Paths      PathsConfig
	Ledger     LedgerConfig
	Processing ProcessingConfig
	Sink       SinkConfig
	Encryption EncryptionConfig
	Notify     NotifyConfig
	Logging    LoggingConfig
}

// PathsConfig holds the filesystem layout of a run.
type PathsConfig struct {
	// InputDir is the directory scanned for transaction files (required)
	InputDir string `env:"INPUT_DIR" required:"true"`

	// OutputDir is where cleaned files are written (default: ./output)
	OutputDir string `env:"OUTPUT_DIR" default:"./output"`

	// QuarantineDir is where rejected rows are written (default: ./quarantine)
	QuarantineDir string `env:"QUARANTINE_DIR" default:"./quarantine"`

	// RulesFile is an optional YAML file overriding the built-in
	// validation rules, category table and anomaly threshold
	RulesFile string `env:"RULES_FILE"`
}

// LedgerConfig holds processed-file ledger settings.
type LedgerConfig struct {
	// Backend selects the ledger store: file or sqlite (default: file)
	Backend string `env:"LEDGER_BACKEND" default:"file"`

	// Path is the ledger file or database location (default: ./processed.log)
	Path string `env:"LEDGER_PATH" default:"./processed.log"`

	// SkipFailed also skips files whose last attempt failed (default: false)
	SkipFailed bool `env:"LEDGER_SKIP_FAILED" default:"false"`

	// RetryAttempts is how many times a ledger append is retried (default: 3)
	RetryAttempts int `env:"LEDGER_RETRY_ATTEMPTS" default:"3"`
}

// ProcessingConfig holds worker pool settings.
type ProcessingConfig struct {
	// Workers is the number of files processed in parallel
	// (default: 0, meaning one per CPU)
	Workers int `env:"PROCESSING_WORKERS" default:"0"`

	// JobTimeout caps the processing time of one file; 0 disables it
	// (default: 10m)
	JobTimeout time.Duration `env:"PROCESSING_JOB_TIMEOUT" default:"10m"`
}

// SinkConfig selects and configures the destination for cleaned files.
type SinkConfig struct {
	// Kind is the sink backend: csv, postgres or gcs (default: csv)
	Kind string `env:"SINK_KIND" default:"csv"`

	// PostgresURL is the connection string for the postgres sink
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	PostgresURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// PostgresTable is the destination table (default: transactions)
	PostgresTable string `env:"SINK_POSTGRES_TABLE" default:"transactions"`

	// GCSBucket is the destination bucket for the gcs sink
	GCSBucket string `env:"SINK_GCS_BUCKET"`

	// GCSPrefix is the object name prefix for the gcs sink (default: cleaned)
	GCSPrefix string `env:"SINK_GCS_PREFIX" default:"cleaned"`
}

// EncryptionConfig holds field-encryption settings.
type EncryptionConfig struct {
	// KeyFile is the path of the encryption key; empty disables
	// encryption and sensitive fields are written masked instead.
	// The key is created on first use if the file does not exist.
	KeyFile string `env:"ENCRYPTION_KEY_FILE"`
}

// NotifyConfig holds run notification settings.
type NotifyConfig struct {
	// KafkaBrokers is a comma-separated broker list; empty disables
	// notifications
	KafkaBrokers []string `env:"NOTIFY_KAFKA_BROKERS"`

	// KafkaTopic is the topic run summaries are published on
	// (default: pipeline_runs)
	KafkaTopic string `env:"NOTIFY_KAFKA_TOPIC" default:"pipeline_runs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
