// Package cli provides the start-up wiring shared by cmd/fintrack and
// cmd/fintrack-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/invest"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

const (
	summaryCacheSize     = 256
	cacheCleanupInterval = time.Minute
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at level and makes it the default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration, sets up logging at the
// configured level and validates. It exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// InitStorage opens the configured database and runs its migrations.
// Returns the repository or exits the process on failure.
func InitStorage(ctx context.Context, logger *log.Logger, cfg *config.Config) *storage.Repository {
	repo, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.DataBackend,
		SQLitePath:  cfg.SQLiteDBPath,
		PostgresURL: cfg.PostgresURL,
	})
	if err != nil {
		logger.Error("Failed to initialize storage",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			"backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Storage ready", "backend", cfg.DataBackend)
	return repo
}

// NewMirror returns the Google Sheets ledger mirror, or nil when it is not
// configured.
func NewMirror(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.LedgerMirror, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets mirror disabled")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewDeliverer returns the bot webhook deliverer, or the log fallback when no
// webhook is configured.
func NewDeliverer(cfg *config.Config, logger *log.Logger) worker.PINDeliverer {
	if cfg.BotWebhookURL == "" {
		return worker.LogDeliverer{Logger: logger.WithComponent(log.ComponentWorker)}
	}
	return worker.NewWebhookDeliverer(cfg.BotWebhookURL, logger)
}

// EventSink is where the server publishes domain events.
type EventSink struct {
	amqp.Publisher
	closer io.Closer
}

func (s *EventSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// NewEventSink publishes to the broker when AMQP is configured. Otherwise
// events are handled in process by an EventWorker, so PINs are still
// delivered and the mirror still receives ledger rows.
func NewEventSink(ctx context.Context, cfg *config.Config, logger *log.Logger) (*EventSink, error) {
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
		logger.Info("Publishing events to broker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return &EventSink{Publisher: client, closer: client}, nil
	}

	mirror, err := NewMirror(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init ledger mirror: %w", err)
	}
	logger.Info("No broker configured, handling events in process")
	return &EventSink{Publisher: worker.NewEventWorker(mirror, NewDeliverer(cfg, logger), logger)}, nil
}

// Services bundles the application services with their caches.
type Services struct {
	Ledger      *services.LedgerService
	Investments *services.InvestmentService
	Auth        *services.AuthService
	Caches      *cache.Manager
}

// NewEngine builds the investment engine with the configured phase policy.
func NewEngine(cfg *config.Config) (invest.Engine, error) {
	policy, err := invest.NewPolicy(cfg.InvestPolicy, invest.PolicyOptions{DriftTolerance: cfg.DriftTolerance})
	if err != nil {
		return invest.Engine{}, err
	}
	return invest.Engine{
		Policy:      policy,
		Precision:   int32(cfg.CurrencyPrecision),
		SevereDrift: cfg.SevereDrift,
	}, nil
}

// NewServices wires the services over repo and registers the allowed
// emails. The cache manager is started; callers stop it on shutdown.
func NewServices(ctx context.Context, cfg *config.Config, repo *storage.Repository, events amqp.Publisher, logger *log.Logger) (*Services, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	caches := cache.NewManager(logger)
	var summaries cache.Cache[core.Summary]
	if cfg.StatsCacheTTL > 0 {
		lru := cache.NewLRUCache[core.Summary](summaryCacheSize, cfg.StatsCacheTTL)
		caches.Register("summaries", lru)
		summaries = lru
	}

	auth := services.NewAuthService(repo, events, services.AuthConfig{
		Secret:         []byte(cfg.JWTSecret),
		SessionTTL:     cfg.SessionTTL,
		PINTTL:         cfg.PINTTL,
		PINMaxAttempts: cfg.PINMaxAttempts,
		DevLogPINs:     cfg.DevLogPINs,
	}, logger)
	if err := auth.RegisterUsers(ctx, cfg.AllowedEmails); err != nil {
		return nil, fmt.Errorf("register allowed emails: %w", err)
	}

	caches.StartCleanup(cacheCleanupInterval)
	logger.Info("Services ready",
		"invest_policy", engine.Policy.Name(),
		"drift_tolerance", cfg.DriftTolerance.StringFixed(1),
		"severe_drift", cfg.SevereDrift.StringFixed(1),
		"stats_cache_ttl", cfg.StatsCacheTTL.String(),
		"allowed_emails", len(cfg.AllowedEmails))

	return &Services{
		Ledger:      services.NewLedgerService(repo, events, summaries, logger),
		Investments: services.NewInvestmentService(repo, engine, logger),
		Auth:        auth,
		Caches:      caches,
	}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
