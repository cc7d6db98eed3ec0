package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"

	"github.com/clinicops/receivables/internal/core/config"
	"github.com/clinicops/receivables/internal/dispatch"
	"github.com/clinicops/receivables/internal/gate"
	"github.com/clinicops/receivables/internal/health"
	"github.com/clinicops/receivables/internal/infra/lab"
	redisclient "github.com/clinicops/receivables/internal/infra/redis"
	"github.com/clinicops/receivables/internal/infra/storage"
	"github.com/clinicops/receivables/internal/infra/storage/memory"
	"github.com/clinicops/receivables/internal/infra/storage/postgres"
	"github.com/clinicops/receivables/internal/retry"
)

// Service is the main application struct that wires storage, the
// payment gate, the dispatch worker and the health server together.
type Service struct {
	cfg          Config
	db           *postgres.DB
	redisClient  *redisclient.Client
	checker      *gate.Checker
	dispatcher   *dispatch.Service
	worker       *dispatch.Worker
	healthServer *health.Server
	cancel       context.CancelFunc
	log          *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port     int
	Database postgres.Config
	Redis    redisclient.Config
	Lab      lab.Config
	Retry    config.RetryConfig
	Dispatch config.DispatchConfig
}

// NewService creates a new Service instance with all dependencies initialized.
func NewService(cfg Config) (*Service, error) {
	log := slog.Default().With("component", "control")

	// 1. Initialize Storage
	var ledgerRepo storage.LedgerRepository
	var budgetRepo storage.BudgetRepository
	var orderRepo storage.LabOrderRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		ledgerRepo = postgres.NewLedgerRepo(db)
		budgetRepo = postgres.NewBudgetRepo(db)
		orderRepo = postgres.NewLabOrderRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		ledgerRepo = memory.NewLedgerRepo(store)
		budgetRepo = memory.NewBudgetRepo(store)
		orderRepo = memory.NewLabOrderRepo(store)
		log.Info("Using Memory storage")
	}

	retryOpts := retry.Options{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseDelay:         cfg.Retry.BaseDelay.Std(),
		MaxDelay:          cfg.Retry.MaxDelay.Std(),
		PerAttemptTimeout: cfg.Retry.PerAttemptTimeout.Std(),
	}

	// 2. Payment gate over the ledger
	checker := gate.NewChecker(ledgerRepo, retryOpts)

	// 3. Dispatch pipeline (requires Redis)
	var redisClient *redisclient.Client
	var dispatcher *dispatch.Service
	var worker *dispatch.Worker
	var queue dispatch.Queue

	if cfg.Dispatch.Enabled {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		dq := redisclient.NewDispatchQueue(redisClient)
		queue = dq
		dispatcher = dispatch.NewService(orderRepo, budgetRepo, dq)
		worker = dispatch.NewWorker(
			dispatch.WorkerConfig{
				EmptySleep:     cfg.Dispatch.EmptySleep.Std(),
				BlockedRequeue: cfg.Dispatch.BlockedRequeue.Std(),
				FailedRequeue:  cfg.Dispatch.FailedRequeue.Std(),
				MaxSendRetries: cfg.Dispatch.MaxSendRetries,
			},
			dq,
			checker,
			orderRepo,
			lab.NewHTTPClient(cfg.Lab),
			retryOpts,
		)
	}

	// 4. Health monitoring
	var dbPinger, redisPinger health.Pinger
	if db != nil {
		dbPinger = db
	}
	if redisClient != nil {
		redisPinger = redisClient
	}
	monitor := health.NewMonitor(dbPinger, redisPinger, queue, orderRepo)
	healthServer := health.NewServer(monitor, cfg.Port)

	return &Service{
		cfg:          cfg,
		db:           db,
		redisClient:  redisClient,
		checker:      checker,
		dispatcher:   dispatcher,
		worker:       worker,
		healthServer: healthServer,
		log:          log,
	}, nil
}

// Gate exposes the payment gate checker.
func (s *Service) Gate() *gate.Checker {
	return s.checker
}

// Dispatcher exposes the lab-order dispatch service, nil when dispatch
// is disabled.
func (s *Service) Dispatcher() *dispatch.Service {
	return s.dispatcher
}

// Start starts the health server and the dispatch worker.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server stopped", "error", err)
		}
	}()

	if s.db != nil {
		s.db.StartMetricsCollector(runCtx)
	}

	if s.worker != nil {
		go func() {
			if err := s.worker.Run(runCtx); err != nil {
				s.log.Error("Dispatch worker stopped", "error", err)
			}
		}()
	}

	s.log.Info("Service started", "port", s.cfg.Port)
	return nil
}

// Stop shuts the service down gracefully.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	if err := s.healthServer.Stop(ctx); err != nil {
		s.log.Warn("Failed to stop health server", "error", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close redis", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return nil
}
