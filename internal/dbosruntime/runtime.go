package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Runtime manages the DBOS runtime lifecycle
type Runtime struct {
	dbosContext dbos.DBOSContext
	queue       *dbos.WorkflowQueue
	config      Config
	db          *sql.DB
	logger      *zap.Logger
}

// NewRuntime creates a new DBOS runtime instance
// Returns error if DBOS_SYSTEM_DATABASE_URL is not set
func NewRuntime(ctx context.Context, cfg Config, logger *zap.Logger) (*Runtime, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DBOS_SYSTEM_DATABASE_URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create DBOS context: %w", err)
	}

	// Client-mode runtimes enqueue only and never dequeue
	var queueOpts []dbos.QueueOption
	if cfg.Concurrency > 0 {
		queueOpts = append(queueOpts, dbos.WithWorkerConcurrency(cfg.Concurrency))
	}
	queue := dbos.NewWorkflowQueue(dbosCtx, cfg.QueueName, queueOpts...)

	// Side connection for the dedupe ledger
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Runtime{
		dbosContext: dbosCtx,
		queue:       &queue,
		config:      cfg,
		db:          db,
		logger:      logger,
	}, nil
}

// Launch starts the DBOS runtime and workers
func (r *Runtime) Launch() error {
	if err := dbos.Launch(r.dbosContext); err != nil {
		return fmt.Errorf("launch DBOS: %w", err)
	}
	r.logger.Info("DBOS runtime launched",
		zap.String("app", r.config.AppName),
		zap.String("queue", r.config.QueueName),
		zap.Int("concurrency", r.config.Concurrency),
	)
	return nil
}

// Shutdown gracefully shuts down the DBOS runtime
func (r *Runtime) Shutdown(timeout time.Duration) error {
	dbos.Shutdown(r.dbosContext, timeout)
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	r.logger.Info("DBOS runtime stopped")
	return nil
}

// Context returns the DBOS context
func (r *Runtime) Context() dbos.DBOSContext {
	return r.dbosContext
}

// DB returns the side database handle
func (r *Runtime) DB() *sql.DB {
	return r.db
}

// QueueName returns the configured queue name
func (r *Runtime) QueueName() string {
	return r.config.QueueName
}

// Concurrency returns the configured concurrency
func (r *Runtime) Concurrency() int {
	return r.config.Concurrency
}
