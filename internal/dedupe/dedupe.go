package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Tracker counts preview submissions per source
type Tracker struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTracker creates a new dedupe tracker
func NewTracker(ctx context.Context, db *sql.DB, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker := &Tracker{db: db, logger: logger}

	if err := tracker.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure dedupe table: %w", err)
	}

	return tracker, nil
}

const createTable = `
	CREATE TABLE IF NOT EXISTS preview_dedupe (
		source_key TEXT PRIMARY KEY,
		pipeline TEXT,
		pipeline_version INTEGER,
		first_seen_at TIMESTAMPTZ DEFAULT NOW(),
		last_seen_at TIMESTAMPTZ DEFAULT NOW(),
		seen_count INTEGER DEFAULT 1
	)
`

const upsert = `
	INSERT INTO preview_dedupe (source_key, pipeline, pipeline_version, first_seen_at, last_seen_at, seen_count)
	VALUES ($1, $2, $3, NOW(), NOW(), 1)
	ON CONFLICT (source_key) DO UPDATE
	SET last_seen_at = NOW(),
	    seen_count = preview_dedupe.seen_count + 1,
	    pipeline = EXCLUDED.pipeline,
	    pipeline_version = EXCLUDED.pipeline_version
	RETURNING seen_count
`

const selectSeenCount = `SELECT seen_count FROM preview_dedupe WHERE source_key = $1`

// ensureTable creates the preview_dedupe table if it doesn't exist
func (t *Tracker) ensureTable(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create preview_dedupe table: %w", err)
	}

	t.logger.Info("preview_dedupe table ready")
	return nil
}

// Record records a submission and returns how often the source was seen
func (t *Tracker) Record(ctx context.Context, sourceKey string, pipeline string, pipelineVersion int) (int, error) {
	var seenCount int
	err := t.db.QueryRowContext(ctx, upsert, sourceKey, pipeline, pipelineVersion).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record dedupe: %w", err)
	}

	if seenCount > 1 {
		t.logger.Debug("duplicate submission", zap.String("source", sourceKey), zap.Int("seen_count", seenCount))
	}
	return seenCount, nil
}

// GetSeenCount retrieves the seen count for a source
func (t *Tracker) GetSeenCount(ctx context.Context, sourceKey string) (int, error) {
	var seenCount int
	err := t.db.QueryRowContext(ctx, selectSeenCount, sourceKey).Scan(&seenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}
