package dedupe

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when PREVIEW_TEST_DATABASE_URL is set
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PREVIEW_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PREVIEW_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTrackerRecordCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tracker, err := NewTracker(ctx, db, nil)
	require.NoError(t, err)

	key := "https://example.com/" + uuid.NewString()
	seen, err := tracker.GetSeenCount(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, seen)

	for want := 1; want <= 3; want++ {
		seen, err := tracker.Record(ctx, key, "preview", 1)
		require.NoError(t, err)
		assert.Equal(t, want, seen)
	}

	seen, err = tracker.GetSeenCount(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestNewTrackerFailsWithoutDatabase(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewTracker(context.Background(), db, nil)
	assert.Error(t, err)
}
