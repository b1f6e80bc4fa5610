package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedWorker(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO workers (id, email, full_name, api_key_hash) VALUES ($1, $2, $3, $4)`,
		id, id+"@example.com", "Worker "+id, "hash-"+id)
	require.NoError(t, err)
}

func TestCommitRecordRepository_CommitEvent(t *testing.T) {
	db := openTestDB(t)
	repo := NewCommitRecordRepository(db)
	ctx := context.Background()
	seedWorker(t, db, "w1")

	t.Run("first commit runs the mutation", func(t *testing.T) {
		calls := 0
		record, replayed, err := repo.CommitEvent(ctx, "1718451000000-aaa", "w1", "clockIn",
			func(tx *sql.Tx) (string, string, error) {
				calls++
				return "entry-1", `{"ok":true,"entryId":"entry-1"}`, nil
			})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "entry-1", record.EntryID)
	})

	t.Run("duplicate commit skips the mutation and replays", func(t *testing.T) {
		record, replayed, err := repo.CommitEvent(ctx, "1718451000000-aaa", "w1", "clockIn",
			func(tx *sql.Tx) (string, string, error) {
				t.Fatal("mutation must not run for a committed event")
				return "", "", nil
			})
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, "entry-1", record.EntryID)
		assert.Equal(t, `{"ok":true,"entryId":"entry-1"}`, record.ResultJSON)
	})

	t.Run("failed mutation leaves no ledger entry", func(t *testing.T) {
		_, _, err := repo.CommitEvent(ctx, "1718451000000-bbb", "w1", "clockIn",
			func(tx *sql.Tx) (string, string, error) {
				return "", "", assert.AnError
			})
		require.Error(t, err)

		record, err := repo.Get(ctx, "1718451000000-bbb")
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}

func TestCommitRecordRepository_DeleteOlderThan(t *testing.T) {
	db := openTestDB(t)
	repo := NewCommitRecordRepository(db)
	ctx := context.Background()
	seedWorker(t, db, "w1")

	now := time.Now().UTC()
	insert := func(eventID string, committedAt time.Time) {
		_, err := db.Exec(
			`INSERT INTO commit_records (event_id, worker_id, operation_kind, entry_id, result_json, committed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			eventID, "w1", "clockIn", "entry-"+eventID, "{}", committedAt)
		require.NoError(t, err)
	}

	insert("old-1", now.Add(-72*time.Hour))
	insert("old-2", now.Add(-49*time.Hour))
	insert("fresh", now.Add(-time.Hour))

	removed, err := repo.DeleteOlderThan(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	record, err := repo.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, record)
}
