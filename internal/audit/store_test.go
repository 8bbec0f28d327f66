package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Entry{
		Actor:    "operator#1234",
		Command:  "whitelist add Steve",
		Family:   "whitelist",
		Outcome:  "added",
		Response: "Added Steve to the whitelist",
		Latency:  750 * time.Millisecond,
	}))
	require.NoError(t, s.Record(ctx, Entry{
		Actor:   "operator#1234",
		Command: "list",
		Family:  "list",
		Outcome: "timeout",
	}))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "list", entries[0].Command)
	assert.Equal(t, "whitelist add Steve", entries[1].Command)
	assert.Equal(t, "added", entries[1].Outcome)
	assert.Equal(t, 750*time.Millisecond, entries[1].Latency)
	assert.NotEmpty(t, entries[1].ID)
	assert.False(t, entries[1].IssuedAt.IsZero())
}

func TestStore_RecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, Entry{Command: "say hi"}))
	}
	entries, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Record(context.Background(), Entry{Command: "stop"}))
	require.NoError(t, s1.Close())

	// Re-opening an existing database must not re-apply migrations.
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	entries, err := s2.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NoError(t, r.Record(context.Background(), Entry{Command: "list"}))
}
