package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/record"
)

func TestGetByContentHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	conv := testConversation("lookup", "mac-01", "q1", "a1")
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Put: []record.Conversation{conv}}))

	t.Run("hit", func(t *testing.T) {
		got, err := s.GetByContentHash(ctx, conv.ContentHash)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, conv.ID, got.ID)
		assert.Equal(t, conv.Messages, got.Messages)
	})

	t.Run("miss", func(t *testing.T) {
		got, err := s.GetByContentHash(ctx, "no-such-hash")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("superseded excluded", func(t *testing.T) {
		require.NoError(t, s.ApplyCommit(ctx, CommitSet{Supersede: []string{conv.ID}}))
		got, err := s.GetByContentHash(ctx, conv.ContentHash)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestListByFuzzyKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Same title, same day, shared prefix: same bucket.
	a := testConversation("same thread", "mac-01", "q1", "a1")
	b := testConversation("same thread", "mac-02", "q1", "a1", "q2", "a2", "q3")
	other := testConversation("unrelated", "mac-01", "different opener")
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Put: []record.Conversation{a, b, other}}))
	require.Equal(t, a.FuzzyKey, b.FuzzyKey, "fixture bug: expected shared bucket")

	bucket, err := s.ListByFuzzyKey(ctx, a.FuzzyKey)
	require.NoError(t, err)
	assert.Len(t, bucket, 2)
}

func TestListSyncLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	entries := []record.SyncLogEntry{
		{Seq: 1, MachineID: "mac-01", Op: record.OpIngest, Status: record.StatusOK, At: at, Conversations: []string{"c1"}},
		{Seq: 2, MachineID: "mac-02", Op: record.OpConflict, Status: record.StatusFlagged, At: at, Conversations: []string{"c2", "c3"}, Note: "manual resolution required"},
		{Seq: 3, MachineID: "mac-01", Op: record.OpCursor, Status: record.StatusOK, At: at},
	}
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Log: entries}))

	t.Run("all machines", func(t *testing.T) {
		got, err := s.ListSyncLog(ctx, "")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, record.OpConflict, got[1].Op)
		assert.Equal(t, []string{"c2", "c3"}, got[1].Conversations)
	})

	t.Run("filtered", func(t *testing.T) {
		got, err := s.ListSyncLog(ctx, "mac-01")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].Seq)
		assert.Equal(t, int64(3), got[1].Seq)
	})

	t.Run("max seq", func(t *testing.T) {
		seq, err := s.MaxLogSeq(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), seq)
	})
}

func TestMaxLogSeq_Empty(t *testing.T) {
	s := openTestStore(t)
	seq, err := s.MaxLogSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestReadStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testConversation("one", "mac-01", "q1")
	b := testConversation("two", "mac-01", "q2")
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Put: []record.Conversation{a, b}}))
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Supersede: []string{b.ID}}))

	stats, err := s.ReadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Live: 1, Superseded: 1}, stats)
}
