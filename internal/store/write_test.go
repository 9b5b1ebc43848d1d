package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/record"
)

func TestApplyCommit_PutIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	conv := testConversation("idempotent", "mac-01", "q1", "a1")

	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Put: []record.Conversation{conv}}))
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Put: []record.Conversation{conv}}))

	stats, err := s.ReadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Live)
}

func TestApplyCommit_Atomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	good := testConversation("good", "mac-01", "q1", "a1")
	// Duplicate log seq forces a primary key violation mid-commit.
	entry := record.SyncLogEntry{Seq: 1, MachineID: "mac-01", Op: record.OpIngest, Status: record.StatusOK, At: time.Now()}
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Log: []record.SyncLogEntry{entry}}))

	err := s.ApplyCommit(ctx, CommitSet{
		Put: []record.Conversation{good},
		Log: []record.SyncLogEntry{entry},
	})
	require.Error(t, err)

	// The conversation insert from the failed commit must not be visible.
	got, getErr := s.GetByContentHash(ctx, good.ContentHash)
	require.NoError(t, getErr)
	assert.Nil(t, got, "failed commit leaked a partial write")
}

func TestApplyCommit_SupersedeReleasesHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	original := testConversation("merged away", "mac-01", "q1", "a1", "q2")
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Put: []record.Conversation{original}}))

	// A merged record carrying the same message set (and so the same
	// content hash) replaces the original in one commit.
	merged := original
	merged.ID = "merged-0001"
	merged.MachineID = ""
	merged.Provenance = []string{original.ID, "other-source"}

	require.NoError(t, s.ApplyCommit(ctx, CommitSet{
		Supersede: []string{original.ID},
		Put:       []record.Conversation{merged},
	}))

	live, err := s.GetByContentHash(ctx, original.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "merged-0001", live.ID)
	assert.Equal(t, []string{original.ID, "other-source"}, live.Provenance)

	// History preserved: the superseded record is still readable by id.
	old, err := s.GetConversation(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.True(t, old.Superseded)
}

func TestApplyCommit_ConflictTag(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testConversation("conflicted", "mac-01", "q1", "a1")
	b := testConversation("conflicted", "mac-02", "q1", "different answer")

	require.NoError(t, s.ApplyCommit(ctx, CommitSet{
		Put: []record.Conversation{a, b},
		Conflicts: []ConflictTag{
			{Group: "grp-1", IDs: []string{a.ID, b.ID}},
		},
	}))

	conflicts, err := s.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "grp-1", conflicts[0].ConflictGroup)
	assert.Equal(t, "grp-1", conflicts[1].ConflictGroup)
}

func TestAdvanceCursor_OnlyForward(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	later := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Cursor: &CursorAdvance{
		MachineID: "mac-01", Hostname: "daisy.local", Watermark: later,
	}}))

	// A stale commit must not move the cursor backwards.
	require.NoError(t, s.ApplyCommit(ctx, CommitSet{Cursor: &CursorAdvance{
		MachineID: "mac-01", Hostname: "daisy.local", Watermark: earlier,
	}}))

	m, err := s.GetMachine(ctx, "mac-01")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Cursor.Equal(later), "cursor moved backwards to %s", m.Cursor)
}

func TestApplyCommit_EmptyIsNoop(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.ApplyCommit(context.Background(), CommitSet{}))
}
