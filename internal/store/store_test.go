package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "weft.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testConversation(title, machineID string, contents ...string) record.Conversation {
	msgs := make([]record.Message, len(contents))
	for i, c := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = record.Message{
			Role:      role,
			Content:   c,
			Timestamp: time.Date(2026, 3, 14, 9, 30+i, 0, 0, time.UTC),
			Seq:       int64(i + 1),
		}
	}
	return record.Fingerprint(record.Conversation{
		Title:     title,
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		MachineID: machineID,
		Messages:  msgs,
	})
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weft.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var version int
	require.NoError(t, s2.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weft.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	conv := testConversation("persisted", "mac-01", "hello", "hi")
	require.NoError(t, s1.ApplyCommit(ctx, CommitSet{Put: []record.Conversation{conv}}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetByContentHash(ctx, conv.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, conv.Title, got.Title)
}
