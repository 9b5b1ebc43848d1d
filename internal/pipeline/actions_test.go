package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/ledger"
	"github.com/weftlabs/weft/internal/record"
	"github.com/weftlabs/weft/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunContext(t *testing.T) *RunContext {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "weft.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	led, err := ledger.Open(context.Background(), st)
	require.NoError(t, err)

	return &RunContext{
		Store:      st,
		Engine:     engine.New(st, led),
		Log:        discardLogger(),
		RunID:      "run-test",
		BatchDir:   filepath.Join(dir, "inbox"),
		StagingDir: filepath.Join(dir, "staging"),
		Totals:     &Totals{},
	}
}

func writeBatchFile(t *testing.T, dir, name, machineID string, titles ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	batch := record.Batch{MachineID: machineID, Hostname: machineID + ".local"}
	for _, title := range titles {
		batch.Conversations = append(batch.Conversations, record.Conversation{
			Title:     title,
			CreatedAt: at,
			UpdatedAt: at,
			Messages: []record.Message{
				{Role: "user", Content: "question about " + title, Timestamp: at, Seq: 1},
				{Role: "assistant", Content: "answer about " + title, Timestamp: at.Add(time.Minute), Seq: 2},
			},
		})
	}

	data, err := json.Marshal(batch)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestIngestBatches(t *testing.T) {
	rc := newRunContext(t)
	ctx := context.Background()

	writeBatchFile(t, rc.BatchDir, "01-mac.json", "mac-01", "alpha", "beta")
	writeBatchFile(t, rc.BatchDir, "02-mac.json", "mac-02", "alpha")

	require.NoError(t, IngestBatches(ctx, rc))

	assert.Equal(t, 2, rc.Totals.Batches)
	assert.Equal(t, 2, rc.Totals.New)
	assert.Equal(t, 1, rc.Totals.Duplicates, "mac-02's alpha is an exact duplicate")

	// Raw bytes snapshotted into the blob store.
	keys, err := rc.Store.ListPartitions(ctx, "batches/")
	require.NoError(t, err)
	assert.Equal(t, []string{"batches/mac-01/01-mac.json", "batches/mac-02/02-mac.json"}, keys)

	// Ingested files moved out of the inbox into staging.
	left, err := filepath.Glob(filepath.Join(rc.BatchDir, "*.json"))
	require.NoError(t, err)
	assert.Empty(t, left)
	staged, err := filepath.Glob(filepath.Join(rc.StagingDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, staged, 2)
}

func TestIngestBatches_MalformedBatchFails(t *testing.T) {
	rc := newRunContext(t)
	require.NoError(t, os.MkdirAll(rc.BatchDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rc.BatchDir, "bad.json"), []byte("{"), 0o644))

	err := IngestBatches(context.Background(), rc)
	assert.Error(t, err)
}

func TestIngestBatches_EmptyInbox(t *testing.T) {
	rc := newRunContext(t)
	require.NoError(t, IngestBatches(context.Background(), rc))
	assert.Equal(t, 0, rc.Totals.Batches)
}

func TestVerifyStore(t *testing.T) {
	rc := newRunContext(t)
	require.NoError(t, VerifyStore(context.Background(), rc))
}

func TestWriteReport(t *testing.T) {
	rc := newRunContext(t)
	ctx := context.Background()
	rc.Totals.Batches = 3
	rc.Totals.Merged = 1

	require.NoError(t, WriteReport(ctx, rc))

	blob, err := rc.Store.GetPartition(ctx, "reports/run-test")
	require.NoError(t, err)
	require.NotNil(t, blob)

	var rep runReport
	require.NoError(t, json.Unmarshal(blob, &rep))
	assert.Equal(t, "run-test", rep.RunID)
	assert.Equal(t, 3, rep.Totals.Batches)
	assert.Equal(t, 1, rep.Totals.Merged)
}

func TestCleanupStaging(t *testing.T) {
	rc := newRunContext(t)
	require.NoError(t, os.MkdirAll(rc.StagingDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rc.StagingDir, "leftover.json"), []byte("{}"), 0o644))

	require.NoError(t, CleanupStaging(context.Background(), rc))

	_, err := os.Stat(rc.StagingDir)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultPipelineEndToEnd(t *testing.T) {
	rc := newRunContext(t)
	writeBatchFile(t, rc.BatchDir, "01-mac.json", "mac-01", "alpha")

	spec, err := Parse([]byte(`
pipeline:
  name: nightly-sync
  steps:
    - name: ingest
      action: ingest_batches
      retry_count: 1
      retry_delay: 1ms
      on_failure: halt_with_cleanup
    - name: verify
      action: verify_store
    - name: report
      action: report
    - name: cleanup
      action: cleanup_staging
      always_run: true
`))
	require.NoError(t, err)
	require.NoError(t, spec.Check(DefaultRegistry()))

	runner := NewRunner(DefaultRegistry(), WithRunnerLogger(discardLogger()))
	res, err := runner.Run(context.Background(), spec, rc)
	require.NoError(t, err)

	assert.Equal(t, RunSucceeded, res.Status)
	assert.Equal(t, 1, rc.Totals.New)

	blob, err := rc.Store.GetPartition(context.Background(), "reports/run-test")
	require.NoError(t, err)
	assert.NotNil(t, blob)

	_, err = os.Stat(rc.StagingDir)
	assert.True(t, os.IsNotExist(err), "always_run teardown removed staging")
}
