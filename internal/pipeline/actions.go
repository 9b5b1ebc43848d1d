package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/weftlabs/weft/internal/record"
)

// Built-in actions. DefaultRegistry wires the standard sync pipeline:
//
//	ingest_batches  - load every batch file from the inbox, reconcile it,
//	                  snapshot the raw bytes into the blob store, move the
//	                  file to staging
//	verify_store    - sqlite quick_check plus a stats log line
//	report          - write the run report blob
//	cleanup_staging - purge the staging dir (teardown, always_run)
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	// Registrations over a fresh registry cannot collide.
	_ = reg.Register("ingest_batches", IngestBatches)
	_ = reg.Register("verify_store", VerifyStore)
	_ = reg.Register("report", WriteReport)
	_ = reg.Register("cleanup_staging", CleanupStaging)
	return reg
}

// IngestBatches reconciles every *.json batch file in the inbox, in name
// order. Each batch's raw bytes are snapshotted into the blob store under
// batches/<machine>/<file> before reconciliation; an ingested file moves to
// the staging dir so a retried attempt does not re-read it. Re-reading is
// harmless anyway: reconciliation is idempotent.
func IngestBatches(ctx context.Context, rc *RunContext) error {
	files, err := filepath.Glob(filepath.Join(rc.BatchDir, "*.json"))
	if err != nil {
		return fmt.Errorf("ingest: scan %s: %w", rc.BatchDir, err)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		batch, err := record.ParseBatch(data)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
		}

		key := "batches/" + batch.MachineID + "/" + filepath.Base(path)
		if err := rc.Store.PutPartition(ctx, key, data); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		report, err := rc.Engine.SyncBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
		}
		rc.Totals.Add(report)

		if rc.StagingDir != "" {
			if err := os.MkdirAll(rc.StagingDir, 0o755); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			staged := filepath.Join(rc.StagingDir, filepath.Base(path))
			if err := os.Rename(path, staged); err != nil {
				return fmt.Errorf("ingest: stage %s: %w", filepath.Base(path), err)
			}
		}

		rc.Log.Info("batch ingested",
			"file", filepath.Base(path),
			"machine", batch.MachineID,
			"new", report.New,
			"duplicates", report.Duplicates,
			"merged", report.Merged,
			"conflicts", report.Conflicts)
	}
	return nil
}

// VerifyStore runs sqlite's quick_check over the canonical store and logs
// the record counts.
func VerifyStore(ctx context.Context, rc *RunContext) error {
	var status string
	if err := rc.Store.DB().QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&status); err != nil {
		return fmt.Errorf("verify: quick_check: %w", err)
	}
	if status != "ok" {
		return fmt.Errorf("verify: quick_check reported %q", status)
	}

	stats, err := rc.Store.ReadStats(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	rc.Log.Info("store verified",
		"live", stats.Live,
		"superseded", stats.Superseded,
		"conflicts", stats.Conflicts,
		"log_entries", stats.LogEntries)
	return nil
}

// runReport is the report blob's wire form.
type runReport struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Totals      Totals    `json:"totals"`
}

// WriteReport persists the run's reconciliation totals as a blob under
// reports/<run id>.
func WriteReport(ctx context.Context, rc *RunContext) error {
	rep := runReport{
		RunID:       rc.RunID,
		GeneratedAt: time.Now().UTC(),
		Totals:      *rc.Totals,
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := rc.Store.PutPartition(ctx, "reports/"+rc.RunID, data); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	rc.Log.Info("report written", "run", rc.RunID, "batches", rc.Totals.Batches)
	return nil
}

// CleanupStaging removes everything under the staging dir. Registered as
// the pipeline's always_run teardown.
func CleanupStaging(ctx context.Context, rc *RunContext) error {
	if rc.StagingDir == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(rc.StagingDir); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	rc.Log.Info("staging cleaned", "dir", rc.StagingDir)
	return nil
}
