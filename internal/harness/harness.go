package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/ledger"
	"github.com/weftlabs/weft/internal/store"
)

// TraceEvent is one audit-log line of a scenario run, stripped of
// content-hash ids so golden traces stay hand-computable.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Machine string `json:"machine"`
	Op      string `json:"op"`
	Status  string `json:"status"`
	Note    string `json:"note,omitempty"`
}

// Result is the full outcome of a scenario run.
type Result struct {
	Reports []*engine.BatchReport
	Stats   store.Stats
	Trace   []TraceEvent
}

// Totals sums the per-batch reports.
func (r *Result) Totals() (new_, duplicates, merged, conflicts int) {
	for _, rep := range r.Reports {
		new_ += rep.New
		duplicates += rep.Duplicates
		merged += rep.Merged
		conflicts += rep.Conflicts
	}
	return
}

// Run executes a scenario against a fresh store in dir.
//
// The engine runs with a deterministic merge-id generator and a fixed
// wall clock, so two runs of the same scenario produce identical traces.
func Run(ctx context.Context, sc *Scenario, dir string) (*Result, error) {
	st, err := store.Open(filepath.Join(dir, sc.Name+".db"))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	defer st.Close()

	led, err := ledger.Open(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	fixed := anchor.Add(12 * time.Hour)
	eng := engine.New(st, led,
		engine.WithIDGenerator(&engine.SequenceGenerator{Prefix: "merge"}),
		engine.WithNow(func() time.Time { return fixed }),
	)

	result := &Result{}
	for i, sb := range sc.Batches {
		report, err := eng.SyncBatch(ctx, sb.Batch())
		if err != nil {
			return nil, fmt.Errorf("scenario %s: batch %d (%s): %w", sc.Name, i, sb.Machine, err)
		}
		result.Reports = append(result.Reports, report)
	}

	result.Stats, err = st.ReadStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	entries, err := st.ListSyncLog(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	for _, e := range entries {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     e.Seq,
			Machine: e.MachineID,
			Op:      string(e.Op),
			Status:  e.Status,
			Note:    e.Note,
		})
	}
	return result, nil
}

// Check compares a result against the scenario's declared expectations.
func (r *Result) Check(sc *Scenario) error {
	new_, duplicates, merged, conflicts := r.Totals()
	got := Expectation{
		New:        new_,
		Duplicates: duplicates,
		Merged:     merged,
		Conflicts:  conflicts,
		Live:       r.Stats.Live,
		Superseded: r.Stats.Superseded,
	}
	if got != sc.Expect {
		return fmt.Errorf("scenario %s: outcome %+v, expected %+v", sc.Name, got, sc.Expect)
	}
	return nil
}
