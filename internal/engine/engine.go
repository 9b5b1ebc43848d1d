// Package engine composes the reconciliation path: fingerprint the
// incoming batch, resolve each conversation against the canonical store,
// decide the merge outcome, and commit the result through the ledger's
// per-partition serialization.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/weftlabs/weft/internal/ledger"
	"github.com/weftlabs/weft/internal/match"
	"github.com/weftlabs/weft/internal/merge"
	"github.com/weftlabs/weft/internal/record"
	"github.com/weftlabs/weft/internal/store"
)

// Engine reconciles extraction batches into the canonical store.
//
// All store mutations go through ledger.Commit: evaluation runs inside
// the partition critical section against CURRENT store state, and the
// produced commit set applies atomically.
type Engine struct {
	store    *store.Store
	ledger   *ledger.Ledger
	resolver *match.Resolver
	idgen    IDGenerator
	now      func() time.Time
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides the merge/conflict-group id generator.
// Tests use SequenceGenerator for deterministic traces.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idgen = g }
}

// WithNow overrides the wall clock used for audit timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger overrides the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine over the store and ledger.
func New(st *store.Store, led *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		ledger:   led,
		resolver: match.NewResolver(st),
		idgen:    UUIDv7Generator{},
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchReport summarizes one batch reconciliation.
type BatchReport struct {
	MachineID      string   `json:"machine_id"`
	Partitions     int      `json:"partitions"`
	New            int      `json:"new"`
	Duplicates     int      `json:"duplicates"`
	Merged         int      `json:"merged"`
	Conflicts      int      `json:"conflicts"`
	ConflictGroups []string `json:"conflict_groups,omitempty"`
}

// Total returns the number of conversations processed.
func (r *BatchReport) Total() int {
	return r.New + r.Duplicates + r.Merged + r.Conflicts
}

type partitionStats struct {
	added, duplicates, merged, conflicts int
	conflictGroups                       []string
}

// SyncBatch reconciles one extraction batch.
//
// The batch is immutable input: a contract violation surfaces as an
// extraction error and nothing is written. Conversations are grouped into
// machine-and-day partitions; each partition commits independently, so a
// transient failure in one leaves earlier partitions durably applied and
// their cursors advanced. A partition containing a dual-retained conflict
// does NOT advance the cursor, forcing re-evaluation on the next run;
// partitions after it in the batch hold the cursor too, so a clean later
// day never carries the watermark past the flagged slice.
func (e *Engine) SyncBatch(ctx context.Context, batch record.Batch) (*BatchReport, error) {
	if err := batch.Validate(); err != nil {
		return nil, NewExtractionError(batch.MachineID, err)
	}

	partitions := make(map[string][]record.Conversation)
	for _, c := range batch.Conversations {
		if c.MachineID == "" {
			c.MachineID = batch.MachineID
		}
		c = record.Fingerprint(c)
		key := ledger.ConversationPartition(c)
		partitions[key] = append(partitions[key], c)
	}

	keys := make([]string, 0, len(partitions))
	for key := range partitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	report := &BatchReport{MachineID: batch.MachineID, Partitions: len(keys)}
	e.log.Info("batch sync start",
		"machine", batch.MachineID,
		"conversations", len(batch.Conversations),
		"partitions", len(keys))

	cursorHeld := false
	for i, key := range keys {
		group := partitions[key]
		policy := cursorPolicy{advance: !cursorHeld, capToDay: i < len(keys)-1}
		var stats partitionStats

		err := e.ledger.Commit(ctx, key, func(ctx context.Context) (store.CommitSet, error) {
			cs, st, err := e.evaluatePartition(ctx, batch, group, policy)
			stats = st
			return cs, err
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			var se *SyncError
			if errors.As(err, &se) {
				return report, err
			}
			return report, NewStoreCommitError(batch.MachineID, err)
		}

		report.New += stats.added
		report.Duplicates += stats.duplicates
		report.Merged += stats.merged
		report.Conflicts += stats.conflicts
		report.ConflictGroups = append(report.ConflictGroups, stats.conflictGroups...)
		if stats.conflicts > 0 {
			cursorHeld = true
		}
	}

	e.log.Info("batch sync done",
		"machine", batch.MachineID,
		"new", report.New,
		"duplicates", report.Duplicates,
		"merged", report.Merged,
		"conflicts", report.Conflicts)
	return report, nil
}

// cursorPolicy controls whether and how far one partition commit may move
// the machine cursor.
type cursorPolicy struct {
	// advance is cleared once an earlier partition in the batch held its
	// cursor; the watermark must not jump past the held slice.
	advance bool

	// capToDay bounds the watermark to the partition's own UTC day end.
	// Only the batch's final partition may claim the full window end.
	capToDay bool
}

// evaluatePartition resolves and decides every conversation in one
// partition, accumulating a single atomic commit set. Runs inside the
// partition critical section.
func (e *Engine) evaluatePartition(
	ctx context.Context,
	batch record.Batch,
	convs []record.Conversation,
	policy cursorPolicy,
) (store.CommitSet, partitionStats, error) {
	var cs store.CommitSet
	var stats partitionStats
	now := e.now()

	for _, incoming := range convs {
		if err := ctx.Err(); err != nil {
			return store.CommitSet{}, stats, err
		}

		m, err := e.resolver.Resolve(ctx, incoming)
		if err != nil {
			return store.CommitSet{}, stats, fmt.Errorf("resolve %s: %w", incoming.ID, err)
		}

		decision := merge.Decide(m, incoming)
		e.log.Debug("conversation resolved",
			"machine", incoming.MachineID,
			"title", incoming.Title,
			"match", string(m.Kind),
			"outcome", string(decision.Outcome))

		switch decision.Outcome {
		case merge.OutcomeNew:
			cs.Put = append(cs.Put, incoming)
			cs.Log = append(cs.Log, e.ledger.Entry(
				incoming.MachineID, record.OpIngest, record.StatusOK, now,
				[]string{incoming.ID}, ""))
			stats.added++

		case merge.OutcomeExactDuplicate:
			cs.Log = append(cs.Log, e.ledger.Entry(
				incoming.MachineID, record.OpNoop, record.StatusOK, now,
				[]string{decision.Existing.ID}, "exact duplicate"))
			stats.duplicates++

		case merge.OutcomeMerged:
			existing := decision.Existing
			if record.ContentHash(decision.Merged) == existing.ContentHash {
				// Existing record already holds the union; re-merging an
				// already-merged pair is a no-op, keeping sync idempotent.
				cs.Log = append(cs.Log, e.ledger.Entry(
					incoming.MachineID, record.OpNoop, record.StatusOK, now,
					[]string{existing.ID}, "contained in existing record"))
				stats.duplicates++
				break
			}

			history := incoming
			history.Superseded = true

			merged := e.buildMerged(*existing, incoming, decision.Merged)
			cs.Supersede = append(cs.Supersede, existing.ID)
			cs.Put = append(cs.Put, history, merged)
			cs.Log = append(cs.Log, e.ledger.Entry(
				incoming.MachineID, record.OpMerge, record.StatusOK, now,
				[]string{existing.ID, incoming.ID, merged.ID},
				fmt.Sprintf("merged to %d messages", len(merged.Messages))))
			stats.merged++

		case merge.OutcomeDualRetained:
			existing := decision.Existing
			group := e.idgen.NewID()

			retained := incoming
			retained.ConflictGroup = group
			cs.Put = append(cs.Put, retained)
			cs.Conflicts = append(cs.Conflicts, store.ConflictTag{
				Group: group,
				IDs:   []string{existing.ID, incoming.ID},
			})
			cs.Log = append(cs.Log, e.ledger.Entry(
				incoming.MachineID, record.OpConflict, record.StatusFlagged, now,
				[]string{existing.ID, incoming.ID},
				fmt.Sprintf("seqs %v diverged; manual resolution required", decision.ConflictSeqs)))
			stats.conflicts++
			stats.conflictGroups = append(stats.conflictGroups, group)
		}
	}

	// A conflicted partition keeps its old cursor so the next run
	// re-evaluates it; a clean partition advances, capped to its own day
	// unless it is the batch's last slice.
	if policy.advance && stats.conflicts == 0 {
		watermark := e.partitionWatermark(batch, convs, now)
		if policy.capToDay {
			if end := partitionDayEnd(convs); !end.IsZero() && end.Before(watermark) {
				watermark = end
			}
		}
		cs.Cursor = &store.CursorAdvance{
			MachineID:      batch.MachineID,
			Hostname:       batch.Hostname,
			Watermark:      watermark,
			ConfigSnapshot: "",
		}
		cs.Log = append(cs.Log, e.ledger.Entry(
			batch.MachineID, record.OpCursor, record.StatusOK, now, nil,
			"cursor "+watermark.UTC().Format(time.RFC3339)))
	}

	return cs, stats, nil
}

// partitionWatermark picks the cursor watermark: the batch window end when
// the collaborator declared one, otherwise the latest update seen.
func (e *Engine) partitionWatermark(batch record.Batch, convs []record.Conversation, fallback time.Time) time.Time {
	if !batch.WindowEnd.IsZero() {
		return batch.WindowEnd
	}
	var max time.Time
	for _, c := range convs {
		if c.UpdatedAt.After(max) {
			max = c.UpdatedAt
		}
	}
	if max.IsZero() {
		return fallback
	}
	return max
}

// partitionDayEnd returns the end of the partition's UTC day, derived from
// the creation day shared by its conversations.
func partitionDayEnd(convs []record.Conversation) time.Time {
	if len(convs) == 0 {
		return time.Time{}
	}
	t := convs[0].CreatedAt.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// buildMerged assembles the new record produced by a partial-overlap
// merge. The merged record gets a fresh id and provenance referencing both
// sources; identity fields are recomputed from the union.
func (e *Engine) buildMerged(existing, incoming record.Conversation, union []record.Message) record.Conversation {
	title := existing.Title
	if title == "" || (incoming.Title != "" && len(incoming.Messages) > len(existing.Messages)) {
		title = incoming.Title
	}

	createdAt := existing.CreatedAt
	if !incoming.CreatedAt.IsZero() && (createdAt.IsZero() || incoming.CreatedAt.Before(createdAt)) {
		createdAt = incoming.CreatedAt
	}
	updatedAt := existing.UpdatedAt
	if incoming.UpdatedAt.After(updatedAt) {
		updatedAt = incoming.UpdatedAt
	}

	return record.Fingerprint(record.Conversation{
		ID:         e.idgen.NewID(),
		Title:      title,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		MachineID:  existing.MachineID,
		Messages:   union,
		Provenance: []string{existing.ID, incoming.ID},
	})
}
