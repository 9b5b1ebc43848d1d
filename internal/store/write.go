package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/weftlabs/weft/internal/record"
)

// ConflictTag marks a set of conversation records as one dual-retained
// conflict pair sharing a group id.
type ConflictTag struct {
	Group string
	IDs   []string
}

// CursorAdvance moves a machine's sync cursor forward. The watermark only
// ever advances - a commit carrying an older watermark leaves the cursor
// untouched.
type CursorAdvance struct {
	MachineID      string
	Hostname       string
	ConfigSnapshot string
	Watermark      time.Time
}

// CommitSet is the unit of mutation against the canonical store. All
// members apply in a single transaction: either the whole set lands or
// none of it does. A cancelled or failed sync step therefore leaves no
// partial writes visible.
type CommitSet struct {
	// Supersede marks record ids as folded into a newer merged record.
	// Applied first so a merged record may reuse a superseded content hash.
	Supersede []string

	// Put inserts conversation records. Idempotent on id: re-inserting an
	// existing record is a silent no-op.
	Put []record.Conversation

	// Conflicts tags dual-retained pairs with their shared group id.
	Conflicts []ConflictTag

	// Log appends audit entries. Entries are never mutated after insert.
	Log []record.SyncLogEntry

	// Cursor optionally advances the originating machine's cursor.
	Cursor *CursorAdvance
}

// Empty reports whether the commit set carries no mutations.
func (cs CommitSet) Empty() bool {
	return len(cs.Supersede) == 0 && len(cs.Put) == 0 &&
		len(cs.Conflicts) == 0 && len(cs.Log) == 0 && cs.Cursor == nil
}

// ApplyCommit applies a commit set atomically.
//
// Apply order matters: supersede before put, so that a merged record whose
// message set equals one input's (superset absorbs prefix) does not trip
// the live-hash unique index against the record it replaces.
func (s *Store) ApplyCommit(ctx context.Context, cs CommitSet) error {
	if cs.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, id := range cs.Supersede {
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET superseded = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("apply commit: supersede %s: %w", id, err)
		}
	}

	for _, c := range cs.Put {
		if err := insertConversation(ctx, tx, c); err != nil {
			return fmt.Errorf("apply commit: %w", err)
		}
	}

	for _, tag := range cs.Conflicts {
		for _, id := range tag.IDs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE conversations SET conflict_group = ? WHERE id = ?`, tag.Group, id); err != nil {
				return fmt.Errorf("apply commit: tag conflict %s: %w", id, err)
			}
		}
	}

	for _, entry := range cs.Log {
		if err := insertLogEntry(ctx, tx, entry); err != nil {
			return fmt.Errorf("apply commit: %w", err)
		}
	}

	if cs.Cursor != nil {
		if err := advanceCursor(ctx, tx, *cs.Cursor); err != nil {
			return fmt.Errorf("apply commit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply commit: commit tx: %w", err)
	}

	return nil
}

// insertConversation writes one record. ON CONFLICT(id) DO NOTHING keeps
// re-ingestion of an already stored record idempotent.
func insertConversation(ctx context.Context, tx *sql.Tx, c record.Conversation) error {
	msgsJSON, err := marshalMessages(c.Messages)
	if err != nil {
		return fmt.Errorf("insert conversation %s: %w", c.ID, err)
	}
	provJSON, err := marshalIDs(c.Provenance)
	if err != nil {
		return fmt.Errorf("insert conversation %s: %w", c.ID, err)
	}

	superseded := 0
	if c.Superseded {
		superseded = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations
		(id, content_hash, fuzzy_key, title, created_at, updated_at, machine_id,
		 messages, raw_payload, provenance, conflict_group, superseded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.ContentHash,
		c.FuzzyKey,
		c.Title,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
		c.MachineID,
		msgsJSON,
		[]byte(c.RawPayload),
		provJSON,
		c.ConflictGroup,
		superseded,
	)
	if err != nil {
		return fmt.Errorf("insert conversation %s: %w", c.ID, err)
	}
	return nil
}

func insertLogEntry(ctx context.Context, tx *sql.Tx, e record.SyncLogEntry) error {
	convJSON, err := marshalIDs(e.Conversations)
	if err != nil {
		return fmt.Errorf("insert log entry %d: %w", e.Seq, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_log (seq, machine_id, op, status, at, conversations, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.MachineID,
		string(e.Op),
		e.Status,
		formatTime(e.At),
		convJSON,
		e.Note,
	)
	if err != nil {
		return fmt.Errorf("insert log entry %d: %w", e.Seq, err)
	}
	return nil
}

// advanceCursor upserts the machine row. The cursor column only moves
// forward; hostname and config snapshot always refresh.
func advanceCursor(ctx context.Context, tx *sql.Tx, adv CursorAdvance) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO machines (id, hostname, cursor, config_snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hostname        = excluded.hostname,
			config_snapshot = excluded.config_snapshot,
			cursor = CASE
				WHEN excluded.cursor > machines.cursor THEN excluded.cursor
				ELSE machines.cursor
			END
	`,
		adv.MachineID,
		adv.Hostname,
		formatTime(adv.Watermark),
		adv.ConfigSnapshot,
	)
	if err != nil {
		return fmt.Errorf("advance cursor %s: %w", adv.MachineID, err)
	}
	return nil
}
