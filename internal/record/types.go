package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is a single utterance within a conversation.
//
// Seq numbers are unique and monotonically increasing within a conversation.
// Message order is semantically significant: reordering changes the
// conversation's ContentHash.
type Message struct {
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Seq       int64     `json:"seq" yaml:"seq"`
}

// Conversation is one captured conversation thread.
//
// Conversations are immutable once persisted: a merge never rewrites an
// existing record's message sequence in place, it produces a NEW record
// whose Provenance references the sources. Superseded records are marked,
// never deleted, preserving history.
type Conversation struct {
	// ID identifies the record. Ingested records are content-addressed
	// (ID == ContentHash); merged records carry a fresh UUIDv7.
	ID          string    `json:"id" yaml:"id,omitempty"`
	ContentHash string    `json:"content_hash" yaml:"content_hash,omitempty"`
	FuzzyKey    string    `json:"fuzzy_key" yaml:"fuzzy_key,omitempty"`
	Title       string    `json:"title" yaml:"title"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
	MachineID   string    `json:"machine_id" yaml:"machine_id,omitempty"`
	Messages    []Message `json:"messages" yaml:"messages"`

	// RawPayload is the extraction collaborator's original blob, preserved
	// verbatim. Opaque to the engine.
	RawPayload json.RawMessage `json:"raw_payload,omitempty" yaml:"-"`

	// Provenance lists the source record IDs when this record was produced
	// by a merge. Empty for directly ingested records.
	Provenance []string `json:"provenance,omitempty" yaml:"-"`

	// ConflictGroup is non-empty when this record is one side of a
	// dual-retained conflict pair awaiting manual resolution.
	ConflictGroup string `json:"conflict_group,omitempty" yaml:"-"`

	// Superseded marks records whose content has been folded into a newer
	// merged record. Kept for history, excluded from matching.
	Superseded bool `json:"superseded,omitempty" yaml:"-"`
}

// Validate checks the conversation's structural invariants. Sequence
// numbers must be strictly increasing; an empty message list is rejected.
func (c Conversation) Validate() error {
	if len(c.Messages) == 0 {
		return fmt.Errorf("conversation %q: no messages", c.Title)
	}
	prev := int64(-1)
	for i, m := range c.Messages {
		if m.Seq <= prev {
			return fmt.Errorf("conversation %q: message %d: seq %d not strictly increasing (prev %d)",
				c.Title, i, m.Seq, prev)
		}
		prev = m.Seq
	}
	return nil
}

// Machine is one capture source. Owned by the sync ledger; its cursor is
// mutated only by successful sync commits.
type Machine struct {
	ID             string    `json:"id"`
	Hostname       string    `json:"hostname"`
	Cursor         time.Time `json:"cursor"`
	ConfigSnapshot string    `json:"config_snapshot,omitempty"`
}

// Op enumerates sync log operation kinds.
type Op string

const (
	OpIngest   Op = "ingest"    // new conversation stored as-is
	OpNoop     Op = "no-op"     // exact duplicate discarded
	OpMerge    Op = "merge"     // partial overlap merged into a new record
	OpConflict Op = "conflict"  // dual retention, flagged for manual resolution
	OpCursor   Op = "cursor"    // machine cursor advanced
)

// Sync log entry statuses.
const (
	StatusOK      = "ok"
	StatusFlagged = "flagged"
)

// SyncLogEntry is one line of the append-only audit trail. Entries are
// never mutated after creation.
type SyncLogEntry struct {
	// Seq is a logical clock stamp; all ordering uses Seq, never wall time.
	Seq           int64     `json:"seq"`
	MachineID     string    `json:"machine_id"`
	Op            Op        `json:"op"`
	Status        string    `json:"status"`
	At            time.Time `json:"at"`
	Conversations []string  `json:"conversations,omitempty"`
	Note          string    `json:"note,omitempty"`
}
