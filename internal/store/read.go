package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weftlabs/weft/internal/record"
)

const conversationColumns = `id, content_hash, fuzzy_key, title, created_at, updated_at,
	machine_id, messages, raw_payload, provenance, conflict_group, superseded`

// GetByContentHash returns the live (non-superseded) record with the given
// content hash, or nil if none exists. The partial unique index guarantees
// at most one.
func (s *Store) GetByContentHash(ctx context.Context, hash string) (*record.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE content_hash = ? AND superseded = 0
	`, hash)

	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get by content hash: %w", err)
	}
	return &c, nil
}

// GetConversation returns a record by id, superseded or not.
// Returns nil if the id is unknown.
func (s *Store) GetConversation(ctx context.Context, id string) (*record.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = ?
	`, id)

	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// ListByFuzzyKey returns the live records in a fuzzy bucket, ordered
// deterministically by id.
func (s *Store) ListByFuzzyKey(ctx context.Context, key string) ([]record.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE fuzzy_key = ? AND superseded = 0
		ORDER BY id COLLATE BINARY ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("list by fuzzy key: %w", err)
	}
	defer rows.Close()

	return collectConversations(rows)
}

// ListConflicts returns live records tagged with a conflict group,
// ordered by group then id so pairs stay adjacent.
func (s *Store) ListConflicts(ctx context.Context) ([]record.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE conflict_group != '' AND superseded = 0
		ORDER BY conflict_group ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	return collectConversations(rows)
}

// Stats summarizes store contents for the verification pipeline step.
type Stats struct {
	Live       int `json:"live"`
	Superseded int `json:"superseded"`
	Conflicts  int `json:"conflicts"`
	LogEntries int `json:"log_entries"`
}

// ReadStats counts live, superseded, and conflicted records plus log size.
func (s *Store) ReadStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM conversations WHERE superseded = 0),
			(SELECT COUNT(*) FROM conversations WHERE superseded = 1),
			(SELECT COUNT(*) FROM conversations WHERE conflict_group != '' AND superseded = 0),
			(SELECT COUNT(*) FROM sync_log)
	`).Scan(&st.Live, &st.Superseded, &st.Conflicts, &st.LogEntries)
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	return st, nil
}

// GetMachine returns a machine row, or nil if the machine has never
// completed a sync.
func (s *Store) GetMachine(ctx context.Context, id string) (*record.Machine, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, hostname, cursor, config_snapshot
		FROM machines
		WHERE id = ?
	`, id)

	var m record.Machine
	var cursor string
	err := row.Scan(&m.ID, &m.Hostname, &cursor, &m.ConfigSnapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get machine: %w", err)
	}
	m.Cursor = parseTime(cursor)
	return &m, nil
}

// ListMachines returns all known machines ordered by id.
func (s *Store) ListMachines(ctx context.Context) ([]record.Machine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hostname, cursor, config_snapshot
		FROM machines
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	machines := []record.Machine{}
	for rows.Next() {
		var m record.Machine
		var cursor string
		if err := rows.Scan(&m.ID, &m.Hostname, &cursor, &m.ConfigSnapshot); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		m.Cursor = parseTime(cursor)
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate machines: %w", err)
	}
	return machines, nil
}

// ListSyncLog returns the audit trail in logical order. An empty machineID
// lists all machines.
func (s *Store) ListSyncLog(ctx context.Context, machineID string) ([]record.SyncLogEntry, error) {
	query := `
		SELECT seq, machine_id, op, status, at, conversations, note
		FROM sync_log
		ORDER BY seq ASC
	`
	args := []any{}
	if machineID != "" {
		query = `
			SELECT seq, machine_id, op, status, at, conversations, note
			FROM sync_log
			WHERE machine_id = ?
			ORDER BY seq ASC
		`
		args = append(args, machineID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync log: %w", err)
	}
	defer rows.Close()

	entries := []record.SyncLogEntry{}
	for rows.Next() {
		var e record.SyncLogEntry
		var op, at, convs string
		if err := rows.Scan(&e.Seq, &e.MachineID, &op, &e.Status, &at, &convs, &e.Note); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.Op = record.Op(op)
		e.At = parseTime(at)
		e.Conversations, err = unmarshalIDs(convs)
		if err != nil {
			return nil, fmt.Errorf("scan log entry %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync log: %w", err)
	}
	return entries, nil
}

// MaxLogSeq returns the highest logical sequence number in the sync log,
// or 0 for an empty log. The ledger's clock resumes from here.
func (s *Store) MaxLogSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM sync_log`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max log seq: %w", err)
	}
	return seq.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (record.Conversation, error) {
	var c record.Conversation
	var createdAt, updatedAt, msgs, prov string
	var rawPayload []byte
	var superseded int

	err := row.Scan(
		&c.ID, &c.ContentHash, &c.FuzzyKey, &c.Title,
		&createdAt, &updatedAt, &c.MachineID,
		&msgs, &rawPayload, &prov, &c.ConflictGroup, &superseded,
	)
	if err != nil {
		return record.Conversation{}, err
	}

	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.RawPayload = rawPayload
	c.Superseded = superseded != 0

	c.Messages, err = unmarshalMessages(msgs)
	if err != nil {
		return record.Conversation{}, fmt.Errorf("conversation %s: %w", c.ID, err)
	}
	c.Provenance, err = unmarshalIDs(prov)
	if err != nil {
		return record.Conversation{}, fmt.Errorf("conversation %s: %w", c.ID, err)
	}
	return c, nil
}

func collectConversations(rows *sql.Rows) ([]record.Conversation, error) {
	out := []record.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}
