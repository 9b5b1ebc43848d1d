package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// The storage-collaborator contract: three atomic primitives over keyed
// blobs. Pipeline steps stage batch snapshots and reports through these;
// the engine depends on nothing else from the blob layer.

// PutPartition stores a blob under a partition key, replacing any previous
// value. The write is a single statement: the whole blob lands or none of
// it does.
func (s *Store) PutPartition(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partitions (key, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			blob       = excluded.blob,
			updated_at = excluded.updated_at
	`, key, blob, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("put partition %s: %w", key, err)
	}
	return nil
}

// GetPartition returns the blob stored under a key, or nil if absent.
func (s *Store) GetPartition(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM partitions WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get partition %s: %w", key, err)
	}
	return blob, nil
}

// ListPartitions returns all keys with the given prefix, sorted.
func (s *Store) ListPartitions(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM partitions
		WHERE key LIKE ? ESCAPE '\'
		ORDER BY key COLLATE BINARY ASC
	`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan partition key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partition keys: %w", err)
	}
	return keys, nil
}

// escapeLike escapes LIKE metacharacters so prefixes match literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
