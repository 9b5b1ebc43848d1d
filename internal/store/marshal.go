package store

import (
	"encoding/json"
	"fmt"

	"github.com/weftlabs/weft/internal/record"
)

// marshalMessages serializes a message sequence to JSON TEXT for storage.
// Struct field order is fixed, so the output is deterministic for a given
// sequence.
func marshalMessages(msgs []record.Message) (string, error) {
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}
	return string(data), nil
}

func unmarshalMessages(data string) ([]record.Message, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var msgs []record.Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	return msgs, nil
}

// marshalIDs serializes a string-id list (provenance, affected
// conversations) to JSON TEXT. Empty lists store as "[]", never NULL.
func marshalIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

func unmarshalIDs(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}
