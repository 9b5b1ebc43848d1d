package testutil

import (
	"time"

	"github.com/weftlabs/weft/internal/record"
)

// BaseTime anchors builder timestamps so fixtures and golden traces stay
// byte-stable.
var BaseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// Messages builds an alternating user/assistant message sequence with
// strictly increasing seqs, one minute apart, starting at BaseTime.
func Messages(contents ...string) []record.Message {
	msgs := make([]record.Message, len(contents))
	for i, c := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = record.Message{
			Role:      role,
			Content:   c,
			Timestamp: BaseTime.Add(time.Duration(i) * time.Minute),
			Seq:       int64(i + 1),
		}
	}
	return msgs
}

// Conversation builds a fingerprinted conversation from message contents.
func Conversation(title, machineID string, contents ...string) record.Conversation {
	return record.Fingerprint(record.Conversation{
		Title:     title,
		CreatedAt: BaseTime,
		UpdatedAt: BaseTime.Add(time.Duration(len(contents)) * time.Minute),
		MachineID: machineID,
		Messages:  Messages(contents...),
	})
}

// Batch wraps conversations into a one-day extraction batch for machineID.
func Batch(machineID string, convs ...record.Conversation) record.Batch {
	return record.Batch{
		MachineID:     machineID,
		Hostname:      machineID + ".local",
		WindowStart:   BaseTime.Add(-time.Hour),
		WindowEnd:     BaseTime.Add(24 * time.Hour),
		Conversations: convs,
	}
}
