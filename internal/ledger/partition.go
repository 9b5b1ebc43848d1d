package ledger

import (
	"time"

	"github.com/weftlabs/weft/internal/record"
)

// PartitionKey identifies the machine-and-time-bounded slice a
// conversation belongs to: "<machineID>/<UTC day>". Commits are serialized
// per partition; non-overlapping partitions commit concurrently.
func PartitionKey(machineID string, t time.Time) string {
	return machineID + "/" + t.UTC().Format("2006-01-02")
}

// ConversationPartition returns the partition key of a conversation: its
// owning machine plus the UTC day it was created.
func ConversationPartition(c record.Conversation) string {
	return PartitionKey(c.MachineID, c.CreatedAt)
}
