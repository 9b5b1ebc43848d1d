package record

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Batch is the extraction collaborator's delivery contract: the
// conversations captured on one machine over a bounded time window.
//
// A batch is an immutable input. The engine never requests re-extraction;
// a batch that fails validation is surfaced as an ExtractionError by the
// caller and left for the next scheduled run.
type Batch struct {
	MachineID     string         `json:"machine_id" yaml:"machine_id"`
	Hostname      string         `json:"hostname" yaml:"hostname"`
	WindowStart   time.Time      `json:"window_start" yaml:"window_start"`
	WindowEnd     time.Time      `json:"window_end" yaml:"window_end"`
	Conversations []Conversation `json:"conversations" yaml:"conversations"`
}

// Validate checks the batch contract: machine identity, a sane window, and
// structurally valid conversations (strictly increasing message seqs).
func (b Batch) Validate() error {
	if b.MachineID == "" {
		return fmt.Errorf("batch: machine_id is required")
	}
	if !b.WindowEnd.IsZero() && !b.WindowStart.IsZero() && b.WindowEnd.Before(b.WindowStart) {
		return fmt.Errorf("batch %s: window_end %s before window_start %s",
			b.MachineID, b.WindowEnd.Format(time.RFC3339), b.WindowStart.Format(time.RFC3339))
	}
	for i, c := range b.Conversations {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("batch %s: conversation %d: %w", b.MachineID, i, err)
		}
	}
	return nil
}

// ParseBatch decodes a batch from its JSON wire form and validates it.
func ParseBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("parse batch: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// LoadBatch reads and parses a batch file.
func LoadBatch(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("load batch: %w", err)
	}
	b, err := ParseBatch(data)
	if err != nil {
		return Batch{}, fmt.Errorf("load batch %s: %w", path, err)
	}
	return b, nil
}
