// Package harness runs end-to-end sync scenarios: machines submit
// extraction batches against a fresh store, and the resulting reports,
// stats, and audit trace are checked against declared expectations and
// golden files.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weftlabs/weft/internal/record"
)

// anchor fixes all scenario timestamps so traces are hand-computable and
// golden files stay byte-stable.
var anchor = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// Scenario is one declarative sync scenario: an ordered list of batch
// submissions and the expected reconciliation outcome.
type Scenario struct {
	// Name uniquely identifies the scenario; the golden file shares it.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Batches are submitted in order, one SyncBatch call each.
	Batches []ScenarioBatch `yaml:"batches"`

	// Expect declares the aggregate outcome.
	Expect Expectation `yaml:"expect"`
}

// ScenarioBatch is one machine's submission.
type ScenarioBatch struct {
	Machine       string                 `yaml:"machine"`
	Conversations []ScenarioConversation `yaml:"conversations"`
}

// ScenarioConversation is a conversation given as bare role/content pairs.
// Timestamps and seqs are derived from the anchor.
type ScenarioConversation struct {
	Title    string            `yaml:"title"`
	Messages []ScenarioMessage `yaml:"messages"`
}

// ScenarioMessage is one utterance.
type ScenarioMessage struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// Expectation is the declared aggregate outcome across all batches.
type Expectation struct {
	New        int `yaml:"new"`
	Duplicates int `yaml:"duplicates"`
	Merged     int `yaml:"merged"`
	Conflicts  int `yaml:"conflicts"`
	Live       int `yaml:"live"`
	Superseded int `yaml:"superseded"`
}

// Batch materializes one scenario batch into the extraction contract form.
// Messages are stamped one minute apart from the anchor; the batch window
// spans one day from it.
func (b ScenarioBatch) Batch() record.Batch {
	batch := record.Batch{
		MachineID:   b.Machine,
		Hostname:    b.Machine + ".local",
		WindowStart: anchor.Add(-time.Hour),
		WindowEnd:   anchor.Add(24 * time.Hour),
	}
	for _, sc := range b.Conversations {
		conv := record.Conversation{
			Title:     sc.Title,
			CreatedAt: anchor,
			UpdatedAt: anchor.Add(time.Duration(len(sc.Messages)) * time.Minute),
		}
		for i, m := range sc.Messages {
			conv.Messages = append(conv.Messages, record.Message{
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: anchor.Add(time.Duration(i) * time.Minute),
				Seq:       int64(i + 1),
			})
		}
		batch.Conversations = append(batch.Conversations, conv)
	}
	return batch
}

// LoadScenario reads one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("load scenario %s: name is required", path)
	}
	if len(sc.Batches) == 0 {
		return nil, fmt.Errorf("load scenario %s: no batches", path)
	}
	return &sc, nil
}

// LoadScenarios reads every *.yaml scenario in a directory, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
