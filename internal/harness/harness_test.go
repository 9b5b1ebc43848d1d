package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			result, err := Run(context.Background(), sc, t.TempDir())
			require.NoError(t, err)

			require.NoError(t, result.Check(sc))
			require.NoError(t, AssertGolden(t, sc.Name, result))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	sc, err := LoadScenario("testdata/merge_continuation.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), sc, t.TempDir())
	require.NoError(t, err)
	second, err := Run(context.Background(), sc, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace, "two runs produce identical traces")
	assert.Equal(t, first.Stats, second.Stats)
}

func TestScenarioBatch_Materialization(t *testing.T) {
	sb := ScenarioBatch{
		Machine: "mac-01",
		Conversations: []ScenarioConversation{
			{Title: "thread", Messages: []ScenarioMessage{
				{Role: "user", Content: "q1"},
				{Role: "assistant", Content: "a1"},
			}},
		},
	}

	batch := sb.Batch()
	require.NoError(t, batch.Validate())
	assert.Equal(t, "mac-01", batch.MachineID)
	require.Len(t, batch.Conversations, 1)

	msgs := batch.Conversations[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].Seq)
	assert.Equal(t, int64(2), msgs[1].Seq)
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp))
}

func TestLoadScenario_Errors(t *testing.T) {
	_, err := LoadScenario("testdata/missing.yaml")
	assert.Error(t, err)
}
