package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	msgs := Messages("q1", "a1", "q2")
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, int64(3), msgs[2].Seq)
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp))
}

func TestConversation_Fingerprinted(t *testing.T) {
	c := Conversation("thread", "mac-01", "q1", "a1")
	require.NoError(t, c.Validate())
	assert.NotEmpty(t, c.ContentHash)
	assert.NotEmpty(t, c.FuzzyKey)
	assert.Equal(t, c.ContentHash, c.ID)
}

func TestBatch_Valid(t *testing.T) {
	b := Batch("mac-01", Conversation("thread", "mac-01", "q1"))
	require.NoError(t, b.Validate())
	assert.Equal(t, "mac-01.local", b.Hostname)
}
