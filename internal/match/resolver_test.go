package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/record"
)

var day = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// fakeSource is an in-memory CandidateSource.
type fakeSource struct {
	records []record.Conversation
}

func (f *fakeSource) GetByContentHash(_ context.Context, hash string) (*record.Conversation, error) {
	for i := range f.records {
		if f.records[i].ContentHash == hash {
			c := f.records[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) ListByFuzzyKey(_ context.Context, key string) ([]record.Conversation, error) {
	var out []record.Conversation
	for _, c := range f.records {
		if c.FuzzyKey == key {
			out = append(out, c)
		}
	}
	return out, nil
}

func conv(title string, createdAt time.Time, contents ...string) record.Conversation {
	msgs := make([]record.Message, len(contents))
	for i, content := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = record.Message{Role: role, Content: content, Timestamp: createdAt, Seq: int64(i + 1)}
	}
	return record.Fingerprint(record.Conversation{
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Messages:  msgs,
	})
}

func TestResolve_Exact(t *testing.T) {
	existing := conv("thread", day, "q1", "a1")
	r := NewResolver(&fakeSource{records: []record.Conversation{existing}})

	m, err := r.Resolve(context.Background(), conv("thread", day, "q1", "a1"))
	require.NoError(t, err)
	assert.Equal(t, KindExact, m.Kind)
	require.NotNil(t, m.Candidate)
	assert.Equal(t, existing.ID, m.Candidate.ID)
	assert.Equal(t, 1.0, m.Score)
}

func TestResolve_FuzzyContinuation(t *testing.T) {
	// Same title, same day, shared prefix; incoming has extra trailing
	// messages (continuation captured later on another machine).
	existing := conv("thread", day, "q1", "a1")
	incoming := conv("thread", day.Add(2*time.Hour), "q1", "a1", "q2", "a2", "q3")
	require.Equal(t, existing.FuzzyKey, incoming.FuzzyKey, "fixture bug: expected shared bucket")

	r := NewResolver(&fakeSource{records: []record.Conversation{existing}})
	m, err := r.Resolve(context.Background(), incoming)
	require.NoError(t, err)
	assert.Equal(t, KindFuzzy, m.Kind)
	require.NotNil(t, m.Candidate)
	assert.Equal(t, existing.ID, m.Candidate.ID)
	assert.GreaterOrEqual(t, m.Score, Tau)
}

func TestResolve_NoMatchBelowTau(t *testing.T) {
	// Same bucket (title+day+prefix) but nothing else in common past the
	// first message: score stays under the threshold.
	existing := conv("thread", day, "q1", "totally different reply", "and", "more", "turns", "here")
	existing.CreatedAt = time.Time{} // no time evidence
	existing.Title = "other title entirely"
	incoming := conv("thread", day, "q1")
	incoming.CreatedAt = time.Time{}

	// Force the same bucket to exercise the scoring path.
	existing.FuzzyKey = incoming.FuzzyKey

	r := NewResolver(&fakeSource{records: []record.Conversation{existing}})
	m, err := r.Resolve(context.Background(), incoming)
	require.NoError(t, err)
	assert.Equal(t, KindNone, m.Kind)
	assert.Nil(t, m.Candidate)
}

func TestResolve_InclusiveBoundary(t *testing.T) {
	// Construct a score of exactly Tau: full prefix agreement (0.5), zero
	// time evidence (0.0), and a half-prefix title (0.2 * 0.5 = 0.1).
	existing := conv("abcd", time.Time{}, "q1", "a1")
	incoming := conv("ab", time.Time{}, "q1", "a1")
	incoming.ContentHash = "different-so-not-exact"
	existing.FuzzyKey = incoming.FuzzyKey

	require.Equal(t, Tau, Score(existing, incoming), "fixture must sit exactly on the boundary")

	r := NewResolver(&fakeSource{records: []record.Conversation{existing}})
	m, err := r.Resolve(context.Background(), incoming)
	require.NoError(t, err)
	assert.Equal(t, KindFuzzy, m.Kind, "scores exactly at the threshold classify as a match")
}

func TestResolve_TieBreakMostRecentlyUpdated(t *testing.T) {
	older := conv("thread", day, "q1", "a1", "x")
	newer := conv("thread", day, "q1", "a1", "y")
	older.UpdatedAt = day
	newer.UpdatedAt = day.Add(time.Hour)

	incoming := conv("thread", day, "q1", "a1")
	require.Equal(t, older.FuzzyKey, newer.FuzzyKey)

	// Both candidates score identically against the incoming prefix.
	require.Equal(t, Score(older, incoming), Score(newer, incoming))

	r := NewResolver(&fakeSource{records: []record.Conversation{older, newer}})
	m, err := r.Resolve(context.Background(), incoming)
	require.NoError(t, err)
	require.NotNil(t, m.Candidate)
	assert.Equal(t, newer.ID, m.Candidate.ID, "tie-break prefers the most recently updated")
}

func TestResolve_RequiresFingerprint(t *testing.T) {
	r := NewResolver(&fakeSource{})
	_, err := r.Resolve(context.Background(), record.Conversation{Title: "raw"})
	assert.ErrorContains(t, err, "not fingerprinted")
}

func TestResolve_EmptyBucket(t *testing.T) {
	r := NewResolver(&fakeSource{})
	m, err := r.Resolve(context.Background(), conv("new thread", day, "q1"))
	require.NoError(t, err)
	assert.Equal(t, KindNone, m.Kind)
}
