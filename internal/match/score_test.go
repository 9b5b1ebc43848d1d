package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weftlabs/weft/internal/record"
)

func msgs(contents ...string) []record.Message {
	out := make([]record.Message, len(contents))
	for i, c := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		out[i] = record.Message{Role: role, Content: c, Seq: int64(i + 1)}
	}
	return out
}

func TestPrefixRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b []record.Message
		want float64
	}{
		{"identical", msgs("x", "y"), msgs("x", "y"), 1.0},
		{"continuation", msgs("x", "y"), msgs("x", "y", "z", "w"), 0.5},
		{"divergent first message", msgs("x"), msgs("q"), 0.0},
		{"role breaks prefix", []record.Message{{Role: "user", Content: "x", Seq: 1}}, []record.Message{{Role: "system", Content: "x", Seq: 1}}, 0.0},
		{"whitespace normalized", msgs("x  y"), msgs("x\ny"), 1.0},
		{"both empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prefixRatio(tt.a, tt.b))
		})
	}
}

func TestTimeProximity(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.0, timeProximity(base, base))
	assert.Equal(t, 0.5, timeProximity(base, base.Add(24*time.Hour)))
	assert.Equal(t, 0.5, timeProximity(base.Add(24*time.Hour), base), "symmetric")
	assert.Equal(t, 0.0, timeProximity(base, base.Add(48*time.Hour)))
	assert.Equal(t, 0.0, timeProximity(base, base.Add(100*time.Hour)))
	assert.Equal(t, 0.0, timeProximity(time.Time{}, base), "zero time is not evidence")
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "debugging session", "debugging session", 1.0},
		{"case and whitespace", "Debugging  Session", "debugging session", 1.0},
		{"half prefix", "abcd", "ab", 0.5},
		{"disjoint", "alpha", "beta", 0.0},
		{"both empty", "", "", 1.0},
		{"one empty", "alpha", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titleSimilarity(tt.a, tt.b))
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	identical := record.Conversation{Title: "t", CreatedAt: at, Messages: msgs("x", "y")}
	assert.Equal(t, 1.0, Score(identical, identical))

	disjoint := record.Conversation{Title: "other", CreatedAt: at.Add(100 * time.Hour), Messages: msgs("q")}
	assert.Equal(t, 0.0, Score(identical, disjoint))
}
