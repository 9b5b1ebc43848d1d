package match

import (
	"time"

	"github.com/weftlabs/weft/internal/record"
)

// Similarity weighting. Chosen so that an identical message prefix with a
// same-day timestamp always clears the threshold even when the title was
// edited, while title agreement alone never does.
const (
	weightPrefix = 0.5
	weightTime   = 0.3
	weightTitle  = 0.2

	// Tau is the match threshold. The boundary is inclusive: a score of
	// exactly Tau classifies as a match. Documented policy, not an error
	// path.
	Tau = 0.6

	// timeDecayWindow is where timestamp proximity reaches zero.
	timeDecayWindow = 48 * time.Hour
)

// Score combines message-prefix overlap, creation-time proximity, and
// title similarity into [0, 1].
func Score(candidate, incoming record.Conversation) float64 {
	return weightPrefix*prefixRatio(candidate.Messages, incoming.Messages) +
		weightTime*timeProximity(candidate.CreatedAt, incoming.CreatedAt) +
		weightTitle*titleSimilarity(candidate.Title, incoming.Title)
}

// prefixRatio is the length of the longest common (role, content) message
// prefix over the longer sequence length. Content comparison uses the same
// normalization as content hashing.
func prefixRatio(a, b []record.Message) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	common := 0
	for i := 0; i < n; i++ {
		if a[i].Role != b[i].Role {
			break
		}
		if record.NormalizeContent(a[i].Content) != record.NormalizeContent(b[i].Content) {
			break
		}
		common++
	}

	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	if max == 0 {
		return 0
	}
	return float64(common) / float64(max)
}

// timeProximity decays linearly from 1 at zero distance to 0 at the decay
// window. Zero timestamps score zero - absence of evidence is not
// proximity.
func timeProximity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	if d >= timeDecayWindow {
		return 0
	}
	return 1 - float64(d)/float64(timeDecayWindow)
}

// titleSimilarity is the common-prefix rune ratio of normalized titles.
// Two empty titles count as agreement; one empty title does not.
func titleSimilarity(a, b string) float64 {
	na := []rune(record.NormalizeTitle(a))
	nb := []rune(record.NormalizeTitle(b))
	if len(na) == 0 && len(nb) == 0 {
		return 1
	}
	if len(na) == 0 || len(nb) == 0 {
		return 0
	}

	n := len(na)
	if len(nb) < n {
		n = len(nb)
	}
	common := 0
	for i := 0; i < n; i++ {
		if na[i] != nb[i] {
			break
		}
		common++
	}

	max := len(na)
	if len(nb) > max {
		max = len(nb)
	}
	return float64(common) / float64(max)
}
