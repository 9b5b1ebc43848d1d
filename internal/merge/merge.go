// Package merge decides how an incoming conversation combines with a
// matched canonical record.
//
// The outcome machine over match results:
//
//	no match        -> OutcomeNew           (stored as-is)
//	exact match     -> OutcomeExactDuplicate (incoming discarded, no-op logged)
//	partial overlap -> OutcomeMerged        (union-by-seq, new record)
//	divergence      -> OutcomeDualRetained  (both kept, flagged for manual resolution)
//
// Merging is a pure function: union of messages keyed by sequence number,
// commutative and idempotent by construction. No merge path ever drops
// message content - divergent pairs escalate to dual retention instead.
package merge

import (
	"sort"

	"github.com/weftlabs/weft/internal/match"
	"github.com/weftlabs/weft/internal/record"
)

// Outcome classifies what the sync engine should do with an incoming
// conversation.
type Outcome string

const (
	OutcomeNew            Outcome = "new"
	OutcomeExactDuplicate Outcome = "exact_duplicate"
	OutcomeMerged         Outcome = "merged"
	OutcomeDualRetained   Outcome = "dual_retained"
)

// Decision is the merge engine's verdict for one incoming conversation.
type Decision struct {
	Outcome Outcome

	// Existing is the matched canonical record (nil for OutcomeNew).
	Existing *record.Conversation

	// Merged is the union message set for OutcomeMerged, sorted by seq.
	Merged []record.Message

	// ConflictSeqs lists the sequence numbers whose contents diverged,
	// for OutcomeDualRetained audit entries.
	ConflictSeqs []int64
}

// Decide maps a match result to a merge decision.
func Decide(m match.Match, incoming record.Conversation) Decision {
	switch m.Kind {
	case match.KindNone:
		return Decision{Outcome: OutcomeNew}
	case match.KindExact:
		return Decision{Outcome: OutcomeExactDuplicate, Existing: m.Candidate}
	}

	merged, conflicts := Messages(m.Candidate.Messages, incoming.Messages)
	if len(conflicts) > 0 {
		return Decision{Outcome: OutcomeDualRetained, Existing: m.Candidate, ConflictSeqs: conflicts}
	}
	return Decision{Outcome: OutcomeMerged, Existing: m.Candidate, Merged: merged}
}

// Messages unions two message sequences keyed by sequence number.
//
// For a seq present in both inputs with differing normalized content: if
// one side's content is a prefix of the other's, the superset wins;
// otherwise the seq is reported as conflicting and the whole pair must be
// dual-retained (the returned merge is not usable).
//
// The union is commutative and idempotent: the winner of each seq is
// chosen by content, never by argument position.
func Messages(a, b []record.Message) (merged []record.Message, conflictSeqs []int64) {
	bySeq := make(map[int64]record.Message, len(a)+len(b))
	for _, m := range a {
		bySeq[m.Seq] = m
	}

	for _, m := range b {
		prev, ok := bySeq[m.Seq]
		if !ok {
			bySeq[m.Seq] = m
			continue
		}
		winner, conflict := pick(prev, m)
		if conflict {
			conflictSeqs = append(conflictSeqs, m.Seq)
			continue
		}
		bySeq[m.Seq] = winner
	}

	if len(conflictSeqs) > 0 {
		sort.Slice(conflictSeqs, func(i, j int) bool { return conflictSeqs[i] < conflictSeqs[j] })
		return nil, conflictSeqs
	}

	merged = make([]record.Message, 0, len(bySeq))
	for _, m := range bySeq {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Seq < merged[j].Seq })
	return merged, nil
}

// pick chooses the surviving message for a seq present on both sides.
// The choice depends only on the pair's contents, keeping the union
// commutative.
func pick(x, y record.Message) (winner record.Message, conflict bool) {
	nx := record.NormalizeContent(x.Content)
	ny := record.NormalizeContent(y.Content)

	switch {
	case nx == ny:
		// Same content; prefer the deterministically "richer" capture so
		// both argument orders agree.
		if preferMessage(x, y) {
			return x, false
		}
		return y, false
	case isPrefix(nx, ny):
		return y, false // y is the superset
	case isPrefix(ny, nx):
		return x, false
	default:
		return record.Message{}, true
	}
}

// preferMessage is a deterministic total order on equal-content captures:
// longer raw content first (more original formatting preserved), then
// earlier timestamp, then lexicographic content and role.
func preferMessage(x, y record.Message) bool {
	if len(x.Content) != len(y.Content) {
		return len(x.Content) > len(y.Content)
	}
	if !x.Timestamp.Equal(y.Timestamp) {
		return x.Timestamp.Before(y.Timestamp)
	}
	if x.Content != y.Content {
		return x.Content < y.Content
	}
	return x.Role <= y.Role
}

func isPrefix(short, long string) bool {
	return len(short) < len(long) && long[:len(short)] == short
}
