// Package match finds the canonical-store record an incoming conversation
// corresponds to, if any. Exact identity goes through the content-hash
// index; near-identity (continuations, retitled captures) goes through the
// fuzzy bucket with weighted similarity scoring.
package match

import (
	"context"
	"fmt"

	"github.com/weftlabs/weft/internal/record"
)

// Kind classifies a resolution outcome.
type Kind string

const (
	// KindExact means a live record with the identical content hash exists.
	KindExact Kind = "exact"
	// KindFuzzy means a bucket candidate scored at or above Tau.
	KindFuzzy Kind = "fuzzy"
	// KindNone means the conversation is new to the store.
	KindNone Kind = "none"
)

// Match is the resolver's answer for one incoming conversation.
type Match struct {
	Kind      Kind
	Candidate *record.Conversation // nil when Kind == KindNone
	Score     float64              // 1.0 for exact matches
}

// CandidateSource is the slice of the store the resolver needs.
// *store.Store satisfies it.
type CandidateSource interface {
	GetByContentHash(ctx context.Context, hash string) (*record.Conversation, error)
	ListByFuzzyKey(ctx context.Context, key string) ([]record.Conversation, error)
}

// Resolver resolves incoming conversations against a candidate source.
type Resolver struct {
	source CandidateSource
}

// NewResolver creates a resolver backed by the given source.
func NewResolver(source CandidateSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve finds the best existing-store match for the incoming
// conversation. The conversation must already be fingerprinted.
//
// Lookup order:
//  1. Exact: content-hash index. A hit means the conversation already
//     exists verbatim.
//  2. Fuzzy: every live record in the incoming FuzzyKey bucket is scored;
//     the best scorer wins if its score >= Tau (inclusive boundary).
//     Ties on score prefer the most recently updated candidate, then the
//     larger id, so resolution is deterministic.
//
// Anything below Tau reports KindNone and is treated as new.
func (r *Resolver) Resolve(ctx context.Context, incoming record.Conversation) (Match, error) {
	if incoming.ContentHash == "" || incoming.FuzzyKey == "" {
		return Match{}, fmt.Errorf("resolve: conversation %q is not fingerprinted", incoming.Title)
	}

	exact, err := r.source.GetByContentHash(ctx, incoming.ContentHash)
	if err != nil {
		return Match{}, fmt.Errorf("resolve: exact lookup: %w", err)
	}
	if exact != nil {
		return Match{Kind: KindExact, Candidate: exact, Score: 1.0}, nil
	}

	bucket, err := r.source.ListByFuzzyKey(ctx, incoming.FuzzyKey)
	if err != nil {
		return Match{}, fmt.Errorf("resolve: fuzzy lookup: %w", err)
	}

	var best *record.Conversation
	var bestScore float64
	for i := range bucket {
		candidate := &bucket[i]
		score := Score(*candidate, incoming)
		if best == nil || score > bestScore || (score == bestScore && preferCandidate(candidate, best)) {
			best = candidate
			bestScore = score
		}
	}

	if best == nil || bestScore < Tau {
		return Match{Kind: KindNone}, nil
	}
	return Match{Kind: KindFuzzy, Candidate: best, Score: bestScore}, nil
}

// preferCandidate breaks score ties: most recently updated first, then the
// lexicographically larger id for full determinism.
func preferCandidate(a, b *record.Conversation) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}
