// Package record defines the domain types Weft reconciles: conversations,
// their ordered message sequences, the machines that captured them, and the
// append-only sync log that audits every reconciliation decision.
//
// Identity is content-addressed. A conversation's ContentHash is a pure
// function of its normalized message sequence - two conversations with the
// same hash are semantically identical, and any change to message content,
// role, order, or count produces a different hash. The coarse FuzzyKey
// groups conversations that are likely captures of the same underlying
// thread (continuations captured at different times on different machines).
//
// All hashes use SHA-256 with domain separation and NFC-normalized input;
// see fingerprint.go and canonical.go.
package record
