package record

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"time"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainContent = "weft/content/v1"
	DomainFuzzy   = "weft/fuzzy/v1"
)

// fuzzyContentCap bounds how much of the opening message's content feeds
// the fuzzy key, keeping the key stable under trailing edits within the
// message.
const fuzzyContentCap = 64

// newDomainHash returns a SHA-256 hasher seeded with the domain string and
// a null separator. The null byte prevents domain/data boundary ambiguity.
func newDomainHash(domain string) hash.Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return h
}

// writeField writes a length-prefixed field to the hasher. Length framing
// prevents concatenation ambiguity between adjacent fields.
func writeField(h hash.Hash, s string) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	h.Write(buf[:n])
	h.Write([]byte(s))
}

func writeInt(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

// ContentHash computes the conversation's exact content digest.
//
// The digest is a pure function of the ordered (role, content, seq) tuples
// with content normalized per NormalizeContent. Identical input yields an
// identical hash; any change to content, role, order, or count of messages
// changes the hash. Timestamps, title, and machine identity are excluded:
// the hash answers "is this the same text", not "who captured it when".
func ContentHash(msgs []Message) string {
	h := newDomainHash(DomainContent)
	for _, m := range msgs {
		writeField(h, m.Role)
		writeField(h, NormalizeContent(m.Content))
		writeInt(h, m.Seq)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FuzzyKey computes the coarse similarity key used to bucket candidate
// matches.
//
// Inputs: the opening message (role + capped normalized content), the
// normalized title, and the UTC day bucket of the first message (falling
// back to createdAt). Only the opening message participates: two captures
// of the same thread always share an opening regardless of where each
// capture stopped, so a continuation captured later buckets with its
// earlier capture. Disambiguation within a bucket is the match resolver's
// job.
func FuzzyKey(title string, createdAt time.Time, msgs []Message) string {
	h := newDomainHash(DomainFuzzy)

	writeField(h, NormalizeTitle(title))

	bucket := createdAt
	if len(msgs) > 0 && !msgs[0].Timestamp.IsZero() {
		bucket = msgs[0].Timestamp
	}
	writeField(h, bucket.UTC().Format("2006-01-02"))

	if len(msgs) > 0 {
		writeField(h, msgs[0].Role)
		content := NormalizeContent(msgs[0].Content)
		if len(content) > fuzzyContentCap {
			content = content[:fuzzyContentCap]
		}
		writeField(h, content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint stamps ContentHash and FuzzyKey onto the conversation and
// content-addresses its ID when unset. Pure aside from the returned copy.
func Fingerprint(c Conversation) Conversation {
	c.ContentHash = ContentHash(c.Messages)
	c.FuzzyKey = FuzzyKey(c.Title, c.CreatedAt, c.Messages)
	if c.ID == "" {
		c.ID = c.ContentHash
	}
	return c
}
