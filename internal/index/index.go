// Package index builds the point-in-time message snapshot and its inverted
// index. A Snapshot is never mutated after Build or NewSnapshot returns.
package index

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-purge/internal/models"
)

// InvertedIndex maps a lowercase word to the ascending positions of the
// messages containing it as a whitespace-delimited token.
type InvertedIndex map[string][]int

// Builder accumulates scanned messages and their index contributions
type Builder struct {
	messages []models.CachedMessage
	postings InvertedIndex
}

func NewBuilder() *Builder {
	return &Builder{postings: make(InvertedIndex)}
}

// Add appends msg and indexes each of its unique words. It returns msg's position.
func (b *Builder) Add(msg models.CachedMessage) int {
	pos := len(b.messages)
	b.messages = append(b.messages, msg)
	for _, word := range Tokenize(msg.Content) {
		b.postings[word] = append(b.postings[word], pos)
	}
	return pos
}

// Len returns the number of messages added so far
func (b *Builder) Len() int {
	return len(b.messages)
}

// UniqueWords returns the vocabulary size so far
func (b *Builder) UniqueWords() int {
	return len(b.postings)
}

// Build freezes the builder into a snapshot with a fresh id. The builder must
// not be used afterwards.
func (b *Builder) Build(scannedAt time.Time) *Snapshot {
	snap := NewSnapshot(uuid.NewString(), scannedAt, b.messages, b.postings)
	b.messages, b.postings = nil, nil
	return snap
}

// Snapshot is the message sequence, its inverted index and the scan time
type Snapshot struct {
	ID        string
	ScannedAt time.Time
	Messages  []models.CachedMessage
	Index     InvertedIndex

	// sorted vocabulary for substring lookups
	terms []string
}

// NewSnapshot wraps already-built data. Callers that did not produce the data
// themselves should call Validate.
func NewSnapshot(id string, scannedAt time.Time, messages []models.CachedMessage, idx InvertedIndex) *Snapshot {
	if idx == nil {
		idx = make(InvertedIndex)
	}
	terms := make([]string, 0, len(idx))
	for term := range idx {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	return &Snapshot{
		ID:        id,
		ScannedAt: scannedAt,
		Messages:  messages,
		Index:     idx,
		terms:     terms,
	}
}

// Validate checks that every indexed position refers to a message and that
// posting lists are strictly ascending.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("snapshot has no id")
	}
	if s.ScannedAt.IsZero() {
		return fmt.Errorf("snapshot %s has no scan time", s.ID)
	}
	n := len(s.Messages)
	for term, positions := range s.Index {
		if term == "" {
			return fmt.Errorf("snapshot %s indexes an empty word", s.ID)
		}
		prev := -1
		for _, pos := range positions {
			if pos < 0 || pos >= n {
				return fmt.Errorf("word %q references position %d outside %d messages", term, pos, n)
			}
			if pos <= prev {
				return fmt.Errorf("word %q has unsorted or duplicate positions", term)
			}
			prev = pos
		}
	}
	return nil
}

// Age returns how long ago the snapshot was taken
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.ScannedAt)
}

// IsFresh reports whether the snapshot is no older than maxAge
func (s *Snapshot) IsFresh(now time.Time, maxAge time.Duration) bool {
	return s.Age(now) <= maxAge
}

// Len returns the number of messages
func (s *Snapshot) Len() int {
	return len(s.Messages)
}

// UniqueWords returns the vocabulary size
func (s *Snapshot) UniqueWords() int {
	return len(s.Index)
}

// Channels returns the number of distinct channels with at least one message
func (s *Snapshot) Channels() int {
	seen := make(map[string]struct{})
	for i := range s.Messages {
		seen[s.Messages[i].ChannelID] = struct{}{}
	}
	return len(seen)
}

// Lookup returns the postings of an exact word
func (s *Snapshot) Lookup(word string) []int {
	return s.Index[word]
}

// Postings returns the ascending positions of messages having a token that
// contains word. A whitespace-free piece of a phrase that occurs in a message
// always lies inside one of its tokens, so this never drops a true match.
func (s *Snapshot) Postings(word string) []int {
	var lists [][]int
	for _, term := range s.terms {
		if strings.Contains(term, word) {
			lists = append(lists, s.Index[term])
		}
	}

	switch len(lists) {
	case 0:
		return nil
	case 1:
		return lists[0]
	}

	var merged []int
	for _, l := range lists {
		merged = append(merged, l...)
	}
	slices.Sort(merged)
	return slices.Compact(merged)
}

// PrefixPostings returns the ascending positions of messages having a token
// that starts with prefix. The vocabulary is sorted, so only matching terms
// are visited.
func (s *Snapshot) PrefixPostings(prefix string) []int {
	start, _ := slices.BinarySearch(s.terms, prefix)
	var merged []int
	n := 0
	for _, term := range s.terms[start:] {
		if !strings.HasPrefix(term, prefix) {
			break
		}
		merged = append(merged, s.Index[term]...)
		n++
	}
	if n > 1 {
		slices.Sort(merged)
		merged = slices.Compact(merged)
	}
	return merged
}

// Intersect returns the positions present in both ascending lists
func Intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
