package query

import (
	"errors"
	"strings"

	"chat-purge/internal/index"
	"chat-purge/internal/models"
)

var (
	// ErrInvalidQuery is returned for an empty phrase without any filter
	ErrInvalidQuery = errors.New("search text or a filter is required")
	// ErrNoMatches is returned when nothing survives filtering
	ErrNoMatches = errors.New("no messages matched")
)

// Query describes one search. Empty ChannelID or AuthorID means no filter.
type Query struct {
	Phrase    string
	ChannelID string
	AuthorID  string
}

func (q Query) hasFilter() bool {
	return q.ChannelID != "" || q.AuthorID != ""
}

// Engine resolves queries against a snapshot
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Find returns the refs of every message that passes the filters and contains
// the phrase as a case-insensitive substring, in snapshot order.
//
// Word postings are intersected first; that only narrows the candidates, the
// substring check on the full content decides.
func (e *Engine) Find(snap *index.Snapshot, q Query) ([]models.MessageRef, error) {
	words := index.Tokenize(q.Phrase)
	if len(words) == 0 && !q.hasFilter() {
		return nil, ErrInvalidQuery
	}

	phrase := strings.ToLower(strings.TrimSpace(q.Phrase))

	var refs []models.MessageRef
	accept := func(pos int) {
		m := &snap.Messages[pos]
		if q.ChannelID != "" && m.ChannelID != q.ChannelID {
			return
		}
		if q.AuthorID != "" && m.AuthorID != q.AuthorID {
			return
		}
		if phrase != "" && !strings.Contains(strings.ToLower(m.Content), phrase) {
			return
		}
		refs = append(refs, m.Ref())
	}

	if len(words) == 0 {
		for pos := range snap.Messages {
			accept(pos)
		}
	} else {
		for _, pos := range candidates(snap, phrase) {
			accept(pos)
		}
	}

	if len(refs) == 0 {
		return nil, ErrNoMatches
	}
	return refs, nil
}

// candidates intersects word postings, rarest first.
//
// A single word can sit anywhere inside a token, so every containing term is
// expanded. In a longer phrase the interior words lie between whitespace in
// any matching message and are whole tokens there, and the last word starts
// one; both are found without scanning the vocabulary. The first word ends a
// token and is left to the substring check.
func candidates(snap *index.Snapshot, phrase string) []int {
	fields := strings.Fields(phrase)
	if len(fields) == 0 {
		return nil
	}

	var lists [][]int
	add := func(postings []int) bool {
		if len(postings) == 0 {
			return false
		}
		lists = append(lists, postings)
		return true
	}

	if len(fields) == 1 {
		if !add(snap.Postings(fields[0])) {
			return nil
		}
	} else {
		for _, w := range fields[1 : len(fields)-1] {
			if !add(snap.Lookup(w)) {
				return nil
			}
		}
		if !add(snap.PrefixPostings(fields[len(fields)-1])) {
			return nil
		}
	}

	shortest := 0
	for i := range lists {
		if len(lists[i]) < len(lists[shortest]) {
			shortest = i
		}
	}

	result := lists[shortest]
	for i, l := range lists {
		if i == shortest {
			continue
		}
		result = index.Intersect(result, l)
		if len(result) == 0 {
			return nil
		}
	}
	return result
}
