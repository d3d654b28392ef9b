package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-purge/internal/models"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func msg(content, author, channel, id string) models.CachedMessage {
	return models.CachedMessage{Content: content, AuthorID: author, ChannelID: channel, MessageID: id, Timestamp: t0}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello  WORLD\thello\n"))
	assert.Equal(t, []string{"spam!", "spam"}, Tokenize("spam! Spam spam!"))
	assert.Empty(t, Tokenize("   \n\t "))
	assert.Equal(t, []string{"один"}, Tokenize("ОДИН"))
}

func TestBuilderIndexesEveryWord(t *testing.T) {
	contents := []string{
		"hello world",
		"Goodbye world world",
		"hello there",
		"",
		"MiXeD case Words",
	}

	b := NewBuilder()
	for i, c := range contents {
		pos := b.Add(msg(c, "u", "c", string(rune('a'+i))))
		assert.Equal(t, i, pos)
	}
	snap := b.Build(t0)
	require.NoError(t, snap.Validate())

	for pos, c := range contents {
		for _, word := range Tokenize(c) {
			assert.Contains(t, snap.Lookup(word), pos, "word %q of message %d", word, pos)
		}
	}

	// duplicate tokens in one message collapse to one entry
	assert.Equal(t, []int{0, 1}, snap.Lookup("world"))
	assert.Equal(t, []int{0, 2}, snap.Lookup("hello"))
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 5, len(snap.Messages))
}

func TestPostingsExpandsToContainingTerms(t *testing.T) {
	b := NewBuilder()
	b.Add(msg("hello world!", "u", "c", "1"))
	b.Add(msg("shell script", "u", "c", "2"))
	b.Add(msg("nothing here", "u", "c", "3"))
	snap := b.Build(t0)

	assert.Equal(t, []int{0, 1}, snap.Postings("ell"))
	assert.Equal(t, []int{0}, snap.Postings("world"))
	assert.Equal(t, []int{0, 1, 2}, snap.Postings("h"))
	assert.Nil(t, snap.Postings("absent"))
}

func TestPrefixPostings(t *testing.T) {
	b := NewBuilder()
	b.Add(msg("spam spammer", "u", "c", "1"))
	b.Add(msg("spa day", "u", "c", "2"))
	b.Add(msg("the spammers", "u", "c", "3"))
	b.Add(msg("antispam", "u", "c", "4"))
	snap := b.Build(t0)

	assert.Equal(t, []int{0, 2}, snap.PrefixPostings("spam"))
	assert.Equal(t, []int{0, 1, 2}, snap.PrefixPostings("spa"))
	assert.Equal(t, []int{2}, snap.PrefixPostings("spammers"))
	assert.Nil(t, snap.PrefixPostings("spammerz"))
	assert.Nil(t, snap.PrefixPostings("zzz"))
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []int{2, 5}, Intersect([]int{1, 2, 5, 9}, []int{2, 3, 5}))
	assert.Empty(t, Intersect([]int{1, 2}, []int{3, 4}))
	assert.Empty(t, Intersect(nil, []int{1}))
}

func TestValidateRejectsSkew(t *testing.T) {
	messages := []models.CachedMessage{msg("a", "u", "c", "1")}

	snap := NewSnapshot("id", t0, messages, InvertedIndex{"a": {0, 1}})
	assert.Error(t, snap.Validate(), "position past the end")

	snap = NewSnapshot("id", t0, messages, InvertedIndex{"a": {0, 0}})
	assert.Error(t, snap.Validate(), "duplicate positions")

	snap = NewSnapshot("", t0, messages, InvertedIndex{"a": {0}})
	assert.Error(t, snap.Validate(), "missing id")

	snap = NewSnapshot("id", t0, messages, InvertedIndex{"a": {0}})
	assert.NoError(t, snap.Validate())
}

func TestFreshness(t *testing.T) {
	snap := NewSnapshot("id", t0, nil, nil)

	assert.True(t, snap.IsFresh(t0.Add(23*time.Hour), 24*time.Hour))
	assert.True(t, snap.IsFresh(t0.Add(24*time.Hour), 24*time.Hour))
	assert.False(t, snap.IsFresh(t0.Add(25*time.Hour), 24*time.Hour))
	assert.Equal(t, 2*time.Hour, snap.Age(t0.Add(2*time.Hour)))
}

func TestChannels(t *testing.T) {
	b := NewBuilder()
	b.Add(msg("a", "u", "x", "1"))
	b.Add(msg("b", "u", "y", "2"))
	b.Add(msg("c", "u", "x", "3"))
	assert.Equal(t, 2, b.Build(t0).Channels())
}
