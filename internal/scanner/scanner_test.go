package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-purge/internal/platform"
)

var scanTime = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

type fakeSource struct {
	channels  []platform.Channel
	history   map[string][]platform.HistoryMessage
	errs      map[string]error
	failAfter map[string]int // emit n messages then fail
	listErr   error
	onChannel func(ch platform.Channel)
}

func (f *fakeSource) Channels(context.Context) ([]platform.Channel, error) {
	return f.channels, f.listErr
}

func (f *fakeSource) History(ctx context.Context, ch platform.Channel, fn func(platform.HistoryMessage) error) error {
	if f.onChannel != nil {
		f.onChannel(ch)
	}
	if err := f.errs[ch.ID]; err != nil {
		return err
	}
	for i, m := range f.history[ch.ID] {
		if n, ok := f.failAfter[ch.ID]; ok && i == n {
			return errors.New("connection reset")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func hist(prefix string, contents ...string) []platform.HistoryMessage {
	out := make([]platform.HistoryMessage, len(contents))
	for i, c := range contents {
		out[i] = platform.HistoryMessage{
			ID:        fmt.Sprintf("%s%d", prefix, i),
			AuthorID:  "u" + prefix,
			Content:   c,
			Timestamp: scanTime.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func newTestScanner(src platform.Source, every int) *Scanner {
	s := New(src, every)
	s.now = func() time.Time { return scanTime }
	return s
}

func TestScanBuildsSnapshot(t *testing.T) {
	src := &fakeSource{
		channels: []platform.Channel{{ID: "x", Name: "general"}, {ID: "y", Name: "random"}},
		history: map[string][]platform.HistoryMessage{
			"x": hist("x", "hello world", "goodbye world"),
			"y": hist("y", "hello there"),
		},
	}

	snap, sum, err := newTestScanner(src, 0).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, Summary{TotalMessages: 3, TotalChannels: 2, UniqueWords: 4}, sum)
	assert.Equal(t, scanTime, snap.ScannedAt)
	assert.NotEmpty(t, snap.ID)
	require.NoError(t, snap.Validate())

	assert.Equal(t, []int{0, 2}, snap.Lookup("hello"))
	assert.Equal(t, "x", snap.Messages[1].ChannelID)
	assert.Equal(t, "x1", snap.Messages[1].MessageID)
	assert.Equal(t, "ux", snap.Messages[1].AuthorID)
}

func TestScanSkipsDeniedAndFailingChannels(t *testing.T) {
	src := &fakeSource{
		channels: []platform.Channel{{ID: "a"}, {ID: "locked"}, {ID: "flaky"}, {ID: "b"}},
		history: map[string][]platform.HistoryMessage{
			"a":     hist("a", "one"),
			"flaky": hist("f", "two", "three", "four"),
			"b":     hist("b", "five"),
		},
		errs:      map[string]error{"locked": fmt.Errorf("get chat: %w", platform.ErrAccessDenied)},
		failAfter: map[string]int{"flaky": 2},
	}

	snap, sum, err := newTestScanner(src, 0).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.TotalChannels)
	assert.Equal(t, 2, sum.SkippedChannels)
	assert.Equal(t, 2, sum.TotalMessages, "partial channel history is dropped")
	assert.Equal(t, 2, snap.Channels())
}

func TestScanEnumerationErrorIsFatal(t *testing.T) {
	src := &fakeSource{listErr: errors.New("gateway down")}
	_, _, err := newTestScanner(src, 0).Run(context.Background(), nil)
	assert.ErrorContains(t, err, "gateway down")
}

func TestScanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{
		channels: []platform.Channel{{ID: "a"}, {ID: "b"}},
		history: map[string][]platform.HistoryMessage{
			"a": hist("a", "one"),
			"b": hist("b", "two"),
		},
		onChannel: func(ch platform.Channel) {
			if ch.ID == "b" {
				cancel()
			}
		},
	}

	snap, _, err := newTestScanner(src, 0).Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, snap)
}

func TestScanProgress(t *testing.T) {
	contents := make([]string, 5)
	for i := range contents {
		contents[i] = "m"
	}
	src := &fakeSource{
		channels: []platform.Channel{{ID: "a", Name: "alpha"}, {ID: "b", Name: "beta"}},
		history: map[string][]platform.HistoryMessage{
			"a": hist("a", contents...),
			"b": hist("b", "x"),
		},
	}

	var got []Progress
	_, _, err := newTestScanner(src, 2).Run(context.Background(), func(p Progress) { got = append(got, p) })
	require.NoError(t, err)

	assert.Equal(t, []Progress{
		{Channels: 0, TotalChannels: 2, Messages: 2, Channel: "alpha"},
		{Channels: 0, TotalChannels: 2, Messages: 4, Channel: "alpha"},
		{Channels: 1, TotalChannels: 2, Messages: 5, Channel: "alpha"},
		{Channels: 2, TotalChannels: 2, Messages: 6, Channel: "beta"},
	}, got)
}

func TestScanStopIterationKeepsMessages(t *testing.T) {
	src := &stopSource{}
	snap, sum, err := newTestScanner(src, 0).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalMessages)
	assert.Equal(t, 1, snap.Len())
}

type stopSource struct{}

func (stopSource) Channels(context.Context) ([]platform.Channel, error) {
	return []platform.Channel{{ID: "s"}}, nil
}

func (stopSource) History(_ context.Context, _ platform.Channel, fn func(platform.HistoryMessage) error) error {
	if err := fn(platform.HistoryMessage{ID: "1", Content: "only", Timestamp: scanTime}); err != nil {
		return err
	}
	return platform.ErrStopIteration
}
