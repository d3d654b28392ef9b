package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-purge/internal/platform"
)

type fakeSession struct {
	channels []*discordgo.Channel
	history  map[string][]*discordgo.Message // newest first
	denied   map[string]bool

	requests    []string
	bulkDeletes [][]string
	deletes     []string
}

func forbidden(code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "Missing Access"},
	}
}

func (f *fakeSession) GuildChannels(string, ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return f.channels, nil
}

func (f *fakeSession) ChannelMessages(channelID string, limit int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.requests = append(f.requests, channelID+"<"+beforeID)
	if f.denied[channelID] {
		return nil, forbidden(discordgo.ErrCodeMissingAccess)
	}

	msgs := f.history[channelID]
	start := 0
	if beforeID != "" {
		for i, m := range msgs {
			if m.ID == beforeID {
				start = i + 1
			}
		}
	}
	end := min(start+limit, len(msgs))
	return msgs[start:end], nil
}

func (f *fakeSession) ChannelMessagesBulkDelete(channelID string, ids []string, _ ...discordgo.RequestOption) error {
	if f.denied[channelID] {
		return forbidden(discordgo.ErrCodeMissingPermissions)
	}
	f.bulkDeletes = append(f.bulkDeletes, ids)
	return nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, id string, _ ...discordgo.RequestOption) error {
	if f.denied[channelID] {
		return forbidden(discordgo.ErrCodeMissingPermissions)
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func messages(n int) []*discordgo.Message {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*discordgo.Message, n)
	for i := range out {
		out[i] = &discordgo.Message{
			ID:        fmt.Sprintf("m%03d", n-i),
			Content:   fmt.Sprintf("message %d", n-i),
			Author:    &discordgo.User{ID: "u1"},
			Timestamp: base.Add(time.Duration(n-i) * time.Minute),
		}
	}
	return out
}

func TestChannelsFiltersNonText(t *testing.T) {
	s := &fakeSession{channels: []*discordgo.Channel{
		{ID: "1", Name: "general", Type: discordgo.ChannelTypeGuildText},
		{ID: "2", Name: "Voice", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "3", Name: "news", Type: discordgo.ChannelTypeGuildNews},
		{ID: "4", Name: "Text Channels", Type: discordgo.ChannelTypeGuildCategory},
	}}

	got, err := New(s, "g").Channels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []platform.Channel{{ID: "1", Name: "general"}, {ID: "3", Name: "news"}}, got)
}

func TestHistoryPaginates(t *testing.T) {
	s := &fakeSession{history: map[string][]*discordgo.Message{"c": messages(250)}}
	p := New(s, "g")

	var ids []string
	require.NoError(t, p.History(context.Background(), platform.Channel{ID: "c"}, func(m platform.HistoryMessage) error {
		ids = append(ids, m.ID)
		assert.Equal(t, "u1", m.AuthorID)
		return nil
	}))

	assert.Len(t, ids, 250)
	assert.Equal(t, "m250", ids[0])
	assert.Equal(t, "m001", ids[249])
	assert.Equal(t, []string{"c<", "c<m151", "c<m051"}, s.requests)
}

func TestHistoryExactPageMultipleMakesEmptyRequest(t *testing.T) {
	s := &fakeSession{history: map[string][]*discordgo.Message{"c": messages(100)}}
	n := 0
	require.NoError(t, New(s, "g").History(context.Background(), platform.Channel{ID: "c"}, func(platform.HistoryMessage) error {
		n++
		return nil
	}))
	assert.Equal(t, 100, n)
	assert.Len(t, s.requests, 2)
}

func TestHistoryDenied(t *testing.T) {
	s := &fakeSession{denied: map[string]bool{"c": true}}
	err := New(s, "g").History(context.Background(), platform.Channel{ID: "c", Name: "secret"}, func(platform.HistoryMessage) error { return nil })
	assert.ErrorIs(t, err, platform.ErrAccessDenied)
}

func TestDeleteBatch(t *testing.T) {
	s := &fakeSession{}
	p := New(s, "g")
	ctx := context.Background()

	require.NoError(t, p.DeleteBatch(ctx, "c", []string{"1", "2", "3"}))
	require.NoError(t, p.DeleteBatch(ctx, "c", []string{"4"}))
	require.NoError(t, p.DeleteBatch(ctx, "c", nil))

	assert.Equal(t, [][]string{{"1", "2", "3"}}, s.bulkDeletes)
	assert.Equal(t, []string{"4"}, s.deletes)
}

func TestDeleteDenied(t *testing.T) {
	s := &fakeSession{denied: map[string]bool{"c": true}}
	p := New(s, "g")

	assert.ErrorIs(t, p.DeleteBatch(context.Background(), "c", []string{"1", "2"}), platform.ErrAccessDenied)
	assert.ErrorIs(t, p.DeleteOne(context.Background(), "c", "1"), platform.ErrAccessDenied)
}

func TestMapError(t *testing.T) {
	plain := errors.New("dial tcp: timeout")
	assert.Same(t, plain, mapError(plain))

	unknown := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"},
	}
	assert.NotErrorIs(t, mapError(unknown), platform.ErrAccessDenied)

	bare := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.ErrorIs(t, mapError(bare), platform.ErrAccessDenied)
}
