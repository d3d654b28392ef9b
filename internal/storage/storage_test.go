package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"chat-purge/internal/config"
	"chat-purge/internal/models"
)

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	sent := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, m := range []models.JournalMessage{
		{ChatID: -100, MessageID: 1, AuthorID: 7, Text: "hello", SentAt: sent},
		{ChatID: -100, MessageID: 2, AuthorID: 8, Text: "world", SentAt: sent},
		{ChatID: -200, MessageID: 1, AuthorID: 7, Text: "other", SentAt: sent},
	} {
		msg := m
		require.NoError(t, j.Record(ctx, &msg))
		assert.Equal(t, uint(i+1), msg.ID)
	}

	// edits replace the text in place
	require.NoError(t, j.Record(ctx, &models.JournalMessage{ChatID: -100, MessageID: 1, Text: "hello again"}))

	chats, err := j.Chats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{-200, -100}, chats)

	var texts []string
	require.NoError(t, j.Each(ctx, -100, func(m models.JournalMessage) error {
		texts = append(texts, m.Text)
		return nil
	}))
	assert.Equal(t, []string{"hello again", "world"}, texts)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, j.Remove(ctx, -200, []int{1}))
	chats, err = j.Chats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{-100}, chats)
}

func TestMemoryJournalEachStopsOnError(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	for i := 1; i <= 3; i++ {
		require.NoError(t, j.Record(ctx, &models.JournalMessage{ChatID: 1, MessageID: i}))
	}

	stop := errors.New("stop")
	calls := 0
	err := j.Each(ctx, 1, func(models.JournalMessage) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMemoryScanHistory(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryScanHistory()

	latest, err := h.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Add(ctx, &models.ScanRecord{SnapshotID: id}))
	}

	latest, err = h.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.SnapshotID)

	recent, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].SnapshotID)
	assert.Equal(t, "b", recent[1].SnapshotID)
}

func TestGormLevelMapping(t *testing.T) {
	assert.Equal(t, logger.Info, gormLevel("DEBUG"))
	assert.Equal(t, logger.Warn, gormLevel("INFO"))
	assert.Equal(t, logger.Warn, gormLevel("warning"))
	assert.Equal(t, logger.Error, gormLevel("ERROR"))
	assert.Equal(t, logger.Error, gormLevel("FATAL"))
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(config.DatabaseConfig{
		Host: "db", Port: 3307, Username: "purge", Password: "secret", DBName: "chat", Charset: "utf8mb4",
	})
	assert.Equal(t, "purge:secret@tcp(db:3307)/chat?charset=utf8mb4&parseTime=True&loc=UTC", dsn)
}

func TestInitializeDisabled(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, Initialize(cfg))
	assert.False(t, IsEnabled(cfg))
}
