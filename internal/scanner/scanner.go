// Package scanner walks every channel of a platform and builds a fresh
// snapshot of the message history.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-purge/internal/index"
	"chat-purge/internal/logger"
	"chat-purge/internal/models"
	"chat-purge/internal/platform"
)

// DefaultProgressEvery is how many messages pass between progress reports inside a channel
const DefaultProgressEvery = 500

// Summary describes a completed scan
type Summary struct {
	TotalMessages   int
	TotalChannels   int
	SkippedChannels int
	UniqueWords     int
}

// Progress is reported after each channel and every ProgressEvery messages
type Progress struct {
	Channels      int
	TotalChannels int
	Messages      int
	Channel       string
}

type ProgressFunc func(Progress)

type Scanner struct {
	source        platform.Source
	progressEvery int
	now           func() time.Time
}

func New(source platform.Source, progressEvery int) *Scanner {
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}
	return &Scanner{source: source, progressEvery: progressEvery, now: time.Now}
}

// SetClock replaces the time source used to stamp snapshots
func (s *Scanner) SetClock(now func() time.Time) {
	s.now = now
}

// Run scans every channel. Channels that deny access or fail part-way are
// skipped; a failure to enumerate channels or a cancelled ctx aborts the scan.
// The returned snapshot is stamped with the time the scan finished.
func (s *Scanner) Run(ctx context.Context, progress ProgressFunc) (*index.Snapshot, Summary, error) {
	channels, err := s.source.Channels(ctx)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("failed to enumerate channels: %w", err)
	}

	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	builder := index.NewBuilder()
	summary := Summary{TotalChannels: len(channels)}

	for i, ch := range channels {
		if err := ctx.Err(); err != nil {
			return nil, summary, fmt.Errorf("scan cancelled: %w", err)
		}

		// messages of a channel that fails part-way are dropped with it
		var batch []models.CachedMessage
		err := s.source.History(ctx, ch, func(m platform.HistoryMessage) error {
			batch = append(batch, models.CachedMessage{
				Content:   m.Content,
				ChannelID: ch.ID,
				MessageID: m.ID,
				AuthorID:  m.AuthorID,
				Timestamp: m.Timestamp,
			})
			if len(batch)%s.progressEvery == 0 {
				report(Progress{
					Channels:      i,
					TotalChannels: len(channels),
					Messages:      builder.Len() + len(batch),
					Channel:       ch.Name,
				})
			}
			return nil
		})

		switch {
		case err == nil, errors.Is(err, platform.ErrStopIteration):
			for _, m := range batch {
				builder.Add(m)
			}
		case ctx.Err() != nil:
			return nil, summary, fmt.Errorf("scan cancelled: %w", ctx.Err())
		case errors.Is(err, platform.ErrAccessDenied):
			summary.SkippedChannels++
			logger.Infof("Skipping channel %s (%s): no access", ch.Name, ch.ID)
		default:
			summary.SkippedChannels++
			logger.Warningf("Skipping channel %s (%s) after error: %v", ch.Name, ch.ID, err)
		}

		report(Progress{
			Channels:      i + 1,
			TotalChannels: len(channels),
			Messages:      builder.Len(),
			Channel:       ch.Name,
		})
	}

	snap := builder.Build(s.now())
	summary.TotalMessages = snap.Len()
	summary.UniqueWords = snap.UniqueWords()

	logger.Infof("Scan complete: %d messages in %d channels, %d unique words, %d skipped",
		summary.TotalMessages, summary.TotalChannels, summary.UniqueWords, summary.SkippedChannels)
	return snap, summary, nil
}
