// Package platform defines what the purge engine needs from a chat platform:
// channel enumeration, history iteration and message deletion.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrAccessDenied is returned when the bot may not read or delete in a channel
var ErrAccessDenied = errors.New("channel access denied")

// ErrStopIteration can be returned by a History callback to stop early without error
var ErrStopIteration = errors.New("stop history iteration")

// Channel is a handle to one channel or group chat
type Channel struct {
	ID   string
	Name string
}

// HistoryMessage is one message as the platform reports it
type HistoryMessage struct {
	ID        string
	AuthorID  string
	Content   string
	Timestamp time.Time
}

// Source enumerates channels and walks their full history
type Source interface {
	Channels(ctx context.Context) ([]Channel, error)
	// History calls fn for every message of ch until the history is exhausted,
	// fn returns an error, or ctx is done.
	History(ctx context.Context, ch Channel, fn func(HistoryMessage) error) error
}

// Deleter removes messages. DeleteBatch only accepts messages younger than the
// platform's bulk-delete age limit and at most 100 ids.
type Deleter interface {
	DeleteBatch(ctx context.Context, channelID string, messageIDs []string) error
	DeleteOne(ctx context.Context, channelID string, messageID string) error
}

// Platform is a Source that can also delete
type Platform interface {
	Source
	Deleter
	Name() string
}
