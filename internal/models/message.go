package models

import "time"

// CachedMessage is an immutable copy of one message taken during a scan.
// Within a snapshot it is identified by its position, not by MessageID.
type CachedMessage struct {
	Content   string    `json:"content"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Ref returns the reference the deletion path needs for this message
func (m CachedMessage) Ref() MessageRef {
	return MessageRef{
		ChannelID: m.ChannelID,
		MessageID: m.MessageID,
		CreatedAt: m.Timestamp,
	}
}

// MessageRef identifies a message to delete
type MessageRef struct {
	ChannelID string
	MessageID string
	CreatedAt time.Time
}
