package models

import "time"

// JournalMessage is a message the Telegram bot observed in a group.
// Bots cannot read chat history, so the journal is the history source for scans.
type JournalMessage struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	ChatID    int64     `gorm:"index:idx_chat_message,unique;not null"`
	MessageID int       `gorm:"index:idx_chat_message,unique;not null"`
	AuthorID  int64     `gorm:"index;not null"`
	Text      string    `gorm:"type:text"`
	SentAt    time.Time `gorm:"index"`
}

// ScanRecord stores the summary of a completed scan
type ScanRecord struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	SnapshotID      string `gorm:"size:36;uniqueIndex;not null"`
	Platform        string `gorm:"size:16"`
	TotalMessages   int
	TotalChannels   int
	SkippedChannels int
	UniqueWords     int
	ScannedAt       time.Time `gorm:"index"`
	CreatedAt       time.Time
}
