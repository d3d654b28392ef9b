package storage

import (
	"context"

	"chat-purge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// journalBatchSize is how many rows Each loads per query
const journalBatchSize = 500

// Journal records the group messages a Telegram bot has seen
type Journal interface {
	Record(ctx context.Context, msg *models.JournalMessage) error
	Chats(ctx context.Context) ([]int64, error)
	// Each calls fn for every journaled message of chatID in arrival order
	Each(ctx context.Context, chatID int64, fn func(models.JournalMessage) error) error
	Remove(ctx context.Context, chatID int64, messageIDs []int) error
	Count(ctx context.Context) (int64, error)
}

// JournalRepository is the MySQL-backed Journal
type JournalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// MigrateTable ensures the journal table exists with the right schema
func (r *JournalRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.JournalMessage{})
}

// Record stores msg, replacing the text of an already journaled (edited) message
func (r *JournalRepository) Record(ctx context.Context, msg *models.JournalMessage) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text"}),
	}).Create(msg).Error
}

func (r *JournalRepository) Chats(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.JournalMessage{}).
		Distinct("chat_id").
		Order("chat_id").
		Pluck("chat_id", &ids).Error
	return ids, err
}

func (r *JournalRepository) Each(ctx context.Context, chatID int64, fn func(models.JournalMessage) error) error {
	var rows []models.JournalMessage
	result := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id").
		FindInBatches(&rows, journalBatchSize, func(tx *gorm.DB, batch int) error {
			for _, row := range rows {
				if err := fn(row); err != nil {
					return err
				}
			}
			return nil
		})
	return result.Error
}

func (r *JournalRepository) Remove(ctx context.Context, chatID int64, messageIDs []int) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("chat_id = ? AND message_id IN ?", chatID, messageIDs).
		Delete(&models.JournalMessage{}).Error
}

func (r *JournalRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.JournalMessage{}).Count(&n).Error
	return n, err
}
