package storage

import (
	"context"
	"errors"
	"sync"

	"chat-purge/internal/models"

	"gorm.io/gorm"
)

// ScanHistory keeps the summaries of completed scans
type ScanHistory interface {
	Add(ctx context.Context, rec *models.ScanRecord) error
	// Latest returns nil without error when no scan was recorded
	Latest(ctx context.Context) (*models.ScanRecord, error)
	Recent(ctx context.Context, limit int) ([]models.ScanRecord, error)
}

// ScanRecordRepository handles database operations for ScanRecord
type ScanRecordRepository struct {
	db *gorm.DB
}

func NewScanRecordRepository(db *gorm.DB) *ScanRecordRepository {
	return &ScanRecordRepository{db: db}
}

// MigrateTable ensures the ScanRecord table exists
func (r *ScanRecordRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.ScanRecord{})
}

func (r *ScanRecordRepository) Add(ctx context.Context, rec *models.ScanRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *ScanRecordRepository) Latest(ctx context.Context) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	result := r.db.WithContext(ctx).Order("scanned_at DESC").First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &rec, nil
}

func (r *ScanRecordRepository) Recent(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	var recs []models.ScanRecord
	result := r.db.WithContext(ctx).Order("scanned_at DESC").Limit(limit).Find(&recs)
	return recs, result.Error
}

// MemoryScanHistory is the ScanHistory used without a database
type MemoryScanHistory struct {
	mu   sync.Mutex
	recs []models.ScanRecord
}

func NewMemoryScanHistory() *MemoryScanHistory {
	return &MemoryScanHistory{}
}

func (h *MemoryScanHistory) Add(_ context.Context, rec *models.ScanRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.ID = uint(len(h.recs) + 1)
	h.recs = append(h.recs, *rec)
	return nil
}

func (h *MemoryScanHistory) Latest(context.Context) (*models.ScanRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.recs) == 0 {
		return nil, nil
	}
	rec := h.recs[len(h.recs)-1]
	return &rec, nil
}

func (h *MemoryScanHistory) Recent(_ context.Context, limit int) ([]models.ScanRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.ScanRecord, 0, min(limit, len(h.recs)))
	for i := len(h.recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.recs[i])
	}
	return out, nil
}
