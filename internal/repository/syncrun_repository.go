package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-sync-service/internal/models"
)

// SyncRunRepositoryInterface defines audit log operations for sync runs
type SyncRunRepositoryInterface interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Update(ctx context.Context, run *models.SyncRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error)
	List(ctx context.Context, limit, offset int) ([]models.SyncRun, int64, error)
	MostRecent(ctx context.Context, source models.SourceType) (*models.SyncRun, error)
	ListWithErrors(ctx context.Context, limit int) ([]models.SyncRun, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, since time.Time) (*SyncStats, error)
}

// SyncStats aggregates run outcomes over a window
type SyncStats struct {
	TotalRuns     int64 `json:"totalRuns"`
	CompletedRuns int64 `json:"completedRuns"`
	FailedRuns    int64 `json:"failedRuns"`
	TotalCreated  int64 `json:"totalCreated"`
	TotalUpdated  int64 `json:"totalUpdated"`
	TotalErrors   int64 `json:"totalErrors"`
}

// SyncRunRepository handles sync run database operations
type SyncRunRepository struct {
	db *gorm.DB
}

var _ SyncRunRepositoryInterface = (*SyncRunRepository)(nil)

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create appends a new sync run record
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update finalizes a sync run record
func (r *SyncRunRepository) Update(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetByID retrieves a sync run by ID
func (r *SyncRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// List retrieves sync runs newest first with pagination
func (r *SyncRunRepository) List(ctx context.Context, limit, offset int) ([]models.SyncRun, int64, error) {
	var runs []models.SyncRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SyncRun{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// MostRecent retrieves the latest run for a source
func (r *SyncRunRepository) MostRecent(ctx context.Context, source models.SourceType) (*models.SyncRun, error) {
	var run models.SyncRun
	err := r.db.WithContext(ctx).Where("source = ?", source).
		Order("started_at DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListWithErrors retrieves runs that recorded row errors or failed outright
func (r *SyncRunRepository) ListWithErrors(ctx context.Context, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	query := r.db.WithContext(ctx).
		Where("error_count > 0 OR status = ?", models.RunStatusFailed).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// DeleteOlderThan removes completed runs older than the cutoff.
// Running runs are never deleted.
func (r *SyncRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("started_at < ? AND status != ?", cutoff, models.RunStatusRunning).
		Delete(&models.SyncRun{})
	return result.RowsAffected, result.Error
}

// Stats aggregates run outcomes since the given time
func (r *SyncRunRepository) Stats(ctx context.Context, since time.Time) (*SyncStats, error) {
	var stats SyncStats

	base := r.db.WithContext(ctx).Model(&models.SyncRun{}).Where("started_at >= ?", since)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", models.RunStatusCompleted).Count(&stats.CompletedRuns).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", models.RunStatusFailed).Count(&stats.FailedRuns).Error; err != nil {
		return nil, err
	}

	type sums struct {
		Created int64
		Updated int64
		Errors  int64
	}
	var s sums
	err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(created),0) as created, COALESCE(SUM(updated),0) as updated, COALESCE(SUM(error_count),0) as errors").
		Scan(&s).Error
	if err != nil {
		return nil, err
	}
	stats.TotalCreated = s.Created
	stats.TotalUpdated = s.Updated
	stats.TotalErrors = s.Errors
	return &stats, nil
}
