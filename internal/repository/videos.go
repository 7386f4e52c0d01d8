package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockedby/tgvideo/internal/models"
	"gorm.io/gorm"
)

// VideosRepository handles videos table operations
type VideosRepository struct {
	db *gorm.DB
}

// NewVideosRepository creates a new videos repository
func NewVideosRepository(db *gorm.DB) *VideosRepository {
	return &VideosRepository{db: db}
}

// AutoMigrate creates the videos table or adds missing columns.
// Used for sqlite; postgresql is migrated with the embedded sql files.
func (r *VideosRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.Video{}); err != nil {
		return fmt.Errorf("automigrate videos: %w", err)
	}
	return nil
}

// GetByMessageID returns the video for a source message.
// Returns nil, nil if not found.
func (r *VideosRepository) GetByMessageID(ctx context.Context, messageID int64) (*models.Video, error) {
	return r.first(ctx, "message_id = ?", messageID)
}

// GetByFileUniqueID returns the video with the given media fingerprint.
// Returns nil, nil if not found.
func (r *VideosRepository) GetByFileUniqueID(ctx context.Context, fileUniqueID string) (*models.Video, error) {
	if fileUniqueID == "" {
		return nil, nil
	}
	return r.first(ctx, "file_unique_id = ?", fileUniqueID)
}

// GetByID returns the video by primary key.
// Returns nil, nil if not found.
func (r *VideosRepository) GetByID(ctx context.Context, id uint) (*models.Video, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *VideosRepository) first(ctx context.Context, query string, arg any) (*models.Video, error) {
	var v models.Video
	err := r.db.WithContext(ctx).Where(query, arg).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return &v, nil
}

// Create inserts a new video record
func (r *VideosRepository) Create(ctx context.Context, v *models.Video) error {
	if v.DownloadedAt.IsZero() {
		v.DownloadedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

// Save writes every field of v, inserting it when v.ID is zero and
// updating the existing row otherwise.
func (r *VideosRepository) Save(ctx context.Context, v *models.Video) error {
	if v.DownloadedAt.IsZero() {
		v.DownloadedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	return nil
}

// ListDownloaded returns downloaded videos, newest message first.
// limit <= 0 means no limit.
func (r *VideosRepository) ListDownloaded(ctx context.Context, limit int) ([]models.Video, error) {
	q := r.db.WithContext(ctx).
		Where("is_downloaded = ?", true).
		Order("message_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var videos []models.Video
	if err := q.Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// CountDownloaded returns the number of downloaded videos.
func (r *VideosRepository) CountDownloaded(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("is_downloaded = ?", true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return n, nil
}
