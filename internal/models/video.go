// Package models defines shared data types for the application.
package models

import (
	"time"
)

// Video is a downloaded channel video.
// Column names match the legacy videos table so existing databases keep working.
type Video struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	MessageID int64  `json:"message_id" gorm:"uniqueIndex;not null"`
	ChannelID string `json:"channel_name" gorm:"column:channel_name"`

	// file on disk
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`

	Description *string `json:"description,omitempty" gorm:"type:text"`

	// timestamps
	DownloadedAt time.Time `json:"downloaded_at"`
	MessageDate  time.Time `json:"message_date"`

	IsDownloaded bool   `json:"is_downloaded"`
	FileUniqueID string `json:"file_unique_id" gorm:"uniqueIndex"`

	// added by migration 0002
	ThumbnailPath *string `json:"image_path,omitempty" gorm:"column:image_path"`
}

// TableName keeps the legacy table name.
func (Video) TableName() string {
	return "videos"
}

// DescriptionText returns the description or an empty string.
func (v *Video) DescriptionText() string {
	if v.Description == nil {
		return ""
	}
	return *v.Description
}

// Thumbnail returns the thumbnail path or an empty string.
func (v *Video) Thumbnail() string {
	if v.ThumbnailPath == nil {
		return ""
	}
	return *v.ThumbnailPath
}
