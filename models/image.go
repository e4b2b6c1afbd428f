package models

import (
	"time"
)

// Image processing states.
const (
	ImageUploaded   = "uploaded"
	ImageClassified = "classified"
	ImageFailed     = "failed"
)

// Image is a lesion photo owned by the uploading user. ImagePath is the public
// relative path (e.g. uploads/image-1712345678901-3f9a1c2e.jpg).
type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ImagePath string    `gorm:"column:image_path;size:512;not null" json:"image_path"`
	Status    string    `gorm:"size:16;not null;default:uploaded;index" json:"status"`
}
