package store

import (
	"context"
	"fmt"

	"skinscan/models"

	"gorm.io/gorm"
)

// ImageRepo is the parameterized CRUD surface over the images table.
type ImageRepo struct {
	db *gorm.DB
}

func NewImageRepo(db *gorm.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// Create persists a new image for userID with status uploaded.
func (r *ImageRepo) Create(ctx context.Context, userID uint, imagePath string) (*models.Image, error) {
	img := &models.Image{UserID: userID, ImagePath: imagePath, Status: models.ImageUploaded}
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	return img, nil
}

func (r *ImageRepo) FindByID(ctx context.Context, id uint) (*models.Image, error) {
	var img models.Image
	if err := r.db.WithContext(ctx).First(&img, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &img, nil
}

func (r *ImageRepo) FindByUserID(ctx context.Context, userID uint) ([]models.Image, error) {
	images := []models.Image{}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (r *ImageRepo) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update image status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnclassified returns up to limit images that have no classification row,
// oldest first.
func (r *ImageRepo) ListUnclassified(ctx context.Context, limit int) ([]models.Image, error) {
	images := []models.Image{}
	q := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM classifications c WHERE c.image_id = images.id)").
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}
