package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skinscan/models"

	"gorm.io/gorm"
)

// ClassificationRepo stores feature vectors and classification results.
// Rows are append-only: there is no update or delete.
type ClassificationRepo struct {
	db *gorm.DB
}

func NewClassificationRepo(db *gorm.DB) *ClassificationRepo {
	return &ClassificationRepo{db: db}
}

// Save writes the feature row and the classification row for imageID in one
// transaction. The image itself is never part of this transaction.
func (r *ClassificationRepo) Save(ctx context.Context, imageID uint, features models.ImageFeatures, result string, confidence float64) (*models.ClassificationView, error) {
	features.ImageID = imageID
	cls := models.Classification{ImageID: imageID, ClassificationResult: result, ConfidenceScore: confidence}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&features).Error; err != nil {
			return fmt.Errorf("save features: %w", err)
		}
		if err := tx.Create(&cls).Error; err != nil {
			return fmt.Errorf("save classification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &models.ClassificationView{Classification: cls, Features: &features}, nil
}

// FindByImageID returns the classification of imageID joined with its
// feature row (left join: Features is nil when the feature row is missing).
func (r *ClassificationRepo) FindByImageID(ctx context.Context, imageID uint) (*models.ClassificationView, error) {
	var view models.ClassificationView
	if err := r.db.WithContext(ctx).Where("image_id = ?", imageID).First(&view.Classification).Error; err != nil {
		return nil, notFound(err)
	}
	var f models.ImageFeatures
	err := r.db.WithContext(ctx).Where("image_id = ?", imageID).First(&f).Error
	switch {
	case err == nil:
		view.Features = &f
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}
	return &view, nil
}

// LabelCount is one row of LabelSummary.
type LabelCount struct {
	Label         string
	Count         int64
	AvgConfidence float64
}

// LabelSummary groups classifications of userID's images created in
// [from, to) by label.
func (r *ClassificationRepo) LabelSummary(ctx context.Context, userID uint, from, to time.Time) ([]LabelCount, error) {
	var out []LabelCount
	err := r.db.WithContext(ctx).Model(&models.Classification{}).
		Select("classifications.classification_result AS label, COUNT(*) AS count, AVG(classifications.confidence_score) AS avg_confidence").
		Joins("JOIN images ON images.id = classifications.image_id").
		Where("images.user_id = ? AND classifications.created_at >= ? AND classifications.created_at < ?", userID, from, to).
		Group("classifications.classification_result").
		Order("count DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
