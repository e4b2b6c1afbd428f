// Package analysis runs a stored image through the classifier and records
// the outcome. The image row is never touched except for its status.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"skinscan/models"
	"skinscan/pkg/classifier"
	"skinscan/store"
)

// Classifier turns an image on disk into features and a label.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) (*classifier.Result, error)
}

// Analyzer couples a Classifier with the repositories that persist its output.
type Analyzer struct {
	classifier      Classifier
	images          *store.ImageRepo
	classifications *store.ClassificationRepo
}

func New(c Classifier, images *store.ImageRepo, classifications *store.ClassificationRepo) *Analyzer {
	return &Analyzer{classifier: c, images: images, classifications: classifications}
}

// Analyze classifies the file at diskPath for img. On success the features
// and classification are saved and the image becomes classified; on any
// failure the image is marked failed and the error is returned for the caller
// to report. The image row itself survives either way.
func (a *Analyzer) Analyze(ctx context.Context, img *models.Image, diskPath string) (*models.ClassificationView, error) {
	res, err := a.classifier.Classify(ctx, diskPath)
	if err != nil {
		a.setStatus(ctx, img, models.ImageFailed)
		return nil, fmt.Errorf("classify image %d: %w", img.ID, err)
	}
	view, err := a.classifications.Save(ctx, img.ID, res.Features.Model(), res.Classification.Result, res.Classification.Confidence)
	if err != nil {
		a.setStatus(ctx, img, models.ImageFailed)
		return nil, fmt.Errorf("save classification for image %d: %w", img.ID, err)
	}
	a.setStatus(ctx, img, models.ImageClassified)
	slog.Info("image classified", "image_id", img.ID, "result", view.ClassificationResult, "confidence", view.ConfidenceScore)
	return view, nil
}

func (a *Analyzer) setStatus(ctx context.Context, img *models.Image, status string) {
	// a cancelled request must not leave the status behind
	if err := a.images.UpdateStatus(context.WithoutCancel(ctx), img.ID, status); err != nil {
		slog.Warn("failed to update image status", "image_id", img.ID, "status", status, "error", err)
		return
	}
	img.Status = status
}
