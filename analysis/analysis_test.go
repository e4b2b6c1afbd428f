package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"skinscan/config"
	"skinscan/models"
	"skinscan/pkg/classifier"
	"skinscan/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classifierFunc func(ctx context.Context, path string) (*classifier.Result, error)

func (f classifierFunc) Classify(ctx context.Context, path string) (*classifier.Result, error) {
	return f(ctx, path)
}

func setup(t *testing.T) (*store.ImageRepo, *store.ClassificationRepo, *models.Image) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{DBDriver: "sqlite", DBDSN: filepath.Join(dir, "a.db"), AutoMigrate: true, UploadBase: filepath.Join(dir, "uploads")}
	db, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	ctx := context.Background()
	require.NoError(t, store.Bootstrap(ctx, db, cfg))
	u := &models.User{Name: "A", Email: "a@example.com", Password: "x", Role: models.RolePatient}
	require.NoError(t, store.NewUserRepo(db).Create(ctx, u))
	images := store.NewImageRepo(db)
	img, err := images.Create(ctx, u.ID, "uploads/a.png")
	require.NoError(t, err)
	return images, store.NewClassificationRepo(db), img
}

func TestAnalyzeSuccess(t *testing.T) {
	images, cls, img := setup(t)
	a := New(classifierFunc(func(_ context.Context, path string) (*classifier.Result, error) {
		assert.Equal(t, "/abs/a.png", path)
		return &classifier.Result{
			Features:       classifier.Features{Streaks: 0.3, ColorBlueGray: true},
			Classification: classifier.Label{Result: "melanoma", Confidence: 0.66},
		}, nil
	}), images, cls)

	view, err := a.Analyze(context.Background(), img, "/abs/a.png")
	require.NoError(t, err)
	assert.Equal(t, "melanoma", view.ClassificationResult)
	assert.True(t, view.Features.ColorBlueGray)
	assert.Equal(t, models.ImageClassified, img.Status)

	stored, err := images.FindByID(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImageClassified, stored.Status)
}

func TestAnalyzeFailureMarksImage(t *testing.T) {
	images, cls, img := setup(t)
	a := New(classifierFunc(func(context.Context, string) (*classifier.Result, error) {
		return nil, classifier.ErrTimeout
	}), images, cls)

	_, err := a.Analyze(context.Background(), img, "/abs/a.png")
	assert.ErrorIs(t, err, classifier.ErrProcessing)

	stored, err := images.FindByID(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImageFailed, stored.Status)
	_, err = cls.FindByImageID(context.Background(), img.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestAnalyzeStatusSurvivesCancelledRequest(t *testing.T) {
	images, cls, img := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	a := New(classifierFunc(func(context.Context, string) (*classifier.Result, error) {
		cancel()
		return nil, classifier.ErrProcessFailed
	}), images, cls)

	_, err := a.Analyze(ctx, img, "/abs/a.png")
	require.Error(t, err)
	stored, err := images.FindByID(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImageFailed, stored.Status)
}

func TestAnalyzeSaveFailureKeepsExistingClassification(t *testing.T) {
	images, cls, img := setup(t)
	ctx := context.Background()
	_, err := cls.Save(ctx, img.ID, models.ImageFeatures{Asymmetry: 0.1}, "nevus", 0.55)
	require.NoError(t, err)

	a := New(classifierFunc(func(context.Context, string) (*classifier.Result, error) {
		return &classifier.Result{Classification: classifier.Label{Result: "melanoma", Confidence: 0.9}}, nil
	}), images, cls)

	view, err := a.Analyze(ctx, img, "/abs/a.png")
	require.Error(t, err)
	assert.Nil(t, view)
	assert.Contains(t, err.Error(), "save classification")
	assert.Equal(t, models.ImageFailed, img.Status)

	stored, err := images.FindByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImageFailed, stored.Status)

	kept, err := cls.FindByImageID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "nevus", kept.ClassificationResult)
	assert.InDelta(t, 0.55, kept.ConfidenceScore, 1e-9)
	require.NotNil(t, kept.Features)
	assert.InDelta(t, 0.1, kept.Features.Asymmetry, 1e-9)
}
