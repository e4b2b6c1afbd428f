package main

import (
	"time"

	"skinscan/analysis"
	"skinscan/auth"
	"skinscan/config"
	"skinscan/pkg/classifier"
	"skinscan/pkg/ocr"
	"skinscan/store"
	"skinscan/upload"

	"gorm.io/gorm"
)

// DegreeReader extracts reviewable text from a degree document.
type DegreeReader interface {
	ExtractText(path string) (string, error)
}

// server bundles the dependencies every handler needs. Handlers receive the
// caller's identity through the request context, never through fields here.
type server struct {
	cfg             *config.Config
	users           *store.UserRepo
	images          *store.ImageRepo
	classifications *store.ClassificationRepo
	tokens          *auth.Tokens
	uploads         *upload.Store
	analyzer        *analysis.Analyzer
	degrees         DegreeReader // nil disables degree OCR
}

func newServer(cfg *config.Config, db *gorm.DB) *server {
	return newServerWith(cfg, db, classifier.New(classifier.Config{
		Command:     cfg.ClassifierCmd,
		Script:      cfg.ClassifierScript,
		Timeout:     cfg.ClassifierTimeout,
		OutputGrace: cfg.ClassifierOutputGrace,
		TempDir:     cfg.ClassifierTempDir,
	}))
}

func newServerWith(cfg *config.Config, db *gorm.DB, c analysis.Classifier) *server {
	s := &server{
		cfg:             cfg,
		users:           store.NewUserRepo(db),
		images:          store.NewImageRepo(db),
		classifications: store.NewClassificationRepo(db),
		tokens:          auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTExpiresHour)*time.Hour),
		uploads:         upload.NewStore(cfg.UploadBase),
	}
	s.analyzer = analysis.New(c, s.images, s.classifications)
	if cfg.OCRDegrees {
		s.degrees = ocr.NewReader()
	}
	return s
}
