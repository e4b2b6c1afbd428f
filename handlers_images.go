package main

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"skinscan/models"
	"skinscan/store"
	"skinscan/upload"

	"github.com/gin-gonic/gin"
)

const processingFailed = "Feature extraction failed, but image was saved"

// imageResponse is an image row plus its public URL and, when present, the
// stored classification.
type imageResponse struct {
	models.Image
	ImageURL       string                     `json:"imageUrl"`
	Classification *models.ClassificationView `json:"classification,omitempty"`
}

type labelResponse struct {
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
}

type uploadResponse struct {
	Success         bool                  `json:"success"`
	ImageID         uint                  `json:"imageId"`
	ImagePath       string                `json:"imagePath"`
	ImageURL        string                `json:"imageUrl"`
	Features        *models.ImageFeatures `json:"features"`
	Classification  *labelResponse        `json:"classification"`
	ProcessingError *string               `json:"processingError"`
	Message         string                `json:"message"`
}

// uploadImageHandler stores the image, persists its row and then classifies
// it. A classification failure is reported in processingError; the image
// stays saved.
func (s *server) uploadImageHandler(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	policy := upload.ImagePolicy()
	limitBody(c, policy.MaxBytes)
	fh, err := formFile(c, policy, "Please upload an image")
	if err != nil {
		respondError(c, err)
		return
	}
	stored, err := s.uploads.Save(fh, policy)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	img, err := s.images.Create(ctx, id.UserID, stored.PublicPath)
	if err != nil {
		s.uploads.Remove(stored)
		respondError(c, err)
		return
	}

	resp := uploadResponse{
		Success:   true,
		ImageID:   img.ID,
		ImagePath: "/" + img.ImagePath,
		ImageURL:  s.publicURL(c, img.ImagePath),
		Message:   "Image uploaded, features extracted, and classified successfully",
	}
	abs, err := filepath.Abs(stored.DiskPath)
	if err != nil {
		abs = stored.DiskPath
	}
	view, err := s.analyzer.Analyze(ctx, img, abs)
	if err != nil {
		slog.Error("feature extraction failed", "image_id", img.ID, "error", err)
		msg := processingFailed
		resp.ProcessingError = &msg
		resp.Message = msg
	} else {
		resp.Features = view.Features
		resp.Classification = &labelResponse{Result: view.ClassificationResult, Confidence: view.ConfidenceScore}
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *server) getImageHandler(c *gin.Context) {
	// a malformed id cannot name an image
	imageID, ok := parseID(c, "id")
	if !ok {
		respondError(c, notFound("Image not found"))
		return
	}
	ctx := c.Request.Context()
	img, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, notFound("Image not found"))
			return
		}
		respondError(c, err)
		return
	}
	resp := imageResponse{Image: *img, ImageURL: s.publicURL(c, img.ImagePath)}
	view, err := s.classifications.FindByImageID(ctx, img.ID)
	switch {
	case err == nil:
		resp.Classification = view
	case !errors.Is(err, store.ErrNotFound):
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) listMyImagesHandler(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	images, err := s.images.FindByUserID(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]imageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, imageResponse{Image: img, ImageURL: s.publicURL(c, img.ImagePath)})
	}
	c.JSON(http.StatusOK, out)
}
