package ocr

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// MaxTextLen caps the stored text of one document.
const MaxTextLen = 4000

// minLetters is the amount of text below which a pass is considered empty and
// the thresholded pass is tried.
const minLetters = 20

// Reader extracts text from degree documents with Tesseract.
type Reader struct {
	Languages []string
}

func NewReader(languages ...string) *Reader {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Reader{Languages: languages}
}

// ExtractText runs a grayscale pass and, when that reads too little, an
// adaptive-threshold pass over the image at path. PDFs return ErrUnsupported.
func (r *Reader) ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
	default:
		return "", ErrUnsupported
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	gray := prepare(img)

	text, err := r.recognize(gray)
	if err != nil {
		return "", err
	}
	if letterCount(text) < minLetters {
		alt, err := r.recognize(adaptiveThreshold(gray, 31, 10))
		if err == nil && letterCount(alt) > letterCount(text) {
			text = alt
		}
	}
	text = normalizeText(text)
	if letterCount(text) == 0 {
		return "", ErrNoText
	}
	slog.Info("degree OCR", "path", path, "snippet", Snippet(text, 120))
	return Snippet(text, MaxTextLen), nil
}

// prepare converts to grayscale and upsamples small scans, which Tesseract
// reads poorly.
func prepare(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < 800 {
		gray = imaging.Resize(gray, 0, 1200, imaging.Lanczos)
	}
	return gray
}

func (r *Reader) recognize(img image.Image) (string, error) {
	tmpFile, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	defer os.Remove(tmp)
	if err := imaging.Save(img, tmp); err != nil {
		return "", fmt.Errorf("save temp image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(r.Languages...); err != nil {
		return "", fmt.Errorf("ocr language: %w", err)
	}
	if err := client.SetImage(tmp); err != nil {
		return "", fmt.Errorf("ocr image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return text, nil
}
