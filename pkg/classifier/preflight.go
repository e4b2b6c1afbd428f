package classifier

import (
	"fmt"
	"image"
	"os"

	// decoders for every upload format the image policy accepts
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// preflight reads the image header before any process is started, so corrupt
// or mislabeled files fail fast. Returns the image bounds for logging.
func preflight(path string) (image.Rectangle, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return image.Rect(0, 0, cfg.Width, cfg.Height), nil
}
