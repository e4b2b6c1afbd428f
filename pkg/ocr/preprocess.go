package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// adaptiveThreshold binarizes against the local mean of a window x window
// neighborhood, which copes with uneven lighting on photos of paper
// documents. Pixels darker than mean-bias become black.
func adaptiveThreshold(img image.Image, window int, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	if w == 0 || h == 0 {
		return out
	}

	gray := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			gray[y*w+x] = int((r + g + bb) / 3 >> 8)
		}
	}
	// integral image with a zero row and column: sum[y][x] covers [0,x) x [0,y)
	stride := w + 1
	sum := make([]int, stride*(h+1))
	for y := 1; y <= h; y++ {
		row := 0
		for x := 1; x <= w; x++ {
			row += gray[(y-1)*w+x-1]
			sum[y*stride+x] = sum[(y-1)*stride+x] + row
		}
	}

	half := window / 2
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half+1, w)
			area := (x1 - x0) * (y1 - y0)
			s := sum[y1*stride+x1] - sum[y0*stride+x1] - sum[y1*stride+x0] + sum[y0*stride+x0]
			th := s/area - bias
			if gray[y*w+x] < th {
				out.Set(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}
	return out
}
