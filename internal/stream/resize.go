package stream

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/MrSnakeDoc/lookout/internal/domain"
)

func needsResize(width, height int, want domain.Resolution) bool {
	if want.IsZero() {
		return false
	}
	return width != want.Width || height != want.Height
}

// resize scales src to the requested resolution with bilinear interpolation.
func resize(src *image.RGBA, want domain.Resolution) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, want.Width, want.Height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
