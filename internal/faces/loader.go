package faces

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"media-catalog/internal/catalog"
)

// DefaultMaxDimension bounds the longest side of the plane detection runs on.
const DefaultMaxDimension = 1280

// frame is a detection plane plus the oriented size of the source image.
type frame struct {
	plane      *Gray
	srcW, srcH int
}

// loadFrame decodes path with EXIF orientation applied and shrinks it so the
// longest side is at most maxDim. It returns the shrunken color image too.
func loadFrame(path string, maxDim int) (image.Image, *frame, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	b := img.Bounds()
	f := &frame{srcW: b.Dx(), srcH: b.Dy()}

	if maxDim > 0 && max(f.srcW, f.srcH) > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Box)
	}
	f.plane = GrayFromImage(img)
	return img, f, nil
}

// toSource maps a box on the plane back to source pixels, clamped to the
// image.
func (f *frame) toSource(b catalog.BBox) catalog.BBox {
	if f.plane.Width == f.srcW && f.plane.Height == f.srcH {
		return b
	}
	sx := float64(f.srcW) / float64(f.plane.Width)
	sy := float64(f.srcH) / float64(f.plane.Height)

	x := int(math.Round(float64(b.X) * sx))
	y := int(math.Round(float64(b.Y) * sy))
	w := int(math.Round(float64(b.Width) * sx))
	h := int(math.Round(float64(b.Height) * sy))

	x = min(max(x, 0), f.srcW)
	y = min(max(y, 0), f.srcH)
	return catalog.BBox{X: x, Y: y, Width: min(w, f.srcW-x), Height: min(h, f.srcH-y)}
}
