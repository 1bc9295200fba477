package faces

import (
	"image"
	"image/draw"
)

// Gray is a single-channel image with intensities in [0,1]. It is plain data
// and safe to hand across goroutines.
type Gray struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGray returns a black plane of the given size.
func NewGray(w, h int) *Gray {
	return &Gray{Width: w, Height: h, Pix: make([]float64, w*h)}
}

// GrayFromImage converts img to luminance.
func GrayFromImage(img image.Image) *Gray {
	b := img.Bounds()
	g, ok := img.(*image.Gray)
	if !ok {
		g = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	}

	out := NewGray(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+out.Width]
		for x, v := range row {
			out.Pix[y*out.Width+x] = float64(v) / 255
		}
	}
	return out
}

// At returns the intensity at (x, y).
func (g *Gray) At(x, y int) float64 {
	return g.Pix[y*g.Width+x]
}

// integral is a summed-area table with one row and column of zero padding,
// so sum(x, y, w, h) needs no edge cases.
type integral struct {
	w, h int
	sum  []float64
}

func newIntegral(g *Gray) *integral {
	stride := g.Width + 1
	ii := &integral{w: g.Width, h: g.Height, sum: make([]float64, stride*(g.Height+1))}
	for y := 0; y < g.Height; y++ {
		var row float64
		for x := 0; x < g.Width; x++ {
			row += g.Pix[y*g.Width+x]
			ii.sum[(y+1)*stride+x+1] = ii.sum[y*stride+x+1] + row
		}
	}
	return ii
}

// rect returns the pixel sum of the w x h rectangle at (x, y). The caller
// keeps the rectangle inside the image.
func (ii *integral) rect(x, y, w, h int) float64 {
	stride := ii.w + 1
	a := ii.sum[y*stride+x]
	b := ii.sum[y*stride+x+w]
	c := ii.sum[(y+h)*stride+x]
	d := ii.sum[(y+h)*stride+x+w]
	return d - b - c + a
}

func (ii *integral) contains(x, y, w, h int) bool {
	return x >= 0 && y >= 0 && w > 0 && h > 0 && x+w <= ii.w && y+h <= ii.h
}
