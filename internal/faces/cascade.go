package faces

import (
	"math"
	"sort"

	"media-catalog/internal/catalog"
	"media-catalog/internal/embedding"
)

// FeatureType is the rectangle layout of a Haar-like feature.
type FeatureType int

const (
	// TwoRectHorizontal compares the top half against the bottom half.
	TwoRectHorizontal FeatureType = iota
	// TwoRectVertical compares the left half against the right half.
	TwoRectVertical
	// ThreeRectHorizontal compares the middle horizontal strip against the outer two.
	ThreeRectHorizontal
	// ThreeRectVertical compares the middle vertical strip against the outer two.
	ThreeRectVertical
	// FourRect compares the diagonals of a 2x2 grid.
	FourRect
)

// baseWindow is the side of the window features are laid out on.
const baseWindow = 100

// Feature is a Haar-like rectangle feature on a baseWindow x baseWindow
// window. It votes Weight when its normalized response exceeds Threshold.
type Feature struct {
	X, Y, Width, Height int
	Type                FeatureType
	Threshold           float64
	Weight              float64
}

// DefaultFeatures is the built-in feature bank: eye band, nose bridge, mouth
// line, brow transition and cheek symmetry.
func DefaultFeatures() []Feature {
	return []Feature{
		{X: 20, Y: 20, Width: 60, Height: 30, Type: TwoRectHorizontal, Threshold: 0.04, Weight: 2.0},
		{X: 45, Y: 30, Width: 10, Height: 40, Type: TwoRectVertical, Threshold: 0.03, Weight: 1.5},
		{X: 25, Y: 60, Width: 50, Height: 20, Type: ThreeRectHorizontal, Threshold: 0.05, Weight: 1.8},
		{X: 15, Y: 15, Width: 70, Height: 25, Type: TwoRectHorizontal, Threshold: 0.04, Weight: 1.6},
		{X: 10, Y: 35, Width: 80, Height: 40, Type: FourRect, Threshold: 0.03, Weight: 1.3},
	}
}

// Detection is one accepted window, in the coordinates of the plane it was
// found on.
type Detection struct {
	Box        catalog.BBox
	Confidence float64
	Embedding  embedding.Vector
}

// Cascade is the pure-Go sliding-window detector.
type Cascade struct {
	Features      []Feature
	MinWindow     int
	MaxWindow     int
	ScaleFactor   float64
	MinConfidence float64
	NMSThreshold  float64
}

// NewCascade returns a Cascade with the default bank and scan parameters.
func NewCascade() *Cascade {
	return &Cascade{
		Features:      DefaultFeatures(),
		MinWindow:     60,
		MaxWindow:     600,
		ScaleFactor:   1.15,
		MinConfidence: 0.7,
		NMSThreshold:  0.3,
	}
}

// Detect scans g at every scale and returns the windows that survive
// non-maximum suppression, each with an embedding.
func (c *Cascade) Detect(g *Gray) []Detection {
	if g.Width == 0 || g.Height == 0 || len(c.Features) == 0 {
		return nil
	}

	ii := newIntegral(g)
	side := min(g.Width, g.Height)

	var candidates []Detection
	for scale := 1.0; float64(c.MinWindow)*scale < float64(side); scale *= c.ScaleFactor {
		win := int(float64(c.MinWindow) * scale)
		if win > c.MaxWindow {
			break
		}
		candidates = append(candidates, c.scanAtScale(ii, win)...)
	}

	kept := nonMaxSuppression(candidates, c.NMSThreshold)
	for i := range kept {
		kept[i].Embedding = windowEmbedding(g, ii, kept[i].Box)
	}
	return kept
}

func (c *Cascade) scanAtScale(ii *integral, win int) []Detection {
	step := max(win/4, 10)
	var out []Detection
	for y := 0; y < ii.h-win; y += step {
		for x := 0; x < ii.w-win; x += step {
			conf := c.score(ii, x, y, win)
			if conf > c.MinConfidence {
				out = append(out, Detection{
					Box:        catalog.BBox{X: x, Y: y, Width: win, Height: win},
					Confidence: conf,
				})
			}
		}
	}
	return out
}

// score is the weighted fraction of features voting for a face.
func (c *Cascade) score(ii *integral, wx, wy, win int) float64 {
	s := float64(win) / baseWindow
	var passed, total float64
	for _, f := range c.Features {
		x := wx + int(float64(f.X)*s)
		y := wy + int(float64(f.Y)*s)
		w := int(float64(f.Width) * s)
		h := int(float64(f.Height) * s)
		if featureValue(ii, f.Type, x, y, w, h) > f.Threshold {
			passed += f.Weight
		}
		total += f.Weight
	}
	if total == 0 {
		return 0
	}
	return passed / total
}

// featureValue is the absolute rectangle contrast divided by the feature
// area. Rectangles leaving the image respond 0.
func featureValue(ii *integral, t FeatureType, x, y, w, h int) float64 {
	if !ii.contains(x, y, w, h) {
		return 0
	}
	area := float64(w * h)

	var diff float64
	switch t {
	case TwoRectHorizontal:
		hh := h / 2
		diff = ii.rect(x, y, w, hh) - ii.rect(x, y+hh, w, hh)
	case TwoRectVertical:
		hw := w / 2
		diff = ii.rect(x, y, hw, h) - ii.rect(x+hw, y, hw, h)
	case ThreeRectHorizontal:
		h3 := h / 3
		diff = ii.rect(x, y, w, h3) + ii.rect(x, y+2*h3, w, h3) - 2*ii.rect(x, y+h3, w, h3)
	case ThreeRectVertical:
		w3 := w / 3
		diff = ii.rect(x, y, w3, h) + ii.rect(x+2*w3, y, w3, h) - 2*ii.rect(x+w3, y, w3, h)
	case FourRect:
		hw, hh := w/2, h/2
		diff = ii.rect(x, y, hw, hh) + ii.rect(x+hw, y+hh, hw, hh) -
			ii.rect(x+hw, y, hw, hh) - ii.rect(x, y+hh, hw, hh)
	default:
		return 0
	}
	return math.Abs(diff) / area
}

// nonMaxSuppression keeps detections greedily by descending confidence,
// dropping any whose IoU with a kept box reaches threshold.
func nonMaxSuppression(dets []Detection, threshold float64) []Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	var kept []Detection
	for _, d := range dets {
		overlaps := false
		for _, k := range kept {
			if d.Box.IoU(k.Box) >= threshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}

const (
	histogramBins = 16
	blockGrid     = 4
	// EmbeddingSize is the length of cascade embeddings.
	EmbeddingSize = histogramBins + blockGrid*blockGrid
)

// windowEmbedding describes a box by its normalized 16-bin intensity
// histogram followed by the mean intensity of a 4x4 grid of blocks.
func windowEmbedding(g *Gray, ii *integral, box catalog.BBox) embedding.Vector {
	vec := make(embedding.Vector, EmbeddingSize)

	x0, y0 := max(box.X, 0), max(box.Y, 0)
	x1, y1 := min(box.X+box.Width, g.Width), min(box.Y+box.Height, g.Height)
	if x1 <= x0 || y1 <= y0 {
		return vec
	}

	var n float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			bin := min(int(g.At(x, y)*histogramBins), histogramBins-1)
			vec[bin]++
			n++
		}
	}
	for i := 0; i < histogramBins; i++ {
		vec[i] = float32(float64(vec[i]) / n)
	}

	bw, bh := (x1-x0)/blockGrid, (y1-y0)/blockGrid
	if bw == 0 || bh == 0 {
		return vec
	}
	for by := 0; by < blockGrid; by++ {
		for bx := 0; bx < blockGrid; bx++ {
			sum := ii.rect(x0+bx*bw, y0+by*bh, bw, bh)
			vec[histogramBins+by*blockGrid+bx] = float32(sum / float64(bw*bh))
		}
	}
	return vec
}
