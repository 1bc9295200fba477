package catalog

import (
	"time"

	"media-catalog/internal/embedding"
	"media-catalog/internal/mediatypes"
)

// MediaRecord is the catalog row for one media file. Path is the natural key.
type MediaRecord struct {
	ID               string          `json:"id"`
	Path             string          `json:"path"`
	ContentHash      string          `json:"contentHash"`
	Kind             mediatypes.Kind `json:"kind"`
	MimeType         string          `json:"mimeType,omitempty"`
	Size             int64           `json:"size"`
	Width            int             `json:"width,omitempty"`
	Height           int             `json:"height,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	ModifiedAt       time.Time       `json:"modifiedAt"`
	IndexedAt        time.Time       `json:"indexedAt"`
	LastScannedAt    time.Time       `json:"lastScannedAt"`
	FacesProcessedAt *time.Time      `json:"facesProcessedAt,omitempty"`
}

// ScanStatus is the lifecycle state of a ScanSession.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanCancelled ScanStatus = "cancelled"
)

// ScanSession is the bookkeeping row for one scan call.
type ScanSession struct {
	ID           string     `json:"id"`
	RootPath     string     `json:"rootPath"`
	FilesScanned int        `json:"filesScanned"`
	FilesAdded   int        `json:"filesAdded"`
	FilesUpdated int        `json:"filesUpdated"`
	ErrorCount   int        `json:"errorCount"`
	Status       ScanStatus `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// BBox is a face region in source-image pixel coordinates.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in pixels.
func (b BBox) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// IoU returns the intersection-over-union of two boxes.
func (b BBox) IoU(o BBox) float64 {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.Width, o.X+o.Width)
	y2 := min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Face is one detected face region.
type Face struct {
	ID         string           `json:"id"`
	MediaID    string           `json:"mediaId"`
	Embedding  embedding.Vector `json:"-"`
	BBox       BBox             `json:"bbox"`
	Confidence float64          `json:"confidence"`
	DetectedAt time.Time        `json:"detectedAt"`
}

// FaceGroup is a cluster of faces believed to be one identity.
type FaceGroup struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name,omitempty"`
	FaceCount int       `json:"faceCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Membership links a face to a group with the similarity it had to the
// group representative when it was assigned.
type Membership struct {
	FaceID          string  `json:"faceId"`
	GroupID         string  `json:"groupId"`
	SimilarityScore float64 `json:"similarityScore"`
}

// Representative is the face a group is compared by: the member with the
// highest similarity score, ties going to the lowest face id.
type Representative struct {
	GroupID   string
	FaceID    string
	Score     float64
	Embedding embedding.Vector
}
