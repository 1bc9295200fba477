package catalog

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("catalog: not found")

// MediaStore persists media records. Upsert is insert-or-update on Path and
// must be safe when two callers race on the same new path.
type MediaStore interface {
	GetByPath(ctx context.Context, path string) (*MediaRecord, error)
	GetByID(ctx context.Context, id string) (*MediaRecord, error)
	// Upsert writes rec and sets rec.ID to the id stored for its path.
	Upsert(ctx context.Context, rec *MediaRecord) error
	MarkFacesProcessed(ctx context.Context, mediaID string, at time.Time) error
}

// FaceStore persists detected faces.
type FaceStore interface {
	GetFaces(ctx context.Context, mediaID string) ([]Face, error)
	// InsertFace assigns face.ID when empty.
	InsertFace(ctx context.Context, face *Face) error
	// DeleteFaces removes the faces of a media record along with their
	// memberships and recounts the affected groups. Unnamed groups left empty
	// are dropped; named ones stay and keep an anchor embedding.
	DeleteFaces(ctx context.Context, mediaID string) error
	// ListUngroupedFaces returns faces without a membership, ordered by id.
	ListUngroupedFaces(ctx context.Context) ([]Face, error)
}

// GroupStore persists face groups and memberships.
type GroupStore interface {
	// ListGroupRepresentatives returns one representative per non-empty
	// group, ordered by group id. Empty named groups contribute their anchor
	// embedding with an empty FaceID.
	ListGroupRepresentatives(ctx context.Context) ([]Representative, error)
	// ReassignGroup makes groupID the only group of faceID.
	ReassignGroup(ctx context.Context, faceID, groupID string, score float64) error
	CreateGroup(ctx context.Context, name *string) (string, error)
	// MergeGroup moves every member of fromID into intoID and deletes fromID.
	MergeGroup(ctx context.Context, fromID, intoID string) error
	ListGroups(ctx context.Context) ([]FaceGroup, error)
	RenameGroup(ctx context.Context, id string, name *string) error
	ListMemberships(ctx context.Context) ([]Membership, error)
}

// SessionStore persists scan sessions.
type SessionStore interface {
	CreateScanSession(ctx context.Context, s *ScanSession) error
	// UpdateScanSession writes counters, status and completion time.
	UpdateScanSession(ctx context.Context, s *ScanSession) error
	GetScanSession(ctx context.Context, id string) (*ScanSession, error)
	ListScanSessions(ctx context.Context, limit int) ([]ScanSession, error)
}

// Store is the full catalog surface implemented by each backend.
type Store interface {
	MediaStore
	FaceStore
	GroupStore
	SessionStore
	Close() error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSortableID returns a ULID string. IDs from one process sort in
// creation order, which the clustering tie-breaks rely on.
func NewSortableID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewID returns a random identifier for media records and scan sessions.
func NewID() string {
	return uuid.NewString()
}
