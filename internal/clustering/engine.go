package clustering

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/embedding"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Defaults for Config.
const (
	DefaultThreshold = 0.7
	DefaultSampleCap = 1000
)

// Store is the slice of the catalog the engine reads and mutates.
type Store interface {
	ListUngroupedFaces(ctx context.Context) ([]catalog.Face, error)
	ListGroupRepresentatives(ctx context.Context) ([]catalog.Representative, error)
	ReassignGroup(ctx context.Context, faceID, groupID string, score float64) error
	CreateGroup(ctx context.Context, name *string) (string, error)
	MergeGroup(ctx context.Context, fromID, intoID string) error
}

// Config tunes the engine.
type Config struct {
	// Threshold is the minimum similarity for joining an existing group.
	Threshold float64
	// MergeThreshold is used by Incremental's merge pass.
	MergeThreshold float64
	// SampleCap bounds the group pairs compared per merge pass.
	SampleCap int
}

// DefaultConfig returns the default thresholds and sample cap.
func DefaultConfig() Config {
	return Config{
		Threshold:      DefaultThreshold,
		MergeThreshold: DefaultThreshold,
		SampleCap:      DefaultSampleCap,
	}
}

// Engine groups faces by embedding similarity. All passes hold one mutex,
// so membership changes never interleave.
type Engine struct {
	mu    sync.Mutex
	store Store
	cfg   Config
}

// New returns an engine over store. Zero config fields take defaults.
func New(store Store, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MergeThreshold <= 0 {
		cfg.MergeThreshold = def.MergeThreshold
	}
	if cfg.SampleCap <= 0 {
		cfg.SampleCap = def.SampleCap
	}
	return &Engine{store: store, cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// AssignResult counts the outcome of an assignment pass.
type AssignResult struct {
	Assigned int `json:"assigned"`
	Created  int `json:"created"`
}

// representative is the in-memory copy of a group's comparison face,
// updated as the pass assigns faces. An empty faceID marks the anchor of a
// named group that currently has no members.
type representative struct {
	groupID string
	faceID  string
	score   float64
	vec     embedding.Vector
}

// AssignUngrouped places every face without a group. Faces are visited in id
// order and compared with each group's representative in group id order;
// the first strictly best score wins. A best score below the threshold, or
// no groups at all, starts a new singleton group with score 1.
func (e *Engine) AssignUngrouped(ctx context.Context) (AssignResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.ClusterPassDuration.WithLabelValues("assign").Observe(time.Since(start).Seconds())
	}()

	var res AssignResult

	faces, err := e.store.ListUngroupedFaces(ctx)
	if err != nil {
		return res, fmt.Errorf("list ungrouped faces: %w", err)
	}
	if len(faces) == 0 {
		return res, nil
	}

	reps, err := e.loadRepresentatives(ctx)
	if err != nil {
		return res, err
	}

	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		best, score := bestMatch(reps, face.Embedding)
		if best >= 0 && score >= e.cfg.Threshold {
			r := &reps[best]
			if err := e.store.ReassignGroup(ctx, face.ID, r.groupID, score); err != nil {
				return res, fmt.Errorf("assign face %s to group %s: %w", face.ID, r.groupID, err)
			}
			cand := representative{groupID: r.groupID, faceID: face.ID, score: score, vec: face.Embedding}
			if cand.outranks(*r) {
				*r = cand
			}
			res.Assigned++
			metrics.ClusterAssignmentsTotal.WithLabelValues("assigned").Inc()
			continue
		}

		groupID, err := e.store.CreateGroup(ctx, nil)
		if err != nil {
			return res, fmt.Errorf("create group: %w", err)
		}
		if err := e.store.ReassignGroup(ctx, face.ID, groupID, 1.0); err != nil {
			return res, fmt.Errorf("seed group %s with face %s: %w", groupID, face.ID, err)
		}
		reps = insertRepresentative(reps, representative{
			groupID: groupID, faceID: face.ID, score: 1.0, vec: face.Embedding,
		})
		res.Created++
		metrics.ClusterAssignmentsTotal.WithLabelValues("created").Inc()
	}

	logging.Debug("Clustering assigned %d faces, created %d groups", res.Assigned, res.Created)
	return res, nil
}

// MergeSimilarGroups compares representative pairs (i < j in group id
// order) and merges group j into group i when their similarity reaches
// threshold. At most SampleCap pairs are compared; groups merged away
// earlier in the pass are skipped. It returns the number of merges.
func (e *Engine) MergeSimilarGroups(ctx context.Context, threshold float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.ClusterPassDuration.WithLabelValues("merge").Observe(time.Since(start).Seconds())
	}()

	reps, err := e.loadRepresentatives(ctx)
	if err != nil {
		return 0, err
	}

	gone := make([]bool, len(reps))
	compared, merges := 0, 0

outer:
	for i := 0; i < len(reps); i++ {
		if gone[i] {
			continue
		}
		for j := i + 1; j < len(reps); j++ {
			if gone[j] {
				continue
			}
			if compared >= e.cfg.SampleCap {
				break outer
			}
			compared++

			if embedding.CosineSimilarity(reps[i].vec, reps[j].vec) < threshold {
				continue
			}
			if err := e.store.MergeGroup(ctx, reps[j].groupID, reps[i].groupID); err != nil {
				return merges, fmt.Errorf("merge group %s into %s: %w", reps[j].groupID, reps[i].groupID, err)
			}
			gone[j] = true
			if reps[j].outranks(reps[i]) {
				reps[i].faceID, reps[i].score, reps[i].vec = reps[j].faceID, reps[j].score, reps[j].vec
			}
			merges++
			metrics.ClusterMergesTotal.Inc()
		}
	}

	if merges > 0 {
		logging.Info("Merged %d face groups (%d pairs compared)", merges, compared)
	}
	return merges, nil
}

// Incremental runs an assignment pass followed by a merge pass at the
// configured merge threshold.
func (e *Engine) Incremental(ctx context.Context) (AssignResult, int, error) {
	res, err := e.AssignUngrouped(ctx)
	if err != nil {
		return res, 0, err
	}
	merges, err := e.MergeSimilarGroups(ctx, e.cfg.MergeThreshold)
	return res, merges, err
}

func (e *Engine) loadRepresentatives(ctx context.Context) ([]representative, error) {
	stored, err := e.store.ListGroupRepresentatives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list group representatives: %w", err)
	}
	reps := make([]representative, 0, len(stored))
	for _, r := range stored {
		reps = append(reps, representative{groupID: r.GroupID, faceID: r.FaceID, score: r.Score, vec: r.Embedding})
	}
	sort.SliceStable(reps, func(i, j int) bool { return reps[i].groupID < reps[j].groupID })
	return reps, nil
}

// outranks reports whether r would be its group's representative over cur:
// real members beat anchors, then higher score, then lower face id.
func (r representative) outranks(cur representative) bool {
	if (r.faceID == "") != (cur.faceID == "") {
		return cur.faceID == ""
	}
	if r.score != cur.score {
		return r.score > cur.score
	}
	return r.faceID < cur.faceID
}

// bestMatch returns the index and score of the most similar representative,
// or -1 when there are none.
func bestMatch(reps []representative, vec embedding.Vector) (int, float64) {
	best, bestScore := -1, math.Inf(-1)
	for i, r := range reps {
		if s := embedding.CosineSimilarity(vec, r.vec); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}

func insertRepresentative(reps []representative, r representative) []representative {
	i := sort.Search(len(reps), func(i int) bool { return reps[i].groupID > r.groupID })
	reps = append(reps, representative{})
	copy(reps[i+1:], reps[i:])
	reps[i] = r
	return reps
}
