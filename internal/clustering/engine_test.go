package clustering

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"media-catalog/internal/catalog"
	"media-catalog/internal/database"
	"media-catalog/internal/embedding"
	"media-catalog/internal/mediatypes"
)

func newTestStore(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), database.DriverCGO, filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// addFaces stores one media record and a face per embedding, in order.
func addFaces(t *testing.T, db *database.Database, path string, vecs ...embedding.Vector) []string {
	t.Helper()
	ctx := context.Background()

	rec := &catalog.MediaRecord{Path: path, ContentHash: path, Kind: mediatypes.KindImage}
	if err := db.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	ids := make([]string, 0, len(vecs))
	for _, v := range vecs {
		f := &catalog.Face{MediaID: rec.ID, Embedding: v, Confidence: 1}
		if err := db.InsertFace(ctx, f); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, f.ID)
	}
	return ids
}

// groupsOf maps each face to its groups.
func groupsOf(t *testing.T, db *database.Database) map[string][]string {
	t.Helper()
	members, err := db.ListMemberships(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string][]string)
	for _, m := range members {
		out[m.FaceID] = append(out[m.FaceID], m.GroupID)
	}
	return out
}

func countGroups(t *testing.T, db *database.Database) int {
	t.Helper()
	groups, err := db.ListGroups(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(groups)
}

func assertSingleGroup(t *testing.T, db *database.Database, faceIDs []string) {
	t.Helper()
	byFace := groupsOf(t, db)
	for _, id := range faceIDs {
		if n := len(byFace[id]); n != 1 {
			t.Errorf("face %s has %d groups, want 1", id, n)
		}
	}
}

func TestAssignUngroupedExample(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	ids := addFaces(t, db, "/p/1.jpg",
		embedding.Vector{1, 0},
		embedding.Vector{0.99, 0.14},
		embedding.Vector{0, 1},
	)

	e := New(db, Config{})
	res, err := e.AssignUngrouped(ctx)
	if err != nil {
		t.Fatalf("AssignUngrouped: %v", err)
	}
	if res.Created != 2 || res.Assigned != 1 {
		t.Errorf("result = %+v, want created 2 assigned 1", res)
	}
	if n := countGroups(t, db); n != 2 {
		t.Fatalf("groups = %d, want 2", n)
	}

	byFace := groupsOf(t, db)
	if byFace[ids[0]][0] != byFace[ids[1]][0] {
		t.Error("e1 and e2 are in different groups")
	}
	if byFace[ids[0]][0] == byFace[ids[2]][0] {
		t.Error("e3 shares a group with e1")
	}
	assertSingleGroup(t, db, ids)
}

func TestAssignUngroupedIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)
	addFaces(t, db, "/p/2.jpg", embedding.Vector{1, 0}, embedding.Vector{0, 1})

	e := New(db, Config{})
	if _, err := e.AssignUngrouped(ctx); err != nil {
		t.Fatal(err)
	}
	before := groupsOf(t, db)

	res, err := e.AssignUngrouped(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res != (AssignResult{}) {
		t.Errorf("second pass = %+v, want no changes", res)
	}
	after := groupsOf(t, db)
	for face, groups := range before {
		if after[face][0] != groups[0] {
			t.Errorf("face %s moved from %s to %s", face, groups[0], after[face][0])
		}
	}

	merges, err := e.MergeSimilarGroups(ctx, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if merges != 0 {
		t.Errorf("merges = %d, want 0 for orthogonal groups", merges)
	}
}

func TestAssignTieGoesToLowestGroupID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	seeds := addFaces(t, db, "/p/3.jpg", embedding.Vector{1, 0}, embedding.Vector{1, 0})
	var groupIDs []string
	for _, face := range seeds {
		gid, err := db.CreateGroup(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := db.ReassignGroup(ctx, face, gid, 1.0); err != nil {
			t.Fatal(err)
		}
		groupIDs = append(groupIDs, gid)
	}

	newcomer := addFaces(t, db, "/p/4.jpg", embedding.Vector{2, 0})
	if _, err := New(db, Config{}).AssignUngrouped(ctx); err != nil {
		t.Fatal(err)
	}
	if got := groupsOf(t, db)[newcomer[0]]; len(got) != 1 || got[0] != groupIDs[0] {
		t.Errorf("newcomer groups = %v, want [%s]", got, groupIDs[0])
	}
}

func TestNewGroupsVisibleWithinPass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	ids := addFaces(t, db, "/p/5.jpg",
		embedding.Vector{0, 1},
		embedding.Vector{0.1, 1},
		embedding.Vector{0.05, 1},
	)
	res, err := New(db, Config{}).AssignUngrouped(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Assigned != 2 {
		t.Errorf("result = %+v, want one group holding all three", res)
	}
	assertSingleGroup(t, db, ids)
}

func TestMergeSimilarGroups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	ids := addFaces(t, db, "/p/6.jpg",
		embedding.Vector{1, 0},
		embedding.Vector{0.8, 0.6},
		embedding.Vector{0, 1},
	)

	// 0.8 similarity: separate groups at 0.9, merged at 0.75.
	e := New(db, Config{Threshold: 0.9})
	if _, err := e.AssignUngrouped(ctx); err != nil {
		t.Fatal(err)
	}
	before := countGroups(t, db)
	if before != 3 {
		t.Fatalf("groups before merge = %d, want 3", before)
	}

	merges, err := e.MergeSimilarGroups(ctx, 0.75)
	if err != nil {
		t.Fatalf("MergeSimilarGroups: %v", err)
	}
	if merges != 1 {
		t.Errorf("merges = %d, want 1", merges)
	}
	after := countGroups(t, db)
	if after > before {
		t.Errorf("groups grew from %d to %d", before, after)
	}
	if after != 2 {
		t.Errorf("groups after merge = %d, want 2", after)
	}

	byFace := groupsOf(t, db)
	if byFace[ids[0]][0] != byFace[ids[1]][0] {
		t.Error("similar faces not merged")
	}
	// The surviving group is the lower id, which was created first.
	if byFace[ids[1]][0] > byFace[ids[2]][0] {
		t.Error("merge kept the higher group id")
	}
	assertSingleGroup(t, db, ids)

	if merges, _ := e.MergeSimilarGroups(ctx, 0.75); merges != 0 {
		t.Errorf("second merge pass = %d, want 0", merges)
	}
}

func TestMergeRespectsSampleCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	// Three identical singletons: pair (0,1) then (0,2) would merge all.
	addFaces(t, db, "/p/7.jpg", embedding.Vector{1, 0}, embedding.Vector{1, 0}, embedding.Vector{1, 0})
	e := New(db, Config{Threshold: 1.1, SampleCap: 1})
	if _, err := e.AssignUngrouped(ctx); err != nil {
		t.Fatal(err)
	}
	if n := countGroups(t, db); n != 3 {
		t.Fatalf("groups = %d, want 3", n)
	}

	merges, err := e.MergeSimilarGroups(ctx, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if merges != 1 {
		t.Errorf("merges = %d, want 1 with a cap of one pair", merges)
	}
	if merges, _ := e.MergeSimilarGroups(ctx, 0.9); merges != 1 {
		t.Errorf("follow-up merges = %d, want 1", merges)
	}
	if n := countGroups(t, db); n != 1 {
		t.Errorf("groups after two passes = %d, want 1", n)
	}
}

func TestIncremental(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	ids := addFaces(t, db, "/p/8.jpg", embedding.Vector{1, 0}, embedding.Vector{1, 0, 0}, embedding.Vector{0, 0})
	res, merges, err := New(db, DefaultConfig()).Incremental(ctx)
	if err != nil {
		t.Fatalf("Incremental: %v", err)
	}
	// Mismatched and zero embeddings match nothing and get their own groups.
	if res.Created != 3 || merges != 0 {
		t.Errorf("result = %+v merges = %d, want 3 created, 0 merges", res, merges)
	}
	assertSingleGroup(t, db, ids)
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) ListUngroupedFaces(context.Context) ([]catalog.Face, error) {
	return nil, f.err
}

func (f failingStore) ListGroupRepresentatives(context.Context) ([]catalog.Representative, error) {
	return nil, f.err
}

func TestStoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	want := errors.New("disk on fire")
	e := New(failingStore{err: want}, Config{})
	if _, err := e.AssignUngrouped(context.Background()); !errors.Is(err, want) {
		t.Errorf("AssignUngrouped err = %v, want %v", err, want)
	}
	if _, err := e.MergeSimilarGroups(context.Background(), 0.7); !errors.Is(err, want) {
		t.Errorf("MergeSimilarGroups err = %v, want %v", err, want)
	}
}

func TestInsertRepresentativeKeepsOrder(t *testing.T) {
	t.Parallel()

	reps := []representative{{groupID: "a"}, {groupID: "c"}}
	reps = insertRepresentative(reps, representative{groupID: "b"})
	reps = insertRepresentative(reps, representative{groupID: "d"})
	got := ""
	for _, r := range reps {
		got += r.groupID
	}
	if got != "abcd" {
		t.Errorf("order = %q, want abcd", got)
	}
}

func TestMergeUsesRepresentativeOfMergedGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	// a~b and b~c reach the threshold, a~c does not. Once b joins a's group
	// with a higher score it becomes the representative, so c follows.
	ids := addFaces(t, db, "/p/chain.jpg",
		embedding.Vector{1, 0, 0},
		embedding.Vector{0.8, 0.6, 0},
		embedding.Vector{0.3, 0.95, 0},
	)
	groups := make([]string, 3)
	for i := range groups {
		id, err := db.CreateGroup(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		groups[i] = id
	}
	sort.Strings(groups)
	for i, score := range []float64{0.5, 0.9, 1.0} {
		if err := db.ReassignGroup(ctx, ids[i], groups[i], score); err != nil {
			t.Fatal(err)
		}
	}

	e := New(db, Config{})
	merges, err := e.MergeSimilarGroups(ctx, DefaultThreshold)
	if err != nil {
		t.Fatalf("MergeSimilarGroups: %v", err)
	}
	if merges != 2 {
		t.Errorf("merges = %d, want 2", merges)
	}
	if n := countGroups(t, db); n != 1 {
		t.Errorf("groups = %d, want 1", n)
	}
}

func TestRepresentativeOutranks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		r, cur   representative
		outranks bool
	}{
		{"higher score", representative{faceID: "b", score: 0.9}, representative{faceID: "a", score: 0.8}, true},
		{"lower score", representative{faceID: "a", score: 0.7}, representative{faceID: "b", score: 0.8}, false},
		{"tie lower id", representative{faceID: "a", score: 0.8}, representative{faceID: "b", score: 0.8}, true},
		{"tie higher id", representative{faceID: "c", score: 0.8}, representative{faceID: "b", score: 0.8}, false},
		{"member over anchor", representative{faceID: "a", score: 0}, representative{score: 0}, true},
		{"anchor under member", representative{score: 1}, representative{faceID: "a", score: 0.1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.r.outranks(tt.cur); got != tt.outranks {
				t.Errorf("outranks = %v, want %v", got, tt.outranks)
			}
		})
	}
}

func TestAnchorAttractsFaceIntoEmptyNamedGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestStore(t)

	ids := addFaces(t, db, "/p/alice.jpg", embedding.Vector{1, 0})
	e := New(db, Config{})
	if _, err := e.AssignUngrouped(ctx); err != nil {
		t.Fatal(err)
	}
	groupID := groupsOf(t, db)[ids[0]][0]
	name := "Alice"
	if err := db.RenameGroup(ctx, groupID, &name); err != nil {
		t.Fatal(err)
	}

	media, err := db.GetByPath(ctx, "/p/alice.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteFaces(ctx, media.ID); err != nil {
		t.Fatal(err)
	}
	again := addFaces(t, db, "/p/alice2.jpg", embedding.Vector{0.98, 0.2})

	res, err := e.AssignUngrouped(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Assigned != 1 || res.Created != 0 {
		t.Errorf("result = %+v, want assigned 1 created 0", res)
	}
	if got := groupsOf(t, db)[again[0]]; len(got) != 1 || got[0] != groupID {
		t.Errorf("face groups = %v, want [%s]", got, groupID)
	}
}
