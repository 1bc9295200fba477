package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-catalog/internal/catalog"
	"media-catalog/internal/database"
	"media-catalog/internal/embedding"
	"media-catalog/internal/mediatypes"
)

// setupEnv points configuration at a fresh SQLite catalog with face
// detection disabled. Tests using it cannot run in parallel.
func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "db", "catalog.db"))
	t.Setenv("AUTO_SCAN_PATHS", "")
	t.Setenv("ENABLE_FACE_DETECTION", "false")
	t.Setenv("NATS_URL", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatal(err)
	}
}

func TestScanAndSessions(t *testing.T) {
	setupEnv(t)

	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"))
	writePNG(t, filepath.Join(root, "b.png"))
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "scan", root, "--format", "json")
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	var results []scanResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode scan output: %v\n%s", err, out)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if got := results[0].Stats; got.FilesScanned != 2 || got.FilesAdded != 2 || got.ErrorCount != 0 {
		t.Errorf("stats = %+v, want scanned 2 added 2 errors 0", got)
	}

	out, err = run(t, "sessions", "--format", "json")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	var sessions []catalog.ScanSession
	if err := json.Unmarshal([]byte(out), &sessions); err != nil {
		t.Fatalf("decode sessions: %v\n%s", err, out)
	}
	if len(sessions) != 1 || sessions[0].Status != catalog.ScanCompleted {
		t.Errorf("sessions = %+v, want one completed", sessions)
	}

	out, err = run(t, "sessions")
	if err != nil {
		t.Fatalf("sessions text: %v", err)
	}
	if !strings.Contains(out, "completed") {
		t.Errorf("text output missing status:\n%s", out)
	}
}

func TestScanWithoutRoots(t *testing.T) {
	setupEnv(t)

	if _, err := run(t, "scan"); err == nil || !strings.Contains(err.Error(), "AUTO_SCAN_PATHS") {
		t.Errorf("err = %v, want missing roots error", err)
	}
}

func TestScanInvalidRootFails(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "scan", filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatalf("scan of missing root succeeded:\n%s", out)
	}
}

func TestGroupsListEmpty(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "groups", "list", "--format", "json")
	if err != nil {
		t.Fatalf("groups list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("output = %q, want []", out)
	}
}

func TestGroupsArgumentErrors(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "rename without name", args: []string{"groups", "rename", "g1"}},
		{name: "clear with name", args: []string{"groups", "rename", "g1", "bob", "--clear"}},
		{name: "merge into itself", args: []string{"groups", "merge", "g1", "g1"}},
		{name: "merge one arg", args: []string{"groups", "merge", "g1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v succeeded, want error", tt.args)
			}
		})
	}
}

func TestGroupFaceCommands(t *testing.T) {
	setupEnv(t)
	ctx := context.Background()

	out, err := run(t, "groups", "create", "Alice", "--format", "json")
	if err != nil {
		t.Fatalf("groups create: %v", err)
	}
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if created.ID == "" || created.Name != "Alice" {
		t.Fatalf("created = %+v, want id and name Alice", created)
	}

	db, err := database.New(ctx, database.DriverCGO, os.Getenv("DATABASE_PATH"))
	if err != nil {
		t.Fatal(err)
	}
	rec := &catalog.MediaRecord{Path: "/photos/alice.jpg", ContentHash: "h", Kind: mediatypes.KindImage}
	if err := db.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	face := &catalog.Face{MediaID: rec.ID, Embedding: embedding.Vector{1, 0}, Confidence: 0.9}
	if err := db.InsertFace(ctx, face); err != nil {
		t.Fatal(err)
	}
	db.Close()

	out, err = run(t, "faces", rec.ID, "--format", "json")
	if err != nil {
		t.Fatalf("faces: %v", err)
	}
	var faces []catalog.Face
	if err := json.Unmarshal([]byte(out), &faces); err != nil {
		t.Fatalf("decode faces: %v\n%s", err, out)
	}
	if len(faces) != 1 || faces[0].ID != face.ID {
		t.Errorf("faces = %+v, want %s", faces, face.ID)
	}

	if _, err := run(t, "groups", "assign", face.ID, created.ID, "--score", "0.8"); err != nil {
		t.Fatalf("groups assign: %v", err)
	}
	out, err = run(t, "groups", "faces", created.ID, "--format", "json")
	if err != nil {
		t.Fatalf("groups faces: %v", err)
	}
	var members []catalog.Membership
	if err := json.Unmarshal([]byte(out), &members); err != nil {
		t.Fatalf("decode members: %v\n%s", err, out)
	}
	if len(members) != 1 || members[0].FaceID != face.ID || members[0].SimilarityScore != 0.8 {
		t.Errorf("members = %+v, want %s at 0.8", members, face.ID)
	}

	for _, args := range [][]string{
		{"groups", "assign", face.ID, "no-such-group"},
		{"groups", "assign", face.ID, created.ID, "--score", "2"},
		{"groups", "faces", "no-such-group"},
		{"faces", "no-such-media"},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v succeeded, want error", args)
		}
	}
}

func TestReprocessUnknownID(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "reprocess", "no-such-id")
	if err == nil {
		t.Fatal("reprocess of unknown id succeeded")
	}
	if !strings.Contains(out, "no-such-id: not found") {
		t.Errorf("output = %q, want not found line", out)
	}
}

func TestClusterOnEmptyCatalog(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "cluster", "--format", "json")
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got["assigned"] != 0 || got["created"] != 0 || got["merged"] != 0 {
		t.Errorf("result = %v, want all zero", got)
	}
}

func TestVersionAndFormat(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "media-catalog ") {
		t.Errorf("version output = %q", out)
	}

	if _, err := run(t, "version", "--format", "yaml"); err == nil {
		t.Error("unknown format accepted")
	}
}
