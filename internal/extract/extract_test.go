package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-catalog/internal/mediatypes"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "photo.PNG")
	writePNG(t, path, 40, 30)

	rec, err := New().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Kind != mediatypes.KindImage {
		t.Errorf("Kind = %q, want image", rec.Kind)
	}
	if rec.Width != 40 || rec.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 40x30", rec.Width, rec.Height)
	}
	if rec.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", rec.MimeType)
	}
	info, _ := os.Stat(path)
	if rec.Size != info.Size() {
		t.Errorf("Size = %d, want %d", rec.Size, info.Size())
	}
	if len(rec.ContentHash) != 64 {
		t.Errorf("len(ContentHash) = %d, want 64", len(rec.ContentHash))
	}
	if rec.ID != "" {
		t.Errorf("ID = %q, want empty", rec.ID)
	}
}

func TestExtractHashTracksContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp3")
	b := filepath.Join(dir, "b.mp3")
	c := filepath.Join(dir, "c.mp3")
	for path, body := range map[string]string{a: "same bytes", b: "same bytes", c: "other bytes"} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ex := New()
	hash := func(p string) string {
		rec, err := ex.Extract(context.Background(), p)
		if err != nil {
			t.Fatalf("Extract(%s): %v", p, err)
		}
		if rec.Kind != mediatypes.KindAudio {
			t.Errorf("Kind = %q, want audio", rec.Kind)
		}
		return rec.ContentHash
	}
	if hash(a) != hash(b) {
		t.Error("identical files hashed differently")
	}
	if hash(a) == hash(c) {
		t.Error("different files hashed the same")
	}
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(corrupt, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	heic := filepath.Join(dir, "phone.heic")
	if err := os.WriteFile(heic, []byte("opaque"), 0o644); err != nil {
		t.Fatal(err)
	}
	folder := filepath.Join(dir, "album.jpg")
	if err := os.Mkdir(folder, 0o755); err != nil {
		t.Fatal(err)
	}

	ex := New()
	ctx := context.Background()

	if _, err := ex.Extract(ctx, corrupt); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("corrupt jpeg err = %v, want decode error", err)
	}
	if _, err := ex.Extract(ctx, filepath.Join(dir, "notes.txt")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("txt err = %v, want ErrUnsupported", err)
	}
	if _, err := ex.Extract(ctx, folder); !errors.Is(err, ErrNotRegular) {
		t.Errorf("directory err = %v, want ErrNotRegular", err)
	}
	if _, err := ex.Extract(ctx, filepath.Join(dir, "gone.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing err = %v, want not-exist", err)
	}

	// No Go decoder for HEIC: indexed without dimensions.
	rec, err := ex.Extract(ctx, heic)
	if err != nil {
		t.Fatalf("heic: %v", err)
	}
	if rec.Width != 0 || rec.Height != 0 {
		t.Errorf("heic dimensions = %dx%d, want 0x0", rec.Width, rec.Height)
	}
}

func TestHashFileCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := hashFile(ctx, bytes.NewReader(make([]byte, 10)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
