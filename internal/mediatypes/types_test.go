package mediatypes

import (
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want Kind
	}{
		{name: "JPEG image", path: "/photos/a.jpg", want: KindImage},
		{name: "Uppercase extension", path: "/photos/B.JPEG", want: KindImage},
		{name: "WebP is an image", path: "x.webp", want: KindImage},
		{name: "MP4 video", path: "clip.mp4", want: KindVideo},
		{name: "MKV video", path: "clip.MKV", want: KindVideo},
		{name: "FLAC audio", path: "song.flac", want: KindAudio},
		{name: "Opus audio", path: "voice.opus", want: KindAudio},
		{name: "Text file", path: "notes.txt", want: KindOther},
		{name: "No extension", path: "README", want: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.path); got != tt.want {
				t.Errorf("KindOf(%q) = %q, want %q", tt.path, got, tt.want)
			}
			if got := IsMediaFile(tt.path); got != (tt.want != KindOther) {
				t.Errorf("IsMediaFile(%q) = %v, want %v", tt.path, got, tt.want != KindOther)
			}
		})
	}
}

func TestFormatTable(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindImage, KindVideo, KindAudio} {
		exts := Extensions(k)
		if len(exts) == 0 {
			t.Errorf("Extensions(%q) is empty", k)
		}
		for _, ext := range exts {
			f, ok := Lookup(ext)
			if !ok {
				t.Fatalf("Lookup(%q) missing", ext)
			}
			if !strings.HasPrefix(f.MIME, string(k)+"/") {
				t.Errorf("GetMimeType(%q) = %q, want %s/*", ext, f.MIME, k)
			}
			if f.Decodable && k != KindImage {
				t.Errorf("%s is decodable but not an image", ext)
			}
		}
	}
	if got := GetMimeType(".xyz"); got != "application/octet-stream" {
		t.Errorf("GetMimeType(.xyz) = %q, want application/octet-stream", got)
	}
}

func TestIsDecodable(t *testing.T) {
	t.Parallel()

	for ext, want := range map[string]bool{".jpg": true, ".webp": true, ".heic": false, ".mp4": false, ".xyz": false} {
		if got := IsDecodable(ext); got != want {
			t.Errorf("IsDecodable(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestKindValid(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindImage, KindVideo, KindAudio} {
		if !k.Valid() {
			t.Errorf("%q.Valid() = false, want true", k)
		}
	}
	if KindOther.Valid() {
		t.Error("KindOther.Valid() = true, want false")
	}
}
