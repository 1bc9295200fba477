package faces

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"cascade", KindCascade, false},
		{" Native ", KindNative, false},
		{"MODEL", KindModel, false},
		{"", KindCascade, false},
		{"opencv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownDetector) {
					t.Errorf("ParseKind(%q) err = %v, want ErrUnknownDetector", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Kind: "hog"}); !errors.Is(err, ErrUnknownDetector) {
		t.Errorf("New(hog) err = %v, want ErrUnknownDetector", err)
	}
}

func TestModelWithoutModelDetectsNothing(t *testing.T) {
	t.Parallel()

	d, err := New(Config{Kind: KindModel})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	got, err := d.Detect(context.Background(), "/does/not/matter.jpg", "m")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(faces) = %d, want 0", len(got))
	}
	if d.Kind() != KindModel {
		t.Errorf("Kind = %q, want model", d.Kind())
	}
}

func TestLockedThread(t *testing.T) {
	t.Parallel()

	var setupRan, teardownRan bool
	th, err := startLockedThread(func() error {
		setupRan = true
		return nil
	}, func() { teardownRan = true })
	if err != nil {
		t.Fatal(err)
	}

	var got int
	if err := th.do(context.Background(), func() error { got = 42; return nil }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got != 42 || !setupRan {
		t.Errorf("got = %d, setup = %v; want 42, true", got, setupRan)
	}

	if err := th.do(context.Background(), func() error { panic("boom") }); err == nil {
		t.Error("panicking job returned nil error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	if err := th.do(ctx, func() error { <-release; return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("slow job err = %v, want DeadlineExceeded", err)
	}
	close(release)

	th.stop()
	if !teardownRan {
		t.Error("teardown did not run")
	}
	if err := th.do(context.Background(), func() error { return nil }); !errors.Is(err, errThreadStopped) {
		t.Errorf("do after stop err = %v, want errThreadStopped", err)
	}
	th.stop()
}

func TestLockedThreadSetupError(t *testing.T) {
	t.Parallel()

	want := errors.New("no runtime")
	if _, err := startLockedThread(func() error { return want }, nil); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}
