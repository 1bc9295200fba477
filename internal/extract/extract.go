package extract

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	// Header decoders for DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"media-catalog/internal/catalog"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// ErrUnsupported is returned for paths whose extension is not a media kind.
var ErrUnsupported = errors.New("unsupported media type")

// ErrNotRegular is returned for directories and other non-regular files.
var ErrNotRegular = errors.New("not a regular file")

const hashBufferSize = 64 * 1024

// Extractor maps a file path to a catalog record.
type Extractor struct {
	Retry filesystem.RetryConfig
}

// New returns an Extractor using the default NFS retry policy.
func New() *Extractor {
	return &Extractor{Retry: filesystem.DefaultRetryConfig()}
}

// Extract stats, hashes and probes path. The returned record has no ID; the
// store assigns or reuses one on upsert.
func (e *Extractor) Extract(ctx context.Context, path string) (*catalog.MediaRecord, error) {
	start := time.Now()

	kind := mediatypes.KindOf(path)
	if !kind.Valid() {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	defer func() {
		metrics.ExtractDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	info, err := filesystem.StatWithRetry(ctx, path, e.Retry)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	f, err := filesystem.OpenWithRetry(ctx, path, e.Retry)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()

	hash, size, err := hashFile(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}

	ext := mediatypes.Ext(path)
	now := time.Now()
	rec := &catalog.MediaRecord{
		Path:          path,
		ContentHash:   hash,
		Kind:          kind,
		MimeType:      mediatypes.GetMimeType(ext),
		Size:          size,
		CreatedAt:     info.ModTime(),
		ModifiedAt:    info.ModTime(),
		IndexedAt:     now,
		LastScannedAt: now,
	}

	if kind == mediatypes.KindImage && mediatypes.IsDecodable(ext) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("decode image header: %w", err)
		}
		rec.Width, rec.Height = cfg.Width, cfg.Height
	}

	return rec, nil
}

// hashFile returns the hex BLAKE2b-256 digest of r and the number of bytes
// read, checking ctx between chunks.
func hashFile(ctx context.Context, r io.Reader) (string, int64, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, err
	}

	buf := make([]byte, hashBufferSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", total, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", total, err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), total, nil
}
