package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
)

// ErrInvalidRoot is returned when a scan root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid scan root")

// Enumerate walks root and returns every media file beneath it in walk
// order. Hidden entries are skipped when skipHidden is set. Symlinked files
// are returned; symlinked directories are not descended. Unreadable entries
// are logged and skipped.
func Enumerate(ctx context.Context, root string, skipHidden bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRoot, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		if skipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, statErr := os.Stat(path)
			if statErr != nil {
				logging.Debug("Skipping dangling symlink %s: %v", path, statErr)
				return nil
			}
			if !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if mediatypes.IsMediaFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}
