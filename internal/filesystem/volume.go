package filesystem

import (
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
)

const unknownVolume = "unknown"

// VolumeResolver names the volume a path lives on, for metric labels. The
// longest configured directory containing the path wins.
type VolumeResolver struct {
	mounts []mount
}

type mount struct {
	dir  string // absolute, cleaned
	name string
}

// NewVolumeResolver builds a resolver from volume name to directory.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{mounts: make([]mount, 0, len(volumes))}
	for name, dir := range volumes {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		vr.mounts = append(vr.mounts, mount{dir: filepath.Clean(dir), name: name})
	}
	slices.SortFunc(vr.mounts, func(a, b mount) int {
		if d := len(b.dir) - len(a.dir); d != 0 {
			return d
		}
		return strings.Compare(a.name, b.name)
	})
	return vr
}

// Resolve returns the volume holding path, or "unknown". A nil resolver
// knows no volumes.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unknownVolume
	}
	for _, m := range vr.mounts {
		if within(abs, m.dir) {
			return m.name
		}
	}
	return unknownVolume
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if dir == string(filepath.Separator) {
		return strings.HasPrefix(path, dir)
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

var defaultResolver atomic.Pointer[VolumeResolver]

// SetDefaultVolumeResolver installs the resolver used when a RetryConfig
// has none.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver.Store(vr)
}
