//go:build novips

package faces

import (
	"context"
	"errors"
)

// ErrNativeUnavailable is returned when the native strategy is requested
// from a binary built with the novips tag.
var ErrNativeUnavailable = errors.New("native face detector not compiled in (built with -tags novips)")

type nativeBackend struct{}

func newNativeBackend(int) (*nativeBackend, error) {
	return nil, ErrNativeUnavailable
}

func (*nativeBackend) detect(context.Context, string) (*frame, []Detection, error) {
	return nil, nil, ErrNativeUnavailable
}

func (*nativeBackend) close() {}

// ShutdownVips is a no-op without libvips.
func ShutdownVips() {}
