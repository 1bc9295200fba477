/*
Package filesystem provides filesystem operations that retry NFS stale file
handle errors.

Media trees are often NFS mounts. A scan that races a server-side change can
see ESTALE (errno 116) on a file that is perfectly readable a moment later.
StatWithRetry and OpenWithRetry retry only that error, with exponential
backoff capped at MaxBackoff, and give up early when the context is done.

	f, err := filesystem.OpenWithRetry(ctx, path, filesystem.DefaultRetryConfig())

# Metrics

Each call, retry, stale error and final outcome is reported to the Observer
installed with SetObserver, labelled with the volume a VolumeResolver maps
the path to:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "media":    "/srv/photos",
	    "database": "/var/lib/media-catalog",
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
