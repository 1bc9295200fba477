// Package extract derives catalog facts from a media file: kind and MIME
// type from the extension, size and timestamps from stat, a BLAKE2b-256
// content hash, and pixel dimensions for images with a Go decoder.
//
// File access goes through package filesystem so a stale NFS handle is
// retried instead of counted as a failure.
package extract
