// Package mediatypes provides shared type definitions for classifying media
// files by extension.
//
// This package exists as a dependency-free foundation that can be imported by
// the enumerator, the fact extractor and the stores without creating import
// cycles.
//
// # Kinds
//
//	mediatypes.KindImage // jpg, png, gif, webp, tiff, heic, ...
//	mediatypes.KindVideo // mp4, mkv, mov, ...
//	mediatypes.KindAudio // mp3, flac, ogg, ...
//	mediatypes.KindOther // anything else; never catalogued
//
// Use KindOf for a path, or GetKind for an already-lowercased extension:
//
//	switch mediatypes.KindOf(path) {
//	case mediatypes.KindImage:
//	    // eligible for face detection
//	}
//
// # Decodable images
//
// IsDecodable reports the formats with a registered Go decoder.
// The fact extractor treats a header decode failure on one of these as a
// corrupt file, and unknown dimensions on any other image format as normal.
package mediatypes
