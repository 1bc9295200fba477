package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind classifies a catalogued media file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	// KindOther is never catalogued.
	KindOther Kind = "other"
)

// Valid reports whether k is one of the catalogued kinds.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo || k == KindAudio
}

// Format describes one recognised file extension.
type Format struct {
	Kind Kind
	MIME string
	// Decodable is set for images with a registered Go decoder.
	Decodable bool
}

const octetStream = "application/octet-stream"

var formats = map[string]Format{
	".jpg":  {KindImage, "image/jpeg", true},
	".jpeg": {KindImage, "image/jpeg", true},
	".png":  {KindImage, "image/png", true},
	".gif":  {KindImage, "image/gif", true},
	".bmp":  {KindImage, "image/bmp", true},
	".webp": {KindImage, "image/webp", true},
	".tiff": {KindImage, "image/tiff", true},
	".tif":  {KindImage, "image/tiff", true},
	".svg":  {KindImage, "image/svg+xml", false},
	".ico":  {KindImage, "image/x-icon", false},
	".heic": {KindImage, "image/heic", false},
	".heif": {KindImage, "image/heif", false},

	".mp4":  {KindVideo, "video/mp4", false},
	".m4v":  {KindVideo, "video/x-m4v", false},
	".mkv":  {KindVideo, "video/x-matroska", false},
	".webm": {KindVideo, "video/webm", false},
	".avi":  {KindVideo, "video/x-msvideo", false},
	".mov":  {KindVideo, "video/quicktime", false},
	".wmv":  {KindVideo, "video/x-ms-wmv", false},
	".flv":  {KindVideo, "video/x-flv", false},
	".mpeg": {KindVideo, "video/mpeg", false},
	".mpg":  {KindVideo, "video/mpeg", false},
	".3gp":  {KindVideo, "video/3gpp", false},
	".ts":   {KindVideo, "video/mp2t", false},

	".mp3":  {KindAudio, "audio/mpeg", false},
	".m4a":  {KindAudio, "audio/mp4", false},
	".aac":  {KindAudio, "audio/aac", false},
	".flac": {KindAudio, "audio/flac", false},
	".wav":  {KindAudio, "audio/wav", false},
	".aiff": {KindAudio, "audio/aiff", false},
	".ogg":  {KindAudio, "audio/ogg", false},
	".opus": {KindAudio, "audio/opus", false},
	".wma":  {KindAudio, "audio/x-ms-wma", false},
	".ape":  {KindAudio, "audio/x-ape", false},
}

// Ext returns the lowercase extension of path including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Lookup returns the format registered for a lowercase extension.
func Lookup(ext string) (Format, bool) {
	f, ok := formats[ext]
	return f, ok
}

// GetKind classifies a lowercase extension such as ".jpg".
func GetKind(ext string) Kind {
	if f, ok := formats[ext]; ok {
		return f.Kind
	}
	return KindOther
}

func KindOf(path string) Kind { return GetKind(Ext(path)) }

// GetMimeType falls back to application/octet-stream.
func GetMimeType(ext string) string {
	if f, ok := formats[ext]; ok {
		return f.MIME
	}
	return octetStream
}

// IsDecodable reports whether the extension is an image the standard
// decoders (plus x/image) can read.
func IsDecodable(ext string) bool {
	return formats[ext].Decodable
}

func IsMediaFile(path string) bool {
	return KindOf(path) != KindOther
}

// Extensions lists the registered extensions of one kind.
func Extensions(k Kind) []string {
	var out []string
	for ext, f := range formats {
		if f.Kind == k {
			out = append(out, ext)
		}
	}
	return out
}
