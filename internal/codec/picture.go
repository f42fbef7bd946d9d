package codec

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

// ValidImage reports whether data decodes as a real image. Embedded
// pictures that fail this check are silently dropped: they are best-effort
// enrichment and must never fail a batch.
func ValidImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	_, _, err := image.Decode(bytes.NewReader(data))
	return err == nil
}

// validatedPicture wraps picture bytes into a metadata record, or nil when
// the payload is not a decodable image.
func validatedPicture(mime string, data []byte) *metadata.Picture {
	if !ValidImage(data) {
		return nil
	}
	if mime == "" {
		mime = DetectImageMIME(data)
	}
	return &metadata.Picture{MIME: mime, Data: data}
}

// DetectImageMIME sniffs an image payload's MIME type from its signature.
func DetectImageMIME(data []byte) string {
	switch {
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("GIF8")):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// sameName compares artist names the way picture descriptions are matched:
// trimmed and case-insensitive.
func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
