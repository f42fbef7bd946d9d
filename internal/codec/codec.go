// Package codec maps between container-native tag frames and the normalized
// metadata record. One codec per container family: ID3 for MP3, atom keys
// for MP4/M4A, vorbis comments for FLAC/Ogg/Opus. Selection happens once via
// container sniffing, never via error-driven fallback.
package codec

import (
	"errors"
	"time"

	"go.senan.xyz/taglib"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

var (
	// ErrNoTags means the container is valid but carries no recognizable
	// tag block. Callers treat the file as untagged, not as a failure.
	ErrNoTags = errors.New("codec: no tag block found")

	// ErrUnsupportedFormat means the sniffed bytes match no known family.
	ErrUnsupportedFormat = errors.New("codec: unsupported container format")

	// ErrWriteUnsupported is returned by write-back paths that cannot
	// rewrite the container in place.
	ErrWriteUnsupported = errors.New("codec: write-back not supported for this container")
)

// Codec reads a container's tag block into a normalized record and
// serializes a record back into the container in place.
type Codec interface {
	Read(path string) (*metadata.Metadata, error)
	Write(path string, meta *metadata.Metadata) error
}

// For returns the codec for a sniffed container family.
func For(f Format) (Codec, error) {
	switch f {
	case FormatMP3:
		return ID3Codec{}, nil
	case FormatMP4:
		return MP4Codec{}, nil
	case FormatFLAC, FormatOgg:
		return VorbisCodec{}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ForPath sniffs the file and returns the matching codec.
func ForPath(path string) (Codec, error) {
	format, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	return For(format)
}

// readDuration pulls the stream length from the container's audio
// properties. Failures degrade to 0 rather than aborting a read: duration
// is enrichment, not a required field.
func readDuration(path string) int {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return 0
	}
	return int(props.Length / time.Second)
}
