package codec

import (
	"bytes"
	"io"
	"os"
)

// Format identifies a container family after sniffing the file's magic
// bytes. Detection never trusts the client-declared content type.
type Format int

const (
	FormatUnknown Format = iota
	FormatMP3
	FormatMP4
	FormatFLAC
	FormatOgg
)

func (f Format) String() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatMP4:
		return "mp4"
	case FormatFLAC:
		return "flac"
	case FormatOgg:
		return "ogg"
	default:
		return "unknown"
	}
}

// Sniff reads the leading bytes of the file at path and identifies the
// container family. FormatUnknown means the file is not a playable audio
// container and must be rejected at the batch boundary.
func Sniff(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return FormatUnknown, nil
	}
	return SniffBytes(head[:n]), nil
}

// SniffBytes identifies a container family from its leading bytes.
func SniffBytes(b []byte) Format {
	switch {
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("fLaC")):
		return FormatFLAC
	case len(b) >= 4 && bytes.Equal(b[:4], []byte("OggS")):
		return FormatOgg
	case len(b) >= 8 && bytes.Equal(b[4:8], []byte("ftyp")):
		return FormatMP4
	case len(b) >= 3 && bytes.Equal(b[:3], []byte("ID3")):
		return FormatMP3
	case isMPEGFrameSync(b):
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// isMPEGFrameSync recognizes a bare MPEG audio frame header, which is what
// an MP3 without an ID3 block starts with.
func isMPEGFrameSync(b []byte) bool {
	if len(b) < 3 {
		return false
	}
	if b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return false
	}
	version := (b[1] >> 3) & 0x03
	layer := (b[1] >> 1) & 0x03
	bitrate := b[2] >> 4
	// 0b01 is a reserved version, layer 0 and bitrate 0xF are invalid.
	return version != 0x01 && layer != 0x00 && bitrate != 0x0F
}
