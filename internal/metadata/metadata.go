// Package metadata defines the normalized tag record exchanged between the
// container codecs, the upload reconciliation engine and the write-back
// normalizer. Records are owned by the pipeline stage that produced them and
// are never shared mutable state.
package metadata

// Picture is a decoded-and-validated embedded image payload.
type Picture struct {
	MIME string
	Data []byte
}

// ArtistRef is one contributing artist as extracted from a container.
type ArtistRef struct {
	Name  string
	Image *Picture
}

// AlbumRef is the album sub-record. Artist carries the album-artist name;
// an album without a resolvable artist cannot be persisted.
type AlbumRef struct {
	Name   string
	Artist string
	Image  *Picture
	Genre  string
	Year   int
}

// Metadata is the normalized view of one audio container's tag block.
// Zero values mean the field was absent from the container.
type Metadata struct {
	Name     string
	Year     int
	Genre    string
	Number   int
	Duration int
	Image    *Picture
	Artists  []ArtistRef
	Album    *AlbumRef
}

// ImageLoader resolves a blob store key into picture bytes. It is satisfied
// by the blob store; a nil loader skips image fields entirely.
type ImageLoader interface {
	LoadImage(key string) (*Picture, error)
}
