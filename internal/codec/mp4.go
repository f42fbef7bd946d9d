package codec

import (
	"fmt"
	"strconv"

	"go.senan.xyz/taglib"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

// MP4Codec handles MP4/M4A containers: ©nam title, ©alb album, ©day year
// (first four characters), ©gen genre, trkn track number, ©ART artists,
// aART album artist, covr cover. The container supports a single embedded
// image only.
type MP4Codec struct{}

func (MP4Codec) Read(path string) (*metadata.Metadata, error) {
	m, err := readWithTag(path)
	if err != nil {
		return nil, ErrNoTags
	}
	return mapTagMeta(m, readDuration(path)), nil
}

// Write serializes the text atoms in place. The existing covr atom is left
// untouched: this container holds one image, and rewriting it would discard
// the cover for songs whose database row has none.
func (MP4Codec) Write(path string, meta *metadata.Metadata) error {
	return writeTextTags(path, meta)
}

// writeTextTags rewrites the container's textual tag fields through
// taglib, shared by the MP4 and Ogg/Opus write-back paths.
func writeTextTags(path string, meta *metadata.Metadata) error {
	tags := map[string][]string{
		taglib.Title: {meta.Name},
	}
	if meta.Genre != "" {
		tags[taglib.Genre] = []string{meta.Genre}
	}
	if meta.Year > 0 {
		tags[taglib.Date] = []string{strconv.Itoa(meta.Year)}
	}
	if meta.Number > 0 {
		tags[taglib.TrackNumber] = []string{strconv.Itoa(meta.Number)}
	}
	if len(meta.Artists) > 0 {
		names := make([]string, 0, len(meta.Artists))
		for _, a := range meta.Artists {
			names = append(names, a.Name)
		}
		tags[taglib.Artist] = names
	}
	if meta.Album != nil {
		tags[taglib.Album] = []string{meta.Album.Name}
		if meta.Album.Artist != "" {
			tags[taglib.AlbumArtist] = []string{meta.Album.Artist}
		}
	}

	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("taglib: write %s: %w", path, err)
	}
	return nil
}
