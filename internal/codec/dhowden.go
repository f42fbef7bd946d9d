package codec

import (
	"os"

	"github.com/dhowden/tag"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

// Picture type labels as dhowden/tag renders them.
const (
	picTypeFrontCover = "Cover (front)"
	picTypeMedia      = "Media (e.g. label side of CD)"
	picTypeArtist     = "Artist/performer"
)

func readWithTag(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Covers both tag.ErrNoTagsFound and corrupt containers.
		return nil, ErrNoTags
	}
	return m, nil
}

// mapTagMeta converts a dhowden metadata view into the normalized record.
// These containers expose a single embedded picture, so the album cover and
// per-artist images cannot coexist; the album cover takes precedence when
// an album is present.
func mapTagMeta(m tag.Metadata, duration int) *metadata.Metadata {
	out := &metadata.Metadata{
		Name:     m.Title(),
		Genre:    m.Genre(),
		Year:     m.Year(),
		Duration: duration,
	}
	if out.Name == "" {
		out.Name = "unnamed"
	}
	if n, _ := m.Track(); n >= 1 {
		out.Number = n
	} else {
		out.Number = 1
	}

	for _, name := range splitArtists(m.Artist()) {
		out.Artists = append(out.Artists, metadata.ArtistRef{Name: name})
	}

	albumArtist := m.AlbumArtist()
	if albumArtist == "" && len(out.Artists) > 0 {
		albumArtist = out.Artists[0].Name
	}

	var cover *metadata.Picture
	if p := m.Picture(); p != nil {
		if pic := validatedPicture(p.MIMEType, p.Data); pic != nil {
			switch p.Type {
			case picTypeArtist:
				// Matched to an artist by description; unmatched
				// artist pictures are dropped.
				for i := range out.Artists {
					if sameName(p.Description, out.Artists[i].Name) {
						out.Artists[i].Image = pic
						break
					}
				}
			case "", picTypeFrontCover, picTypeMedia:
				cover = pic
			}
		}
	}

	if album := m.Album(); album != "" {
		out.Album = &metadata.AlbumRef{
			Name:   album,
			Artist: albumArtist,
			Image:  cover,
			Year:   out.Year,
		}
	} else {
		out.Image = cover
	}
	return out
}
