package metadata

import "github.com/tagtrack/tagtrack/internal/model"

// FromSong builds the normalized record used for write-back from a song row
// with its album and artist relations loaded. Name, number and year are
// always present since the columns carry non-null defaults; genre is only
// emitted when it belongs to the fixed vocabulary. This transform never
// fails: image keys that cannot be loaded are simply omitted.
func FromSong(s *model.Song, images ImageLoader) *Metadata {
	m := &Metadata{
		Name:     s.Name,
		Number:   s.Number,
		Year:     s.Year,
		Duration: s.Duration,
	}

	if ValidGenre(s.Genre) {
		m.Genre = s.Genre
	}
	m.Image = loadImage(images, s.Image)

	if s.Album != nil {
		ref := &AlbumRef{
			Name:  s.Album.Name,
			Genre: s.Album.Genre,
			Year:  s.Album.Year,
			Image: loadImage(images, s.Album.Image),
		}
		// An album always has an artist by construction.
		if s.Album.Artist != nil {
			ref.Artist = s.Album.Artist.Name
		}
		m.Album = ref
	}

	for _, a := range s.Artists {
		m.Artists = append(m.Artists, ArtistRef{
			Name:  a.Name,
			Image: loadImage(images, a.Image),
		})
	}
	return m
}

func loadImage(images ImageLoader, key string) *Picture {
	if images == nil || key == "" {
		return nil
	}
	pic, err := images.LoadImage(key)
	if err != nil {
		return nil
	}
	return pic
}
