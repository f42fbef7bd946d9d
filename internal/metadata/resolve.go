package metadata

import "github.com/tagtrack/tagtrack/internal/model"

// ResolveDisplayFields fills a song's missing display fields from its parent
// album: the song's own value always wins, the album only backfills absent
// ones. The song's year default of 1 counts as absent. Callers must pass a
// transient copy; the result is presentation state, never persisted.
func ResolveDisplayFields(s *model.Song) {
	if s == nil || s.Album == nil {
		return
	}
	if s.Image == "" {
		s.Image = s.Album.Image
	}
	if s.Genre == "" {
		s.Genre = s.Album.Genre
	}
	if s.Year <= 1 && s.Album.Year > 0 {
		s.Year = s.Album.Year
	}
}
