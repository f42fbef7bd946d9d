package service

import (
	"github.com/tagtrack/tagtrack/internal/metadata"
	"github.com/tagtrack/tagtrack/internal/model"
)

// SongInput carries the writable song fields. Zero values mean keep the
// existing value; AlbumID and ArtistIDs replace the relation when non-nil.
type SongInput struct {
	Name       string
	Genre      string
	Number     int
	Year       int
	AlbumID    *uint
	ClearAlbum bool
	ArtistIDs  []uint
	Image      []byte
}

// GetSong loads a song with display fields resolved against its album.
func (s *LibraryService) GetSong(id uint) (*model.Song, error) {
	row, err := s.db.SongByID(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	metadata.ResolveDisplayFields(row)
	return row, nil
}

func (s *LibraryService) ListSongs(name string, limit, offset int) ([]model.Song, error) {
	songs, err := s.db.ListSongs(name, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range songs {
		metadata.ResolveDisplayFields(&songs[i])
	}
	return songs, nil
}

// UpdateSong edits song fields and relations. The saved row comes back with
// its retag flag raised by the model hook.
func (s *LibraryService) UpdateSong(id uint, in SongInput) (*model.Song, error) {
	row, err := s.db.SongByID(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if in.Name != "" {
		row.Name = in.Name
	}
	if in.Genre != "" {
		if !metadata.ValidGenre(in.Genre) {
			return nil, ErrInvalidGenre
		}
		row.Genre = in.Genre
	}
	if in.Number > 0 {
		row.Number = in.Number
	}
	if in.Year > 0 {
		row.Year = in.Year
	}
	switch {
	case in.ClearAlbum:
		row.AlbumID = nil
		row.Album = nil
	case in.AlbumID != nil:
		if _, err := s.db.AlbumByID(*in.AlbumID); err != nil {
			return nil, mapStoreErr(err)
		}
		row.AlbumID = in.AlbumID
		row.Album = nil
	}

	oldImage := ""
	if in.Image != nil {
		key, err := s.saveImage("songs", in.Image)
		if err != nil {
			return nil, err
		}
		oldImage = row.Image
		row.Image = key
	}

	// Relation fields are detached before save so gorm only writes the
	// song row itself; artist links go through the join table explicitly.
	row.Artists = nil
	if err := s.db.UpdateSong(row); err != nil {
		s.blobs.Delete(row.Image)
		return nil, mapStoreErr(err)
	}
	s.blobs.Delete(oldImage)

	if in.ArtistIDs != nil {
		for _, aid := range in.ArtistIDs {
			if _, err := s.db.ArtistByID(aid); err != nil {
				return nil, mapStoreErr(err)
			}
		}
		if err := s.db.ReplaceSongArtists(id, in.ArtistIDs); err != nil {
			return nil, mapStoreErr(err)
		}
	}
	return s.GetSong(id)
}

// DeleteSong removes the song row, its artist links and its audio and image
// blobs.
func (s *LibraryService) DeleteSong(id uint) error {
	row, err := s.db.SongByID(id)
	if err != nil {
		return mapStoreErr(err)
	}
	if err := s.db.DeleteSong(id); err != nil {
		return mapStoreErr(err)
	}
	s.blobs.Delete(row.File)
	return s.blobs.Delete(row.Image)
}
