package service

import (
	"github.com/tagtrack/tagtrack/internal/metadata"
	"github.com/tagtrack/tagtrack/internal/model"
)

// AlbumInput carries the writable album fields. Zero values on update mean
// keep the existing value; Genre must come from the vocabulary.
type AlbumInput struct {
	Name     string
	ArtistID uint
	Genre    string
	Year     int
	Image    []byte
}

func (s *LibraryService) CreateAlbum(in AlbumInput) (*model.Album, error) {
	if in.Genre != "" && !metadata.ValidGenre(in.Genre) {
		return nil, ErrInvalidGenre
	}
	if _, err := s.db.ArtistByID(in.ArtistID); err != nil {
		return nil, mapStoreErr(err)
	}

	row := &model.Album{
		Name:     in.Name,
		ArtistID: in.ArtistID,
		Genre:    in.Genre,
		Year:     in.Year,
	}
	if in.Image != nil {
		key, err := s.saveImage("albums", in.Image)
		if err != nil {
			return nil, err
		}
		row.Image = key
	}
	if err := s.db.CreateAlbum(row); err != nil {
		s.blobs.Delete(row.Image)
		return nil, mapStoreErr(err)
	}
	return row, nil
}

func (s *LibraryService) GetAlbum(id uint) (*model.Album, error) {
	a, err := s.db.AlbumByID(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return a, nil
}

func (s *LibraryService) ListAlbums(name string, limit, offset int) ([]model.Album, error) {
	return s.db.ListAlbums(name, limit, offset)
}

// UpdateAlbum edits album fields and marks every child song for retag.
func (s *LibraryService) UpdateAlbum(id uint, in AlbumInput) (*model.Album, error) {
	row, err := s.db.AlbumByID(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if in.Name != "" {
		row.Name = in.Name
	}
	if in.ArtistID != 0 && in.ArtistID != row.ArtistID {
		if _, err := s.db.ArtistByID(in.ArtistID); err != nil {
			return nil, mapStoreErr(err)
		}
		row.ArtistID = in.ArtistID
		row.Artist = nil
	}
	if in.Genre != "" {
		if !metadata.ValidGenre(in.Genre) {
			return nil, ErrInvalidGenre
		}
		row.Genre = in.Genre
	}
	if in.Year != 0 {
		row.Year = in.Year
	}

	oldImage := ""
	if in.Image != nil {
		key, err := s.saveImage("albums", in.Image)
		if err != nil {
			return nil, err
		}
		oldImage = row.Image
		row.Image = key
	}

	if err := s.db.UpdateAlbum(row); err != nil {
		s.blobs.Delete(row.Image)
		return nil, mapStoreErr(err)
	}
	s.blobs.Delete(oldImage)
	return row, nil
}

// DeleteAlbum removes the album and releases its image. Child songs persist
// without one.
func (s *LibraryService) DeleteAlbum(id uint) error {
	row, err := s.db.AlbumByID(id)
	if err != nil {
		return mapStoreErr(err)
	}
	if err := s.db.DeleteAlbum(id); err != nil {
		return mapStoreErr(err)
	}
	return s.blobs.Delete(row.Image)
}
