package service

import "github.com/tagtrack/tagtrack/internal/model"

// ArtistInput carries the writable artist fields. A nil Image leaves the
// stored image untouched.
type ArtistInput struct {
	Name  string
	Image []byte
}

func (s *LibraryService) CreateArtist(in ArtistInput) (*model.Artist, error) {
	row := &model.Artist{Name: in.Name}
	if in.Image != nil {
		key, err := s.saveImage("artists", in.Image)
		if err != nil {
			return nil, err
		}
		row.Image = key
	}
	if err := s.db.CreateArtist(row); err != nil {
		s.blobs.Delete(row.Image)
		return nil, mapStoreErr(err)
	}
	return row, nil
}

func (s *LibraryService) GetArtist(id uint) (*model.Artist, error) {
	a, err := s.db.ArtistByID(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return a, nil
}

func (s *LibraryService) ListArtists(name string, limit, offset int) ([]model.Artist, error) {
	return s.db.ListArtists(name, limit, offset)
}

// UpdateArtist renames the artist or swaps its image. Every song linked to
// the artist is marked for retag.
func (s *LibraryService) UpdateArtist(id uint, in ArtistInput) (*model.Artist, error) {
	row, err := s.db.ArtistByID(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	oldImage := ""
	if in.Name != "" {
		row.Name = in.Name
	}
	if in.Image != nil {
		key, err := s.saveImage("artists", in.Image)
		if err != nil {
			return nil, err
		}
		oldImage = row.Image
		row.Image = key
	}

	if err := s.db.UpdateArtist(row); err != nil {
		s.blobs.Delete(row.Image)
		return nil, mapStoreErr(err)
	}
	s.blobs.Delete(oldImage)
	return row, nil
}

// DeleteArtist removes the artist and its owned albums. Their songs survive
// as album-less singles; the artist and album images are released.
func (s *LibraryService) DeleteArtist(id uint) error {
	row, err := s.db.ArtistByID(id)
	if err != nil {
		return mapStoreErr(err)
	}
	albums, err := s.db.AlbumsByArtist(id)
	if err != nil {
		return err
	}

	if err := s.db.DeleteArtist(id); err != nil {
		return mapStoreErr(err)
	}

	s.blobs.Delete(row.Image)
	for _, a := range albums {
		s.blobs.Delete(a.Image)
	}
	return nil
}
