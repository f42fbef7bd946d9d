// Package service is the application facade: upload reconciliation, entity
// CRUD with blob and retag cascades, search and tag export sit behind one
// type so the HTTP handlers and the CLI share identical semantics.
package service

import (
	"errors"

	"github.com/tagtrack/tagtrack/internal/blob"
	"github.com/tagtrack/tagtrack/internal/codec"
	"github.com/tagtrack/tagtrack/internal/metadata"
	"github.com/tagtrack/tagtrack/internal/model"
	"github.com/tagtrack/tagtrack/internal/store"
	"github.com/tagtrack/tagtrack/internal/upload"
	"github.com/tagtrack/tagtrack/pkg/logger"
)

var (
	ErrNotFound     = errors.New("service: not found")
	ErrConflict     = errors.New("service: entity already exists")
	ErrInvalidGenre = errors.New("service: genre not in vocabulary")
	ErrInvalidImage = errors.New("service: payload is not a decodable image")
)

type LibraryService struct {
	db     *store.DBClient
	blobs  *blob.Store
	engine *upload.Engine
	log    *logger.Logger
}

func NewLibraryService(db *store.DBClient, blobs *blob.Store) *LibraryService {
	return &LibraryService{
		db:     db,
		blobs:  blobs,
		engine: upload.NewEngine(db, blobs),
		log:    logger.GetLogger(),
	}
}

func (s *LibraryService) Close() error {
	return s.db.Close()
}

// Upload reconciles a batch of audio files into the library.
func (s *LibraryService) Upload(files []upload.File) (*upload.Result, error) {
	return s.engine.Reconcile(files)
}

// Genres returns the fixed genre vocabulary.
func (s *LibraryService) Genres() []string {
	return metadata.Genres
}

// SearchResult groups name matches across the three entity kinds.
type SearchResult struct {
	Artists []model.Artist `json:"artists"`
	Albums  []model.Album  `json:"albums"`
	Songs   []model.Song   `json:"songs"`
}

// Search runs a substring name match over artists, albums and songs. Song
// rows come back with display fields resolved against their album.
func (s *LibraryService) Search(q string, limit, offset int) (*SearchResult, error) {
	artists, err := s.db.ListArtists(q, limit, offset)
	if err != nil {
		return nil, err
	}
	albums, err := s.db.ListAlbums(q, limit, offset)
	if err != nil {
		return nil, err
	}
	songs, err := s.db.ListSongs(q, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range songs {
		metadata.ResolveDisplayFields(&songs[i])
	}
	return &SearchResult{Artists: artists, Albums: albums, Songs: songs}, nil
}

// saveImage validates and stores an image payload, returning its blob key.
func (s *LibraryService) saveImage(entity string, data []byte) (string, error) {
	if !codec.ValidImage(data) {
		return "", ErrInvalidImage
	}
	mime := codec.DetectImageMIME(data)
	return s.blobs.SaveBytes(entity, "image", blob.ExtForMIME(mime), data)
}

func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if store.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}
