// Package store wraps the relational database behind the narrow set of
// primitives the service and the reconciliation engine need: bulk creates,
// fetch-by-name-set lookups, join-row inserts and the retag flag updates.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tagtrack/tagtrack/internal/model"
)

const DefaultDBFile = "tagtrack.sqlite3"

var ErrNotFound = gorm.ErrRecordNotFound

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// NewDBClient opens the database at TAGTRACK_DB_PATH or the default file.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("TAGTRACK_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.SetupJoinTable(&model.Song{}, "Artists", &model.SongArtist{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting up join table: %w", err)
	}
	if err := db.AutoMigrate(&model.Artist{}, &model.Album{}, &model.Song{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Transaction runs fn inside one database transaction. The reconciliation
// fetch-existing → diff → bulk-create sequence must run here so concurrent
// batches cannot race duplicate Artist or Album rows into existence.
func (c *DBClient) Transaction(fn func(tx *DBClient) error) error {
	return c.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&DBClient{DB: tx, db: c.db})
	})
}

// IsUniqueViolation reports whether err is a natural-key collision.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

// --- artists ---

func (c *DBClient) CreateArtist(a *model.Artist) error {
	return c.DB.Create(a).Error
}

func (c *DBClient) CreateArtists(artists []*model.Artist) error {
	if len(artists) == 0 {
		return nil
	}
	return c.DB.CreateInBatches(artists, 200).Error
}

func (c *DBClient) ArtistsByName(names []string) ([]model.Artist, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var out []model.Artist
	if err := c.DB.Where("name IN ?", names).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("querying artists by name: %w", err)
	}
	return out, nil
}

func (c *DBClient) ArtistByID(id uint) (*model.Artist, error) {
	var a model.Artist
	if err := c.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *DBClient) ListArtists(name string, limit, offset int) ([]model.Artist, error) {
	q := c.DB.Model(&model.Artist{})
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	var out []model.Artist
	if err := q.Limit(limit).Offset(offset).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateArtist saves the row and marks every linked song for retag in the
// same transaction.
func (c *DBClient) UpdateArtist(a *model.Artist) error {
	return c.Transaction(func(tx *DBClient) error {
		if err := tx.DB.Save(a).Error; err != nil {
			return err
		}
		return tx.MarkSongsRetagByArtist(a.ID)
	})
}

// DeleteArtist removes the artist, its join rows and its owned albums.
// Songs of those albums fall back to album-less singles.
func (c *DBClient) DeleteArtist(id uint) error {
	return c.Transaction(func(tx *DBClient) error {
		var albumIDs []uint
		if err := tx.DB.Model(&model.Album{}).Where("artist_id = ?", id).
			Pluck("id", &albumIDs).Error; err != nil {
			return err
		}
		if len(albumIDs) > 0 {
			if err := tx.DB.Model(&model.Song{}).Where("album_id IN ?", albumIDs).
				UpdateColumn("album_id", nil).Error; err != nil {
				return err
			}
			if err := tx.DB.Delete(&model.Album{}, albumIDs).Error; err != nil {
				return err
			}
		}
		if err := tx.DB.Where("artist_id = ?", id).Delete(&model.SongArtist{}).Error; err != nil {
			return err
		}
		return tx.DB.Delete(&model.Artist{}, id).Error
	})
}

// --- albums ---

func (c *DBClient) CreateAlbum(a *model.Album) error {
	return c.DB.Create(a).Error
}

func (c *DBClient) CreateAlbums(albums []*model.Album) error {
	if len(albums) == 0 {
		return nil
	}
	return c.DB.CreateInBatches(albums, 200).Error
}

// AlbumsByName fetches candidate albums with their artists loaded; callers
// match on the full (name, artist) key.
func (c *DBClient) AlbumsByName(names []string) ([]model.Album, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var out []model.Album
	if err := c.DB.Preload("Artist").Where("name IN ?", names).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("querying albums by name: %w", err)
	}
	return out, nil
}

func (c *DBClient) AlbumsByArtist(artistID uint) ([]model.Album, error) {
	var out []model.Album
	if err := c.DB.Where("artist_id = ?", artistID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DBClient) AlbumByID(id uint) (*model.Album, error) {
	var a model.Album
	if err := c.DB.Preload("Artist").First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *DBClient) ListAlbums(name string, limit, offset int) ([]model.Album, error) {
	q := c.DB.Model(&model.Album{}).Preload("Artist")
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	var out []model.Album
	if err := q.Limit(limit).Offset(offset).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAlbum saves the row and marks its songs for retag in the same
// transaction.
func (c *DBClient) UpdateAlbum(a *model.Album) error {
	return c.Transaction(func(tx *DBClient) error {
		if err := tx.DB.Save(a).Error; err != nil {
			return err
		}
		return tx.MarkSongsRetagByAlbum(a.ID)
	})
}

// DeleteAlbum removes the album; child songs keep existing without one.
func (c *DBClient) DeleteAlbum(id uint) error {
	return c.Transaction(func(tx *DBClient) error {
		if err := tx.DB.Model(&model.Song{}).Where("album_id = ?", id).
			UpdateColumn("album_id", nil).Error; err != nil {
			return err
		}
		return tx.DB.Delete(&model.Album{}, id).Error
	})
}

// --- songs ---

func (c *DBClient) CreateSong(s *model.Song) error {
	return c.DB.Create(s).Error
}

func (c *DBClient) CreateSongs(songs []*model.Song) error {
	if len(songs) == 0 {
		return nil
	}
	return c.DB.CreateInBatches(songs, 100).Error
}

// SongsByName fetches candidate songs with album and artist relations
// loaded so the engine can build full dedup keys.
func (c *DBClient) SongsByName(names []string) ([]model.Song, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var out []model.Song
	err := c.DB.Preload("Album").Preload("Album.Artist").Preload("Artists").
		Where("name IN ?", names).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("querying songs by name: %w", err)
	}
	return out, nil
}

func (c *DBClient) SongByID(id uint) (*model.Song, error) {
	var s model.Song
	err := c.DB.Preload("Album").Preload("Album.Artist").Preload("Artists").
		First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DBClient) SongsByIDs(ids []uint) ([]model.Song, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []model.Song
	err := c.DB.Preload("Album").Preload("Album.Artist").Preload("Artists").
		Where("id IN ?", ids).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DBClient) ListSongs(name string, limit, offset int) ([]model.Song, error) {
	q := c.DB.Model(&model.Song{}).Preload("Album").Preload("Album.Artist").Preload("Artists")
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	var out []model.Song
	if err := q.Limit(limit).Offset(offset).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSong saves the row; the model hook raises the retag flag.
func (c *DBClient) UpdateSong(s *model.Song) error {
	return c.DB.Save(s).Error
}

func (c *DBClient) DeleteSong(id uint) error {
	return c.Transaction(func(tx *DBClient) error {
		if err := tx.DB.Where("song_id = ?", id).Delete(&model.SongArtist{}).Error; err != nil {
			return err
		}
		return tx.DB.Delete(&model.Song{}, id).Error
	})
}

// LinkSongArtists bulk-inserts artist↔song join rows.
func (c *DBClient) LinkSongArtists(links []model.SongArtist) error {
	if len(links) == 0 {
		return nil
	}
	return c.DB.CreateInBatches(links, 500).Error
}

// ReplaceSongArtists swaps a song's artist links for the given set.
func (c *DBClient) ReplaceSongArtists(songID uint, artistIDs []uint) error {
	return c.Transaction(func(tx *DBClient) error {
		if err := tx.DB.Where("song_id = ?", songID).Delete(&model.SongArtist{}).Error; err != nil {
			return err
		}
		links := make([]model.SongArtist, 0, len(artistIDs))
		for _, id := range artistIDs {
			links = append(links, model.SongArtist{SongID: songID, ArtistID: id})
		}
		return tx.LinkSongArtists(links)
	})
}

// --- retag flag ---

// MarkSongsRetagByAlbum flags every song of the album. UpdateColumn skips
// the model hooks so the flag write does not loop.
func (c *DBClient) MarkSongsRetagByAlbum(albumID uint) error {
	return c.DB.Model(&model.Song{}).Where("album_id = ?", albumID).
		UpdateColumn("retag", true).Error
}

// MarkSongsRetagByArtist flags every song linked to the artist.
func (c *DBClient) MarkSongsRetagByArtist(artistID uint) error {
	sub := c.DB.Model(&model.SongArtist{}).Select("song_id").
		Where("artist_id = ?", artistID)
	return c.DB.Model(&model.Song{}).Where("id IN (?)", sub).
		UpdateColumn("retag", true).Error
}

// ClearRetag lowers the flag after a successful write-back.
func (c *DBClient) ClearRetag(songID uint) error {
	return c.DB.Model(&model.Song{}).Where("id = ?", songID).
		UpdateColumn("retag", false).Error
}
