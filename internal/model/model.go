package model

import (
	"time"

	"gorm.io/gorm"
)

// Artist is identified by its unique name. Image holds a blob store key,
// empty when no image is attached.
type Artist struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:200;uniqueIndex;not null" json:"name"`
	Image     string `gorm:"size:255" json:"image,omitempty"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Albums []Album `json:"-"`
	Songs  []*Song `gorm:"many2many:song_artists" json:"-"`
}

// Album is identified by the (name, artist) pair. Year and Genre are
// optional; zero values mean unset.
type Album struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:200;uniqueIndex:idx_album_key,priority:1;not null" json:"name"`
	ArtistID  uint   `gorm:"uniqueIndex:idx_album_key,priority:2" json:"artist_id"`
	Artist    *Artist `json:"artist,omitempty"`
	Image     string `gorm:"size:255" json:"image,omitempty"`
	Genre     string `gorm:"size:100" json:"genre,omitempty"`
	Year      int    `json:"year,omitempty"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Songs []Song `json:"-"`
}

// Song carries the audio blob key in File and a Retag flag that is raised
// whenever the embedded tags may be stale relative to this row.
type Song struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     string  `gorm:"size:200;not null" json:"name"`
	File     string  `gorm:"size:255;not null" json:"file"`
	Duration int     `json:"duration"`
	Genre    string  `gorm:"size:100" json:"genre,omitempty"`
	Number   int     `gorm:"default:1" json:"number"`
	Year     int     `gorm:"default:1" json:"year"`
	Image    string  `gorm:"size:255" json:"image,omitempty"`
	Retag    bool    `gorm:"default:false" json:"retag"`
	AlbumID  *uint   `json:"album_id,omitempty"`
	Album    *Album  `json:"album,omitempty"`
	Artists  []*Artist `gorm:"many2many:song_artists" json:"artists,omitempty"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// SongArtist is the explicit join row between songs and artists so the
// reconciliation engine can bulk-insert links.
type SongArtist struct {
	SongID   uint `gorm:"primaryKey"`
	ArtistID uint `gorm:"primaryKey"`
}

// BeforeUpdate marks a song as needing tag regeneration. The primary-key
// guard keeps initial creation from raising the flag.
func (s *Song) BeforeUpdate(tx *gorm.DB) error {
	if s.ID == 0 {
		return nil
	}
	s.Retag = true
	if tx.Statement != nil {
		tx.Statement.SetColumn("retag", true)
	}
	return nil
}
