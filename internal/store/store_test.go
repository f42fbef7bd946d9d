package store

import (
	"path/filepath"
	"testing"

	"github.com/tagtrack/tagtrack/internal/model"
)

func newTestDB(t *testing.T) *DBClient {
	t.Helper()
	db, err := NewDBClientWithPath(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSong(t *testing.T, db *DBClient, name string, albumID *uint, artistIDs ...uint) *model.Song {
	t.Helper()
	s := &model.Song{Name: name, File: "songs/file/" + name + ".mp3", AlbumID: albumID}
	if err := db.CreateSong(s); err != nil {
		t.Fatalf("creating song %s: %v", name, err)
	}
	var links []model.SongArtist
	for _, id := range artistIDs {
		links = append(links, model.SongArtist{SongID: s.ID, ArtistID: id})
	}
	if err := db.LinkSongArtists(links); err != nil {
		t.Fatalf("linking artists: %v", err)
	}
	return s
}

func TestArtistNameUnique(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateArtist(&model.Artist{Name: "Eminem"}); err != nil {
		t.Fatal(err)
	}
	err := db.CreateArtist(&model.Artist{Name: "Eminem"})
	if err == nil {
		t.Fatal("duplicate artist accepted")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false", err)
	}
}

func TestAlbumKeyUniquePerArtist(t *testing.T) {
	db := newTestDB(t)

	a1 := &model.Artist{Name: "Eminem"}
	a2 := &model.Artist{Name: "Rihanna"}
	if err := db.CreateArtists([]*model.Artist{a1, a2}); err != nil {
		t.Fatal(err)
	}

	if err := db.CreateAlbum(&model.Album{Name: "Greatest Hits", ArtistID: a1.ID}); err != nil {
		t.Fatal(err)
	}
	// Same title under a different artist is a different album.
	if err := db.CreateAlbum(&model.Album{Name: "Greatest Hits", ArtistID: a2.ID}); err != nil {
		t.Fatalf("distinct artist rejected: %v", err)
	}
	if err := db.CreateAlbum(&model.Album{Name: "Greatest Hits", ArtistID: a1.ID}); err == nil {
		t.Fatal("duplicate (name, artist) accepted")
	}
}

func TestSongsByNamePreloadsRelations(t *testing.T) {
	db := newTestDB(t)

	artist := &model.Artist{Name: "Coldplay"}
	if err := db.CreateArtist(artist); err != nil {
		t.Fatal(err)
	}
	album := &model.Album{Name: "Parachutes", ArtistID: artist.ID}
	if err := db.CreateAlbum(album); err != nil {
		t.Fatal(err)
	}
	seedSong(t, db, "Yellow", &album.ID, artist.ID)

	songs, err := db.SongsByName([]string{"Yellow"})
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 1 {
		t.Fatalf("got %d songs", len(songs))
	}
	s := songs[0]
	if s.Album == nil || s.Album.Name != "Parachutes" {
		t.Errorf("album not loaded: %+v", s.Album)
	}
	if s.Album.Artist == nil || s.Album.Artist.Name != "Coldplay" {
		t.Error("album artist not loaded")
	}
	if len(s.Artists) != 1 || s.Artists[0].Name != "Coldplay" {
		t.Errorf("artists not loaded: %+v", s.Artists)
	}
}

func TestUpdateSongRaisesRetag(t *testing.T) {
	db := newTestDB(t)

	s := seedSong(t, db, "Fix You", nil)
	if s.Retag {
		t.Fatal("retag raised on create")
	}

	s.Name = "Fix You (Remaster)"
	if err := db.UpdateSong(s); err != nil {
		t.Fatal(err)
	}
	got, err := db.SongByID(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Retag {
		t.Error("retag not raised by update")
	}

	if err := db.ClearRetag(s.ID); err != nil {
		t.Fatal(err)
	}
	got, err = db.SongByID(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Retag {
		t.Error("ClearRetag raised it back")
	}
}

func TestUpdateAlbumMarksChildSongs(t *testing.T) {
	db := newTestDB(t)

	artist := &model.Artist{Name: "Coldplay"}
	if err := db.CreateArtist(artist); err != nil {
		t.Fatal(err)
	}
	album := &model.Album{Name: "X&Y", ArtistID: artist.ID}
	if err := db.CreateAlbum(album); err != nil {
		t.Fatal(err)
	}
	inAlbum := seedSong(t, db, "Talk", &album.ID)
	singleton := seedSong(t, db, "Loner", nil)

	album.Year = 2005
	if err := db.UpdateAlbum(album); err != nil {
		t.Fatal(err)
	}

	got, _ := db.SongByID(inAlbum.ID)
	if !got.Retag {
		t.Error("album edit did not flag child song")
	}
	got, _ = db.SongByID(singleton.ID)
	if got.Retag {
		t.Error("album edit flagged an unrelated song")
	}
}

func TestUpdateArtistMarksLinkedSongs(t *testing.T) {
	db := newTestDB(t)

	a1 := &model.Artist{Name: "Eminem"}
	a2 := &model.Artist{Name: "Adele"}
	if err := db.CreateArtists([]*model.Artist{a1, a2}); err != nil {
		t.Fatal(err)
	}
	linked := seedSong(t, db, "Stan", nil, a1.ID)
	other := seedSong(t, db, "Hello", nil, a2.ID)

	a1.Name = "Slim Shady"
	if err := db.UpdateArtist(a1); err != nil {
		t.Fatal(err)
	}

	got, _ := db.SongByID(linked.ID)
	if !got.Retag {
		t.Error("artist edit did not flag linked song")
	}
	got, _ = db.SongByID(other.ID)
	if got.Retag {
		t.Error("artist edit flagged an unlinked song")
	}
}

func TestDeleteArtistCascade(t *testing.T) {
	db := newTestDB(t)

	artist := &model.Artist{Name: "Coldplay"}
	if err := db.CreateArtist(artist); err != nil {
		t.Fatal(err)
	}
	album := &model.Album{Name: "Parachutes", ArtistID: artist.ID}
	if err := db.CreateAlbum(album); err != nil {
		t.Fatal(err)
	}
	song := seedSong(t, db, "Yellow", &album.ID, artist.ID)

	if err := db.DeleteArtist(artist.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := db.ArtistByID(artist.ID); err == nil {
		t.Error("artist survived delete")
	}
	if _, err := db.AlbumByID(album.ID); err == nil {
		t.Error("owned album survived delete")
	}
	got, err := db.SongByID(song.ID)
	if err != nil {
		t.Fatal("song should survive artist delete")
	}
	if got.AlbumID != nil {
		t.Error("song still points at the deleted album")
	}
	if len(got.Artists) != 0 {
		t.Error("join rows survived delete")
	}
}

func TestDeleteAlbumDetachesSongs(t *testing.T) {
	db := newTestDB(t)

	artist := &model.Artist{Name: "Adele"}
	if err := db.CreateArtist(artist); err != nil {
		t.Fatal(err)
	}
	album := &model.Album{Name: "21", ArtistID: artist.ID}
	if err := db.CreateAlbum(album); err != nil {
		t.Fatal(err)
	}
	song := seedSong(t, db, "Someone Like You", &album.ID, artist.ID)

	if err := db.DeleteAlbum(album.ID); err != nil {
		t.Fatal(err)
	}
	got, err := db.SongByID(song.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AlbumID != nil {
		t.Error("song still attached to deleted album")
	}
}

func TestReplaceSongArtists(t *testing.T) {
	db := newTestDB(t)

	a1 := &model.Artist{Name: "First"}
	a2 := &model.Artist{Name: "Second"}
	if err := db.CreateArtists([]*model.Artist{a1, a2}); err != nil {
		t.Fatal(err)
	}
	song := seedSong(t, db, "Song", nil, a1.ID)

	if err := db.ReplaceSongArtists(song.ID, []uint{a2.ID}); err != nil {
		t.Fatal(err)
	}
	got, err := db.SongByID(song.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Artists) != 1 || got.Artists[0].Name != "Second" {
		t.Errorf("Artists = %+v", got.Artists)
	}
}
