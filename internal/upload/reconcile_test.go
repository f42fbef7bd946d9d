package upload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tagtrack/tagtrack/internal/blob"
	"github.com/tagtrack/tagtrack/internal/codec"
	"github.com/tagtrack/tagtrack/internal/metadata"
	"github.com/tagtrack/tagtrack/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.DBClient) {
	t.Helper()
	db, err := store.NewDBClientWithPath(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	blobs, err := blob.NewStore(filepath.Join(t.TempDir(), "media"))
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(db, blobs), db
}

// taggedMP3 creates a fixture with a bare MPEG frame header and the given
// tags serialized into an ID3 block.
func taggedMP3(t *testing.T, dir, name string, meta *metadata.Metadata) File {
	t.Helper()
	path := filepath.Join(dir, name)
	data := make([]byte, 256)
	copy(data, []byte{0xFF, 0xFB, 0x90, 0x00})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if meta != nil {
		if err := (codec.ID3Codec{}).Write(path, meta); err != nil {
			t.Fatalf("tagging fixture %s: %v", name, err)
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return File{Name: name, Path: path, Size: info.Size()}
}

func recoveryBatch(t *testing.T, dir string) []File {
	t.Helper()
	return []File{
		taggedMP3(t, dir, "lie.mp3", &metadata.Metadata{
			Name:    "Love The Way You Lie",
			Genre:   "Rap",
			Year:    2010,
			Number:  15,
			Artists: []metadata.ArtistRef{{Name: "Eminem"}, {Name: "Rihanna"}},
			Album:   &metadata.AlbumRef{Name: "Recovery", Artist: "Eminem"},
		}),
		taggedMP3(t, dir, "afraid.mp3", &metadata.Metadata{
			Name:    "Not Afraid",
			Genre:   "Pop",
			Year:    2010,
			Number:  7,
			Artists: []metadata.ArtistRef{{Name: "Eminem"}},
			Album:   &metadata.AlbumRef{Name: "Recovery", Artist: "Eminem"},
		}),
		taggedMP3(t, dir, "nolove.mp3", &metadata.Metadata{
			Name:    "No Love",
			Genre:   "Rap",
			Year:    2010,
			Number:  10,
			Artists: []metadata.ArtistRef{{Name: "Eminem"}, {Name: "Lil Wayne"}},
			Album:   &metadata.AlbumRef{Name: "Recovery", Artist: "Eminem"},
		}),
	}
}

func TestReconcileBatch(t *testing.T) {
	e, db := newTestEngine(t)

	res, err := e.Reconcile(recoveryBatch(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if res.CreatedSongs != 3 {
		t.Errorf("CreatedSongs = %d, want 3", res.CreatedSongs)
	}
	if res.CreatedAlbums != 1 {
		t.Errorf("CreatedAlbums = %d, want 1", res.CreatedAlbums)
	}
	if res.CreatedArtists != 3 {
		t.Errorf("CreatedArtists = %d, want 3 (Eminem, Rihanna, Lil Wayne)", res.CreatedArtists)
	}
	if res.InvalidCount != 0 || res.DuplicateCount != 0 {
		t.Errorf("Invalid/Duplicate = %d/%d", res.InvalidCount, res.DuplicateCount)
	}

	albums, err := db.AlbumsByName([]string{"Recovery"})
	if err != nil || len(albums) != 1 {
		t.Fatalf("albums = %v, %v", albums, err)
	}
	if albums[0].Artist == nil || albums[0].Artist.Name != "Eminem" {
		t.Error("album artist not Eminem")
	}
	// Rap appears twice, Pop once.
	if albums[0].Genre != "Rap" {
		t.Errorf("album genre = %q, want Rap (majority)", albums[0].Genre)
	}
	if albums[0].Year != 2010 {
		t.Errorf("album year = %d", albums[0].Year)
	}

	songs, err := db.SongsByName([]string{"Love The Way You Lie"})
	if err != nil || len(songs) != 1 {
		t.Fatalf("songs = %v, %v", songs, err)
	}
	if len(songs[0].Artists) != 2 {
		t.Errorf("song artist links = %d, want 2", len(songs[0].Artists))
	}
	if songs[0].File == "" {
		t.Error("no audio blob key recorded")
	}
	if songs[0].Retag {
		t.Error("fresh song marked for retag")
	}
	if songs[0].Album == nil || songs[0].Album.Name != "Recovery" {
		t.Error("song not attached to its album")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.Reconcile(recoveryBatch(t, t.TempDir())); err != nil {
		t.Fatal(err)
	}
	// The first run consumed the temp files, so rebuild the fixtures.
	res, err := e.Reconcile(recoveryBatch(t, t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	if res.CreatedSongs != 0 || res.CreatedAlbums != 0 || res.CreatedArtists != 0 {
		t.Errorf("re-upload created %d/%d/%d entities",
			res.CreatedArtists, res.CreatedAlbums, res.CreatedSongs)
	}
	if res.DuplicateCount != 3 {
		t.Errorf("DuplicateCount = %d, want 3", res.DuplicateCount)
	}
}

func TestReconcileInvalidFile(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()

	junk := filepath.Join(dir, "junk.mp3")
	if err := os.WriteFile(junk, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	files := []File{
		{Name: "junk.mp3", Path: junk, Size: 20},
		taggedMP3(t, dir, "real.mp3", &metadata.Metadata{
			Name:    "Real Song",
			Artists: []metadata.ArtistRef{{Name: "Somebody"}},
		}),
	}
	res, err := e.Reconcile(files)
	if err != nil {
		t.Fatalf("one bad file aborted the batch: %v", err)
	}
	if res.InvalidCount != 1 || len(res.InvalidFiles) != 1 {
		t.Fatalf("InvalidCount = %d", res.InvalidCount)
	}
	if res.InvalidFiles[0].Name != "junk.mp3" {
		t.Errorf("invalid file = %q", res.InvalidFiles[0].Name)
	}
	if res.CreatedSongs != 1 {
		t.Errorf("CreatedSongs = %d, want 1", res.CreatedSongs)
	}
}

func TestReconcileUntaggedFile(t *testing.T) {
	e, db := newTestEngine(t)

	files := []File{taggedMP3(t, t.TempDir(), "mystery.mp3", nil)}
	res, err := e.Reconcile(files)
	if err != nil {
		t.Fatal(err)
	}
	if res.CreatedSongs != 1 || res.InvalidCount != 0 {
		t.Fatalf("result = %+v", res)
	}

	songs, err := db.SongsByName([]string{UntaggedName})
	if err != nil || len(songs) != 1 {
		t.Fatalf("songs = %v, %v", songs, err)
	}
	s := songs[0]
	if s.Duration != 0 || s.AlbumID != nil || len(s.Artists) != 0 {
		t.Errorf("stub song carries invented fields: %+v", s)
	}
}

func TestReconcileUntaggedNeverDeduplicated(t *testing.T) {
	e, db := newTestEngine(t)
	dir := t.TempDir()

	// Two untagged files in one batch become two stubs.
	res, err := e.Reconcile([]File{
		taggedMP3(t, dir, "mystery1.mp3", nil),
		taggedMP3(t, dir, "mystery2.mp3", nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.CreatedSongs != 2 || res.DuplicateCount != 0 {
		t.Fatalf("first batch result = %+v", res)
	}

	// An untagged file in a later batch is still no duplicate.
	res, err = e.Reconcile([]File{taggedMP3(t, dir, "mystery3.mp3", nil)})
	if err != nil {
		t.Fatal(err)
	}
	if res.CreatedSongs != 1 || res.DuplicateCount != 0 {
		t.Fatalf("second batch result = %+v", res)
	}

	songs, err := db.SongsByName([]string{UntaggedName})
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 3 {
		t.Fatalf("got %d stub rows, want 3", len(songs))
	}
	blobs := map[string]bool{}
	for _, s := range songs {
		if s.File == "" {
			t.Error("stub without an audio blob")
		}
		if _, err := os.Stat(e.blobs.Path(s.File)); err != nil {
			t.Errorf("stub audio missing: %v", err)
		}
		blobs[s.File] = true
	}
	if len(blobs) != 3 {
		t.Errorf("stubs share blobs: %v", blobs)
	}
}

func TestReconcileReleasesSkippedSpools(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()

	junk := filepath.Join(dir, "junk.mp3")
	if err := os.WriteFile(junk, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	song := &metadata.Metadata{
		Name:    "Once",
		Artists: []metadata.ArtistRef{{Name: "Somebody"}},
	}
	inBatchDup := taggedMP3(t, dir, "once-copy.mp3", song)

	res, err := e.Reconcile([]File{
		{Name: "junk.mp3", Path: junk, Size: 20},
		taggedMP3(t, dir, "once.mp3", song),
		inBatchDup,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.InvalidCount != 1 || res.DuplicateCount != 1 || res.CreatedSongs != 1 {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(junk); !os.IsNotExist(err) {
		t.Error("rejected file left spooled")
	}
	if _, err := os.Stat(inBatchDup.Path); !os.IsNotExist(err) {
		t.Error("in-batch duplicate left spooled")
	}

	// A cross-batch duplicate releases its spool too.
	crossDup := taggedMP3(t, dir, "once-again.mp3", song)
	if _, err := e.Reconcile([]File{crossDup}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(crossDup.Path); !os.IsNotExist(err) {
		t.Error("cross-batch duplicate left spooled")
	}
}

func TestReconcileGenreTieFirstSeen(t *testing.T) {
	e, db := newTestEngine(t)
	dir := t.TempDir()

	files := []File{
		taggedMP3(t, dir, "one.mp3", &metadata.Metadata{
			Name:    "One",
			Genre:   "Rock",
			Artists: []metadata.ArtistRef{{Name: "Band"}},
			Album:   &metadata.AlbumRef{Name: "Split", Artist: "Band"},
		}),
		taggedMP3(t, dir, "two.mp3", &metadata.Metadata{
			Name:    "Two",
			Genre:   "Pop",
			Artists: []metadata.ArtistRef{{Name: "Band"}},
			Album:   &metadata.AlbumRef{Name: "Split", Artist: "Band"},
		}),
	}
	if _, err := e.Reconcile(files); err != nil {
		t.Fatal(err)
	}

	albums, err := db.AlbumsByName([]string{"Split"})
	if err != nil || len(albums) != 1 {
		t.Fatalf("albums = %v, %v", albums, err)
	}
	if albums[0].Genre != "Rock" {
		t.Errorf("tie broke to %q, want first-seen Rock", albums[0].Genre)
	}
}

func TestReconcileAlbumArtistJoinsSongArtists(t *testing.T) {
	e, db := newTestEngine(t)

	files := []File{
		taggedMP3(t, t.TempDir(), "umbrella.mp3", &metadata.Metadata{
			Name:    "Umbrella",
			Artists: []metadata.ArtistRef{{Name: "Rihanna"}},
			Album:   &metadata.AlbumRef{Name: "Good Girl Gone Bad", Artist: "Def Jam Allstars"},
		}),
	}
	if _, err := e.Reconcile(files); err != nil {
		t.Fatal(err)
	}

	songs, err := db.SongsByName([]string{"Umbrella"})
	if err != nil || len(songs) != 1 {
		t.Fatalf("songs = %v, %v", songs, err)
	}
	got := map[string]bool{}
	for _, a := range songs[0].Artists {
		got[a.Name] = true
	}
	if !got["Rihanna"] || !got["Def Jam Allstars"] {
		t.Errorf("album artist not merged into song artists: %v", got)
	}
}

func TestSameSongDifferentAlbumIsNew(t *testing.T) {
	e, db := newTestEngine(t)
	dir := t.TempDir()

	base := metadata.Metadata{
		Name:    "Forever",
		Artists: []metadata.ArtistRef{{Name: "Drake"}},
	}
	withAlbum := base
	withAlbum.Album = &metadata.AlbumRef{Name: "More Than A Game", Artist: "Drake"}

	if _, err := e.Reconcile([]File{taggedMP3(t, dir, "a.mp3", &base)}); err != nil {
		t.Fatal(err)
	}
	res, err := e.Reconcile([]File{taggedMP3(t, dir, "b.mp3", &withAlbum)})
	if err != nil {
		t.Fatal(err)
	}
	if res.CreatedSongs != 1 || res.DuplicateCount != 0 {
		t.Errorf("album-qualified song treated as duplicate: %+v", res)
	}

	songs, err := db.SongsByName([]string{"Forever"})
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 2 {
		t.Errorf("got %d Forever rows, want 2", len(songs))
	}
}

func TestReconcileStoresAudioBlob(t *testing.T) {
	e, db := newTestEngine(t)

	f := taggedMP3(t, t.TempDir(), "keepme.mp3", &metadata.Metadata{
		Name:    "Keep Me",
		Artists: []metadata.ArtistRef{{Name: "Someone"}},
	})
	f.Keep = true
	if _, err := e.Reconcile([]File{f}); err != nil {
		t.Fatal(err)
	}

	// Keep mode copies, so the source must still exist.
	if _, err := os.Stat(f.Path); err != nil {
		t.Errorf("source file consumed in keep mode: %v", err)
	}

	songs, err := db.SongsByName([]string{"Keep Me"})
	if err != nil || len(songs) != 1 {
		t.Fatalf("songs = %v, %v", songs, err)
	}
	if _, err := os.Stat(e.blobs.Path(songs[0].File)); err != nil {
		t.Errorf("stored blob missing: %v", err)
	}
}
