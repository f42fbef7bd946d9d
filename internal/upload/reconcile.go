// Package upload implements the bulk ingest pipeline: sniff each file, read
// its tags, deduplicate artists, albums and songs inside the batch, then
// reconcile the batch against the database in one transaction.
package upload

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tagtrack/tagtrack/internal/blob"
	"github.com/tagtrack/tagtrack/internal/codec"
	"github.com/tagtrack/tagtrack/internal/metadata"
	"github.com/tagtrack/tagtrack/internal/model"
	"github.com/tagtrack/tagtrack/internal/store"
	"github.com/tagtrack/tagtrack/pkg/logger"
)

// UntaggedName is assigned to songs whose container carries no tag block.
const UntaggedName = "Unnamed"

// File is one uploaded audio file sitting at a temporary path.
type File struct {
	Name string
	Path string
	Size int64

	// Keep preserves the source file, storing a copy instead of moving it.
	// The library import command sets this; HTTP uploads do not.
	Keep bool
}

// InvalidFile records a rejected batch member. Rejections never abort the
// batch.
type InvalidFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result summarizes one reconciled batch.
type Result struct {
	TotalCount     int           `json:"total_count"`
	InvalidCount   int           `json:"invalid_count"`
	DuplicateCount int           `json:"duplicate_count"`
	InvalidFiles   []InvalidFile `json:"invalid_files,omitempty"`
	CreatedArtists int           `json:"created_artists"`
	CreatedAlbums  int           `json:"created_albums"`
	CreatedSongs   int           `json:"created_songs"`
	SongIDs        []uint        `json:"song_ids,omitempty"`
}

// Engine reconciles upload batches against the store.
type Engine struct {
	db    *store.DBClient
	blobs *blob.Store
	log   *logger.Logger
}

func NewEngine(db *store.DBClient, blobs *blob.Store) *Engine {
	return &Engine{db: db, blobs: blobs, log: logger.GetLogger()}
}

type albumKey struct {
	Name   string
	Artist string
}

// batchArtist is an artist seen in this batch. The first occurrence wins;
// later occurrences only backfill a missing image.
type batchArtist struct {
	name  string
	image *metadata.Picture
}

// batchAlbum accumulates the album's fields across the batch. The genre is
// decided by majority vote over its songs' valid genres, first seen winning
// ties.
type batchAlbum struct {
	key        albumKey
	image      *metadata.Picture
	year       int
	genreVotes map[string]int
	genreOrder []string
}

func (b *batchAlbum) voteGenre(genre string) {
	if genre == "" {
		return
	}
	if _, seen := b.genreVotes[genre]; !seen {
		b.genreOrder = append(b.genreOrder, genre)
	}
	b.genreVotes[genre]++
}

func (b *batchAlbum) genre() string {
	best, bestCount := "", 0
	for _, g := range b.genreOrder {
		if b.genreVotes[g] > bestCount {
			best, bestCount = g, b.genreVotes[g]
		}
	}
	return best
}

// candidate is one batch file that parsed cleanly and survived in-batch
// song deduplication.
type candidate struct {
	file    File
	meta    *metadata.Metadata
	artists []string
	album   *albumKey
}

func (c *candidate) songKey() string {
	names := append([]string(nil), c.artists...)
	sort.Strings(names)
	albumName := ""
	if c.album != nil {
		albumName = c.album.Name
	}
	return c.meta.Name + "\x00" + albumName + "\x00" + strings.Join(names, "\x00")
}

// Reconcile ingests a batch. Parsing and deduplication happen up front;
// the database diff, entity creation and artist linking run inside a single
// transaction so a failed batch leaves no partial rows behind.
func (e *Engine) Reconcile(files []File) (*Result, error) {
	res := &Result{TotalCount: len(files)}

	artists := make(map[string]*batchArtist)
	var artistOrder []string
	albums := make(map[albumKey]*batchAlbum)
	var albumOrder []albumKey
	var candidates []candidate
	var untagged []File
	seenSongs := make(map[string]bool)

	for _, f := range files {
		meta, err := e.readFile(f)
		if errors.Is(err, codec.ErrNoTags) {
			// Untagged files bypass deduplication entirely: every one
			// becomes its own stub song.
			untagged = append(untagged, f)
			continue
		}
		if err != nil {
			e.log.Warnf("upload: rejecting %s: %v", f.Name, err)
			res.InvalidCount++
			res.InvalidFiles = append(res.InvalidFiles, InvalidFile{Name: f.Name, Reason: err.Error()})
			e.discard(f)
			continue
		}

		c := e.normalize(f, meta, artists, &artistOrder, albums, &albumOrder)
		key := c.songKey()
		if seenSongs[key] {
			res.DuplicateCount++
			e.discard(f)
			continue
		}
		seenSongs[key] = true
		candidates = append(candidates, c)

		// Only surviving songs count toward their album's genre vote.
		if c.album != nil {
			albums[*c.album].voteGenre(c.meta.Genre)
		}
	}

	if len(candidates) == 0 && len(untagged) == 0 {
		return res, nil
	}

	err := e.db.Transaction(func(tx *store.DBClient) error {
		artistRows, created, err := e.reconcileArtists(tx, artists, artistOrder)
		if err != nil {
			return err
		}
		res.CreatedArtists = created

		albumRows, created, err := e.reconcileAlbums(tx, albums, albumOrder, artistRows)
		if err != nil {
			return err
		}
		res.CreatedAlbums = created

		if err := e.reconcileSongs(tx, candidates, artistRows, albumRows, res); err != nil {
			return err
		}
		return e.createStubs(tx, untagged, res)
	})
	if err != nil {
		return nil, fmt.Errorf("upload: reconciling batch: %w", err)
	}

	e.log.Infof("upload: batch done, %d files, %d invalid, %d duplicate, created %d/%d/%d artists/albums/songs",
		res.TotalCount, res.InvalidCount, res.DuplicateCount,
		res.CreatedArtists, res.CreatedAlbums, res.CreatedSongs)
	return res, nil
}

// readFile sniffs and parses one file. An untagged container surfaces as
// codec.ErrNoTags for the caller to bucket.
func (e *Engine) readFile(f File) (*metadata.Metadata, error) {
	format, err := codec.Sniff(f.Path)
	if err != nil {
		return nil, err
	}
	c, err := codec.For(format)
	if err != nil {
		return nil, err
	}
	return c.Read(f.Path)
}

// discard removes the spooled copy of a file that will not be ingested.
func (e *Engine) discard(f File) {
	if f.Keep {
		return
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		e.log.Warnf("upload: removing spooled %s: %v", f.Name, err)
	}
}

// normalize folds one record into the batch maps: the album artist joins the
// song's artist set, every artist and the album are deduplicated, and genres
// outside the vocabulary are dropped.
func (e *Engine) normalize(
	f File, meta *metadata.Metadata,
	artists map[string]*batchArtist, artistOrder *[]string,
	albums map[albumKey]*batchAlbum, albumOrder *[]albumKey,
) candidate {
	if !metadata.ValidGenre(meta.Genre) {
		meta.Genre = ""
	}

	var names []string
	seen := make(map[string]bool)
	addArtist := func(ref metadata.ArtistRef) {
		if ref.Name == "" || seen[ref.Name] {
			return
		}
		seen[ref.Name] = true
		names = append(names, ref.Name)
		if a, ok := artists[ref.Name]; ok {
			if a.image == nil {
				a.image = ref.Image
			}
			return
		}
		artists[ref.Name] = &batchArtist{name: ref.Name, image: ref.Image}
		*artistOrder = append(*artistOrder, ref.Name)
	}
	for _, ref := range meta.Artists {
		addArtist(ref)
	}

	c := candidate{file: f, meta: meta, artists: names}
	if meta.Album == nil || meta.Album.Name == "" {
		return c
	}

	addArtist(metadata.ArtistRef{Name: meta.Album.Artist})
	c.artists = names

	key := albumKey{Name: meta.Album.Name, Artist: meta.Album.Artist}
	c.album = &key
	a, ok := albums[key]
	if !ok {
		a = &batchAlbum{key: key, genreVotes: make(map[string]int)}
		albums[key] = a
		*albumOrder = append(*albumOrder, key)
	}
	if a.image == nil {
		a.image = meta.Album.Image
	}
	if a.year == 0 {
		a.year = meta.Album.Year
	}
	return c
}

func (e *Engine) reconcileArtists(
	tx *store.DBClient, batch map[string]*batchArtist, order []string,
) (map[string]*model.Artist, int, error) {
	existing, err := tx.ArtistsByName(order)
	if err != nil {
		return nil, 0, err
	}
	rows := make(map[string]*model.Artist, len(order))
	for i := range existing {
		rows[existing[i].Name] = &existing[i]
	}

	var missing []*model.Artist
	for _, name := range order {
		if _, ok := rows[name]; ok {
			continue
		}
		row := &model.Artist{Name: name}
		if pic := batch[name].image; pic != nil {
			key, err := e.blobs.SaveBytes("artists", "image", blob.ExtForMIME(pic.MIME), pic.Data)
			if err != nil {
				return nil, 0, err
			}
			row.Image = key
		}
		missing = append(missing, row)
	}
	if err := tx.CreateArtists(missing); err != nil {
		return nil, 0, err
	}
	for _, row := range missing {
		rows[row.Name] = row
	}
	return rows, len(missing), nil
}

func (e *Engine) reconcileAlbums(
	tx *store.DBClient, batch map[albumKey]*batchAlbum, order []albumKey,
	artists map[string]*model.Artist,
) (map[albumKey]*model.Album, int, error) {
	names := make([]string, 0, len(order))
	for _, key := range order {
		names = append(names, key.Name)
	}
	existing, err := tx.AlbumsByName(names)
	if err != nil {
		return nil, 0, err
	}
	rows := make(map[albumKey]*model.Album, len(order))
	for i := range existing {
		key := albumKey{Name: existing[i].Name}
		if existing[i].Artist != nil {
			key.Artist = existing[i].Artist.Name
		}
		rows[key] = &existing[i]
	}

	var missing []*model.Album
	for _, key := range order {
		if _, ok := rows[key]; ok {
			continue
		}
		artist, ok := artists[key.Artist]
		if !ok {
			// No resolvable album artist. The songs persist album-less.
			e.log.Warnf("upload: skipping album %q, no resolvable artist", key.Name)
			continue
		}
		b := batch[key]
		row := &model.Album{
			Name:     key.Name,
			ArtistID: artist.ID,
			Genre:    b.genre(),
			Year:     b.year,
		}
		if b.image != nil {
			imgKey, err := e.blobs.SaveBytes("albums", "image", blob.ExtForMIME(b.image.MIME), b.image.Data)
			if err != nil {
				return nil, 0, err
			}
			row.Image = imgKey
		}
		missing = append(missing, row)
	}
	if err := tx.CreateAlbums(missing); err != nil {
		return nil, 0, err
	}
	for _, row := range missing {
		artistName := ""
		for name, a := range artists {
			if a.ID == row.ArtistID {
				artistName = name
				break
			}
		}
		rows[albumKey{Name: row.Name, Artist: artistName}] = row
	}
	return rows, len(missing), nil
}

func (e *Engine) reconcileSongs(
	tx *store.DBClient, candidates []candidate,
	artists map[string]*model.Artist, albums map[albumKey]*model.Album,
	res *Result,
) error {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.meta.Name)
	}
	existing, err := tx.SongsByName(names)
	if err != nil {
		return err
	}
	existingKeys := make(map[string]bool, len(existing))
	for i := range existing {
		existingKeys[songRowKey(&existing[i])] = true
	}

	var links []model.SongArtist
	for _, c := range candidates {
		if existingKeys[c.songKey()] {
			res.DuplicateCount++
			e.discard(c.file)
			continue
		}

		row := &model.Song{
			Name:     c.meta.Name,
			Duration: c.meta.Duration,
			Genre:    c.meta.Genre,
			Number:   c.meta.Number,
			Year:     c.meta.Year,
		}
		if row.Number < 1 {
			row.Number = 1
		}
		if row.Year < 1 {
			row.Year = 1
		}
		if c.album != nil {
			if album, ok := albums[*c.album]; ok {
				row.AlbumID = &album.ID
			}
		}
		if row.AlbumID == nil && c.meta.Image != nil {
			imgKey, err := e.blobs.SaveBytes("songs", "image", blob.ExtForMIME(c.meta.Image.MIME), c.meta.Image.Data)
			if err != nil {
				return err
			}
			row.Image = imgKey
		}

		fileKey, err := e.storeAudio(c.file)
		if err != nil {
			return err
		}
		row.File = fileKey

		if err := tx.CreateSong(row); err != nil {
			return err
		}
		res.CreatedSongs++
		res.SongIDs = append(res.SongIDs, row.ID)

		for _, name := range c.artists {
			if artist, ok := artists[name]; ok {
				links = append(links, model.SongArtist{SongID: row.ID, ArtistID: artist.ID})
			}
		}
	}
	return tx.LinkSongArtists(links)
}

// createStubs materializes untagged files as stub songs: placeholder name,
// zero duration, no relations. Stubs are never deduplicated.
func (e *Engine) createStubs(tx *store.DBClient, files []File, res *Result) error {
	for _, f := range files {
		fileKey, err := e.storeAudio(f)
		if err != nil {
			return err
		}
		row := &model.Song{Name: UntaggedName, Number: 1, Year: 1, File: fileKey}
		if err := tx.CreateSong(row); err != nil {
			return err
		}
		res.CreatedSongs++
		res.SongIDs = append(res.SongIDs, row.ID)
	}
	return nil
}

func (e *Engine) storeAudio(f File) (string, error) {
	if f.Keep {
		return e.blobs.CopyFile("songs", "file", f.Path, f.Name)
	}
	return e.blobs.SaveFile("songs", "file", f.Path, f.Name)
}

// songRowKey mirrors candidate.songKey for a persisted row.
func songRowKey(s *model.Song) string {
	names := make([]string, 0, len(s.Artists))
	for _, a := range s.Artists {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	albumName := ""
	if s.Album != nil {
		albumName = s.Album.Name
	}
	return s.Name + "\x00" + albumName + "\x00" + strings.Join(names, "\x00")
}
