package service

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tagtrack/tagtrack/internal/codec"
	"github.com/tagtrack/tagtrack/internal/metadata"
	"github.com/tagtrack/tagtrack/internal/model"
)

const exportArchiveName = "songs.zip"

// ExportSongs streams the requested songs to w, refreshing stale embedded
// tags first. A single song streams as its bare audio file; two or more are
// packed into a zip archive. The returned name is the suggested download
// filename.
func (s *LibraryService) ExportSongs(ids []uint, w io.Writer) (string, error) {
	songs, err := s.db.SongsByIDs(ids)
	if err != nil {
		return "", err
	}
	if len(songs) == 0 {
		return "", ErrNotFound
	}

	if len(songs) == 1 {
		if err := s.refreshTags(&songs[0]); err != nil {
			return "", err
		}
		name := DownloadName(&songs[0])
		f, err := s.blobs.Open(songs[0].File)
		if err != nil {
			return "", err
		}
		defer f.Close()
		if _, err := io.Copy(w, f); err != nil {
			return "", err
		}
		return name, nil
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	used := make(map[string]int)
	packed := 0
	for i := range songs {
		// A failed write-back drops only that song from the archive.
		if err := s.refreshTags(&songs[i]); err != nil {
			s.log.Warnf("export: skipping song %d: %v", songs[i].ID, err)
			continue
		}
		name := DownloadName(&songs[i])
		if n := used[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		used[DownloadName(&songs[i])]++

		entry, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return "", err
		}
		f, err := s.blobs.Open(songs[i].File)
		if err != nil {
			zw.Close()
			return "", err
		}
		_, err = io.Copy(entry, f)
		f.Close()
		if err != nil {
			zw.Close()
			return "", err
		}
		packed++
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	if packed == 0 {
		return "", fmt.Errorf("export: no song could be packed")
	}
	return exportArchiveName, nil
}

// refreshTags rewrites the embedded tags of a song whose row changed since
// ingest, then lowers the retag flag. On a write failure the flag stays
// raised for the next attempt and the song's export fails.
func (s *LibraryService) refreshTags(song *model.Song) error {
	if !song.Retag {
		return nil
	}
	// Field inheritance applies to exported tags the same way it applies
	// to API reads.
	resolved := *song
	metadata.ResolveDisplayFields(&resolved)

	path := s.blobs.Path(song.File)
	c, err := codec.ForPath(path)
	if err != nil {
		return fmt.Errorf("no codec for song %d: %w", song.ID, err)
	}
	meta := metadata.FromSong(&resolved, s.blobs)
	if err := c.Write(path, meta); err != nil {
		return fmt.Errorf("tag write-back for song %d: %w", song.ID, err)
	}
	// The tags on disk are fresh; a failed flag clear only costs one
	// redundant rewrite later.
	if err := s.db.ClearRetag(song.ID); err != nil {
		s.log.Warnf("export: clearing retag for song %d: %v", song.ID, err)
		return nil
	}
	song.Retag = false
	return nil
}

// DownloadName derives the download filename from the song name and the
// stored blob's extension.
func DownloadName(s *model.Song) string {
	ext := filepath.Ext(s.File)
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, s.Name)
	if name == "" {
		name = fmt.Sprintf("song-%d", s.ID)
	}
	return name + ext
}
