// Package blob is the filesystem-backed binary store for audio files and
// images. Objects are keyed by entity and field with a uuid filename, e.g.
// "songs/file/2f1f….mp3", so deleting an entity can release exactly the
// blobs it owns.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: creating root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

// Path resolves a blob key to its absolute filesystem path.
func (s *Store) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *Store) key(entity, field, ext string) (string, error) {
	key := fmt.Sprintf("%s/%s/%s%s", entity, field, uuid.NewString(), ext)
	if err := os.MkdirAll(filepath.Dir(s.Path(key)), 0o755); err != nil {
		return "", fmt.Errorf("blob: creating dir for %s: %w", key, err)
	}
	return key, nil
}

// SaveBytes stores a payload and returns its key.
func (s *Store) SaveBytes(entity, field, ext string, data []byte) (string, error) {
	key, err := s.key(entity, field, ext)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(s.Path(key), data, 0o644); err != nil {
		return "", fmt.Errorf("blob: writing %s: %w", key, err)
	}
	return key, nil
}

// SaveFile moves an existing file (typically a request temp file) into the
// store, falling back to a copy when rename crosses filesystems.
func (s *Store) SaveFile(entity, field, src, origName string) (string, error) {
	key, err := s.key(entity, field, strings.ToLower(filepath.Ext(origName)))
	if err != nil {
		return "", err
	}
	dst := s.Path(key)
	if err := os.Rename(src, dst); err != nil {
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("blob: storing %s: %w", key, err)
		}
		os.Remove(src)
	}
	return key, nil
}

// CopyFile stores a copy of src without consuming it. Used by the library
// import path, where the source tree must stay intact.
func (s *Store) CopyFile(entity, field, src, origName string) (string, error) {
	key, err := s.key(entity, field, strings.ToLower(filepath.Ext(origName)))
	if err != nil {
		return "", err
	}
	if err := copyFile(src, s.Path(key)); err != nil {
		return "", fmt.Errorf("blob: copying %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) Open(key string) (*os.File, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		return nil, fmt.Errorf("blob: opening %s: %w", key, err)
	}
	return f, nil
}

// Delete removes a blob. Missing objects are not an error so entity delete
// cascades stay idempotent.
func (s *Store) Delete(key string) error {
	if key == "" {
		return nil
	}
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: deleting %s: %w", key, err)
	}
	return nil
}

// LoadImage satisfies metadata.ImageLoader for write-back.
func (s *Store) LoadImage(key string) (*metadata.Picture, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, fmt.Errorf("blob: reading %s: %w", key, err)
	}
	return &metadata.Picture{MIME: mimeForExt(filepath.Ext(key)), Data: data}, nil
}

// ExtForMIME picks the file extension for an embedded image payload.
func ExtForMIME(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

func mimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
