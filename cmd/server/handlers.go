package main

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tagtrack/tagtrack/internal/service"
	"github.com/tagtrack/tagtrack/internal/upload"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleGenres(c *gin.Context) {
	genres := s.svc.Genres()
	c.JSON(http.StatusOK, GenresResponse{Genres: genres, Count: len(genres)})
}

// handleSearch handles GET /api/search?q=
func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		s.respondError(c, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, offset := pageParams(c)
	res, err := s.svc.Search(q, limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- artists ---

func (s *Server) handleListArtists(c *gin.Context) {
	limit, offset := pageParams(c)
	artists, err := s.svc.ListArtists(c.Query("name"), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artists": artists, "count": len(artists)})
}

func (s *Server) handleCreateArtist(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		s.respondError(c, http.StatusBadRequest, "name is required")
		return
	}
	image, err := formImage(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "could not read image")
		return
	}
	artist, err := s.svc.CreateArtist(service.ArtistInput{Name: name, Image: image})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, artist)
}

func (s *Server) handleGetArtist(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	artist, err := s.svc.GetArtist(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, artist)
}

func (s *Server) handleUpdateArtist(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	image, err := formImage(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "could not read image")
		return
	}
	artist, err := s.svc.UpdateArtist(id, service.ArtistInput{
		Name:  c.PostForm("name"),
		Image: image,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, artist)
}

func (s *Server) handleDeleteArtist(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.svc.DeleteArtist(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Message: "artist deleted", ID: id})
}

// --- albums ---

func (s *Server) handleListAlbums(c *gin.Context) {
	limit, offset := pageParams(c)
	albums, err := s.svc.ListAlbums(c.Query("name"), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"albums": albums, "count": len(albums)})
}

func (s *Server) handleCreateAlbum(c *gin.Context) {
	in, err := albumForm(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if in.Name == "" || in.ArtistID == 0 {
		s.respondError(c, http.StatusBadRequest, "name and artist_id are required")
		return
	}
	album, err := s.svc.CreateAlbum(in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, album)
}

func (s *Server) handleGetAlbum(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	album, err := s.svc.GetAlbum(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, album)
}

func (s *Server) handleUpdateAlbum(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	in, err := albumForm(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	album, err := s.svc.UpdateAlbum(id, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, album)
}

func (s *Server) handleDeleteAlbum(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.svc.DeleteAlbum(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Message: "album deleted", ID: id})
}

// --- songs ---

func (s *Server) handleListSongs(c *gin.Context) {
	limit, offset := pageParams(c)
	songs, err := s.svc.ListSongs(c.Query("name"), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"songs": songs, "count": len(songs)})
}

func (s *Server) handleGetSong(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	song, err := s.svc.GetSong(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

func (s *Server) handleUpdateSong(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	in, err := songForm(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	song, err := s.svc.UpdateSong(id, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

func (s *Server) handleDeleteSong(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.svc.DeleteSong(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Message: "song deleted", ID: id})
}

// handleUploadSongs handles POST /api/songs/upload with a multipart batch
// under the "files" field.
func (s *Server) handleUploadSongs(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "expected multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		s.respondError(c, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]upload.File, 0, len(headers))
	for _, h := range headers {
		path, err := spoolUpload(c, h)
		if err != nil {
			s.log.Errorf("upload: spooling %s: %v", h.Filename, err)
			s.respondError(c, http.StatusInternalServerError, "could not store upload")
			return
		}
		files = append(files, upload.File{Name: h.Filename, Path: path, Size: h.Size})
	}

	res, err := s.svc.Upload(files)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleDownloadSongs handles GET /api/songs/download?ids=1,2,3 and streams
// either a bare audio file or a zip archive.
func (s *Server) handleDownloadSongs(c *gin.Context) {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "ids must be a comma-separated list of numeric ids")
		return
	}
	if len(ids) == 0 {
		s.respondError(c, http.StatusBadRequest, "ids is required")
		return
	}

	name := "songs.zip"
	contentType := "application/zip"
	if len(ids) == 1 {
		song, err := s.svc.GetSong(ids[0])
		if err != nil {
			s.fail(c, err)
			return
		}
		name = service.DownloadName(song)
		contentType = audioContentType(name)
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := s.svc.ExportSongs(ids, c.Writer); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			s.fail(c, err)
			return
		}
		// Headers are out; all we can do is drop the connection.
		s.log.Errorf("download: streaming songs %v: %v", ids, err)
		c.Abort()
	}
}

// --- helpers ---

func (s *Server) pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func (s *Server) respondError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// fail maps service errors onto HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		s.respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidGenre), errors.Is(err, service.ErrInvalidImage):
		s.respondError(c, http.StatusBadRequest, err.Error())
	default:
		s.log.Errorf("request failed: %v", err)
		s.respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit = 100
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil && n >= 0 {
		offset = n
	}
	return limit, offset
}

// formImage reads the optional "image" multipart field fully into memory.
func formImage(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func albumForm(c *gin.Context) (service.AlbumInput, error) {
	in := service.AlbumInput{
		Name:  c.PostForm("name"),
		Genre: c.PostForm("genre"),
	}
	if v := c.PostForm("artist_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return in, errors.New("artist_id must be numeric")
		}
		in.ArtistID = uint(id)
	}
	if v := c.PostForm("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return in, errors.New("year must be numeric")
		}
		in.Year = year
	}
	image, err := formImage(c)
	if err != nil {
		return in, errors.New("could not read image")
	}
	in.Image = image
	return in, nil
}

func songForm(c *gin.Context) (service.SongInput, error) {
	in := service.SongInput{
		Name:  c.PostForm("name"),
		Genre: c.PostForm("genre"),
	}
	if v := c.PostForm("number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, errors.New("number must be numeric")
		}
		in.Number = n
	}
	if v := c.PostForm("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, errors.New("year must be numeric")
		}
		in.Year = n
	}
	switch v := c.PostForm("album_id"); v {
	case "":
	case "none":
		in.ClearAlbum = true
	default:
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return in, errors.New("album_id must be numeric or \"none\"")
		}
		aid := uint(id)
		in.AlbumID = &aid
	}
	if v := c.PostForm("artist_ids"); v != "" {
		ids, err := parseIDList(v)
		if err != nil {
			return in, errors.New("artist_ids must be a comma-separated list of numeric ids")
		}
		in.ArtistIDs = ids
	}
	image, err := formImage(c)
	if err != nil {
		return in, errors.New("could not read image")
	}
	in.Image = image
	return in, nil
}

func parseIDList(v string) ([]uint, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// audioContentType picks the response MIME for a single-file download.
func audioContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// spoolUpload copies one multipart file to a temp path the reconciliation
// engine takes ownership of.
func spoolUpload(c *gin.Context, h *multipart.FileHeader) (string, error) {
	dst := filepath.Join(os.TempDir(), uuid.NewString()+strings.ToLower(filepath.Ext(h.Filename)))
	if err := c.SaveUploadedFile(h, dst); err != nil {
		return "", err
	}
	return dst, nil
}
