package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

// ID3Codec handles MP3 containers. Frame mapping: TIT2 title, TALB album,
// TDRC year (first four characters), TCON genre, TRCK track number (integer
// before the slash), TPE1 multi-valued artist list, TPE2 album artist with
// a fallback to the first listed artist so an album can be synthesized even
// without an explicit album-artist frame.
type ID3Codec struct{}

func (ID3Codec) Read(path string) (*metadata.Metadata, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		// A container we cannot parse counts as untagged, not as an
		// error: one bad file must never abort a batch.
		return nil, ErrNoTags
	}
	defer tag.Close()

	if !tag.HasFrames() {
		return nil, ErrNoTags
	}

	m := &metadata.Metadata{
		Name:     text(tag, "TIT2"),
		Genre:    text(tag, "TCON"),
		Year:     yearOf(text(tag, "TDRC")),
		Number:   trackOf(text(tag, "TRCK")),
		Duration: readDuration(path),
	}
	if m.Name == "" {
		m.Name = "unnamed"
	}

	pics := apicFrames(tag)
	albumName := text(tag, "TALB")

	// The first front-cover or media picture is the album cover when an
	// album name is present, otherwise it belongs to the standalone song.
	var cover *metadata.Picture
	for _, f := range pics {
		if f.PictureType == id3v2.PTFrontCover || f.PictureType == id3v2.PTMedia {
			cover = validatedPicture(f.MimeType, f.Picture)
			break
		}
	}

	artistImage := func(name string) *metadata.Picture {
		for _, f := range pics {
			if f.PictureType == id3v2.PTArtistPerformer && sameName(f.Description, name) {
				return validatedPicture(f.MimeType, f.Picture)
			}
		}
		return nil
	}

	for _, name := range splitArtists(text(tag, "TPE1")) {
		m.Artists = append(m.Artists, metadata.ArtistRef{
			Name:  name,
			Image: artistImage(name),
		})
	}

	albumArtist := text(tag, "TPE2")
	if albumArtist == "" && len(m.Artists) > 0 {
		albumArtist = m.Artists[0].Name
	}

	if albumName != "" {
		m.Album = &metadata.AlbumRef{
			Name:   albumName,
			Artist: albumArtist,
			Image:  cover,
			Year:   m.Year,
		}
	} else {
		m.Image = cover
	}
	return m, nil
}

func (ID3Codec) Write(path string, meta *metadata.Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("id3: open %s: %w", path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	setText(tag, "TIT2", meta.Name)
	setText(tag, "TCON", meta.Genre)
	if meta.Year > 0 {
		setText(tag, "TDRC", strconv.Itoa(meta.Year))
	}
	if meta.Number > 0 {
		setText(tag, "TRCK", strconv.Itoa(meta.Number))
	}

	names := make([]string, 0, len(meta.Artists))
	for _, a := range meta.Artists {
		names = append(names, a.Name)
	}
	setText(tag, "TPE1", strings.Join(names, "/"))

	var cover *metadata.Picture
	if meta.Album != nil {
		setText(tag, "TALB", meta.Album.Name)
		setText(tag, "TPE2", meta.Album.Artist)
		cover = meta.Album.Image
	} else {
		cover = meta.Image
	}

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	for _, a := range meta.Artists {
		if a.Image == nil {
			continue
		}
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    a.Image.MIME,
			PictureType: id3v2.PTArtistPerformer,
			Description: a.Name,
			Picture:     a.Image.Data,
		})
	}
	if cover != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    cover.MIME,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     cover.Data,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("id3: save %s: %w", path, err)
	}
	return nil
}

func text(t *id3v2.Tag, id string) string {
	return t.GetTextFrame(id).Text
}

func setText(t *id3v2.Tag, id, v string) {
	if v == "" {
		t.DeleteFrames(id)
		return
	}
	t.AddTextFrame(id, t.DefaultEncoding(), v)
}

func apicFrames(t *id3v2.Tag) []id3v2.PictureFrame {
	frames := t.GetFrames(t.CommonID("Attached picture"))
	out := make([]id3v2.PictureFrame, 0, len(frames))
	for _, fr := range frames {
		if pf, ok := fr.(id3v2.PictureFrame); ok {
			out = append(out, pf)
		}
	}
	return out
}

// yearOf parses the leading four characters of a date frame.
func yearOf(s string) int {
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return y
}

// trackOf parses the integer before the slash in a TRCK frame, 1 if absent.
func trackOf(s string) int {
	if s == "" {
		return 1
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// splitArtists splits a TPE1 value into its entries: ID3v2.4 null
// separators first, then the common slash and semicolon conventions.
func splitArtists(s string) []string {
	if s == "" {
		return nil
	}
	sep := func(r rune) bool { return r == 0 || r == '/' || r == ';' }
	var out []string
	for _, part := range strings.FieldsFunc(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
