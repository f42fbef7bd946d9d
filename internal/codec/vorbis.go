package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

// Comment keys not covered by flacvorbis field constants.
const (
	fieldGenre       = "GENRE"
	fieldAlbumArtist = "ALBUMARTIST"
)

// VorbisCodec handles the vorbis-comment family. FLAC containers are read
// and written natively, including their picture blocks. Ogg Vorbis and Opus
// share the comment vocabulary but live in Ogg framing: they are read
// through the generic tag reader and written back as text comments only.
type VorbisCodec struct{}

func (VorbisCodec) Read(path string) (*metadata.Metadata, error) {
	format, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	if format == FormatOgg {
		return readOgg(path)
	}
	return readFLAC(path)
}

func (VorbisCodec) Write(path string, meta *metadata.Metadata) error {
	format, err := Sniff(path)
	if err != nil {
		return fmt.Errorf("vorbis: sniff %s: %w", path, err)
	}
	if format == FormatOgg {
		return writeTextTags(path, meta)
	}
	return writeFLAC(path, meta)
}

func readOgg(path string) (*metadata.Metadata, error) {
	m, err := readWithTag(path)
	if err != nil {
		return nil, ErrNoTags
	}
	return mapTagMeta(m, readDuration(path)), nil
}

// parseFLAC wraps flac.ParseFile. The parser panics on truncated or
// metadata-only containers, so panics are converted into errors here.
func parseFLAC(path string) (f *flac.File, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("flac: parse %s: %v", path, r)
		}
	}()
	return flac.ParseFile(path)
}

func readFLAC(path string) (*metadata.Metadata, error) {
	f, err := parseFLAC(path)
	if err != nil {
		return nil, ErrNoTags
	}

	var cmt *flacvorbis.MetaDataBlockVorbisComment
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			cmt, err = flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, ErrNoTags
			}
			break
		}
	}
	if cmt == nil {
		return nil, ErrNoTags
	}

	first := func(key string) string {
		vals, _ := cmt.Get(key)
		if len(vals) == 0 {
			return ""
		}
		return vals[0]
	}

	m := &metadata.Metadata{
		Name:     first(flacvorbis.FIELD_TITLE),
		Genre:    first(fieldGenre),
		Year:     yearOf(first(flacvorbis.FIELD_DATE)),
		Number:   trackOf(first(flacvorbis.FIELD_TRACKNUMBER)),
		Duration: readDuration(path),
	}
	if m.Name == "" {
		m.Name = "unnamed"
	}

	artistVals, _ := cmt.Get(flacvorbis.FIELD_ARTIST)
	for _, name := range artistVals {
		if name = strings.TrimSpace(name); name != "" {
			m.Artists = append(m.Artists, metadata.ArtistRef{Name: name})
		}
	}

	var pics []*flacpicture.MetadataBlockPicture
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			continue
		}
		if pic, err := flacpicture.ParseFromMetaDataBlock(*block); err == nil {
			pics = append(pics, pic)
		}
	}

	var cover *metadata.Picture
	for _, p := range pics {
		if p.PictureType == flacpicture.PictureTypeFrontCover || p.PictureType == flacpicture.PictureTypeMedia {
			cover = validatedPicture(p.MIME, p.ImageData)
			break
		}
	}
	for i := range m.Artists {
		for _, p := range pics {
			if p.PictureType == flacpicture.PictureTypeArtist && sameName(p.Description, m.Artists[i].Name) {
				m.Artists[i].Image = validatedPicture(p.MIME, p.ImageData)
				break
			}
		}
	}

	albumArtist := first(fieldAlbumArtist)
	if albumArtist == "" && len(m.Artists) > 0 {
		albumArtist = m.Artists[0].Name
	}

	if albumName := first(flacvorbis.FIELD_ALBUM); albumName != "" {
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

func writeFLAC(path string, meta *metadata.Metadata) error {
	f, err := parseFLAC(path)
	if err != nil {
		return err
	}

	// Drop the existing comment and picture blocks so write-back replaces
	// rather than accumulates.
	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment && block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}
	f.Meta = kept

	cmt := flacvorbis.New()
	add := func(key, val string) {
		if val != "" {
			cmt.Add(key, val)
		}
	}
	add(flacvorbis.FIELD_TITLE, meta.Name)
	add(fieldGenre, meta.Genre)
	if meta.Year > 0 {
		add(flacvorbis.FIELD_DATE, strconv.Itoa(meta.Year))
	}
	if meta.Number > 0 {
		add(flacvorbis.FIELD_TRACKNUMBER, strconv.Itoa(meta.Number))
	}
	for _, a := range meta.Artists {
		add(flacvorbis.FIELD_ARTIST, a.Name)
	}

	var cover *metadata.Picture
	if meta.Album != nil {
		add(flacvorbis.FIELD_ALBUM, meta.Album.Name)
		add(fieldAlbumArtist, meta.Album.Artist)
		cover = meta.Album.Image
	} else {
		cover = meta.Image
	}

	block := cmt.Marshal()
	f.Meta = append(f.Meta, &block)

	for _, a := range meta.Artists {
		if a.Image == nil {
			continue
		}
		appendPicture(f, flacpicture.PictureTypeArtist, a.Name, a.Image)
	}
	if cover != nil {
		appendPicture(f, flacpicture.PictureTypeFrontCover, "Cover", cover)
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("flac: save %s: %w", path, err)
	}
	return nil
}

func appendPicture(f *flac.File, pictype flacpicture.PictureType, desc string, pic *metadata.Picture) {
	block, err := flacpicture.NewFromImageData(pictype, desc, pic.Data, pic.MIME)
	if err != nil {
		return
	}
	marshaled := block.Marshal()
	f.Meta = append(f.Meta, &marshaled)
}
