package codec

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/tagtrack/tagtrack/internal/metadata"
)

// fakeMP3 writes a file starting with a bare MPEG frame header, enough for
// sniffing and for an ID3 block to be prepended on save.
func fakeMP3(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := make([]byte, 512)
	copy(data, []byte{0xFF, 0xFB, 0x90, 0x00})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestID3RoundTrip(t *testing.T) {
	path := fakeMP3(t, t.TempDir(), "love-the-way-you-lie.mp3")
	pic := pngBytes(t)

	in := &metadata.Metadata{
		Name:   "Love The Way You Lie",
		Genre:  "Rap",
		Year:   2010,
		Number: 15,
		Artists: []metadata.ArtistRef{
			{Name: "Eminem", Image: &metadata.Picture{MIME: "image/png", Data: pic}},
			{Name: "Rihanna"},
		},
		Album: &metadata.AlbumRef{
			Name:   "Recovery",
			Artist: "Eminem",
			Image:  &metadata.Picture{MIME: "image/png", Data: pic},
		},
	}
	if err := (ID3Codec{}).Write(path, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := ID3Codec{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if out.Name != in.Name {
		t.Errorf("Name = %q, want %q", out.Name, in.Name)
	}
	if out.Genre != "Rap" {
		t.Errorf("Genre = %q, want Rap", out.Genre)
	}
	if out.Year != 2010 {
		t.Errorf("Year = %d, want 2010", out.Year)
	}
	if out.Number != 15 {
		t.Errorf("Number = %d, want 15", out.Number)
	}

	var names []string
	for _, a := range out.Artists {
		names = append(names, a.Name)
	}
	if !reflect.DeepEqual(names, []string{"Eminem", "Rihanna"}) {
		t.Errorf("Artists = %v", names)
	}
	if out.Artists[0].Image == nil {
		t.Error("Eminem artist image lost")
	}
	if out.Artists[1].Image != nil {
		t.Error("Rihanna got an image she never had")
	}

	if out.Album == nil {
		t.Fatal("album lost")
	}
	if out.Album.Name != "Recovery" || out.Album.Artist != "Eminem" {
		t.Errorf("Album = %+v", out.Album)
	}
	if out.Album.Image == nil {
		t.Error("album cover lost")
	}
	if out.Image != nil {
		t.Error("cover leaked onto the song with an album present")
	}
}

func TestID3AlbumArtistFallback(t *testing.T) {
	path := fakeMP3(t, t.TempDir(), "song.mp3")

	in := &metadata.Metadata{
		Name:    "Umbrella",
		Artists: []metadata.ArtistRef{{Name: "Rihanna"}, {Name: "Jay-Z"}},
		Album:   &metadata.AlbumRef{Name: "Good Girl Gone Bad"},
	}
	if err := (ID3Codec{}).Write(path, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := ID3Codec{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Album == nil {
		t.Fatal("album lost")
	}
	// No TPE2 frame written, so the first listed artist stands in.
	if out.Album.Artist != "Rihanna" {
		t.Errorf("Album.Artist = %q, want Rihanna", out.Album.Artist)
	}
}

func TestID3CoverWithoutAlbum(t *testing.T) {
	path := fakeMP3(t, t.TempDir(), "single.mp3")

	in := &metadata.Metadata{
		Name:  "Single",
		Image: &metadata.Picture{MIME: "image/png", Data: pngBytes(t)},
	}
	if err := (ID3Codec{}).Write(path, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := ID3Codec{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Album != nil {
		t.Error("album invented from nothing")
	}
	if out.Image == nil {
		t.Error("song image lost")
	}
}

func TestID3UntaggedFile(t *testing.T) {
	path := fakeMP3(t, t.TempDir(), "bare.mp3")
	if _, err := (ID3Codec{}).Read(path); !errors.Is(err, ErrNoTags) {
		t.Errorf("got %v, want ErrNoTags", err)
	}
}

func TestYearOf(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2004", 2004},
		{"2004-06-15", 2004},
		{"99", 0},
		{"abcd", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := yearOf(tt.in); got != tt.want {
			t.Errorf("yearOf(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTrackOf(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"7", 7},
		{"7/12", 7},
		{" 3 ", 3},
		{"", 1},
		{"0", 1},
		{"x/12", 1},
	}
	for _, tt := range tests {
		if got := trackOf(tt.in); got != tt.want {
			t.Errorf("trackOf(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitArtists(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Eminem", []string{"Eminem"}},
		{"Eminem/Rihanna", []string{"Eminem", "Rihanna"}},
		{"Eminem\x00Rihanna", []string{"Eminem", "Rihanna"}},
		{"Eminem; Rihanna", []string{"Eminem", "Rihanna"}},
		{" / ", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitArtists(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitArtists(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
