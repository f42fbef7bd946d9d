package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tagtrack/tagtrack/internal/blob"
	"github.com/tagtrack/tagtrack/internal/service"
	"github.com/tagtrack/tagtrack/internal/store"
	"github.com/tagtrack/tagtrack/internal/upload"
	"github.com/tagtrack/tagtrack/pkg/logger"
)

// Global flags
var (
	dbPath   string
	mediaDir string
)

// Audio extensions considered during a library import walk.
var audioExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("TAGTRACK_DB_PATH", store.DefaultDBFile), "Path to the SQLite database file")
	flag.StringVar(&mediaDir, "media", getEnvOrDefault("TAGTRACK_MEDIA_DIR", "media"), "Directory for audio and image blobs")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (*service.LibraryService, error) {
	db, err := store.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	blobs, err := blob.NewStore(mediaDir)
	if err != nil {
		db.Close()
		return nil, err
	}
	return service.NewLibraryService(db, blobs), nil
}

func main() {
	// Global flags come before the subcommand.
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	switch command {
	case "import":
		handleImport(args[1:])
	case "list":
		handleList()
	case "search":
		handleSearch(args[1:])
	case "export":
		handleExport(args[1:])
	case "delete":
		handleDelete(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// handleImport walks a directory tree and reconciles every audio file it
// finds into the library. Source files are copied, never moved.
func handleImport(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: tagtrack import <directory>")
		os.Exit(1)
	}
	root := args[0]

	var files []upload.File
	var totalBytes int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audioExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, upload.File{
			Name: d.Name(),
			Path: path,
			Size: info.Size(),
			Keep: true,
		})
		totalBytes += info.Size()
		return nil
	})
	if err != nil {
		fmt.Printf("Failed to scan %s: %v\n", root, err)
		log.Errorf("Import scan failed: %v", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No audio files found under %s\n", root)
		return
	}

	fmt.Printf("Importing %d files (%s) from %s\n", len(files), humanize.Bytes(uint64(totalBytes)), root)

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	res, err := svc.Upload(files)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		log.Errorf("Upload failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\nImport complete:")
	fmt.Printf("   Files:      %d\n", res.TotalCount)
	fmt.Printf("   Songs:      %d created\n", res.CreatedSongs)
	fmt.Printf("   Albums:     %d created\n", res.CreatedAlbums)
	fmt.Printf("   Artists:    %d created\n", res.CreatedArtists)
	fmt.Printf("   Duplicates: %d\n", res.DuplicateCount)
	fmt.Printf("   Invalid:    %d\n", res.InvalidCount)
	for _, f := range res.InvalidFiles {
		fmt.Printf("      %s: %s\n", f.Name, f.Reason)
	}
}

func handleList() {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	songs, err := svc.ListSongs("", 500, 0)
	if err != nil {
		fmt.Printf("Failed to list songs: %v\n", err)
		log.Errorf("ListSongs failed: %v", err)
		os.Exit(1)
	}

	if len(songs) == 0 {
		fmt.Println("No songs in library")
		return
	}

	fmt.Printf("Found %d song(s):\n\n", len(songs))
	for i, song := range songs {
		var artists []string
		for _, a := range song.Artists {
			artists = append(artists, a.Name)
		}
		fmt.Printf("%d. %q by %s (ID: %d)\n", i+1, song.Name, strings.Join(artists, ", "), song.ID)
		if song.Album != nil {
			fmt.Printf("   Album: %s\n", song.Album.Name)
		}
		if song.Duration > 0 {
			fmt.Printf("   Duration: %d:%02d\n", song.Duration/60, song.Duration%60)
		}
	}
}

func handleSearch(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tagtrack search <query>")
		os.Exit(1)
	}
	q := args[0]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	res, err := svc.Search(q, 100, 0)
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Artists (%d):\n", len(res.Artists))
	for _, a := range res.Artists {
		fmt.Printf("   %d: %s\n", a.ID, a.Name)
	}
	fmt.Printf("Albums (%d):\n", len(res.Albums))
	for _, a := range res.Albums {
		artist := ""
		if a.Artist != nil {
			artist = " by " + a.Artist.Name
		}
		fmt.Printf("   %d: %s%s\n", a.ID, a.Name, artist)
	}
	fmt.Printf("Songs (%d):\n", len(res.Songs))
	for _, s := range res.Songs {
		fmt.Printf("   %d: %s\n", s.ID, s.Name)
	}
}

// handleExport downloads songs with refreshed tags into a local file.
func handleExport(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: tagtrack export <id>[,<id>...] [output_dir]")
		os.Exit(1)
	}
	var ids []uint
	for _, p := range strings.Split(args[0], ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			fmt.Printf("Invalid song ID %q\n", p)
			os.Exit(1)
		}
		ids = append(ids, uint(id))
	}
	outDir := "."
	if len(args) > 1 {
		outDir = args[1]
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	tmp, err := os.CreateTemp(outDir, "tagtrack-export-*")
	if err != nil {
		fmt.Printf("Failed to create output file: %v\n", err)
		os.Exit(1)
	}

	name, err := svc.ExportSongs(ids, tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		fmt.Printf("Export failed: %v\n", err)
		log.Errorf("ExportSongs failed: %v", err)
		os.Exit(1)
	}
	tmp.Close()

	out := filepath.Join(outDir, name)
	if err := os.Rename(tmp.Name(), out); err != nil {
		fmt.Printf("Failed to place output file: %v\n", err)
		os.Exit(1)
	}

	info, _ := os.Stat(out)
	size := ""
	if info != nil {
		size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
	}
	fmt.Printf("Exported %d song(s) to %s%s\n", len(ids), out, size)
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: tagtrack delete <song_id>")
		os.Exit(1)
	}
	songID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Printf("Invalid song ID: %v\n", err)
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	song, err := svc.GetSong(uint(songID))
	if err != nil {
		fmt.Printf("Song not found (ID: %d)\n", songID)
		os.Exit(1)
	}

	if err := svc.DeleteSong(uint(songID)); err != nil {
		fmt.Printf("Failed to delete song: %v\n", err)
		log.Errorf("DeleteSong failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted song %d (%q)\n", song.ID, song.Name)
}

func printUsage() {
	fmt.Println("tagtrack - Media Library CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Path to SQLite database (env: TAGTRACK_DB_PATH, default: tagtrack.sqlite3)")
	fmt.Println("  --media <dir>      Directory for audio and image blobs (env: TAGTRACK_MEDIA_DIR, default: media)")
	fmt.Println("\nUsage:")
	fmt.Println("  tagtrack [global-options] import <directory>")
	fmt.Println("  tagtrack [global-options] list")
	fmt.Println("  tagtrack [global-options] search <query>")
	fmt.Println("  tagtrack [global-options] export <id>[,<id>...] [output_dir]")
	fmt.Println("  tagtrack [global-options] delete <song_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Import a music folder")
	fmt.Println("  tagtrack --db mylib.sqlite3 import ~/Music")
	fmt.Println()
	fmt.Println("  # Export two songs as a zip with refreshed tags")
	fmt.Println("  tagtrack export 3,7 ./out")
}
