package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/tagtrack/tagtrack/internal/blob"
	"github.com/tagtrack/tagtrack/internal/service"
	"github.com/tagtrack/tagtrack/internal/store"
	"github.com/tagtrack/tagtrack/pkg/logger"
)

var (
	port           int
	dbPath         string
	mediaDir       string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", getEnvIntOrDefault("TAGTRACK_PORT", 8080), "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("TAGTRACK_DB_PATH", store.DefaultDBFile), "Path to SQLite database")
	flag.StringVar(&mediaDir, "media", getEnvOrDefault("TAGTRACK_MEDIA_DIR", "media"), "Directory for audio and image blobs")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	db, err := store.NewDBClientWithPath(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	blobs, err := blob.NewStore(mediaDir)
	if err != nil {
		log.Fatalf("Failed to open media store: %v", err)
	}

	svc := service.NewLibraryService(db, blobs)
	defer svc.Close()

	server := NewServer(svc, &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		MediaDir:       mediaDir,
		AllowedOrigins: origins,
	})

	logger.GetLogger().Infof("tagtrack server starting on :%d (db=%s media=%s)", port, dbPath, mediaDir)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
