package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tagtrack/tagtrack/internal/service"
	"github.com/tagtrack/tagtrack/pkg/logger"
)

// Server wires the HTTP surface to the library service.
type Server struct {
	svc    *service.LibraryService
	config *ServerConfig
	log    *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	MediaDir       string
	AllowedOrigins []string
}

func NewServer(svc *service.LibraryService, config *ServerConfig) *Server {
	return &Server{svc: svc, config: config, log: logger.GetLogger()}
}

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware(s.config.AllowedOrigins))
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/genres", s.handleGenres)
		api.GET("/search", s.handleSearch)

		api.GET("/artists", s.handleListArtists)
		api.POST("/artists", s.handleCreateArtist)
		api.GET("/artists/:id", s.handleGetArtist)
		api.PUT("/artists/:id", s.handleUpdateArtist)
		api.DELETE("/artists/:id", s.handleDeleteArtist)

		api.GET("/albums", s.handleListAlbums)
		api.POST("/albums", s.handleCreateAlbum)
		api.GET("/albums/:id", s.handleGetAlbum)
		api.PUT("/albums/:id", s.handleUpdateAlbum)
		api.DELETE("/albums/:id", s.handleDeleteAlbum)

		api.GET("/songs", s.handleListSongs)
		api.GET("/songs/download", s.handleDownloadSongs)
		api.POST("/songs/upload", s.handleUploadSongs)
		api.GET("/songs/:id", s.handleGetSong)
		api.PUT("/songs/:id", s.handleUpdateSong)
		api.DELETE("/songs/:id", s.handleDeleteSong)
	}
	return r
}

// requestLogger logs each request through the service logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Infof("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := false
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
			allowed = true
		} else {
			for _, o := range allowedOrigins {
				if o == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					allowed = true
					break
				}
			}
		}
		if allowed {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.setupRoutes().Run(fmt.Sprintf(":%d", s.config.Port))
}
