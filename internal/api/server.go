// Package api exposes the import pipeline over HTTP. Identity is a trusted
// X-User-ID header; the gateway in front of this service owns authentication.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/asemenov/finledger/internal/cache"
	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/ledger"
	"github.com/asemenov/finledger/internal/pipeline"
	"github.com/asemenov/finledger/internal/store"
)

// Server wires the HTTP surface to the pipeline and the store.
type Server struct {
	importer    *pipeline.Importer
	writer      *ledger.Writer
	store       store.Store
	invalidator cache.Invalidator
	defaults    *domain.Preferences // service-wide default preferences, optional
	log         zerolog.Logger
}

// New creates the server. The invalidator may be cache.Noop; defaults is the
// configured preference set reported for users who never saved any, nil
// falling back to domain.DefaultPreferences.
func New(importer *pipeline.Importer, writer *ledger.Writer, st store.Store, invalidator cache.Invalidator, defaults *domain.Preferences, log zerolog.Logger) *Server {
	return &Server{
		importer:    importer,
		writer:      writer,
		store:       st,
		invalidator: invalidator,
		defaults:    defaults,
		log:         log,
	}
}

func (s *Server) defaultPrefs(userID string) *domain.Preferences {
	if s.defaults != nil {
		return s.defaults.ForUser(userID)
	}
	return domain.DefaultPreferences(userID)
}

// Router builds the gin engine with middleware and all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	authed := api.Group("", requireUser())
	authed.POST("/imports", s.handleImportBatch)
	authed.POST("/transactions", s.handleCreateTransaction)
	authed.PUT("/transactions/:id", s.handleUpdateTransaction)
	authed.GET("/accounts", s.handleListAccounts)
	authed.GET("/preferences", s.handleGetPreferences)
	authed.PUT("/preferences", s.handlePutPreferences)

	return r
}
