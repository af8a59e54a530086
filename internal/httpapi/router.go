// Package httpapi wires the Gin engine: CSV batch ingestion, session
// snapshot reads, NLP settings, and analytics aggregation.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ticketfire/backend/internal/config"
	"github.com/ticketfire/backend/internal/db"
	"github.com/ticketfire/backend/internal/nlp"
	"github.com/ticketfire/backend/internal/pipeline"
	"github.com/ticketfire/backend/internal/session"

	_ "github.com/ticketfire/backend/docs"
)

func Router(cfg config.Config, store *db.Store, orch *pipeline.Orchestrator, pool *nlp.Pool, sessions *session.Store, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &Handler{
		Store:          store,
		Orchestrator:   orch,
		NLPPool:        pool,
		Sessions:       sessions,
		Validator:      validator.New(),
		Logger:         logger,
		AdminKey:       cfg.AdminKey,
		CountryDefault: cfg.CountryDefault,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/tickets", h.Tickets)
		api.GET("/sessions/:id", h.SessionSnapshot)
		api.GET("/nlp-settings", h.GetSettings)
	}

	admin := api.Group("")
	admin.Use(adminKey(cfg.AdminKey))
	{
		admin.POST("/upload", h.Upload)
		admin.POST("/nlp-settings", h.UpdateSettings)
		admin.GET("/analytics/summary", h.Analytics)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
