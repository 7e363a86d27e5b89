package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/jptrhost/pelican-dns/internal/config"
	"github.com/jptrhost/pelican-dns/internal/repository"
	"github.com/jptrhost/pelican-dns/internal/service"
)

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
	limiter *RateLimiter
	log     logr.Logger
}

// NewServer wires the routes. store may be nil when no ledger is configured.
func NewServer(cfg *config.Config, provisionService *service.ProvisionService, store repository.RecordStore, log logr.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	var limiter *RateLimiter
	if cfg.Webhook.RateLimit > 0 {
		limiter = NewRateLimiter(cfg.Webhook.RateLimit)
	}

	s := &Server{
		router:  router,
		handler: NewHandler(provisionService, store, log),
		cfg:     cfg,
		limiter: limiter,
		log:     log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "pelican-dns",
		})
	})

	// Pelican webhook
	webhook := s.router.Group("/")
	webhook.Use(RateLimitMiddleware(s.limiter))
	webhook.Use(WebhookAuthMiddleware(s.cfg.Webhook.Secret, s.log))
	{
		webhook.POST("/", s.handler.Webhook)
		webhook.POST("/webhook", s.handler.Webhook)
	}

	// Ledger queries
	api := s.router.Group("/api")
	api.Use(WebhookAuthMiddleware(s.cfg.Webhook.Secret, s.log))
	{
		api.GET("/records", s.handler.ListRecords)
	}
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
