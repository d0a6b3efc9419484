package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-feed/internal/auth"
	"github.com/vovakirdan/wirechat-feed/internal/config"
	"github.com/vovakirdan/wirechat-feed/internal/core"
	"github.com/vovakirdan/wirechat-feed/internal/store"
)

// NewServer builds the HTTP server: REST API, health check and the WebSocket feed.
func NewServer(feed *core.Feed, authService *auth.Service, st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(feed, authService, st, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts the WebSocket endpoint beside the gin engine.
// gin's response writer refuses the hijack after a 101 status, so /ws stays off the router.
func NewHandler(feed *core.Feed, authService *auth.Service, st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(feed, authService, cfg.Feed.RateLimitPerMinute, logger))
	mux.Handle("/", NewRouter(feed, authService, st, cfg, logger))
	return mux
}

// NewRouter wires the REST API and health check onto a gin engine.
func NewRouter(feed *core.Feed, authService *auth.Service, st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := router.Group("/api")

	authHandlers := NewAPIHandlers(authService, logger)
	api.POST("/register", authHandlers.Register)
	api.POST("/login", authHandlers.Login)
	api.POST("/guest", authHandlers.GuestLogin)

	messages := NewMessageHandlers(feed, st, logger)
	api.GET("/messages", messages.List)
	api.POST("/messages", AuthMiddleware(authService, logger), messages.Create)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
