package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"market-structure-engine/internal/notify"
	"market-structure-engine/internal/signal"
	"market-structure-engine/internal/trades"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
}

// Server is the HTTP surface over the signal engine.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	engine    *signal.Engine
	tracker   *trades.Tracker
	journal   *trades.Journal
	debouncer *notify.Debouncer
	hub       *WSHub
	logger    zerolog.Logger
}

// NewServer wires routes and middleware. The hub is started by Start.
func NewServer(config ServerConfig, engine *signal.Engine, tracker *trades.Tracker, journal *trades.Journal, debouncer *notify.Debouncer, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:    gin.New(),
		config:    config,
		engine:    engine,
		tracker:   tracker,
		journal:   journal,
		debouncer: debouncer,
		hub:       NewWSHub(logger),
		logger:    logger.With().Str("component", "api").Logger(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Emitted notifications stream straight to websocket consumers.
	debouncer.OnEmit(s.hub.BroadcastNotification)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.hub.HandleWebSocket)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/signal/:symbol", s.handleGetSignal)

		apiGroup.GET("/biases", s.handleGetBiases)
		apiGroup.DELETE("/biases/:symbol", s.handleClearBias)

		apiGroup.GET("/trades", s.handleGetTrades)
		apiGroup.POST("/trades", s.handleRegisterTrade)
		apiGroup.GET("/trades/summary", s.handleTradeSummary)
		apiGroup.GET("/trades/:symbol/completion", s.handleTradeCompletion)

		apiGroup.GET("/bias-notifications", s.handleGetNotifications)
		apiGroup.POST("/bias-notifications/clear", s.handleClearNotifications)
	}
}

// Start runs the hub and the HTTP listener. Blocks until the listener fails
// or is shut down.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info().Msg("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
