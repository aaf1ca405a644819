package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fairtrace/trace-core/internal/logger"
)

// Config holds the relay server configuration
type Config struct {
	Debug        bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Auth         AuthConfig
}

// Server wraps the relay HTTP server: a websocket endpoint for clients plus
// health and room-stats probes
type Server struct {
	config     Config
	hub        *Hub
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New creates a new relay server
func New(cfg Config, hub *Hub) *Server {
	return &Server{
		config: cfg,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin dashboards connect directly
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recovery())
	router.Use(requestLogger())
	router.Use(setupCORS())

	router.GET("/healthz", s.handleHealth)
	router.GET("/rooms", s.handleRooms)
	router.GET("/ws", s.handleWebsocket)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting location relay",
		zap.String("address", addr),
		zap.Bool("publisher_gate", s.config.Auth.Enabled()),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down location relay")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.hub.Rooms().Stats()})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	canPublish, err := AuthorizePublisher(c.Request, s.config.Auth)
	if err != nil {
		// The connection is still accepted as a subscriber; only publishing
		// is withheld.
		logger.Warn("publisher authorization failed", zap.Error(err))
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error(fmt.Errorf("websocket upgrade failed: %w", err))
		return
	}

	sess := newSession(conn, s.hub, canPublish)
	logger.Debug("websocket connected",
		zap.String("conn", sess.ID()),
		zap.Bool("can_publish", canPublish))
	go sess.run()
}
