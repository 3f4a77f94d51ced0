// Package web serves the voiceloop call page: a single page with a start
// button, a live status badge with call duration, and a scrolling event log.
// It is a pure binding over the session controller; every response is derived
// from a controller snapshot and every action forwards to a controller method.
package web

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/voiceloop/go-voiceloop/pkg/assistant"
	"github.com/voiceloop/go-voiceloop/pkg/hub"
	"github.com/voiceloop/go-voiceloop/pkg/session"
)

// Server is the call page server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	controller *session.Controller
	client     assistant.Client // nil when running degraded

	// Hubs for websocket broadcast
	sessionHub *hub.Hub
	logHub     *hub.Hub

	// seen tracks how much of the log has been broadcast already; lastSeq
	// rejects snapshots delivered out of order.
	seenMu  sync.Mutex
	seen    int
	lastSeq uint64
}

// NewServer creates the call page server bound to a session controller.
// client may be nil when the assistant client failed to initialize; the page
// then renders the controller's degraded state.
func NewServer(addr string, controller *session.Controller, client assistant.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:       addr,
		logger:     logger.With("component", "web"),
		controller: controller,
		client:     client,
		sessionHub: hub.New("session", logger),
		logHub:     hub.New("logs", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Voiceloop",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/session", s.handleSession)
	api.Post("/call/start", s.handleStartCall)
	api.Post("/call/stop", s.handleStopCall)
	api.Post("/logs/clear", s.handleClearLog)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/session", websocket.New(s.handleSessionWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	controller.OnChange(s.broadcast)

	s.app = app
	return s
}

// Start runs the hubs and listens for connections. Blocks.
func (s *Server) Start() error {
	go s.sessionHub.Run()
	go s.logHub.Run()

	s.logger.Info("call page listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// broadcast pushes a fresh snapshot to session subscribers and any new log
// entries to log subscribers. Snapshots can arrive from concurrent change
// hooks; anything at or behind the last applied sequence is dropped so a
// stale delivery is never mistaken for a log clear.
func (s *Server) broadcast(snap session.Snapshot) {
	s.seenMu.Lock()
	if snap.Seq <= s.lastSeq {
		s.seenMu.Unlock()
		return
	}
	s.lastSeq = snap.Seq
	if len(snap.Log) < s.seen {
		// Log was cleared.
		s.seen = 0
	}
	fresh := snap.Log[s.seen:]
	s.seen = len(snap.Log)
	s.seenMu.Unlock()

	s.sessionHub.BroadcastJSON(s.view(snap))
	for _, entry := range fresh {
		s.logHub.BroadcastJSON(entry)
	}
}
