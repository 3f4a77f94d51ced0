package web

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/voiceloop/go-voiceloop/pkg/hub"
	"github.com/voiceloop/go-voiceloop/pkg/session"
)

// sessionView is the snapshot decorated with presentation fields. The
// enablement rules live here so the page stays a dumb renderer: start is
// allowed only from idle or error, stop only while connected.
type sessionView struct {
	session.Snapshot

	StatusLabel  string      `json:"status_label"`
	ShowDuration bool        `json:"show_duration"`
	CanStart     bool        `json:"can_start"`
	CanStop      bool        `json:"can_stop"`
	Relay        *relayStats `json:"relay,omitempty"`
}

// relayStats summarizes control-channel metrics for the page footer.
type relayStats struct {
	EventsReceived int64  `json:"events_received"`
	LastEventAt    string `json:"last_event_at,omitempty"`
}

// statusLabel maps a status to the badge text.
func statusLabel(s session.Status) string {
	switch s {
	case session.StatusConnecting:
		return "Connecting…"
	case session.StatusConnected:
		return "Connected"
	case session.StatusError:
		return "Error"
	default:
		return "Ready"
	}
}

// view decorates a snapshot for rendering.
func (s *Server) view(snap session.Snapshot) sessionView {
	v := sessionView{
		Snapshot:     snap,
		StatusLabel:  statusLabel(snap.Status),
		ShowDuration: snap.Status == session.StatusConnected,
		CanStart:     snap.Status == session.StatusIdle || snap.Status == session.StatusError,
		CanStop:      snap.Status == session.StatusConnected,
	}
	if s.client != nil {
		m := s.client.Metrics()
		stats := &relayStats{EventsReceived: m.EventsReceived}
		if !m.LastEventAt.IsZero() {
			stats.LastEventAt = m.LastEventAt.Format(time.RFC3339)
		}
		v.Relay = stats
	}
	return v
}

// handleSession returns the current session view.
func (s *Server) handleSession(c *fiber.Ctx) error {
	return c.JSON(s.view(s.controller.Snapshot()))
}

// handleStartCall starts a call. The call going live is reported later over
// the session websocket, not in this response.
func (s *Server) handleStartCall(c *fiber.Ctx) error {
	err := s.controller.Start(c.UserContext())
	switch {
	case errors.Is(err, session.ErrNotInitialized):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "assistant client not initialized",
		})
	case errors.Is(err, session.ErrCallInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "call already in progress",
		})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(s.view(s.controller.Snapshot()))
}

// handleStopCall stops the current call. Safe when no call is in progress.
func (s *Server) handleStopCall(c *fiber.Ctx) error {
	if err := s.controller.Stop(); err != nil {
		// Local state is reset regardless; surface the vendor error in
		// the log, not the response.
		s.logger.Warn("stop returned error", "error", err)
	}
	return c.JSON(s.view(s.controller.Snapshot()))
}

// handleClearLog empties the event log.
func (s *Server) handleClearLog(c *fiber.Ctx) error {
	s.controller.ClearLog()
	return c.JSON(s.view(s.controller.Snapshot()))
}

// handleSessionWS streams session views to a page.
func (s *Server) handleSessionWS(c *websocket.Conn) {
	client := hub.NewClient(s.sessionHub, c)

	// Current view first so the page renders without waiting for a change.
	if data, err := json.Marshal(s.view(s.controller.Snapshot())); err == nil {
		client.Send(data)
	}

	client.Run()
}

// handleLogsWS streams log entries to a page.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	client := hub.NewClient(s.logHub, c)

	// Replay the retained log so new subscribers see history.
	for _, entry := range s.controller.Snapshot().Log {
		if data, err := json.Marshal(entry); err == nil {
			client.Send(data)
		}
	}

	client.Run()
}
