package api

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/newthinker/novaquant/internal/performance"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongTimeout  = 60 * time.Second
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-host pages, non-browser clients and the configured
// CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// handleMetricsWS pushes the live metrics on every session update and again
// every MetricsWSInterval. Client messages are discarded.
func (s *Server) handleMetricsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := s.deps.Session.Broadcaster().Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		}
	}()

	ticker := time.NewTicker(s.cfg.MetricsWSInterval)
	defer ticker.Stop()

	send := func(m performance.Metrics) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(m); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	latest := s.deps.Session.Metrics()
	for {
		select {
		case m, ok := <-updates:
			if !ok {
				return
			}
			latest = m
			if !send(latest) {
				return
			}
		case <-ticker.C:
			if !send(latest) {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.quit:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-r.Context().Done():
			return
		}
	}
}
