package api

import (
	"context"
	"net/http"

	"github.com/newthinker/novaquant/internal/api/response"
	"github.com/newthinker/novaquant/internal/backtest"
	"github.com/newthinker/novaquant/internal/live"
	"github.com/newthinker/novaquant/internal/metrics"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type indexResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Health    string `json:"health"`
	Metrics   string `json:"metrics"`
	WSMetrics string `json:"ws_metrics"`
}

type healthResponse struct {
	Status      string  `json:"status"`
	EngineAlive bool    `json:"engine_alive"`
	EngineError *string `json:"engine_error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, indexResponse{
		Name:      Name,
		Version:   s.cfg.Version,
		Health:    "/health",
		Metrics:   "/metrics",
		WSMetrics: "/ws/metrics",
	})
}

// handleHealth stays 200 while the engine is down; the degraded state is
// carried in the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Engine.Status()
	resp := healthResponse{Status: "ok", EngineAlive: st.Alive}
	if st.Error != "" {
		resp.EngineError = &st.Error
	}
	response.JSON(w, http.StatusOK, resp)
}

// runHandler decodes a strict JSON request of type Req and passes it to fn
// under the request context.
func runHandler[Req, Resp any](s *Server, fn func(context.Context, Req) (*Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := backtest.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
			response.Error(w, err)
			return
		}

		resp, err := fn(r.Context(), req)
		if err != nil {
			s.logFailure(w, r, err)
			response.Error(w, err)
			return
		}
		response.JSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, s.deps.Session.Metrics())
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, s.deps.Session.Snapshot())
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var order live.Order
	if err := backtest.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), &order); err != nil {
		response.Error(w, err)
		return
	}

	exec, err := s.deps.Session.Execute(r.Context(), order)
	if err != nil {
		s.logFailure(w, r, err)
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, exec)
}

func (s *Server) logFailure(w http.ResponseWriter, r *http.Request, err error) {
	level := zap.WarnLevel
	if response.StatusFor(err) >= http.StatusInternalServerError {
		level = zap.ErrorLevel
	}
	s.logger.Log(level, "request failed",
		zap.String("route", r.Pattern),
		zap.String("request_id", w.Header().Get(metrics.RequestIDHeader)),
		zap.Error(err),
	)
}
