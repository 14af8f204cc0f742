package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"arbiscope/internal/history"
	"arbiscope/internal/model"
	"arbiscope/internal/paper"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleHistory serves the aligned two-venue minute series for one token.
// 400 without a token, 500 only when both venue fetches failed; a partial
// failure still returns the surviving venue's points.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, http.StatusBadRequest, "token required")
		return
	}

	points, err := s.deps.History.Fetch(r.Context(), token)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	if points == nil {
		points = []history.Point{}
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]model.ConnectionStatus, len(s.deps.Feeds))
	for _, f := range s.deps.Feeds {
		status[string(f.Name())] = f.Status()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"prices": s.deps.Quotes.Snapshot(),
		"status": status,
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Snapshots.Snapshot())
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	opps := s.deps.Opportunities()
	if opps == nil {
		opps = []model.Opportunity{}
	}
	s.writeJSON(w, http.StatusOK, opps)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active":             s.deps.Engine.ActiveTrades(),
		"history":            s.deps.Engine.History(),
		"totalRealizedPnL":   s.deps.Engine.RealizedPnL(),
		"totalUnrealizedPnL": s.deps.Engine.UnrealizedPnL(),
		"autoPilot":          s.deps.Engine.AutoPilot(),
	})
}

type openTradeRequest struct {
	Token      string          `json:"token"`
	Direction  model.Direction `json:"direction"`
	LongPrice  float64         `json:"longPrice"`
	ShortPrice float64         `json:"shortPrice"`
	Size       float64         `json:"size"`
}

func (s *Server) handleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := s.deps.Engine.Open(req.Token, req.Direction, req.LongPrice, req.ShortPrice, req.Size)
	switch {
	case errors.Is(err, paper.ErrInvalidTrade):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, paper.ErrTokenAlreadyOpen):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusCreated, trade)
	}
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	trade, ok := s.deps.Engine.Close(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown trade id")
		return
	}
	s.writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleGetAutoPilot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.deps.Engine.AutoPilot()})
}

type autoPilotRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetAutoPilot(w http.ResponseWriter, r *http.Request) {
	var req autoPilotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Engine.SetAutoPilot(req.Enabled); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to persist auto-pilot flag")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
