package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/bet-maker/betting"
	"github.com/linebet/line-bet-platform/internal/bet-maker/cache"
	"github.com/linebet/line-bet-platform/internal/bet-maker/dto"
	"github.com/linebet/line-bet-platform/internal/bet-maker/repo"
	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

// Server expõe o lado de apostas: eventos ativos da réplica, aceitação e
// listagem de apostas. Só lê a réplica local — nunca consulta a autoridade.
type Server struct {
	log   *zap.Logger
	repo  *repo.Postgres
	bets  *betting.Service
	cache *cache.EventsCache
}

func NewServer(log *zap.Logger, r *repo.Postgres, b *betting.Service, c *cache.EventsCache) *Server {
	return &Server{log: log, repo: r, bets: b, cache: c}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.listEvents) // GET
	mux.HandleFunc("/bets", s.handleBets)   // POST | GET
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// listEvents serve os eventos ainda abertos, com read-through no Redis:
// hit responde direto, miss consulta a réplica e repovoa o cache.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.cache != nil {
		if list, ok, err := s.cache.GetActive(r.Context()); err == nil && ok {
			writeJSON(w, http.StatusOK, list)
			return
		}
	}

	list, err := s.repo.ListActiveEvents(r.Context(), time.Now())
	if err != nil {
		s.log.Error("list events failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if list == nil {
		list = []events.Event{}
	}

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		if err := s.cache.SetActive(ctx, list); err != nil {
			s.log.Warn("cache set failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleBets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.placeBet(w, r)
	case http.MethodGet:
		s.listBets(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.EventID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event_id required"})
		return
	}

	bet, err := s.bets.Accept(r.Context(), req.EventID, req.Amount)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
			BetID:     bet.BetID,
			EventID:   bet.EventID,
			Amount:    bet.Amount,
			Status:    string(bet.Status),
			CreatedAt: bet.CreatedAt,
			Message:   "the bet has been accepted",
		})
	case errors.Is(err, betting.ErrEventNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, betting.ErrEventClosed), errors.Is(err, betting.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.log.Error("place bet failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	bets, err := s.bets.List(r.Context())
	if err != nil {
		s.log.Error("list bets failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if bets == nil {
		bets = []repo.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}
