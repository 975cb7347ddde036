package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/line-provider/repo"
	"github.com/linebet/line-bet-platform/internal/line-provider/service"
	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

// API expõe o controle da autoridade de eventos: criação, consulta e as
// três mutações que geram propagação (coeficiente, estado, deadline).
type API struct {
	Svc *service.Service
	Log *zap.Logger
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/event", a.createEvent)
	r.Get("/event/{id}", a.getEvent)
	r.Get("/events", a.listActive)
	r.Put("/event/{id}/coefficient", a.updateCoefficient)
	r.Put("/event/{id}/status", a.updateStatus)
	r.Put("/event/{id}/deadline", a.updateDeadline)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr traduz a taxonomia de erros do serviço pra códigos HTTP.
// ErrPublishFailed vira 502 com o evento no corpo: a mutação foi aceita
// pela autoridade, a propagação é que precisa de reconciliação.
func (a *API) writeErr(w http.ResponseWriter, err error, e events.Event) {
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
	case errors.Is(err, service.ErrEventExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrEventFinished):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPublishFailed):
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "event": e})
	default:
		a.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (a *API) createEvent(w http.ResponseWriter, r *http.Request) {
	var req events.Event
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.State == "" {
		req.State = events.StateNew
	}

	e, err := a.Svc.Create(r.Context(), req)
	if err != nil {
		a.writeErr(w, err, e)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	e, err := a.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeErr(w, err, events.Event{})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) listActive(w http.ResponseWriter, r *http.Request) {
	list, err := a.Svc.ListActive(r.Context())
	if err != nil {
		a.writeErr(w, err, events.Event{})
		return
	}
	if list == nil {
		list = []events.Event{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) updateCoefficient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coefficient decimal.Decimal `json:"coefficient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	e, err := a.Svc.UpdateCoefficient(r.Context(), chi.URLParam(r, "id"), req.Coefficient)
	if err != nil {
		a.writeErr(w, err, e)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State events.State `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	e, err := a.Svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.State)
	if err != nil {
		a.writeErr(w, err, e)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) updateDeadline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deadline time.Time `json:"deadline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	e, err := a.Svc.UpdateDeadline(r.Context(), chi.URLParam(r, "id"), req.Deadline)
	if err != nil {
		a.writeErr(w, err, e)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
