package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/robertarktes/show-reservations/internal/domain"
)

type activityResponse struct {
	EventID string                 `json:"event_id"`
	Action  string                 `json:"action"`
	At      time.Time              `json:"at"`
	Data    map[string]interface{} `json:"data"`
}

type historyResponse struct {
	Event   string    `json:"event"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}

// MyActivity lists the caller's audit entries. ?limit caps the page.
func (h *Handlers) MyActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, domain.Validationf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	list, err := h.svc.Activity.Activity(r.Context(), principal(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]activityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, activityResponse{EventID: a.EventID, Action: a.Action, At: a.At, Data: a.Data})
	}
	writeJSON(w, http.StatusOK, out)
}

// ReservationHistory returns the projected status history of a reservation on
// one of the caller's performances.
func (h *Handlers) ReservationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.svc.Queries.AdminDetail(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Activity.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]historyResponse, 0, len(list))
	for _, e := range list {
		out = append(out, historyResponse{Event: e.Event, From: e.From, To: e.To, ActorID: e.ActorID, At: e.At})
	}
	writeJSON(w, http.StatusOK, out)
}
