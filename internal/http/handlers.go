package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/audit"
	"github.com/robertarktes/show-reservations/internal/catalog"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/reservation"
)

// Services are the application services the handlers call into. Activity is
// optional; without it the audit routes are not mounted.
type Services struct {
	Catalog      *catalog.Service
	Seats        *reservation.SeatAllocator
	Lifecycle    *reservation.Lifecycle
	Refunds      *reservation.RefundWorkflow
	Queries      *reservation.Queries
	Availability *reservation.AvailabilityChecker
	Activity     *audit.Reader
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	svc   Services
	ready []Pinger
}

func NewHandlers(svc Services, ready ...Pinger) *Handlers {
	return &Handlers{svc: svc, ready: ready}
}

func principal(r *http.Request) domain.Principal {
	p, _ := principalFrom(r.Context())
	return p
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.Validationf("invalid %s", name)
	}
	return id, nil
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.svc.Catalog.CreatePost(r.Context(), principal(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
}

func (h *Handlers) PostOverview(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Catalog.Overview(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]postSummaryResponse, 0, len(list))
	for _, s := range list {
		out = append(out, postSummaryResponse{
			ID:              s.ID,
			Title:           s.Title,
			Location:        s.Location,
			ProfileImageURL: s.ProfileImageURL,
			Status:          s.Status,
			ScheduleCount:   s.ScheduleCount,
			FirstStart:      s.FirstStart,
			CreatedAt:       s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.Catalog.GetPost(r.Context(), postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postDetailJSON(d))
}

func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updatePostRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.svc.Catalog.UpdatePost(r.Context(), principal(r), postID, req.update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Catalog.DeletePost(r.Context(), principal(r), postID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Catalog.ListSchedules(r.Context(), postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]scheduleResponse, 0, len(list))
	for _, v := range list {
		out = append(out, scheduleViewJSON(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListTicketOptions(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Catalog.ListTicketOptions(r.Context(), postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ticketOptionResponse, 0, len(list))
	for _, o := range list {
		out = append(out, ticketOptionJSON(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.Availability.CheckAvailability(r.Context(), principal(r), postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{CanBook: a.CanBook, Reason: a.Reason})
}

func (h *Handlers) ListSeats(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := uuidParam(r, "scheduleID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	seats, err := h.svc.Seats.ListSeats(r.Context(), scheduleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]seatResponse, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatResponse{SeatCode: s.SeatCode, Status: s.Status})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz fails while any backing store is unreachable.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.ready {
		if err := p.Ping(r.Context()); err != nil {
			loggerFrom(r.Context()).WithError(err).Warn("readiness check failed")
			http.Error(w, "Not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
