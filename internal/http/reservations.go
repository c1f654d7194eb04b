package http

import (
	"net/http"

	"github.com/robertarktes/show-reservations/internal/domain"
)

func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var body createReservationRequest
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := domain.NewReservationRequest(body.ScheduleID, body.TicketOptionID, body.SeatCodes, body.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Lifecycle.Create(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationJSON(res))
}

func (h *Handlers) ListMyReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Queries.ListMine(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationsJSON(list))
}

func (h *Handlers) MyReservationsOverview(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Queries.OverviewMine(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]summaryResponse, 0, len(list))
	for _, s := range list {
		out = append(out, summaryResponse{
			ReservationID: s.ReservationID,
			PostID:        s.PostID,
			PostTitle:     s.PostTitle,
			ScheduleID:    s.ScheduleID,
			ScheduleStart: s.ScheduleStart,
			OptionName:    s.OptionName,
			SeatCodes:     nonNil(s.SeatCodes),
			Quantity:      s.Quantity,
			Status:        s.Status,
			CreatedAt:     s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetMyReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.Queries.Detail(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJSON(v))
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Lifecycle.Cancel(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationJSON(res))
}

func (h *Handlers) RequestRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, refund, err := h.svc.Refunds.RequestRefund(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{reservationResponse: reservationJSON(res), Refund: refundJSON(&refund),
		AllowedActions: domain.AllowedActions(res.Status, domain.ActorHolder)})
}

func (h *Handlers) ListForMyPerformances(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Queries.ListForMyPerformances(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationsJSON(list))
}

func (h *Handlers) ListForPerformance(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Queries.ListForPerformance(r.Context(), principal(r), postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationsJSON(list))
}

func (h *Handlers) DecideReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req decideStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Lifecycle.Decide(r.Context(), principal(r), id, domain.ReservationStatus(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationJSON(res))
}

func (h *Handlers) DecideRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req decideRefundRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, refund, err := h.svc.Refunds.DecideRefund(r.Context(), principal(r), id, *req.Approve)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{reservationResponse: reservationJSON(res), Refund: refundJSON(&refund),
		AllowedActions: domain.AllowedActions(res.Status, domain.ActorOrganizer)})
}

func (h *Handlers) ListRefundRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Refunds.ListRefundRequests(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]viewResponse, 0, len(list))
	for _, v := range list {
		out = append(out, viewJSON(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetReservationAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.Queries.AdminDetail(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJSON(v))
}
