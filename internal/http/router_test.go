package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/show-reservations/internal/adapters/mongo"
	"github.com/robertarktes/show-reservations/internal/audit"
	"github.com/robertarktes/show-reservations/internal/catalog"
	"github.com/robertarktes/show-reservations/internal/domain"
	api "github.com/robertarktes/show-reservations/internal/http"
	"github.com/robertarktes/show-reservations/internal/idempotency"
	"github.com/robertarktes/show-reservations/internal/observability"
	"github.com/robertarktes/show-reservations/internal/reservation"
	"github.com/sirupsen/logrus"
)

var secret = []byte("test-secret")

type server struct {
	store     *memory.Store
	handler   http.Handler
	organizer domain.Principal
	alice     domain.Principal
	bob       domain.Principal
}

func newServer(t *testing.T, opts api.RouterOptions) *server {
	t.Helper()
	return newServerWith(t, opts, nil)
}

func newServerWith(t *testing.T, opts api.RouterOptions, activity *audit.Reader) *server {
	t.Helper()
	logger := observability.NewLoggerTo(io.Discard, logrus.PanicLevel)
	store := memory.NewStore()
	seats := reservation.NewSeatAllocator(store, nil, logger)
	lifecycle := reservation.NewLifecycle(store, seats, reservation.NewCapacityTracker(store), logger)
	h := api.NewHandlers(api.Services{
		Catalog:      catalog.NewService(store, logger),
		Seats:        seats,
		Lifecycle:    lifecycle,
		Refunds:      reservation.NewRefundWorkflow(store, lifecycle),
		Queries:      reservation.NewQueries(store),
		Availability: reservation.NewAvailabilityChecker(store),
		Activity:     activity,
	})
	opts.JWTSecret = secret
	return &server{
		store:     store,
		handler:   api.SetupRouter(h, logger, opts),
		organizer: domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin},
		alice:     domain.Principal{UserID: uuid.New(), Role: domain.RoleUser},
		bob:       domain.Principal{UserID: uuid.New(), Role: domain.RoleUser},
	}
}

func (s *server) do(t *testing.T, p *domain.Principal, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		token, err := api.SignToken(*p, secret)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error.Kind
}

type provisioned struct {
	postID    string
	seatedID  string
	generalID string
	optionID  string
}

// provision creates a post with a seated schedule (A1, A2) and a general
// schedule sharing one option of capacity 2.
func (s *server) provision(t *testing.T) provisioned {
	t.Helper()
	start := time.Now().UTC().Add(48 * time.Hour)
	rec := s.do(t, &s.organizer, http.MethodPost, "/v1/posts", map[string]interface{}{
		"title":             "Hamlet",
		"location":          "Main Hall",
		"profile_image_url": "images/hamlet.png",
		"schedules": []map[string]interface{}{
			{"start_time": start, "seating_mode": "SEATED", "seat_codes": []string{"A1", "A2"}},
			{"start_time": start.Add(24 * time.Hour), "seating_mode": "GENERAL"},
		},
		"ticket_options": []map[string]interface{}{{"name": "R", "price": 50000, "capacity": 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	out := provisioned{postID: created.ID}
	rec = s.do(t, &s.alice, http.MethodGet, "/v1/posts/"+created.ID+"/schedules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var scheds []struct {
		ID          string `json:"id"`
		SeatingMode string `json:"seating_mode"`
	}
	decodeBody(t, rec, &scheds)
	for _, sc := range scheds {
		if sc.SeatingMode == "SEATED" {
			out.seatedID = sc.ID
		} else {
			out.generalID = sc.ID
		}
	}
	rec = s.do(t, &s.alice, http.MethodGet, "/v1/posts/"+created.ID+"/ticket-options", nil)
	var opts []struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &opts)
	if len(opts) != 1 {
		t.Fatalf("expected 1 ticket option, got %d", len(opts))
	}
	out.optionID = opts[0].ID
	return out
}

type reservationBody struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	SeatCodes      []string `json:"seat_codes"`
	AllowedActions []string `json:"allowed_actions"`
	Refund         *struct {
		Status string `json:"status"`
	} `json:"refund"`
}

func TestRouter_HealthAndMetricsNeedNoToken(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	for _, path := range []string{"/v1/healthz", "/v1/readyz", "/metrics"} {
		if rec := s.do(t, nil, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_RejectsMissingOrBadToken(t *testing.T) {
	s := newServer(t, api.RouterOptions{})

	rec := s.do(t, nil, http.MethodGet, "/v1/reservations/mine", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = s.do(t, nil, http.MethodGet, "/v1/reservations/mine", nil, "Authorization", "Bearer not-a-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	forged, err := api.SignToken(s.alice, []byte("other-secret"))
	if err != nil {
		t.Fatal(err)
	}
	rec = s.do(t, nil, http.MethodGet, "/v1/reservations/mine", nil, "Authorization", "Bearer "+forged)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", rec.Code)
	}
}

func TestRouter_ManageRoutesRequireAdmin(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	rec := s.do(t, &s.alice, http.MethodGet, "/v1/manage/reservations", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != string(domain.KindForbidden) {
		t.Fatalf("expected kind %s, got %s", domain.KindForbidden, kind)
	}
	if rec := s.do(t, &s.organizer, http.MethodGet, "/v1/manage/reservations", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for organizer, got %d", rec.Code)
	}
}

func TestRouter_SeatReservationLifecycle(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	p := s.provision(t)

	rec := s.do(t, &s.alice, http.MethodPost, "/v1/reservations", map[string]interface{}{
		"schedule_id": p.seatedID, "ticket_option_id": p.optionID, "seat_codes": []string{"A1"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var res reservationBody
	decodeBody(t, rec, &res)
	if res.Status != string(domain.StatusPending) {
		t.Fatalf("expected PENDING, got %s", res.Status)
	}

	rec = s.do(t, &s.bob, http.MethodPost, "/v1/reservations", map[string]interface{}{
		"schedule_id": p.seatedID, "ticket_option_id": p.optionID, "seat_codes": []string{"A1"},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a taken seat, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != string(domain.KindCapacityExceeded) {
		t.Fatalf("expected kind %s, got %s", domain.KindCapacityExceeded, kind)
	}

	rec = s.do(t, &s.organizer, http.MethodPatch, "/v1/manage/reservations/"+res.ID+"/status", map[string]string{"status": "APPROVED"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, &s.alice, http.MethodPost, "/v1/reservations/"+res.ID+"/refund", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &res)
	if res.Status != string(domain.StatusRefundRequested) || res.Refund == nil || res.Refund.Status != string(domain.RefundRequested) {
		t.Fatalf("expected refund requested, got %+v", res)
	}

	rec = s.do(t, &s.organizer, http.MethodGet, "/v1/manage/refunds", nil)
	var pending []reservationBody
	decodeBody(t, rec, &pending)
	if len(pending) != 1 || pending[0].ID != res.ID {
		t.Fatalf("expected the reservation among refund requests, got %+v", pending)
	}
	if len(pending[0].AllowedActions) != 2 {
		t.Fatalf("expected approve and reject refund actions, got %v", pending[0].AllowedActions)
	}

	rec = s.do(t, &s.organizer, http.MethodPatch, "/v1/manage/reservations/"+res.ID+"/refund", map[string]bool{"approve": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &res)
	if res.Status != string(domain.StatusRefunded) {
		t.Fatalf("expected REFUNDED, got %s", res.Status)
	}

	rec = s.do(t, &s.alice, http.MethodGet, "/v1/schedules/"+p.seatedID+"/seats", nil)
	var seats []struct {
		SeatCode string `json:"seat_code"`
		Status   string `json:"status"`
	}
	decodeBody(t, rec, &seats)
	if len(seats) != 2 || seats[0].SeatCode != "A1" || seats[0].Status != string(domain.SeatAvailable) {
		t.Fatalf("expected A1 available again, got %+v", seats)
	}

	rec = s.do(t, &s.alice, http.MethodDelete, "/v1/reservations/"+res.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling a refunded reservation, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != string(domain.KindInvalidStateTransition) {
		t.Fatalf("expected kind %s, got %s", domain.KindInvalidStateTransition, kind)
	}
}

func TestRouter_DetailShowsAllowedActionsPerParty(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	p := s.provision(t)

	rec := s.do(t, &s.alice, http.MethodPost, "/v1/reservations", map[string]interface{}{
		"schedule_id": p.generalID, "ticket_option_id": p.optionID, "quantity": 1,
	})
	var res reservationBody
	decodeBody(t, rec, &res)

	rec = s.do(t, &s.alice, http.MethodGet, "/v1/reservations/"+res.ID, nil)
	decodeBody(t, rec, &res)
	if len(res.AllowedActions) != 1 || res.AllowedActions[0] != string(domain.ActionCancel) {
		t.Fatalf("expected [CANCEL] for the holder, got %v", res.AllowedActions)
	}

	rec = s.do(t, &s.organizer, http.MethodGet, "/v1/manage/reservations/"+res.ID, nil)
	decodeBody(t, rec, &res)
	if len(res.AllowedActions) != 2 || res.AllowedActions[0] != string(domain.ActionApprove) {
		t.Fatalf("expected [APPROVE REJECT] for the organizer, got %v", res.AllowedActions)
	}

	if rec := s.do(t, &s.bob, http.MethodGet, "/v1/reservations/"+res.ID, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", rec.Code)
	}
	if rec := s.do(t, &s.alice, http.MethodGet, "/v1/reservations/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

type auditLogStub struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (a *auditLogStub) ListByUser(_ context.Context, userID uuid.UUID, _ int64) ([]mongoadapter.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = append(a.users, userID)
	return []mongoadapter.AuditLog{{ID: "e1", Action: "reservation.created", UserID: userID.String(), Timestamp: time.Now().UTC()}}, nil
}

type timelineStub struct{}

func (timelineStub) Get(_ context.Context, id uuid.UUID) (*mongoadapter.TimelineDoc, error) {
	return &mongoadapter.TimelineDoc{ID: id.String(), History: []mongoadapter.TimelineEntry{
		{Event: "reservation.created", To: "PENDING", At: time.Now().UTC()},
	}}, nil
}

func TestRouter_ActivityRoutes(t *testing.T) {
	if rec := newServer(t, api.RouterOptions{}).do(t, &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}, http.MethodGet, "/v1/reservations/mine/activity", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without an audit store, got %d", rec.Code)
	}

	logs := &auditLogStub{}
	s := newServerWith(t, api.RouterOptions{}, audit.NewReader(logs, timelineStub{}))
	p := s.provision(t)
	rec := s.do(t, &s.alice, http.MethodPost, "/v1/reservations", map[string]interface{}{
		"schedule_id": p.generalID, "ticket_option_id": p.optionID, "quantity": 1,
	})
	var res reservationBody
	decodeBody(t, rec, &res)

	rec = s.do(t, &s.alice, http.MethodGet, "/v1/reservations/mine/activity?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var activity []struct {
		EventID string `json:"event_id"`
		Action  string `json:"action"`
	}
	decodeBody(t, rec, &activity)
	if len(activity) != 1 || activity[0].Action != "reservation.created" {
		t.Fatalf("unexpected activity %+v", activity)
	}
	if len(logs.users) != 1 || logs.users[0] != s.alice.UserID {
		t.Fatalf("expected activity read for alice only, got %v", logs.users)
	}
	if rec := s.do(t, &s.alice, http.MethodGet, "/v1/reservations/mine/activity?limit=x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}

	path := "/v1/manage/reservations/" + res.ID + "/history"
	rec = s.do(t, &s.organizer, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var history []struct {
		Event string `json:"event"`
		To    string `json:"to"`
	}
	decodeBody(t, rec, &history)
	if len(history) != 1 || history[0].To != "PENDING" {
		t.Fatalf("unexpected history %+v", history)
	}

	other := domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}
	if rec := s.do(t, &other, http.MethodGet, path, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another organizer, got %d", rec.Code)
	}
	if rec := s.do(t, &s.alice, http.MethodGet, path, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a user, got %d", rec.Code)
	}
	if rec := s.do(t, &s.organizer, http.MethodGet, "/v1/manage/reservations/"+uuid.NewString()+"/history", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_ValidationErrors(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	p := s.provision(t)

	rec := s.do(t, &s.alice, http.MethodGet, "/v1/reservations/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = s.do(t, &s.organizer, http.MethodPatch, "/v1/manage/reservations/"+uuid.NewString()+"/status", map[string]string{"status": "MAYBE"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != string(domain.KindValidation) {
		t.Fatalf("expected kind %s, got %s", domain.KindValidation, kind)
	}

	rec = s.do(t, &s.alice, http.MethodPost, "/v1/reservations", map[string]interface{}{
		"schedule_id": p.seatedID, "ticket_option_id": p.optionID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a seated request without seats, got %d", rec.Code)
	}

	images := []string{"a", "b", "c", "d", "e"}
	rec = s.do(t, &s.organizer, http.MethodPut, "/v1/posts/"+p.postID, map[string]interface{}{
		"title": "Hamlet", "new_detail_image_urls": images,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for five new images, got %d", rec.Code)
	}
}

func TestRouter_CatalogRoutes(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	p := s.provision(t)

	rec := s.do(t, &s.alice, http.MethodPost, "/v1/posts", map[string]interface{}{"title": "Mine", "profile_image_url": "x.png"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a user creating a post, got %d", rec.Code)
	}

	rec = s.do(t, &s.organizer, http.MethodGet, "/v1/posts/overview", nil)
	var overview []struct {
		ID            string `json:"id"`
		ScheduleCount int    `json:"schedule_count"`
	}
	decodeBody(t, rec, &overview)
	if len(overview) != 1 || overview[0].ID != p.postID || overview[0].ScheduleCount != 2 {
		t.Fatalf("unexpected overview %+v", overview)
	}

	rec = s.do(t, &s.alice, http.MethodGet, "/v1/posts/"+p.postID+"/availability", nil)
	var avail struct {
		CanBook bool   `json:"can_book"`
		Reason  string `json:"reason"`
	}
	decodeBody(t, rec, &avail)
	if !avail.CanBook || avail.Reason != "" {
		t.Fatalf("expected bookable, got %+v", avail)
	}

	rec = s.do(t, &s.organizer, http.MethodPut, "/v1/posts/"+p.postID, map[string]interface{}{
		"title": "Hamlet", "status": "UNPUBLISHED", "new_detail_image_urls": []string{"d1.png"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, &s.alice, http.MethodGet, "/v1/posts/"+p.postID+"/availability", nil)
	decodeBody(t, rec, &avail)
	if avail.CanBook || avail.Reason != string(reservation.ReasonPostUnpublished) {
		t.Fatalf("expected POST_UNPUBLISHED, got %+v", avail)
	}

	rec = s.do(t, &s.organizer, http.MethodDelete, "/v1/posts/"+p.postID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := s.do(t, &s.alice, http.MethodGet, "/v1/posts/"+p.postID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestRouter_InternalErrorsAreGeneric(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	p := s.provision(t)
	s.store.FailOn("InsertReservation", errors.New("disk on fire"))

	rec := s.do(t, &s.alice, http.MethodPost, "/v1/reservations", map[string]interface{}{
		"schedule_id": p.generalID, "ticket_option_id": p.optionID, "quantity": 1,
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("disk on fire")) {
		t.Fatalf("internal error detail leaked: %s", rec.Body.String())
	}
}

type memIdempotency struct {
	mu       sync.Mutex
	done     map[string]idempotency.Response
	hashes   map[string]string
	inFlight map[string]bool
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{done: map[string]idempotency.Response{}, hashes: map[string]string{}, inFlight: map[string]bool{}}
}

func (m *memIdempotency) Begin(_ context.Context, key, hash string) (*idempotency.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp, ok := m.done[key]; ok {
		if m.hashes[key] != hash {
			return nil, errors.Mark(errors.New("key reused"), domain.ErrConflict)
		}
		return &resp, nil
	}
	if m.inFlight[key] {
		return nil, errors.Mark(errors.New("in flight"), domain.ErrConflict)
	}
	m.inFlight[key] = true
	return nil, nil
}

func (m *memIdempotency) Complete(_ context.Context, key, hash string, resp idempotency.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, key)
	m.done[key] = resp
	m.hashes[key] = hash
	return nil
}

func (m *memIdempotency) Abort(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, key)
	return nil
}

func TestRouter_IdempotentCreateReplays(t *testing.T) {
	s := newServer(t, api.RouterOptions{Idempotency: newMemIdempotency()})
	p := s.provision(t)
	body := map[string]interface{}{"schedule_id": p.generalID, "ticket_option_id": p.optionID, "quantity": 1}

	first := s.do(t, &s.alice, http.MethodPost, "/v1/reservations", body, "Idempotency-Key", "order-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := s.do(t, &s.alice, http.MethodPost, "/v1/reservations", body, "Idempotency-Key", "order-1")
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("expected identical bodies, got %s and %s", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay header")
	}

	rec := s.do(t, &s.alice, http.MethodGet, "/v1/reservations/mine", nil)
	var mine []reservationBody
	decodeBody(t, rec, &mine)
	if len(mine) != 1 {
		t.Fatalf("expected exactly 1 reservation, got %d", len(mine))
	}

	body["quantity"] = 2
	rec = s.do(t, &s.alice, http.MethodPost, "/v1/reservations", body, "Idempotency-Key", "order-1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a reused key with another body, got %d", rec.Code)
	}

	rec = s.do(t, &s.bob, http.MethodPost, "/v1/reservations", map[string]interface{}{
		"schedule_id": p.generalID, "ticket_option_id": p.optionID, "quantity": 1,
	}, "Idempotency-Key", "order-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected keys to be scoped per user, got %d", rec.Code)
	}
}

type stubLimiter struct {
	allow bool
	err   error
}

func (l stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, l.err
}

func TestRouter_RateLimit(t *testing.T) {
	s := newServer(t, api.RouterOptions{Limiter: stubLimiter{allow: false}, UserRate: 1, IPRate: 1})
	if rec := s.do(t, &s.alice, http.MethodGet, "/v1/reservations/mine", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := s.do(t, nil, http.MethodGet, "/v1/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected health to bypass the limiter, got %d", rec.Code)
	}

	s = newServer(t, api.RouterOptions{Limiter: stubLimiter{err: errors.New("redis down")}, UserRate: 1, IPRate: 1})
	if rec := s.do(t, &s.alice, http.MethodGet, "/v1/reservations/mine", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected the limiter to fail open, got %d", rec.Code)
	}
}
