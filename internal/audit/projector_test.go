package audit_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/show-reservations/internal/adapters/mongo"
	"github.com/robertarktes/show-reservations/internal/audit"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
	"github.com/robertarktes/show-reservations/internal/reservation"
	"github.com/sirupsen/logrus"
)

type logCall struct {
	id, action string
	user       uuid.UUID
	data       map[string]interface{}
}

type fakeLog struct {
	calls []logCall
	err   error
}

func (f *fakeLog) LogEvent(_ context.Context, id, action string, userID uuid.UUID, data map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, logCall{id, action, userID, data})
	return nil
}

type fakeTimeline struct {
	entries []mongoadapter.TimelineEntry
}

func (f *fakeTimeline) Record(_ context.Context, _, _, _ uuid.UUID, _ string, entry mongoadapter.TimelineEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func newProjector() (*audit.Projector, *fakeLog, *fakeTimeline) {
	log, tl := &fakeLog{}, &fakeTimeline{}
	return audit.NewProjector(log, tl, observability.NewLoggerTo(io.Discard, logrus.PanicLevel)), log, tl
}

func TestProjector_Handle(t *testing.T) {
	p, log, tl := newProjector()
	ev := reservation.Event{
		ReservationID: uuid.New(),
		UserID:        uuid.New(),
		ActorID:       uuid.New(),
		PostID:        uuid.New(),
		SeatCodes:     []string{"A1"},
		Quantity:      1,
		From:          domain.StatusPending,
		Status:        domain.StatusApproved,
		OccurredAt:    time.Now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Handle(context.Background(), "m1", "reservation.approved", body); err != nil {
		t.Fatal(err)
	}
	if len(log.calls) != 1 || log.calls[0].id != "m1" || log.calls[0].user != ev.UserID {
		t.Fatalf("unexpected audit calls %+v", log.calls)
	}
	if log.calls[0].data["status"] != "APPROVED" {
		t.Fatalf("expected status in audit data, got %v", log.calls[0].data)
	}
	if len(tl.entries) != 1 || tl.entries[0].From != "PENDING" || tl.entries[0].To != "APPROVED" {
		t.Fatalf("unexpected timeline %+v", tl.entries)
	}
}

func TestProjector_RejectsMalformed(t *testing.T) {
	p, log, _ := newProjector()
	if err := p.Handle(context.Background(), "m1", "reservation.created", []byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
	if err := p.Handle(context.Background(), "m2", "reservation.created", []byte(`{}`)); err == nil {
		t.Fatal("expected missing id error")
	}
	if len(log.calls) != 0 {
		t.Fatalf("expected nothing logged, got %d", len(log.calls))
	}
}

func TestProjector_PropagatesStorageErrors(t *testing.T) {
	p, log, tl := newProjector()
	log.err = errors.New("mongo down")
	body, _ := json.Marshal(reservation.Event{ReservationID: uuid.New(), Status: domain.StatusPending})

	if err := p.Handle(context.Background(), "m1", "reservation.created", body); err == nil {
		t.Fatal("expected storage error")
	}
	if len(tl.entries) != 0 {
		t.Fatal("timeline written despite audit failure")
	}
}
