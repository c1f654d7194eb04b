package audit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/show-reservations/internal/adapters/mongo"
	"github.com/robertarktes/show-reservations/internal/domain"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// LogReader is implemented by adapters/mongo.AuditLogger.
type LogReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int64) ([]mongoadapter.AuditLog, error)
}

// TimelineReader is implemented by adapters/mongo.Timeline.
type TimelineReader interface {
	Get(ctx context.Context, reservationID uuid.UUID) (*mongoadapter.TimelineDoc, error)
}

type Activity struct {
	EventID string
	Action  string
	At      time.Time
	Data    map[string]interface{}
}

type HistoryEntry struct {
	Event   string
	From    string
	To      string
	ActorID string
	At      time.Time
}

// Reader serves the projected audit log and timelines. Callers check access
// to the reservation before asking for its history.
type Reader struct {
	log      LogReader
	timeline TimelineReader
}

func NewReader(log LogReader, timeline TimelineReader) *Reader {
	return &Reader{log: log, timeline: timeline}
}

// Activity returns the caller's own audit entries, newest first. limit is
// clamped to [1, 100]; zero means 20.
func (r *Reader) Activity(ctx context.Context, p domain.Principal, limit int) ([]Activity, error) {
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	logs, err := r.log.ListByUser(ctx, p.UserID, int64(limit))
	if err != nil {
		return nil, errors.Wrap(err, "read audit log")
	}
	out := make([]Activity, 0, len(logs))
	for _, l := range logs {
		out = append(out, Activity{EventID: l.ID, Action: l.Action, At: l.Timestamp, Data: l.Data})
	}
	return out, nil
}

// History returns the reservation's status history in projection order. A
// reservation whose events have not been projected yet has an empty history.
func (r *Reader) History(ctx context.Context, reservationID uuid.UUID) ([]HistoryEntry, error) {
	doc, err := r.timeline.Get(ctx, reservationID)
	if errors.Is(err, domain.ErrNotFound) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read timeline")
	}
	out := make([]HistoryEntry, 0, len(doc.History))
	for _, e := range doc.History {
		out = append(out, HistoryEntry{Event: e.Event, From: e.From, To: e.To, ActorID: e.ActorID, At: e.At})
	}
	return out, nil
}
