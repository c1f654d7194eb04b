package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopts "go.mongodb.org/mongo-driver/mongo/options"
)

// Timeline keeps one document per reservation with its status history.
type Timeline struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewTimeline(db *mongo.Database, logger observability.Logger) *Timeline {
	return &Timeline{
		coll:   db.Collection("reservation_timelines"),
		logger: logger,
	}
}

type TimelineDoc struct {
	ID        string          `bson:"_id"`
	UserID    string          `bson:"user_id"`
	PostID    string          `bson:"post_id"`
	Status    string          `bson:"status"`
	EventIDs  []string        `bson:"event_ids"`
	History   []TimelineEntry `bson:"history"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

type TimelineEntry struct {
	Event   string    `bson:"event"`
	From    string    `bson:"from,omitempty"`
	To      string    `bson:"to"`
	ActorID string    `bson:"actor_id"`
	At      time.Time `bson:"at"`
}

// Record appends entry to the reservation's history once per eventID.
func (t *Timeline) Record(ctx context.Context, reservationID, userID, postID uuid.UUID, eventID string, entry TimelineEntry) error {
	filter := bson.M{"_id": reservationID.String(), "event_ids": bson.M{"$ne": eventID}}
	update := bson.M{
		"$set": bson.M{
			"user_id":    userID.String(),
			"post_id":    postID.String(),
			"status":     entry.To,
			"updated_at": entry.At,
		},
		"$push": bson.M{
			"history":   entry,
			"event_ids": eventID,
		},
	}
	_, err := t.coll.UpdateOne(ctx, filter, update, mopts.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// The document exists and already holds eventID.
		return nil
	}
	if err != nil {
		t.logger.WithError(err).WithField("reservation_id", reservationID).Error("failed to record timeline entry")
		return err
	}
	return nil
}

// Get returns the reservation's timeline, or domain.ErrNotFound before its
// first event has been projected.
func (t *Timeline) Get(ctx context.Context, reservationID uuid.UUID) (*TimelineDoc, error) {
	var doc TimelineDoc
	err := t.coll.FindOne(ctx, bson.M{"_id": reservationID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFoundf("no timeline for reservation %s", reservationID)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
