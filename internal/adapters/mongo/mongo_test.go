package mongo_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/show-reservations/internal/adapters/mongo"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "mongodb")
	if err != nil {
		t.Fatal(err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Disconnect(ctx) })
	return client.Database("shows_test")
}

func TestAuditLogger_DeduplicatesByID(t *testing.T) {
	db := startMongo(t)
	logger := observability.NewLoggerTo(io.Discard, logrus.PanicLevel)
	audit := mongoadapter.NewAuditLogger(db, logger)
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 2; i++ {
		err := audit.LogEvent(ctx, "evt-1", "reservation.created", user, map[string]interface{}{"quantity": 2})
		if err != nil {
			t.Fatal(err)
		}
	}
	logs, err := audit.ListByUser(ctx, user, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Action != "reservation.created" {
		t.Fatalf("expected one audit entry, got %+v", logs)
	}
}

func TestTimeline_RecordIsIdempotent(t *testing.T) {
	db := startMongo(t)
	timeline := mongoadapter.NewTimeline(db, observability.NewLoggerTo(io.Discard, logrus.PanicLevel))
	ctx := context.Background()
	resID, userID, postID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	entries := []struct {
		id    string
		entry mongoadapter.TimelineEntry
	}{
		{"e1", mongoadapter.TimelineEntry{Event: "reservation.created", To: "PENDING", ActorID: userID.String(), At: now}},
		{"e2", mongoadapter.TimelineEntry{Event: "reservation.approved", From: "PENDING", To: "APPROVED", ActorID: uuid.NewString(), At: now.Add(time.Minute)}},
		{"e2", mongoadapter.TimelineEntry{Event: "reservation.approved", From: "PENDING", To: "APPROVED", ActorID: uuid.NewString(), At: now.Add(time.Minute)}},
	}
	for _, e := range entries {
		if err := timeline.Record(ctx, resID, userID, postID, e.id, e.entry); err != nil {
			t.Fatal(err)
		}
	}

	doc, err := timeline.Get(ctx, resID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != "APPROVED" || len(doc.History) != 2 {
		t.Fatalf("expected APPROVED with 2 entries, got %s with %d", doc.Status, len(doc.History))
	}
	if _, err := timeline.Get(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown reservation, got %v", err)
	}
}
