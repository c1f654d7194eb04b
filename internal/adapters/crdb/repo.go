package crdb

import (
	"context"
	_ "embed"
	"time"

	crdbretry "github.com/cockroachdb/cockroach-go/v2/crdb"
	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	SerializationFailureCode = "40001"
	// MaxTxRetries bounds how often a unit of work is replayed after a 40001 abort.
	MaxTxRetries = 5
)

//go:embed schema.sql
var schema string

// Repository is the CockroachDB implementation of domain.Store. It also reads
// inventory drift and relays the outbox.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the tables if they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return errors.Wrap(err, "apply schema")
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx runs fn in one SERIALIZABLE transaction. fn is replayed on 40001
// aborts up to MaxTxRetries times, so it must only assign its results. An abort
// that outlives the retries surfaces as domain.ErrSerializationFailure.
func (r *Repository) WithTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	ctx, span := observability.Tracer("crdb").Start(ctx, "crdb.WithTx")
	start := time.Now()
	attempts := 0
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.Int("crdb.attempts", attempts))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = crdbpgxv5.ExecuteTx(crdbretry.WithMaxRetries(ctx, MaxTxRetries), r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		attempts++
		return fn(&txRepo{tx: tx})
	})
	return mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
		return errors.Mark(errors.Wrap(err, "transaction aborted"), domain.ErrSerializationFailure)
	}
	return err
}

// txRepo implements domain.Tx over one pgx transaction.
type txRepo struct {
	tx pgx.Tx
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundf(format, args...)
	}
	return err
}

func statusStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
