// Package idempotency replays stored responses for repeated requests that
// carry the same Idempotency-Key.
package idempotency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/show-reservations/internal/adapters/redis"
	"github.com/robertarktes/show-reservations/internal/domain"
)

// Backend stores responses and in-flight locks. adapters/redis.Idempotency implements it.
type Backend interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Idempotency struct {
	backend Backend
	ttl     time.Duration
}

func NewIdempotency(backend Backend, ttl time.Duration) *Idempotency {
	return &Idempotency{backend: backend, ttl: ttl}
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

// Begin claims key for a request whose body hashes to bodyHash. It returns the
// stored response when the key was already completed with the same body.
// A key reused with a different body, or one still in flight, fails with
// domain.ErrConflict. A nil response means the caller owns the key and must
// call Complete or Abort.
func (i *Idempotency) Begin(ctx context.Context, key, bodyHash string) (*Response, error) {
	stored, err := i.backend.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "read idempotency record")
	}
	if stored != nil {
		if stored.BodyHash != bodyHash {
			return nil, errors.Mark(errors.Newf("idempotency key %q was used with a different request", key), domain.ErrConflict)
		}
		return &Response{Status: stored.Status, ContentType: stored.ContentType, Result: stored.Result}, nil
	}
	ok, err := i.backend.Acquire(ctx, key, i.ttl)
	if err != nil {
		return nil, errors.Wrap(err, "lock idempotency key")
	}
	if !ok {
		return nil, errors.Mark(errors.Newf("a request with idempotency key %q is already in progress", key), domain.ErrConflict)
	}
	return nil, nil
}

// Complete stores resp under key and drops the in-flight lock.
func (i *Idempotency) Complete(ctx context.Context, key, bodyHash string, resp Response) error {
	defer i.backend.Release(ctx, key)
	return i.backend.Set(ctx, key, redisadapter.IdempResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		BodyHash:    bodyHash,
		Result:      resp.Result,
	}, i.ttl)
}

// Abort drops the in-flight lock without storing anything, so the key can be retried.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.backend.Release(ctx, key)
}
