package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/show-reservations/internal/domain"
)

// Cache holds seat maps per schedule and backs the rate limiter counters.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

type seatEntry struct {
	Code   string            `json:"c"`
	Status domain.SeatStatus `json:"s"`
}

func seatKey(scheduleID uuid.UUID) string {
	return "seats:" + scheduleID.String()
}

func seatVersionKey(scheduleID uuid.UUID) string {
	return "seats:ver:" + scheduleID.String()
}

// GetSeats reads the seat map and its version in one round trip. A missing
// version counts as 0.
func (c *Cache) GetSeats(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleSeat, int64, bool, error) {
	var seatsCmd, verCmd *redis.StringCmd
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		seatsCmd = p.Get(ctx, seatKey(scheduleID))
		verCmd = p.Get(ctx, seatVersionKey(scheduleID))
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, 0, false, err
	}
	version, err := verCmd.Int64()
	if err != nil && err != redis.Nil {
		return nil, 0, false, err
	}

	val, err := seatsCmd.Bytes()
	if err == redis.Nil {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var entries []seatEntry
	if err := json.Unmarshal(val, &entries); err != nil {
		return nil, 0, false, err
	}
	seats := make([]domain.ScheduleSeat, len(entries))
	for i, e := range entries {
		seats[i] = domain.ScheduleSeat{ScheduleID: scheduleID, SeatCode: e.Code, Status: e.Status}
	}
	return seats, version, true, nil
}

// SetSeats stores the map only while the version still equals version. A
// concurrent invalidation aborts the WATCH transaction and the write is dropped.
func (c *Cache) SetSeats(ctx context.Context, scheduleID uuid.UUID, version int64, seats []domain.ScheduleSeat) error {
	entries := make([]seatEntry, len(seats))
	for i, s := range seats {
		entries[i] = seatEntry{Code: s.SeatCode, Status: s.Status}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	verKey := seatVersionKey(scheduleID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, seatKey(scheduleID), data, c.ttl)
			return nil
		})
		return err
	}, verKey)
	if err == redis.TxFailedErr {
		return nil
	}
	return err
}

// InvalidateSeats bumps the version and drops the cached map.
func (c *Cache) InvalidateSeats(ctx context.Context, scheduleID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, seatVersionKey(scheduleID))
		p.Del(ctx, seatKey(scheduleID))
		return nil
	})
	return err
}
