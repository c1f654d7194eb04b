package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/show-reservations/internal/domain"
)

func (t *txRepo) InsertSeats(ctx context.Context, seats []domain.ScheduleSeat) error {
	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(`INSERT INTO schedule_seats (schedule_id, seat_code, status) VALUES ($1, $2, $3)`,
			s.ScheduleID, s.SeatCode, s.Status)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) ListSeats(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleSeat, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT schedule_id, seat_code, status FROM schedule_seats WHERE schedule_id = $1 ORDER BY seat_code
	`, scheduleID)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

func (t *txRepo) LockSeats(ctx context.Context, scheduleID uuid.UUID, codes []string) ([]domain.ScheduleSeat, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT schedule_id, seat_code, status FROM schedule_seats
		WHERE schedule_id = $1 AND seat_code = ANY($2)
		ORDER BY seat_code
		FOR UPDATE
	`, scheduleID, codes)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

func (t *txRepo) UpdateSeatStatus(ctx context.Context, scheduleID uuid.UUID, codes []string, from, to domain.SeatStatus) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE schedule_seats SET status = $4
		WHERE schedule_id = $1 AND seat_code = ANY($2) AND status = $3
	`, scheduleID, codes, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) CountSeats(ctx context.Context, scheduleID uuid.UUID, status domain.SeatStatus) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM schedule_seats WHERE schedule_id = $1 AND status = $2
	`, scheduleID, status).Scan(&n)
	return n, err
}

func (t *txRepo) IncrementSold(ctx context.Context, optionID uuid.UUID, qty int) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE ticket_options SET sold = sold + $2 WHERE id = $1 AND sold + $2 <= capacity
	`, optionID, qty)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ticket_options WHERE id = $1)`, optionID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.NotFoundf("ticket option %s not found", optionID)
	}
	return false, nil
}

func (t *txRepo) DecrementSold(ctx context.Context, optionID uuid.UUID, qty int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE ticket_options SET sold = GREATEST(sold - $2, 0) WHERE id = $1
	`, optionID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("ticket option %s not found", optionID)
	}
	return nil
}

func scanSeats(rows pgx.Rows) ([]domain.ScheduleSeat, error) {
	defer rows.Close()
	out := []domain.ScheduleSeat{}
	for rows.Next() {
		var s domain.ScheduleSeat
		if err := rows.Scan(&s.ScheduleID, &s.SeatCode, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
