package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/show-reservations/internal/domain"
)

const reservationColumns = `r.id, r.user_id, r.post_id, r.schedule_id, r.ticket_option_id, r.seat_codes,
	r.quantity, r.status, r.created_at, r.updated_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var r domain.Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.PostID, &r.ScheduleID, &r.TicketOptionID, &r.SeatCodes,
		&r.Quantity, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (t *txRepo) InsertReservation(ctx context.Context, r domain.Reservation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reservations (id, user_id, post_id, schedule_id, ticket_option_id, seat_codes, quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.UserID, r.PostID, r.ScheduleID, r.TicketOptionID, nonNil(r.SeatCodes), r.Quantity, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (t *txRepo) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r, err := scanReservation(t.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1`, id))
	if err != nil {
		return domain.Reservation{}, notFound(err, "reservation %s not found", id)
	}
	return r, nil
}

func (t *txRepo) LockReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r, err := scanReservation(t.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Reservation{}, notFound(err, "reservation %s not found", id)
	}
	return r, nil
}

func (t *txRepo) UpdateReservationStatus(ctx context.Context, id uuid.UUID, status domain.ReservationStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE reservations SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("reservation %s not found", id)
	}
	return nil
}

func (t *txRepo) ListReservationsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Reservation, error) {
	return t.listReservations(ctx, `SELECT `+reservationColumns+` FROM reservations r
		WHERE r.user_id = $1 ORDER BY r.created_at DESC`, userID)
}

func (t *txRepo) ListReservationsByPost(ctx context.Context, postID uuid.UUID) ([]domain.Reservation, error) {
	return t.listReservations(ctx, `SELECT `+reservationColumns+` FROM reservations r
		WHERE r.post_id = $1 ORDER BY r.created_at DESC`, postID)
}

func (t *txRepo) ListReservationsByOrganizer(ctx context.Context, organizerID uuid.UUID, statuses ...domain.ReservationStatus) ([]domain.Reservation, error) {
	if len(statuses) == 0 {
		return t.listReservations(ctx, `SELECT `+reservationColumns+` FROM reservations r
			JOIN performance_posts p ON p.id = r.post_id
			WHERE p.organizer_id = $1 ORDER BY r.created_at DESC`, organizerID)
	}
	return t.listReservations(ctx, `SELECT `+reservationColumns+` FROM reservations r
		JOIN performance_posts p ON p.id = r.post_id
		WHERE p.organizer_id = $1 AND r.status = ANY($2) ORDER BY r.created_at DESC`, organizerID, statusStrings(statuses))
}

func (t *txRepo) CountActiveTickets(ctx context.Context, userID, postID uuid.UUID) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::INT8 FROM reservations
		WHERE user_id = $1 AND post_id = $2 AND status = ANY($3)
	`, userID, postID, statusStrings(domain.ActiveStatuses)).Scan(&n)
	return n, err
}

func (t *txRepo) UpsertRefund(ctx context.Context, refund domain.Refund) error {
	_, err := t.tx.Exec(ctx, `
		UPSERT INTO refunds (reservation_id, status, requested_at, decided_at) VALUES ($1, $2, $3, $4)
	`, refund.ReservationID, refund.Status, refund.RequestedAt, refund.DecidedAt)
	return err
}

func (t *txRepo) GetRefund(ctx context.Context, reservationID uuid.UUID) (domain.Refund, error) {
	var r domain.Refund
	err := t.tx.QueryRow(ctx, `
		SELECT reservation_id, status, requested_at, decided_at FROM refunds WHERE reservation_id = $1
	`, reservationID).Scan(&r.ReservationID, &r.Status, &r.RequestedAt, &r.DecidedAt)
	if err != nil {
		return domain.Refund{}, notFound(err, "no refund for reservation %s", reservationID)
	}
	return r, nil
}

func (t *txRepo) listReservations(ctx context.Context, query string, args ...interface{}) ([]domain.Reservation, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
