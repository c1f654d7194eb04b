package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/show-reservations/internal/domain"
)

// InventoryDrift runs the seat and capacity invariant checks as plain reads.
func (r *Repository) InventoryDrift(ctx context.Context) (domain.DriftReport, error) {
	active := statusStrings(domain.ActiveStatuses)
	var (
		report domain.DriftReport
		err    error
	)

	report.OrphanedSeats, err = r.seatRefs(ctx, `
		SELECT s.schedule_id, s.seat_code FROM schedule_seats s
		WHERE s.status = 'RESERVED' AND NOT EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.schedule_id = s.schedule_id AND r.status = ANY($1) AND s.seat_code = ANY(r.seat_codes)
		)
		ORDER BY s.schedule_id, s.seat_code
	`, active)
	if err != nil {
		return report, errors.Wrap(err, "orphaned seats")
	}

	report.UnheldSeats, err = r.seatRefs(ctx, `
		SELECT DISTINCT r.schedule_id, c.code FROM reservations r
		CROSS JOIN LATERAL unnest(r.seat_codes) AS c (code)
		LEFT JOIN schedule_seats s ON s.schedule_id = r.schedule_id AND s.seat_code = c.code
		WHERE r.status = ANY($1) AND (s.status IS NULL OR s.status <> 'RESERVED')
		ORDER BY r.schedule_id, c.code
	`, active)
	if err != nil {
		return report, errors.Wrap(err, "unheld seats")
	}

	report.DoubleBooked, err = r.seatRefs(ctx, `
		SELECT r.schedule_id, c.code FROM reservations r
		CROSS JOIN LATERAL unnest(r.seat_codes) AS c (code)
		WHERE r.status = ANY($1)
		GROUP BY r.schedule_id, c.code HAVING count(*) > 1
		ORDER BY r.schedule_id, c.code
	`, active)
	if err != nil {
		return report, errors.Wrap(err, "double booked seats")
	}

	rows, err := r.pool.Query(ctx, `SELECT id FROM ticket_options WHERE sold > capacity ORDER BY id`)
	if err != nil {
		return report, errors.Wrap(err, "oversold options")
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return report, err
		}
		report.OversoldOptions = append(report.OversoldOptions, id)
	}
	return report, rows.Err()
}

func (r *Repository) seatRefs(ctx context.Context, query string, args ...interface{}) ([]domain.SeatRef, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.SeatRef
	for rows.Next() {
		var ref domain.SeatRef
		if err := rows.Scan(&ref.ScheduleID, &ref.SeatCode); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
