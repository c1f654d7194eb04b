package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/show-reservations/internal/domain"
)

const postColumns = `id, organizer_id, title, location, description, profile_image_url, detail_image_urls,
	status, reservation_start_at, reservation_end_at, max_tickets_per_user, created_at, updated_at`

func scanPost(row pgx.Row) (domain.PerformancePost, error) {
	var p domain.PerformancePost
	err := row.Scan(&p.ID, &p.OrganizerID, &p.Title, &p.Location, &p.Description, &p.ProfileImageURL,
		&p.DetailImageURLs, &p.Status, &p.ReservationStartAt, &p.ReservationEndAt, &p.MaxTicketsPerUser,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *txRepo) GetPost(ctx context.Context, id uuid.UUID) (domain.PerformancePost, error) {
	p, err := scanPost(t.tx.QueryRow(ctx, `
		SELECT `+postColumns+` FROM performance_posts WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if err != nil {
		return domain.PerformancePost{}, notFound(err, "performance %s not found", id)
	}
	return p, nil
}

func (t *txRepo) GetPostOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := t.tx.QueryRow(ctx, `SELECT organizer_id FROM performance_posts WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return uuid.Nil, notFound(err, "performance %s not found", id)
	}
	return owner, nil
}

func (t *txRepo) ListPostsByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]domain.PerformancePost, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+postColumns+` FROM performance_posts
		WHERE organizer_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []domain.PerformancePost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (t *txRepo) InsertPost(ctx context.Context, p domain.PerformancePost) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO performance_posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, p.ID, p.OrganizerID, p.Title, p.Location, p.Description, p.ProfileImageURL, nonNil(p.DetailImageURLs),
		p.Status, p.ReservationStartAt, p.ReservationEndAt, p.MaxTicketsPerUser, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *txRepo) UpdatePost(ctx context.Context, p domain.PerformancePost) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE performance_posts SET title = $2, location = $3, description = $4, detail_image_urls = $5,
			status = $6, reservation_start_at = $7, reservation_end_at = $8, max_tickets_per_user = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`, p.ID, p.Title, p.Location, p.Description, nonNil(p.DetailImageURLs), p.Status,
		p.ReservationStartAt, p.ReservationEndAt, p.MaxTicketsPerUser, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("performance %s not found", p.ID)
	}
	return nil
}

func (t *txRepo) DeletePost(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE performance_posts SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("performance %s not found", id)
	}
	return nil
}

func (t *txRepo) GetSchedule(ctx context.Context, id uuid.UUID) (domain.PerformanceSchedule, error) {
	var s domain.PerformanceSchedule
	err := t.tx.QueryRow(ctx, `
		SELECT id, post_id, start_time, seating_mode FROM performance_schedules WHERE id = $1
	`, id).Scan(&s.ID, &s.PostID, &s.StartTime, &s.SeatingMode)
	if err != nil {
		return domain.PerformanceSchedule{}, notFound(err, "schedule %s not found", id)
	}
	return s, nil
}

func (t *txRepo) ListSchedules(ctx context.Context, postID uuid.UUID) ([]domain.PerformanceSchedule, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, post_id, start_time, seating_mode FROM performance_schedules
		WHERE post_id = $1 ORDER BY start_time
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.PerformanceSchedule{}
	for rows.Next() {
		var s domain.PerformanceSchedule
		if err := rows.Scan(&s.ID, &s.PostID, &s.StartTime, &s.SeatingMode); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertSchedule(ctx context.Context, s domain.PerformanceSchedule) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO performance_schedules (id, post_id, start_time, seating_mode) VALUES ($1, $2, $3, $4)
	`, s.ID, s.PostID, s.StartTime, s.SeatingMode)
	return err
}

func (t *txRepo) GetTicketOption(ctx context.Context, id uuid.UUID) (domain.TicketOption, error) {
	var o domain.TicketOption
	err := t.tx.QueryRow(ctx, `
		SELECT id, post_id, name, price, capacity, sold FROM ticket_options WHERE id = $1
	`, id).Scan(&o.ID, &o.PostID, &o.Name, &o.Price, &o.Capacity, &o.Sold)
	if err != nil {
		return domain.TicketOption{}, notFound(err, "ticket option %s not found", id)
	}
	return o, nil
}

func (t *txRepo) ListTicketOptions(ctx context.Context, postID uuid.UUID) ([]domain.TicketOption, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, post_id, name, price, capacity, sold FROM ticket_options WHERE post_id = $1 ORDER BY price DESC, name
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.TicketOption{}
	for rows.Next() {
		var o domain.TicketOption
		if err := rows.Scan(&o.ID, &o.PostID, &o.Name, &o.Price, &o.Capacity, &o.Sold); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertTicketOption(ctx context.Context, o domain.TicketOption) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ticket_options (id, post_id, name, price, capacity, sold) VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.PostID, o.Name, o.Price, o.Capacity, o.Sold)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
