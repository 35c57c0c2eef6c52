package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/presencaplus/attendance-api/internal/models"
)

type EventRepository interface {
	GetByID(ctx context.Context, eventID string) (models.Event, error)
	// ListAttendeeUserIDs returns the ids of every user registered for the
	// event, in registration order.
	ListAttendeeUserIDs(ctx context.Context, eventID string) ([]string, error)
}

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) GetByID(ctx context.Context, eventID string) (models.Event, error) {
	const query = `
		SELECT id, title, description, type, location, start_date, end_date, created_at, updated_at
		FROM events
		WHERE id = $1`

	var (
		event       models.Event
		description sql.NullString
		location    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.ID,
		&event.Title,
		&description,
		&event.Type,
		&location,
		&event.StartDate,
		&event.EndDate,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, err
	}
	event.Description = description.String
	event.Location = location.String

	return event, nil
}

func (r *eventRepository) ListAttendeeUserIDs(ctx context.Context, eventID string) ([]string, error) {
	const query = `
		SELECT user_id
		FROM attendances
		WHERE event_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return userIDs, nil
}
