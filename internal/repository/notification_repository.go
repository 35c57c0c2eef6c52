package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/presencaplus/attendance-api/internal/models"
)

type NotificationRepository interface {
	// Create persists a notification inside a transaction. The row is visible
	// to readers only once the transaction commits, so delivery-state updates
	// can never race ahead of a half-written record.
	Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error)
	GetByID(ctx context.Context, notificationID string) (models.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	// MarkRead flips read to true. Marking an already-read notification is a
	// no-op that still returns the current row.
	MarkRead(ctx context.Context, notificationID string) (models.Notification, error)
	// MarkAllRead marks every unread notification for the user and returns
	// the number of rows modified.
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// SetDeliveryOutcome records the terminal result of a delivery attempt.
	// Last write wins; at most one attempt occurs per record.
	SetDeliveryOutcome(ctx context.Context, notificationID string, delivered bool, deliveryError string) error
	Delete(ctx context.Context, notificationID string) error
	// Stats runs four independent counting queries; the counts are not taken
	// under a single snapshot.
	Stats(ctx context.Context, userID string) (models.NotificationStats, error)
}

type notificationRepository struct {
	db *sql.DB
}

type CreateNotificationParams struct {
	UserID    string
	Title     string
	Message   string
	Type      models.NotificationType
	RelatedTo models.RelatedTo
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, user_id, title, message, type, related_type, related_id, read, read_at, delivered, delivery_error, created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Notification{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO notifications (user_id, title, message, type, related_type, related_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + notificationColumns

	row := tx.QueryRowContext(ctx, query,
		params.UserID, params.Title, params.Message, params.Type,
		params.RelatedTo.Type, params.RelatedTo.ID)
	notif, err := scanNotification(row)
	if err != nil {
		return models.Notification{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Notification{}, fmt.Errorf("commit transaction: %w", err)
	}
	return notif, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, notificationID string) (models.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE id = $1`
	notif, err := scanNotification(r.db.QueryRowContext(ctx, query, notificationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, err
	}
	return notif, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notif)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationID string) (models.Notification, error) {
	const query = `
		UPDATE notifications
		SET read = TRUE,
		    read_at = COALESCE(read_at, now()),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + notificationColumns
	notif, err := scanNotification(r.db.QueryRowContext(ctx, query, notificationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, err
	}
	return notif, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `
		UPDATE notifications
		SET read = TRUE, read_at = now(), updated_at = now()
		WHERE user_id = $1 AND read = FALSE`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *notificationRepository) SetDeliveryOutcome(ctx context.Context, notificationID string, delivered bool, deliveryError string) error {
	const query = `
		UPDATE notifications
		SET delivered = $2,
		    delivery_error = NULLIF($3, ''),
		    updated_at = now()
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, notificationID, delivered, deliveryError)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, notificationID string) error {
	const query = `DELETE FROM notifications WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, notificationID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) Stats(ctx context.Context, userID string) (models.NotificationStats, error) {
	var stats models.NotificationStats

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, &stats.Total},
		{`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, &stats.Unread},
		{`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND delivered = TRUE`, &stats.Delivered},
		{`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND delivered = FALSE AND delivery_error IS NOT NULL`, &stats.Failed},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query, userID).Scan(c.dest); err != nil {
			return models.NotificationStats{}, err
		}
	}

	return stats, nil
}

func scanNotification(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Notification, error) {
	var (
		notif         models.Notification
		readAt        sql.NullTime
		deliveryError sql.NullString
	)

	if err := scanner.Scan(
		&notif.ID,
		&notif.UserID,
		&notif.Title,
		&notif.Message,
		&notif.Type,
		&notif.RelatedTo.Type,
		&notif.RelatedTo.ID,
		&notif.Read,
		&readAt,
		&notif.Delivered,
		&deliveryError,
		&notif.CreatedAt,
		&notif.UpdatedAt,
	); err != nil {
		return models.Notification{}, err
	}

	if readAt.Valid {
		t := readAt.Time
		notif.ReadAt = &t
	}
	if deliveryError.Valid {
		val := deliveryError.String
		notif.DeliveryError = &val
	}

	return notif, nil
}
