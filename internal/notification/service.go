package notification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/presencaplus/attendance-api/internal/models"
	"github.com/presencaplus/attendance-api/internal/repository"
)

type CreateParams struct {
	UserID    string                  `json:"user_id"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Type      models.NotificationType `json:"type"`
	RelatedTo models.RelatedTo        `json:"related_to"`
}

type Service interface {
	// Create persists the notification transactionally, then hands it to the
	// dispatcher and returns. The returned record is already committed when
	// its delivery attempt starts; delivery failures never surface here.
	Create(ctx context.Context, params CreateParams) (models.Notification, error)
	Get(ctx context.Context, notificationID string) (models.Notification, error)
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID string) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, notificationID string) error
	Stats(ctx context.Context, userID string) (models.NotificationStats, error)

	SendEventReminder(ctx context.Context, eventID string) ([]models.Notification, error)
	SendAttendanceConfirmation(ctx context.Context, userID, eventID string) (models.Notification, error)
	SendUpdateNotification(ctx context.Context, userID, eventID, message string, notifType models.NotificationType) (models.Notification, error)
	SendBulk(ctx context.Context, userIDs []string, title, message string, relatedTo *models.RelatedTo) ([]models.Notification, error)
}

type service struct {
	repo       repository.NotificationRepository
	events     repository.EventRepository
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

func NewService(repo repository.NotificationRepository, events repository.EventRepository, dispatcher *Dispatcher, logger zerolog.Logger) Service {
	return &service{
		repo:       repo,
		events:     events,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *service) Create(ctx context.Context, params CreateParams) (models.Notification, error) {
	params.Title = strings.TrimSpace(params.Title)
	params.Message = strings.TrimSpace(params.Message)

	if params.UserID == "" {
		return models.Notification{}, errors.New("user id is required")
	}
	if params.Title == "" || params.Message == "" {
		return models.Notification{}, errors.New("title and message are required")
	}
	if !models.IsValidNotificationType(params.Type) {
		return models.Notification{}, fmt.Errorf("invalid notification type %q", params.Type)
	}
	if !models.IsValidRelatedType(params.RelatedTo.Type) || params.RelatedTo.ID == "" {
		return models.Notification{}, errors.New("related entity reference is required")
	}

	notif, err := s.repo.Create(ctx, repository.CreateNotificationParams{
		UserID:    params.UserID,
		Title:     params.Title,
		Message:   params.Message,
		Type:      params.Type,
		RelatedTo: params.RelatedTo,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", params.UserID).Msg("failed to persist notification")
		return models.Notification{}, err
	}

	s.dispatcher.Enqueue(notif)
	return notif, nil
}

func (s *service) Get(ctx context.Context, notificationID string) (models.Notification, error) {
	return s.repo.GetByID(ctx, notificationID)
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, notificationID string) (models.Notification, error) {
	return s.repo.MarkRead(ctx, notificationID)
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) Delete(ctx context.Context, notificationID string) error {
	return s.repo.Delete(ctx, notificationID)
}

func (s *service) Stats(ctx context.Context, userID string) (models.NotificationStats, error) {
	return s.repo.Stats(ctx, userID)
}

// SendEventReminder creates one reminder per attendee of the event. Events
// already started are skipped entirely. A failure for one attendee does not
// stop the others.
func (s *service) SendEventReminder(ctx context.Context, eventID string) ([]models.Notification, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	until := time.Until(event.StartDate)
	if until < 0 {
		s.logger.Info().Str("event_id", event.ID).Msg("event already started, no reminders sent")
		return nil, nil
	}

	attendees, err := s.events.ListAttendeeUserIDs(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if len(attendees) == 0 {
		s.logger.Info().Str("event_id", event.ID).Msg("no attendees found for event")
		return nil, nil
	}

	message := fmt.Sprintf("The event %q starts %s!", event.Title, humanizeUntil(until))

	var notifications []models.Notification
	for _, userID := range attendees {
		notif, err := s.Create(ctx, CreateParams{
			UserID:  userID,
			Title:   "Event Reminder",
			Message: message,
			Type:    models.NotificationTypeReminder,
			RelatedTo: models.RelatedTo{
				Type: models.RelatedTypeEvent,
				ID:   event.ID,
			},
		})
		if err != nil {
			s.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("user_id", userID).
				Msg("failed to send reminder to attendee")
			continue
		}
		notifications = append(notifications, notif)
	}

	return notifications, nil
}

func (s *service) SendAttendanceConfirmation(ctx context.Context, userID, eventID string) (models.Notification, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return models.Notification{}, err
	}

	return s.Create(ctx, CreateParams{
		UserID:  userID,
		Title:   "Attendance Confirmed",
		Message: fmt.Sprintf("Your attendance at %q has been confirmed!", event.Title),
		Type:    models.NotificationTypeUpdate,
		RelatedTo: models.RelatedTo{
			Type: models.RelatedTypeAttendance,
			ID:   event.ID,
		},
	})
}

func (s *service) SendUpdateNotification(ctx context.Context, userID, eventID, message string, notifType models.NotificationType) (models.Notification, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return models.Notification{}, err
	}
	if notifType == "" {
		notifType = models.NotificationTypeUpdate
	}

	return s.Create(ctx, CreateParams{
		UserID:  userID,
		Title:   "Event Update",
		Message: message,
		Type:    notifType,
		RelatedTo: models.RelatedTo{
			Type: models.RelatedTypeEvent,
			ID:   event.ID,
		},
	})
}

// SendBulk creates one alert per user. Without an explicit related entity the
// notifications are tagged as system-related with a synthetic id. Per-user
// failures are logged and skipped.
func (s *service) SendBulk(ctx context.Context, userIDs []string, title, message string, relatedTo *models.RelatedTo) ([]models.Notification, error) {
	if len(userIDs) == 0 {
		return nil, errors.New("user id list is required")
	}

	related := models.RelatedTo{
		Type: models.RelatedTypeSystem,
		ID:   uuid.NewString(),
	}
	if relatedTo != nil {
		related = *relatedTo
	}

	var notifications []models.Notification
	for _, userID := range userIDs {
		notif, err := s.Create(ctx, CreateParams{
			UserID:    userID,
			Title:     title,
			Message:   message,
			Type:      models.NotificationTypeAlert,
			RelatedTo: related,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to send bulk notification")
			continue
		}
		notifications = append(notifications, notif)
	}

	return notifications, nil
}

func humanizeUntil(d time.Duration) string {
	switch {
	case d < time.Hour:
		minutes := int(d.Minutes())
		if minutes <= 1 {
			return "in 1 minute"
		}
		return fmt.Sprintf("in %d minutes", minutes)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "in 1 hour"
		}
		return fmt.Sprintf("in %d hours", hours)
	default:
		days := int(math.Ceil(d.Hours() / 24))
		if days == 1 {
			return "in 1 day"
		}
		return fmt.Sprintf("in %d days", days)
	}
}
