package notification

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/presencaplus/attendance-api/internal/models"
	"github.com/presencaplus/attendance-api/internal/push"
	"github.com/presencaplus/attendance-api/internal/repository"
)

// UserStore is the slice of the user repository the dispatcher needs:
// resolving the owner's token and unsetting it when the gateway declares it
// dead. Depending on this narrow interface keeps the dispatcher testable with
// lightweight mocks.
type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	RemoveFcmToken(ctx context.Context, userID string) error
}

// DeliveryStore records the terminal outcome of a delivery attempt.
type DeliveryStore interface {
	SetDeliveryOutcome(ctx context.Context, notificationID string, delivered bool, deliveryError string) error
}

// Dispatcher performs the best-effort push delivery of persisted
// notifications. Work arrives through an internal queue so that creating a
// notification and delivering it are decoupled: creation has committed and
// returned to its caller before any gateway call starts, and no delivery
// failure ever propagates back to the creator.
type Dispatcher struct {
	users         UserStore
	notifications DeliveryStore
	gateway       push.Gateway
	logger        zerolog.Logger
	queue         chan models.Notification
}

const dispatchQueueSize = 64

func NewDispatcher(users UserStore, notifications DeliveryStore, gateway push.Gateway, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		users:         users,
		notifications: notifications,
		gateway:       gateway,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
		queue:         make(chan models.Notification, dispatchQueueSize),
	}
}

// Run consumes the queue until ctx is cancelled, then delivers whatever is
// still queued before returning. Intended to run on its own goroutine from
// main; cancel only after the server has stopped accepting requests.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case notif := <-d.queue:
			d.Deliver(ctx, notif)
		}
	}
}

// drain flushes the queue at shutdown. The run context is already cancelled
// here, so deliveries get a fresh one; each send is still bounded by the
// gateway client's timeout.
func (d *Dispatcher) drain() {
	for {
		select {
		case notif := <-d.queue:
			d.Deliver(context.Background(), notif)
		default:
			return
		}
	}
}

// Enqueue submits a persisted notification for delivery. It never blocks the
// caller: when the queue is full the delivery runs on its own goroutine
// instead.
func (d *Dispatcher) Enqueue(notif models.Notification) {
	select {
	case d.queue <- notif:
	default:
		go d.Deliver(context.Background(), notif)
	}
}

// Deliver attempts exactly one delivery of the notification and reconciles
// the outcome onto the record. A user without a token is a normal business
// outcome: nothing is sent and no outcome is written. On a rejection that
// marks the token dead, the token is unset so future dispatches for this user
// silently no-op until re-registration.
func (d *Dispatcher) Deliver(ctx context.Context, notif models.Notification) {
	user, err := d.users.GetUserByID(ctx, notif.UserID)
	if err != nil {
		d.logger.Error().Err(err).
			Str("notification_id", notif.ID).
			Str("user_id", notif.UserID).
			Msg("failed to resolve notification owner")
		d.recordOutcome(ctx, notif.ID, false, "owner lookup failed: "+err.Error())
		return
	}

	if user.FcmToken == nil || *user.FcmToken == "" {
		d.logger.Debug().
			Str("notification_id", notif.ID).
			Str("user_id", notif.UserID).
			Msg("user has no fcm token, skipping push")
		return
	}

	msg := push.Message{
		Token: *user.FcmToken,
		Title: notif.Title,
		Body:  notif.Message,
		Data: map[string]string{
			"notification_id": notif.ID,
			"related_type":    string(notif.RelatedTo.Type),
			"related_id":      notif.RelatedTo.ID,
			// Delivery timestamp keeps each payload unique across duplicates.
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		HighPriority: true,
		Sound:        "default",
		Badge:        1,
	}

	messageID, err := d.gateway.Send(ctx, msg, false)
	if err == nil {
		d.logger.Info().
			Str("notification_id", notif.ID).
			Str("user_id", notif.UserID).
			Str("message_id", messageID).
			Msg("push notification delivered")
		d.recordOutcome(ctx, notif.ID, true, "")
		return
	}

	if push.IsInvalidTokenError(err) {
		d.logger.Warn().Err(err).
			Str("user_id", notif.UserID).
			Msg("removing dead fcm token")
		if removeErr := d.users.RemoveFcmToken(ctx, notif.UserID); removeErr != nil && !errors.Is(removeErr, repository.ErrNotFound) {
			d.logger.Error().Err(removeErr).
				Str("user_id", notif.UserID).
				Msg("failed to remove dead fcm token")
		}
	}

	d.logger.Error().Err(err).
		Str("notification_id", notif.ID).
		Str("user_id", notif.UserID).
		Msg("push delivery failed")
	d.recordOutcome(ctx, notif.ID, false, err.Error())
}

func (d *Dispatcher) recordOutcome(ctx context.Context, notificationID string, delivered bool, deliveryError string) {
	if err := d.notifications.SetDeliveryOutcome(ctx, notificationID, delivered, deliveryError); err != nil {
		d.logger.Error().Err(err).
			Str("notification_id", notificationID).
			Msg("failed to record delivery outcome")
	}
}
