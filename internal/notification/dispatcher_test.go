package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presencaplus/attendance-api/internal/models"
	"github.com/presencaplus/attendance-api/internal/push"
	"github.com/presencaplus/attendance-api/internal/repository"
)

type mockUserStore struct {
	mu      sync.Mutex
	user    models.User
	getErr  error
	removed []string
}

func (m *mockUserStore) GetUserByID(_ context.Context, userID string) (models.User, error) {
	if m.getErr != nil {
		return models.User{}, m.getErr
	}
	u := m.user
	u.ID = userID
	return u, nil
}

func (m *mockUserStore) RemoveFcmToken(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, userID)
	return nil
}

type recordedOutcome struct {
	notificationID string
	delivered      bool
	deliveryError  string
}

type mockDeliveryStore struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
	recorded chan recordedOutcome
}

func (m *mockDeliveryStore) SetDeliveryOutcome(_ context.Context, notificationID string, delivered bool, deliveryError string) error {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, recordedOutcome{notificationID, delivered, deliveryError})
	m.mu.Unlock()
	if m.recorded != nil {
		m.recorded <- recordedOutcome{notificationID, delivered, deliveryError}
	}
	return nil
}

type sentMessage struct {
	msg    push.Message
	dryRun bool
}

type stubGateway struct {
	mu        sync.Mutex
	sent      []sentMessage
	messageID string
	err       error
}

func (g *stubGateway) Send(_ context.Context, msg push.Message, dryRun bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{msg, dryRun})
	if g.err != nil {
		return "", g.err
	}
	return g.messageID, nil
}

func strPtr(s string) *string { return &s }

func testNotification() models.Notification {
	return models.Notification{
		ID:      "n1",
		UserID:  "u1",
		Title:   "Event Reminder",
		Message: "The event starts soon",
		Type:    models.NotificationTypeReminder,
		RelatedTo: models.RelatedTo{
			Type: models.RelatedTypeEvent,
			ID:   "e1",
		},
	}
}

func TestDeliverSuccess(t *testing.T) {
	users := &mockUserStore{user: models.User{FcmToken: strPtr("tok-1")}}
	store := &mockDeliveryStore{}
	gateway := &stubGateway{messageID: "msg-42"}
	d := NewDispatcher(users, store, gateway, zerolog.Nop())

	d.Deliver(context.Background(), testNotification())

	require.Len(t, gateway.sent, 1)
	sent := gateway.sent[0]
	assert.False(t, sent.dryRun)
	assert.Equal(t, "tok-1", sent.msg.Token)
	assert.Equal(t, "Event Reminder", sent.msg.Title)
	assert.Equal(t, "The event starts soon", sent.msg.Body)
	assert.Equal(t, "n1", sent.msg.Data["notification_id"])
	assert.Equal(t, "event", sent.msg.Data["related_type"])
	assert.Equal(t, "e1", sent.msg.Data["related_id"])
	assert.True(t, sent.msg.HighPriority)
	assert.Equal(t, "default", sent.msg.Sound)

	require.Len(t, store.outcomes, 1)
	assert.Equal(t, recordedOutcome{"n1", true, ""}, store.outcomes[0])
	assert.Empty(t, users.removed)
}

func TestDeliverSkipsUserWithoutToken(t *testing.T) {
	users := &mockUserStore{user: models.User{FcmToken: nil}}
	store := &mockDeliveryStore{}
	gateway := &stubGateway{}
	d := NewDispatcher(users, store, gateway, zerolog.Nop())

	d.Deliver(context.Background(), testNotification())

	assert.Empty(t, gateway.sent, "no gateway call for a tokenless user")
	assert.Empty(t, store.outcomes, "skipping is not a delivery outcome")
}

func TestDeliverRemovesTokenOnPermanentRejection(t *testing.T) {
	users := &mockUserStore{user: models.User{FcmToken: strPtr("dead-tok")}}
	store := &mockDeliveryStore{}
	gateway := &stubGateway{err: &push.RejectionError{
		Code:   push.CodeTokenNotRegistered,
		Reason: "NotRegistered",
	}}
	d := NewDispatcher(users, store, gateway, zerolog.Nop())

	d.Deliver(context.Background(), testNotification())

	assert.Equal(t, []string{"u1"}, users.removed)
	require.Len(t, store.outcomes, 1)
	assert.False(t, store.outcomes[0].delivered)
	assert.NotEmpty(t, store.outcomes[0].deliveryError)
}

func TestDeliverKeepsTokenOnTransientError(t *testing.T) {
	users := &mockUserStore{user: models.User{FcmToken: strPtr("tok-1")}}
	store := &mockDeliveryStore{}
	gateway := &stubGateway{err: errors.New("gateway timeout")}
	d := NewDispatcher(users, store, gateway, zerolog.Nop())

	d.Deliver(context.Background(), testNotification())

	assert.Empty(t, users.removed, "transient errors must not unset the token")
	require.Len(t, store.outcomes, 1)
	assert.Equal(t, recordedOutcome{"n1", false, "gateway timeout"}, store.outcomes[0])
}

func TestDeliverRecordsOwnerLookupFailure(t *testing.T) {
	users := &mockUserStore{getErr: repository.ErrNotFound}
	store := &mockDeliveryStore{}
	gateway := &stubGateway{}
	d := NewDispatcher(users, store, gateway, zerolog.Nop())

	d.Deliver(context.Background(), testNotification())

	assert.Empty(t, gateway.sent)
	require.Len(t, store.outcomes, 1)
	assert.False(t, store.outcomes[0].delivered)
	assert.Contains(t, store.outcomes[0].deliveryError, "owner lookup failed")
}

func TestRunDrainsQueueOnShutdown(t *testing.T) {
	users := &mockUserStore{user: models.User{FcmToken: strPtr("tok-1")}}
	store := &mockDeliveryStore{}
	gateway := &stubGateway{messageID: "msg-1"}
	d := NewDispatcher(users, store, gateway, zerolog.Nop())

	for i := 0; i < 3; i++ {
		notif := testNotification()
		notif.ID = fmt.Sprintf("n%d", i+1)
		d.Enqueue(notif)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.Len(t, store.outcomes, 3, "queued work must be delivered before Run returns")
	for _, outcome := range store.outcomes {
		assert.True(t, outcome.delivered)
	}
}

func TestEnqueueDeliversThroughRunLoop(t *testing.T) {
	users := &mockUserStore{user: models.User{FcmToken: strPtr("tok-1")}}
	store := &mockDeliveryStore{recorded: make(chan recordedOutcome, 1)}
	gateway := &stubGateway{messageID: "msg-1"}
	d := NewDispatcher(users, store, gateway, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(testNotification())

	select {
	case outcome := <-store.recorded:
		assert.Equal(t, recordedOutcome{"n1", true, ""}, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queued delivery")
	}
}
