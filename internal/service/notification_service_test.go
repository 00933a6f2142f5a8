package service

import (
	"context"
	"fmt"
	"testing"

	"wavely/backend/internal/hub"
	"wavely/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *hub.Hub { return hub.NewHub(nil) }

func subscribeClient(t *testing.T, h *hub.Hub, userID uint) hub.Client {
	t.Helper()
	client := hub.NewClient()
	h.Subscribe(userID, client)
	t.Cleanup(func() { h.Unsubscribe(userID, client) })
	return client
}

func seedNotification(t *testing.T, svc NotificationService, recipient, sender uint, message string) *models.Notification {
	t.Helper()
	n, err := svc.Create(context.Background(), CreateNotificationInput{
		RecipientID: recipient,
		SenderID:    sender,
		Type:        models.NotificationLike,
		Message:     message,
		ItemType:    models.ItemPost,
	})
	require.NoError(t, err)
	require.NotNil(t, n)
	return n
}

func TestCreateNotificationValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Create(ctx, CreateNotificationInput{
		RecipientID: bob.ID,
		SenderID:    alice.ID,
		Type:        models.NotificationLike,
		ItemType:    models.ItemPost,
		// Message missing
	})
	require.ErrorIs(t, err, ErrMissingField)

	_, err = svc.Create(ctx, CreateNotificationInput{
		RecipientID: bob.ID + 100,
		SenderID:    alice.ID,
		Type:        models.NotificationLike,
		Message:     "liked your post",
		ItemType:    models.ItemPost,
	})
	require.ErrorIs(t, err, ErrUserNotFound)

	n := seedNotification(t, svc, bob.ID, alice.ID, "liked your post")
	assert.False(t, n.Read, "notifications start unread")
}

func TestCreateNotificationHonorsPrefs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil, nil)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bob.ID).
		Update("notify_on_like", false).Error)

	n, err := svc.Create(context.Background(), CreateNotificationInput{
		RecipientID: bob.ID,
		SenderID:    alice.ID,
		Type:        models.NotificationLike,
		Message:     "liked your post",
		ItemType:    models.ItemPost,
	})
	require.NoError(t, err)
	assert.Nil(t, n)

	var cnt int64
	db.Model(&models.Notification{}).Count(&cnt)
	assert.Zero(t, cnt)
}

func TestListNotifications(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	for i := 0; i < 25; i++ {
		seedNotification(t, svc, bob.ID, alice.ID, fmt.Sprintf("event %d", i))
	}
	// Someone else's notifications never leak into bob's log.
	seedNotification(t, svc, alice.ID, bob.ID, "other log")

	list, err := svc.List(ctx, bob.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list.Items, 10)
	assert.EqualValues(t, 25, list.Total)
	assert.EqualValues(t, 25, list.UnreadCount)

	list, err = svc.List(ctx, bob.ID, 3, 10)
	require.NoError(t, err)
	assert.Len(t, list.Items, 5)

	for _, n := range list.Items {
		assert.Equal(t, bob.ID, n.RecipientID)
		assert.Equal(t, "alice", n.Sender.Username)
	}
}

func TestUnreadCountIndependentOfPage(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	first := seedNotification(t, svc, bob.ID, alice.ID, "one")
	seedNotification(t, svc, bob.ID, alice.ID, "two")
	seedNotification(t, svc, bob.ID, alice.ID, "three")

	_, err := svc.MarkRead(ctx, first.ID, bob.ID)
	require.NoError(t, err)

	list, err := svc.List(ctx, bob.ID, 1, 1)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.EqualValues(t, 3, list.Total)
	assert.EqualValues(t, 2, list.UnreadCount)
}

func TestMarkReadIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	n := seedNotification(t, svc, bob.ID, alice.ID, "hello")

	got, err := svc.MarkRead(ctx, n.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	// Second call is a no-op, not an error.
	got, err = svc.MarkRead(ctx, n.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
	assert.True(t, stored.Read)
}

func TestMarkReadOwnershipMismatch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	n := seedNotification(t, svc, bob.ID, alice.ID, "hello")

	// alice does not own bob's notification
	_, err := svc.MarkRead(ctx, n.ID, alice.ID)
	require.ErrorIs(t, err, ErrNotificationNotFound)

	_, err = svc.MarkRead(ctx, "no-such-id", bob.ID)
	require.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestMarkAllReadAndClearAll(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	for i := 0; i < 3; i++ {
		seedNotification(t, svc, bob.ID, alice.ID, "ping")
	}
	seedNotification(t, svc, alice.ID, bob.ID, "other log")

	require.NoError(t, svc.MarkAllRead(ctx, bob.ID))

	list, err := svc.List(ctx, bob.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, list.UnreadCount)
	assert.EqualValues(t, 3, list.Total)

	require.NoError(t, svc.ClearAll(ctx, bob.ID))

	list, err = svc.List(ctx, bob.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, list.Total)

	// alice's log untouched
	list, err = svc.List(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)
	assert.EqualValues(t, 1, list.UnreadCount)
}

func TestCreatePublishesToRecipientRoomOnly(t *testing.T) {
	db := setupTestDB(t)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	eventHub := newTestHub()
	svc := NewNotificationService(db, eventHub, nil)

	bobClient := subscribeClient(t, eventHub, bob.ID)
	aliceClient := subscribeClient(t, eventHub, alice.ID)

	seedNotification(t, svc, bob.ID, alice.ID, "hello")

	types := receiveEventTypes(t, bobClient, 1)
	assert.Contains(t, types, "new-notification")

	select {
	case message := <-aliceClient:
		t.Fatalf("unexpected event for sender: %s", message)
	default:
	}
}
