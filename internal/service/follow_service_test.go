package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"wavely/backend/internal/cache"
	"wavely/backend/internal/hub"
	"wavely/backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A pooled second connection would see an empty in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Follow{}, &models.Notification{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func countEdges(t *testing.T, db *gorm.DB, followerID, followingID uint) int64 {
	t.Helper()
	var cnt int64
	require.NoError(t, db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&cnt).Error)
	return cnt
}

func reload(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return user
}

func TestFollowCreatesEdgeCountersAndNotification(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	edge, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, alice.ID, edge.FollowerID)
	assert.Equal(t, bob.ID, edge.FollowingID)

	assert.EqualValues(t, 1, countEdges(t, db, alice.ID, bob.ID))
	assert.EqualValues(t, 1, reload(t, db, alice.ID).FollowingCount)
	assert.EqualValues(t, 1, reload(t, db, bob.ID).FollowersCount)

	var notifications []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", bob.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFollow, notifications[0].Type)
	assert.Equal(t, alice.ID, notifications[0].SenderID)
	assert.Equal(t, edge.ID, notifications[0].RelatedItem)
	assert.False(t, notifications[0].Read)
}

func TestFollowSelfRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)

	alice := createUser(t, db, "alice")

	_, err := svc.Follow(context.Background(), alice.ID, alice.ID)
	require.ErrorIs(t, err, ErrSelfFollow)

	// No writes of any kind.
	var edges, notifications int64
	db.Model(&models.Follow{}).Count(&edges)
	db.Model(&models.Notification{}).Count(&notifications)
	assert.Zero(t, edges)
	assert.Zero(t, notifications)
	assert.EqualValues(t, 0, reload(t, db, alice.ID).FollowingCount)
}

func TestFollowUnknownTarget(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)

	alice := createUser(t, db, "alice")

	_, err := svc.Follow(context.Background(), alice.ID, alice.ID+100)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestFollowDuplicate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// The unique pair index makes the second attempt lose, and the whole
	// transaction rolls back: counters stay where they were.
	_, err = svc.Follow(ctx, alice.ID, bob.ID)
	require.ErrorIs(t, err, ErrAlreadyFollowing)

	assert.EqualValues(t, 1, countEdges(t, db, alice.ID, bob.ID))
	assert.EqualValues(t, 1, reload(t, db, alice.ID).FollowingCount)
	assert.EqualValues(t, 1, reload(t, db, bob.ID).FollowersCount)

	var notifications int64
	db.Model(&models.Notification{}).Where("recipient_id = ?", bob.ID).Count(&notifications)
	assert.EqualValues(t, 1, notifications)
}

func TestUnfollowRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Unfollow(ctx, alice.ID, bob.ID))

	assert.EqualValues(t, 0, countEdges(t, db, alice.ID, bob.ID))
	assert.EqualValues(t, 0, reload(t, db, alice.ID).FollowingCount)
	assert.EqualValues(t, 0, reload(t, db, bob.ID).FollowersCount)
}

func TestUnfollowNotFollowing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	err := svc.Unfollow(context.Background(), alice.ID, bob.ID)
	require.ErrorIs(t, err, ErrNotFollowing)

	// The failed delete must not touch the counters.
	assert.EqualValues(t, 0, reload(t, db, alice.ID).FollowingCount)
	assert.EqualValues(t, 0, reload(t, db, bob.ID).FollowersCount)
}

func TestCountersMatchEdgesAfterMixedOperations(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	users := make([]models.User, 5)
	for i := range users {
		users[i] = createUser(t, db, fmt.Sprintf("user%d", i))
	}

	// Everyone follows everyone, then half the edges come back off.
	for i := range users {
		for j := range users {
			if i == j {
				continue
			}
			_, err := svc.Follow(ctx, users[i].ID, users[j].ID)
			require.NoError(t, err)
		}
	}
	for i := range users {
		for j := range users {
			if i >= j {
				continue
			}
			require.NoError(t, svc.Unfollow(ctx, users[i].ID, users[j].ID))
		}
	}

	for _, u := range users {
		var followers, following int64
		require.NoError(t, db.Model(&models.Follow{}).Where("following_id = ?", u.ID).Count(&followers).Error)
		require.NoError(t, db.Model(&models.Follow{}).Where("follower_id = ?", u.ID).Count(&following).Error)

		got := reload(t, db, u.ID)
		assert.Equal(t, followers, got.FollowersCount, "followers count for %s", u.Username)
		assert.Equal(t, following, got.FollowingCount, "following count for %s", u.Username)
	}
}

func TestFollowSkipsNotificationWhenOptedOut(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bob.ID).
		Update("notify_on_follow", false).Error)

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	var notifications int64
	db.Model(&models.Notification{}).Where("recipient_id = ?", bob.ID).Count(&notifications)
	assert.Zero(t, notifications)

	// The edge and counters still apply.
	assert.EqualValues(t, 1, countEdges(t, db, alice.ID, bob.ID))
	assert.EqualValues(t, 1, reload(t, db, bob.ID).FollowersCount)
}

func TestStatusBothDirections(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	status, err := svc.Status(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, status.IsFollowing)
	assert.False(t, status.IsFollowedBy)

	status, err = svc.Status(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, status.IsFollowing)
	assert.True(t, status.IsFollowedBy)
}

func TestSuggestionsExcludeSelfAndFollowed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	suggestions, err := svc.Suggestions(ctx, alice.ID, 10)
	require.NoError(t, err)

	ids := make([]uint, len(suggestions))
	for i, s := range suggestions {
		ids[i] = s.ID
	}
	assert.Contains(t, ids, carol.ID)
	assert.NotContains(t, ids, alice.ID)
	assert.NotContains(t, ids, bob.ID)
}

func TestListFollowersPagination(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	target := createUser(t, db, "target")
	for i := 0; i < 25; i++ {
		follower := createUser(t, db, fmt.Sprintf("fan%02d", i))
		_, err := svc.Follow(ctx, follower.ID, target.ID)
		require.NoError(t, err)
	}

	page1, total, err := svc.ListFollowers(ctx, target.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	assert.Len(t, page1, 10)

	page3, total, err := svc.ListFollowers(ctx, target.ID, 3, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	assert.Len(t, page3, 5)

	// Past the end is an empty page, not an error.
	page4, _, err := svc.ListFollowers(ctx, target.ID, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, page4)
}

func TestListFollowersCacheWarmAndInvalidate(t *testing.T) {
	db := setupTestDB(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewFollowService(db, nil, cache.New(rdb, time.Minute, nil), nil)
	ctx := context.Background()

	target := createUser(t, db, "target")
	fans := make([]models.User, 0, 3)
	for i := 0; i < 3; i++ {
		fan := createUser(t, db, fmt.Sprintf("fan%d", i))
		fans = append(fans, fan)
		_, err := svc.Follow(ctx, fan.ID, target.ID)
		require.NoError(t, err)
	}

	cacheKey := fmt.Sprintf("followers:index:%d", target.ID)
	require.False(t, mr.Exists(cacheKey), "cache should be cold before the first listing")

	// First listing hits the database and warms the index.
	users, total, err := svc.ListFollowers(ctx, target.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, users, 3)
	require.True(t, mr.Exists(cacheKey))

	// Second listing is served from the warm index.
	users, total, err = svc.ListFollowers(ctx, target.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, users, 3)

	// A new follow drops the index so stale pages can never be served.
	late := createUser(t, db, "latecomer")
	_, err = svc.Follow(ctx, late.ID, target.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey))

	users, total, err = svc.ListFollowers(ctx, target.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, users, 4)

	// Unfollow invalidates too.
	require.NoError(t, svc.Unfollow(ctx, fans[0].ID, target.ID))
	assert.False(t, mr.Exists(cacheKey))

	_, total, err = svc.ListFollowers(ctx, target.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestListFollowing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db, nil, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.Follow(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	following, total, err := svc.ListFollowing(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, following, 2)
}

func TestFollowPublishesEvents(t *testing.T) {
	db := setupTestDB(t)
	eventHub := hub.NewHub(nil)
	svc := NewFollowService(db, eventHub, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	bobClient := hub.NewClient()
	eventHub.Subscribe(bob.ID, bobClient)
	defer eventHub.Unsubscribe(bob.ID, bobClient)

	aliceClient := hub.NewClient()
	eventHub.Subscribe(alice.ID, aliceClient)
	defer eventHub.Unsubscribe(alice.ID, aliceClient)

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// Bob's room: the targeted new-follow plus the global follow-update.
	types := receiveEventTypes(t, bobClient, 2)
	assert.Contains(t, types, hub.EventNewFollow)
	assert.Contains(t, types, hub.EventFollowUpdate)

	// Alice's room: her confirmation plus the same broadcast.
	types = receiveEventTypes(t, aliceClient, 2)
	assert.Contains(t, types, hub.EventFollowSuccess)
	assert.Contains(t, types, hub.EventFollowUpdate)
}

func TestFollowUpdateCarriesCommittedCounts(t *testing.T) {
	db := setupTestDB(t)
	eventHub := hub.NewHub(nil)
	svc := NewFollowService(db, eventHub, nil, nil)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	_, err := svc.Follow(ctx, carol.ID, bob.ID)
	require.NoError(t, err)

	observer := hub.NewClient()
	eventHub.Subscribe(alice.ID, observer)
	defer eventHub.Unsubscribe(alice.ID, observer)

	_, err = svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	for _, raw := range receiveRawEvents(t, observer, 2) {
		var event struct {
			Type    string              `json:"type"`
			Payload FollowUpdatePayload `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &event))
		if event.Type != hub.EventFollowUpdate {
			continue
		}
		assert.EqualValues(t, 2, event.Payload.FollowersCount)
		assert.EqualValues(t, 1, event.Payload.FollowingCount)
		return
	}
	t.Fatal("no follow-update event received")
}

func receiveRawEvents(t *testing.T, client hub.Client, n int) [][]byte {
	t.Helper()
	raw := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		select {
		case message := <-client:
			raw = append(raw, message)
		default:
			t.Fatalf("expected %d events, got %d", n, i)
		}
	}
	return raw
}

func receiveEventTypes(t *testing.T, client hub.Client, n int) []string {
	t.Helper()
	types := make([]string, 0, n)
	for _, raw := range receiveRawEvents(t, client, n) {
		var event struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &event))
		types = append(types, event.Type)
	}
	return types
}
