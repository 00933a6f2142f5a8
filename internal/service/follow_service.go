package service

import (
	"context"
	"errors"
	"fmt"

	"wavely/backend/internal/cache"
	"wavely/backend/internal/hub"
	"wavely/backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PublicUser is the denormalized projection exposed wherever another user
// appears in a response or event payload.
type PublicUser struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	ProfileImg string `json:"profile_img"`
	IsVerified bool   `json:"is_verified"`
}

// NewPublicUser builds the projection from a full user row.
func NewPublicUser(u models.User) PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		ProfileImg: u.ProfileImg,
		IsVerified: u.IsVerified,
	}
}

// FollowStatus describes both directions of the relationship between two users.
type FollowStatus struct {
	IsFollowing  bool `json:"isFollowing"`
	IsFollowedBy bool `json:"isFollowedBy"`
}

// FollowService creates and removes directed follow relationships, keeping the
// edge store, the denormalized counters and notification emission strictly
// consistent: the writes for one operation commit together or not at all.
type FollowService interface {
	Follow(ctx context.Context, followerID, targetID uint) (*models.Follow, error)
	Unfollow(ctx context.Context, followerID, targetID uint) error
	Status(ctx context.Context, viewerID, targetID uint) (FollowStatus, error)
	ListFollowers(ctx context.Context, userID uint, page, limit int) ([]PublicUser, int64, error)
	ListFollowing(ctx context.Context, userID uint, page, limit int) ([]PublicUser, int64, error)
	Suggestions(ctx context.Context, userID uint, limit int) ([]PublicUser, error)
}

type followService struct {
	db        *gorm.DB
	hub       *hub.Hub
	followers *cache.FollowerCache
	log       *zap.Logger
}

// NewFollowService wires the follow service. hub and followers may be nil;
// real-time fan-out and caching are then skipped.
func NewFollowService(db *gorm.DB, h *hub.Hub, followers *cache.FollowerCache, log *zap.Logger) FollowService {
	if log == nil {
		log = zap.NewNop()
	}
	return &followService{db: db, hub: h, followers: followers, log: log}
}

// FollowEventPayload is pushed to the target's room when someone follows them.
type FollowEventPayload struct {
	Message      string               `json:"message"`
	Follow       *models.Follow       `json:"follow"`
	Follower     PublicUser           `json:"follower"`
	Following    PublicUser           `json:"following"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// FollowUpdatePayload is broadcast to every connected client so live counters
// can update without a refetch.
type FollowUpdatePayload struct {
	Type           string `json:"type"`
	FollowerID     uint   `json:"follower_id"`
	FollowingID    uint   `json:"following_id"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
}

func (s *followService) Follow(ctx context.Context, followerID, targetID uint) (*models.Follow, error) {
	if followerID == targetID {
		return nil, ErrSelfFollow
	}

	var target models.User
	if err := s.db.WithContext(ctx).First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var follower models.User
	if err := s.db.WithContext(ctx).First(&follower, followerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	edge := &models.Follow{
		ID:          uuid.New().String(),
		FollowerID:  followerID,
		FollowingID: targetID,
	}
	var notification *models.Notification

	// Edge, both counters and the notification commit as one unit. The unique
	// pair index turns a concurrent duplicate into ErrDuplicatedKey, which the
	// losing caller sees as ErrAlreadyFollowing with nothing applied.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(edge).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyFollowing
			}
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", targetID).
			UpdateColumn("followers_count", gorm.Expr("followers_count + 1")).Error; err != nil {
			return err
		}

		if target.NotificationPrefs.Allows(models.NotificationFollow) {
			notification = &models.Notification{
				ID:          uuid.New().String(),
				RecipientID: targetID,
				SenderID:    followerID,
				Type:        models.NotificationFollow,
				Message:     fmt.Sprintf("%s started following you", follower.Username),
				RelatedItem: edge.ID,
				ItemType:    models.ItemUser,
			}
			if err := tx.Create(notification).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.followers.Invalidate(ctx, targetID)
	s.publishFollowEvents(ctx, follower, target, edge, notification)

	return edge, nil
}

// publishFollowEvents pushes the post-commit real-time notices. Best-effort:
// nothing here can roll back the committed transaction.
func (s *followService) publishFollowEvents(ctx context.Context, follower, target models.User, edge *models.Follow, notification *models.Notification) {
	if s.hub == nil {
		return
	}

	// Re-read the counters so the broadcast carries the committed values, not
	// the pre-transaction snapshots.
	followingCount := follower.FollowingCount + 1
	followersCount := target.FollowersCount + 1
	var refreshed models.User
	if err := s.db.WithContext(ctx).Select("followers_count", "following_count").First(&refreshed, target.ID).Error; err == nil {
		followersCount = refreshed.FollowersCount
	}
	if err := s.db.WithContext(ctx).Select("followers_count", "following_count").First(&refreshed, follower.ID).Error; err == nil {
		followingCount = refreshed.FollowingCount
	}

	s.hub.Publish(target.ID, hub.Event{
		Type: hub.EventNewFollow,
		Payload: FollowEventPayload{
			Message:      fmt.Sprintf("%s started following you", follower.Username),
			Follow:       edge,
			Follower:     NewPublicUser(follower),
			Following:    NewPublicUser(target),
			Notification: notification,
		},
	})

	s.hub.Publish(follower.ID, hub.Event{
		Type: hub.EventFollowSuccess,
		Payload: FollowEventPayload{
			Message:   fmt.Sprintf("you are now following %s", target.Username),
			Follow:    edge,
			Follower:  NewPublicUser(follower),
			Following: NewPublicUser(target),
		},
	})

	s.hub.Broadcast(hub.Event{
		Type: hub.EventFollowUpdate,
		Payload: FollowUpdatePayload{
			Type:           "follow",
			FollowerID:     follower.ID,
			FollowingID:    target.ID,
			FollowersCount: followersCount,
			FollowingCount: followingCount,
		},
	})
}

func (s *followService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, targetID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFollowing
		}

		// Clamped at zero. CASE WHEN instead of GREATEST so the same SQL runs
		// on postgres and the sqlite test database.
		if err := tx.Model(&models.User{}).Where("id = ?", followerID).
			UpdateColumn("following_count", gorm.Expr("CASE WHEN following_count > 0 THEN following_count - 1 ELSE 0 END")).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", targetID).
			UpdateColumn("followers_count", gorm.Expr("CASE WHEN followers_count > 0 THEN followers_count - 1 ELSE 0 END")).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.followers.Invalidate(ctx, targetID)
	return nil
}

func (s *followService) Status(ctx context.Context, viewerID, targetID uint) (FollowStatus, error) {
	var status FollowStatus

	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", viewerID, targetID).
		Count(&cnt).Error; err != nil {
		return status, err
	}
	status.IsFollowing = cnt > 0

	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", targetID, viewerID).
		Count(&cnt).Error; err != nil {
		return status, err
	}
	status.IsFollowedBy = cnt > 0

	return status, nil
}

func (s *followService) ListFollowers(ctx context.Context, userID uint, page, limit int) ([]PublicUser, int64, error) {
	page, limit = normalizePage(page, limit)

	if ids, total, ok := s.followers.Page(ctx, userID, page, limit); ok {
		users, err := s.loadUsersInOrder(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		return users, total, nil
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("following_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var follows []models.Follow
	if err := s.db.WithContext(ctx).
		Where("following_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Preload("Follower").
		Find(&follows).Error; err != nil {
		return nil, 0, err
	}

	users := make([]PublicUser, 0, len(follows))
	for _, f := range follows {
		users = append(users, NewPublicUser(f.Follower))
	}

	s.warmFollowerCache(ctx, userID)

	return users, total, nil
}

// warmFollowerCache loads the full newest-first follower-ID index into redis
// after a cache miss, so subsequent pages are served without touching the
// follows table.
func (s *followService) warmFollowerCache(ctx context.Context, userID uint) {
	if s.followers == nil {
		return
	}
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Order("created_at DESC").
		Pluck("follower_id", &ids).Error; err != nil {
		s.log.Warn("follower cache warm-up query failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	s.followers.Fill(ctx, userID, ids)
}

func (s *followService) ListFollowing(ctx context.Context, userID uint, page, limit int) ([]PublicUser, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var follows []models.Follow
	if err := s.db.WithContext(ctx).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Preload("Following").
		Find(&follows).Error; err != nil {
		return nil, 0, err
	}

	users := make([]PublicUser, 0, len(follows))
	for _, f := range follows {
		users = append(users, NewPublicUser(f.Following))
	}
	return users, total, nil
}

func (s *followService) Suggestions(ctx context.Context, userID uint, limit int) ([]PublicUser, error) {
	if limit < 1 {
		limit = 10
	}

	followed := s.db.Model(&models.Follow{}).
		Select("following_id").
		Where("follower_id = ?", userID)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("id <> ?", userID).
		Where("id NOT IN (?)", followed).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, err
	}

	res := make([]PublicUser, 0, len(users))
	for _, u := range users {
		res = append(res, NewPublicUser(u))
	}
	return res, nil
}

// loadUsersInOrder fetches users by ID and returns them in the order the IDs
// were given, which is how the cache index stores them.
func (s *followService) loadUsersInOrder(ctx context.Context, ids []uint) ([]PublicUser, error) {
	if len(ids) == 0 {
		return []PublicUser{}, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Find(&users, ids).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	res := make([]PublicUser, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			res = append(res, NewPublicUser(u))
		}
	}
	return res, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
