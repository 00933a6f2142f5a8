package service

import (
	"context"
	"errors"
	"fmt"

	"wavely/backend/internal/hub"
	"wavely/backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateNotificationInput carries everything needed to record an event for a
// recipient. RelatedItem is optional; everything else is required.
type CreateNotificationInput struct {
	RecipientID uint
	SenderID    uint
	Type        models.NotificationType
	Message     string
	RelatedItem string
	ItemType    models.ItemType
}

// NotificationList is one page of a recipient's notification log.
type NotificationList struct {
	Items       []models.Notification
	Total       int64
	UnreadCount int64
}

// NotificationService is the durable per-recipient event log with read-state.
type NotificationService interface {
	Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error)
	List(ctx context.Context, recipientID uint, page, limit int) (*NotificationList, error)
	MarkRead(ctx context.Context, id string, recipientID uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint) error
	ClearAll(ctx context.Context, recipientID uint) error
}

type notificationService struct {
	db  *gorm.DB
	hub *hub.Hub
	log *zap.Logger
}

// NewNotificationService wires the notification service. hub may be nil, in
// which case no real-time notice accompanies Create.
func NewNotificationService(db *gorm.DB, h *hub.Hub, log *zap.Logger) NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &notificationService{db: db, hub: h, log: log}
}

// Create records an unread notification for the recipient, unless their
// preferences disable the event type, in which case nothing is written and a
// nil notification is returned.
func (s *notificationService) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	if input.RecipientID == 0 || input.SenderID == 0 || input.Type == "" || input.Message == "" || input.ItemType == "" {
		return nil, fmt.Errorf("%w: recipient, sender, type, message and item type are required", ErrMissingField)
	}

	var recipient models.User
	if err := s.db.WithContext(ctx).First(&recipient, input.RecipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !recipient.NotificationPrefs.Allows(input.Type) {
		return nil, nil
	}

	notification := &models.Notification{
		ID:          uuid.New().String(),
		RecipientID: input.RecipientID,
		SenderID:    input.SenderID,
		Type:        input.Type,
		Message:     input.Message,
		RelatedItem: input.RelatedItem,
		ItemType:    input.ItemType,
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Publish(input.RecipientID, hub.Event{
			Type:    hub.EventNewNotification,
			Payload: notification,
		})
	}

	return notification, nil
}

func (s *notificationService) List(ctx context.Context, recipientID uint, page, limit int) (*NotificationList, error) {
	page, limit = normalizePage(page, limit)

	list := &NotificationList{}

	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ?", recipientID).
		Count(&list.Total).Error; err != nil {
		return nil, err
	}

	// Computed over the whole log, not the current page.
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&list.UnreadCount).Error; err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Preload("Sender").
		Find(&list.Items).Error; err != nil {
		return nil, err
	}

	return list, nil
}

// MarkRead flips a notification to read. Marking an already-read notification
// is a no-op, not an error. A notification that does not exist or belongs to
// someone else is reported as not found.
func (s *notificationService) MarkRead(ctx context.Context, id string, recipientID uint) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	if !notification.Read {
		if err := s.db.WithContext(ctx).Model(&notification).
			Update("read", true).Error; err != nil {
			return nil, err
		}
	}

	return &notification, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipientID uint) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true).Error
}

func (s *notificationService) ClearAll(ctx context.Context, recipientID uint) error {
	return s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Delete(&models.Notification{}).Error
}
