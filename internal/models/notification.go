package models

import "time"

// NotificationType enumerates the events a notification can describe.
type NotificationType string

const (
	NotificationFollow  NotificationType = "follow"
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationMention NotificationType = "mention"
)

// ItemType identifies what RelatedItem points at.
type ItemType string

const (
	ItemUser    ItemType = "user"
	ItemPost    ItemType = "post"
	ItemComment ItemType = "comment"
	ItemStory   ItemType = "story"
)

// Notification is a durable per-recipient event record. It is created unread
// and only ever mutated by read-state transitions.
type Notification struct {
	ID          string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notif_recipient_created;index:idx_notif_recipient_read" json:"recipient_id"`
	SenderID    uint             `gorm:"not null" json:"sender_id"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Message     string           `gorm:"type:text;not null" json:"message"`

	// Polymorphic reference resolved through ItemType.
	RelatedItem string   `gorm:"type:varchar(36)" json:"related_item,omitempty"`
	ItemType    ItemType `gorm:"type:varchar(20);not null" json:"item_type"`

	Read      bool      `gorm:"not null;default:false;index:idx_notif_recipient_read" json:"read"`
	CreatedAt time.Time `gorm:"index:idx_notif_recipient_created" json:"created_at"`

	Sender User `gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (Notification) TableName() string { return "notifications" }
