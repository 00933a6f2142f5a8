package models

import "gorm.io/gorm"

// User represents a user in the system.
//
// FollowersCount and FollowingCount are denormalized aggregates over the
// follows table. They are only ever mutated by the follow service, inside the
// same transaction that creates or deletes the edge, so at any quiescent
// moment they equal the true edge counts.
type User struct {
	gorm.Model
	Username     string `gorm:"size:30;unique;not null"`
	Email        string `gorm:"size:255;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         string `gorm:"size:50;not null;default:'user';index"`
	ProfileImg   string `gorm:"size:500"`
	Bio          string `gorm:"size:500"`
	Location     string `gorm:"size:100"`
	IsVerified   bool   `gorm:"not null;default:false"`

	FollowersCount int64 `gorm:"not null;default:0"`
	FollowingCount int64 `gorm:"not null;default:0"`

	NotificationPrefs NotificationPrefs `gorm:"embedded"`
}

// NotificationPrefs holds per-event opt-outs. A nil field means the user never
// touched the setting, which counts as enabled.
type NotificationPrefs struct {
	OnFollow  *bool `gorm:"column:notify_on_follow"`
	OnLike    *bool `gorm:"column:notify_on_like"`
	OnComment *bool `gorm:"column:notify_on_comment"`
	OnMention *bool `gorm:"column:notify_on_mention"`
}

// Allows reports whether the user accepts notifications of the given type.
// Unset preferences default to true.
func (p NotificationPrefs) Allows(t NotificationType) bool {
	var v *bool
	switch t {
	case NotificationFollow:
		v = p.OnFollow
	case NotificationLike:
		v = p.OnLike
	case NotificationComment:
		v = p.OnComment
	case NotificationMention:
		v = p.OnMention
	}
	return v == nil || *v
}
