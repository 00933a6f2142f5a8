package models

import "time"

// Follow is a directed edge: FollowerID follows FollowingID.
// The composite unique index on (follower_id, following_id) is the sole guard
// against duplicate edges under concurrent follow calls.
type Follow struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FollowerID  uint   `gorm:"not null;index:idx_follow_follower;index:idx_follow_pair,unique" json:"follower_id"`
	FollowingID uint   `gorm:"not null;index:idx_follow_following;index:idx_follow_pair,unique" json:"following_id"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Follower  User `gorm:"foreignKey:FollowerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Following User `gorm:"foreignKey:FollowingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (Follow) TableName() string { return "follows" }
