package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// RelationshipStatus is the kind of directed edge between two users.
type RelationshipStatus string

const (
	RelationshipFollowing RelationshipStatus = "following"
	RelationshipBlocked   RelationshipStatus = "blocked"
)

// ErrSelfRelationship is returned when both endpoints of an edge are the same user.
var ErrSelfRelationship = errors.New("relationship endpoints must be distinct users")

// Relationship is a directed follower -> following edge.
// At most one edge exists per ordered pair.
type Relationship struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	FollowerID  uint               `gorm:"not null;uniqueIndex:idx_relationship_pair;index:idx_relationship_follower_status,priority:1" json:"follower_id"`
	FollowingID uint               `gorm:"not null;uniqueIndex:idx_relationship_pair;index:idx_relationship_following_status,priority:1" json:"following_id"`
	Status      RelationshipStatus `gorm:"type:varchar(20);not null;index:idx_relationship_follower_status,priority:2;index:idx_relationship_following_status,priority:2" json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// BeforeSave rejects self edges.
func (r *Relationship) BeforeSave(_ *gorm.DB) error {
	if r.FollowerID == r.FollowingID {
		return ErrSelfRelationship
	}
	return nil
}

// FollowStats are the follower/following counts of one user.
type FollowStats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// RelationshipState describes the edges between a viewer and a target user.
type RelationshipState struct {
	IsFollowing   bool `json:"is_following"`
	IsFollowedBy  bool `json:"is_followed_by"`
	IsBlocked     bool `json:"is_blocked"`
	HasBlockedYou bool `json:"has_blocked_you"`
}
