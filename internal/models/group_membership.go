package models

import (
	"time"

	"github.com/google/uuid"
)

type GroupMembershipRole string

const (
	GroupRoleMember GroupMembershipRole = "member"
	GroupRoleAdmin  GroupMembershipRole = "admin"
)

// GroupMembership is never hard-deleted. Leaving or being removed flips
// Active to false; rejoining reactivates the same row. The unique index on
// (user_id, group_id) guarantees at most one row per pair, ever.
type GroupMembership struct {
	BaseModel
	UserID   uuid.UUID           `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_user_group"`
	GroupID  uuid.UUID           `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_group"`
	Role     GroupMembershipRole `json:"role" gorm:"type:varchar(10);not null;default:'member'"`
	Active   bool                `json:"active" gorm:"not null;default:true"`
	JoinedAt time.Time           `json:"joinedAt" gorm:"autoCreateTime"`

	User  User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Group Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}
