package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/models"
)

// AccessService answers authorization questions for group operations. Every
// check runs a fresh query: role and activity state are mutable between
// requests, so nothing is cached.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// IsGroupAdmin reports whether the account holds an active admin membership
// in the group named by slug. An unknown slug is false, never an error;
// callers return their own not-found response when they need one.
func (s *AccessService) IsGroupAdmin(ctx context.Context, userID uuid.UUID, groupSlug string) bool {
	var group models.Group
	err := s.DB.WithContext(ctx).First(&group, "slug = ?", groupSlug).Error
	if err != nil {
		return false
	}

	var membership models.GroupMembership
	err = s.DB.WithContext(ctx).
		First(&membership, "user_id = ? AND group_id = ? AND active = ?", userID, group.ID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if err != nil {
		return false
	}

	return membership.Role == models.GroupRoleAdmin
}
