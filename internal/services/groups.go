package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/pkg/logger"
	"github.com/schedulesync/backend/pkg/utils"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupFilter selects which relationship a group listing is scoped by.
type GroupFilter string

const (
	GroupFilterCreated GroupFilter = "created"
	GroupFilterJoined  GroupFilter = "joined"
)

type GroupService struct {
	DB *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{DB: db}
}

// Create stores a new group and the creator's admin membership as one
// transactional unit. The slug is fixed from the name at creation and never
// regenerated on rename.
func (s *GroupService) Create(ctx context.Context, creator *models.User, name string, description *string) (*models.Group, error) {
	slug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	group := models.Group{
		Name:        name,
		Description: description,
		Slug:        slug,
		CreatedByID: creator.ID,
		IsActive:    true,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}

		membership := models.GroupMembership{
			UserID:  creator.ID,
			GroupID: group.ID,
			Role:    models.GroupRoleAdmin,
			Active:  true,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(creator.ID.String(), "group_created", map[string]interface{}{
		"group_id":   group.ID.String(),
		"group_slug": group.Slug,
	})

	return &group, nil
}

// GetBySlug resolves a group with its creator and member associations
// eagerly loaded. Returns nil without an error when the slug is unknown.
func (s *GroupService) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var group models.Group
	err := s.DB.WithContext(ctx).
		Preload("CreatedBy").
		Preload("Memberships.User").
		First(&group, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ListForUser returns the groups related to an account: ones it created, or
// ones it holds an active membership in.
func (s *GroupService) ListForUser(ctx context.Context, userID uuid.UUID, filter GroupFilter) ([]models.Group, error) {
	var groups []models.Group

	switch filter {
	case GroupFilterJoined:
		err := s.DB.WithContext(ctx).
			Joins("JOIN group_memberships ON group_memberships.group_id = groups.id").
			Where("group_memberships.user_id = ? AND group_memberships.active = ?", userID, true).
			Order("groups.created_at DESC").
			Find(&groups).Error
		return groups, err
	default:
		err := s.DB.WithContext(ctx).
			Where("created_by_id = ?", userID).
			Order("created_at DESC").
			Find(&groups).Error
		return groups, err
	}
}

// Update applies field changes to a group record. The slug is immutable.
func (s *GroupService) Update(ctx context.Context, group *models.Group, updates map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(group).Updates(updates).Error
}

// Deactivate takes a group out of service, which blocks new joins. Existing
// membership rows are left untouched.
func (s *GroupService) Deactivate(ctx context.Context, slug string) error {
	var group models.Group
	err := s.DB.WithContext(ctx).First(&group, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrGroupNotFound
	}
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Model(&group).Update("is_active", false).Error
	if err != nil {
		return err
	}

	logger.Info("group_deactivated", map[string]interface{}{
		"group_slug": group.Slug,
	})
	return nil
}

func (s *GroupService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := utils.Slugify(name)
	if base == "" {
		base = "group"
	}

	candidate := base
	for i := 2; ; i++ {
		var count int64
		err := s.DB.WithContext(ctx).
			Model(&models.Group{}).
			Where("slug = ?", candidate).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
