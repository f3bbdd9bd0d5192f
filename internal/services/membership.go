package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/pkg/logger"
)

var (
	ErrGroupInactive  = errors.New("group is inactive")
	ErrAlreadyMember  = errors.New("already a member of this group")
	ErrNotAMember     = errors.New("not a member of this group")
	ErrMemberNotFound = errors.New("member not found")
)

// MembershipService drives the membership state machine. Rows are never
// deleted: leave and removal deactivate, rejoin reactivates the same row
// with its prior role.
type MembershipService struct {
	DB *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{DB: db}
}

// GetOrNone looks up the membership row for (user, group) with optional
// activity filtering, returning nil without an error on a miss.
func (s *MembershipService) GetOrNone(ctx context.Context, userID, groupID uuid.UUID, active *bool) (*models.GroupMembership, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ? AND group_id = ?", userID, groupID)
	if active != nil {
		q = q.Where("active = ?", *active)
	}

	var membership models.GroupMembership
	err := q.First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// Join adds the user to an active group. An active membership is rejected,
// an inactive one is reactivated with its prior role, and otherwise a fresh
// member-role row is created. The branches are evaluated in that order.
// A join that loses the unique-index race to a concurrent join re-evaluates
// the winner's row once: active means ErrAlreadyMember, inactive is
// reactivated.
func (s *MembershipService) Join(ctx context.Context, user *models.User, group *models.Group) error {
	if !group.IsActive {
		return ErrGroupInactive
	}

	existing, err := s.GetOrNone(ctx, user.ID, group.ID, nil)
	if err != nil {
		return err
	}
	if existing != nil {
		return s.reactivate(ctx, user, group, existing)
	}

	membership := models.GroupMembership{
		UserID:  user.ID,
		GroupID: group.ID,
		Role:    models.GroupRoleMember,
		Active:  true,
	}
	if err := s.DB.WithContext(ctx).Create(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, ferr := s.GetOrNone(ctx, user.ID, group.ID, nil)
			if ferr != nil {
				return ferr
			}
			if winner != nil {
				return s.reactivate(ctx, user, group, winner)
			}
		}
		return err
	}

	logger.InfoWithUser(user.ID.String(), "group_joined", map[string]interface{}{
		"group_slug": group.Slug,
	})
	return nil
}

func (s *MembershipService) reactivate(ctx context.Context, user *models.User, group *models.Group, membership *models.GroupMembership) error {
	if membership.Active {
		return ErrAlreadyMember
	}

	// Role is preserved across leave and rejoin.
	err := s.DB.WithContext(ctx).
		Model(membership).
		Update("active", true).Error
	if err != nil {
		return err
	}

	logger.InfoWithUser(user.ID.String(), "group_rejoined", map[string]interface{}{
		"group_slug": group.Slug,
		"role":       string(membership.Role),
	})
	return nil
}

// Leave deactivates the caller's active membership. There is no last-admin
// guard: a group may end up without active admins.
func (s *MembershipService) Leave(ctx context.Context, user *models.User, group *models.Group) error {
	active := true
	membership, err := s.GetOrNone(ctx, user.ID, group.ID, &active)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrNotAMember
	}

	err = s.DB.WithContext(ctx).
		Model(membership).
		Update("active", false).Error
	if err != nil {
		return err
	}

	logger.InfoWithUser(user.ID.String(), "group_left", map[string]interface{}{
		"group_slug": group.Slug,
	})
	return nil
}

// Remove deactivates the target's active membership. Authorization of the
// acting admin is the caller's responsibility; admins may remove other
// admins, including themselves.
func (s *MembershipService) Remove(ctx context.Context, group *models.Group, targetUserID uuid.UUID) error {
	active := true
	membership, err := s.GetOrNone(ctx, targetUserID, group.ID, &active)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrMemberNotFound
	}

	err = s.DB.WithContext(ctx).
		Model(membership).
		Update("active", false).Error
	if err != nil {
		return err
	}

	logger.Info("group_member_removed", map[string]interface{}{
		"group_slug": group.Slug,
		"user_id":    targetUserID.String(),
	})
	return nil
}

// AssignAdmin promotes an active member to admin. Promoting an existing
// admin is a no-op, not an error.
func (s *MembershipService) AssignAdmin(ctx context.Context, group *models.Group, targetUserID uuid.UUID) error {
	active := true
	membership, err := s.GetOrNone(ctx, targetUserID, group.ID, &active)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrMemberNotFound
	}

	if membership.Role == models.GroupRoleAdmin {
		return nil
	}

	err = s.DB.WithContext(ctx).
		Model(membership).
		Update("role", models.GroupRoleAdmin).Error
	if err != nil {
		return err
	}

	logger.Info("group_admin_assigned", map[string]interface{}{
		"group_slug": group.Slug,
		"user_id":    targetUserID.String(),
	})
	return nil
}
