package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/middleware"
	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/internal/services"
	"github.com/schedulesync/backend/pkg/utils"
)

type GroupsHandler struct {
	Groups      *services.GroupService
	Memberships *services.MembershipService
	Access      *services.AccessService
}

func NewGroupsHandler(db *gorm.DB) *GroupsHandler {
	return &GroupsHandler{
		Groups:      services.NewGroupService(db),
		Memberships: services.NewMembershipService(db),
		Access:      services.NewAccessService(db),
	}
}

type groupSummary struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// List returns the caller's groups filtered by relationship: created
// (default) or joined.
func (h *GroupsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	filter := services.GroupFilter(strings.ToLower(c.Query("groupFilter", string(services.GroupFilterCreated))))
	if filter != services.GroupFilterCreated && filter != services.GroupFilterJoined {
		return utils.Error(c, fiber.StatusBadRequest, "invalid groupFilter")
	}

	groups, err := h.Groups.ListForUser(c.Context(), currentUser.ID, filter)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing groups")
	}

	summaries := make([]groupSummary, 0, len(groups))
	for _, group := range groups {
		summaries = append(summaries, groupSummary{Name: group.Name, Slug: group.Slug})
	}

	return utils.Success(c, fiber.StatusOK, "Groups retrieved successfully", summaries)
}

type createGroupRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	group, err := h.Groups.Create(c.Context(), currentUser, req.Name, req.Description)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating group")
	}

	return utils.Success(c, fiber.StatusCreated, "Group created successfully", groupSummary{
		Name: group.Name,
		Slug: group.Slug,
	})
}

type memberSummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
}

// Get is public: anyone can view a group's detail, including its active
// member and admin rosters.
func (h *GroupsHandler) Get(c *fiber.Ctx) error {
	group, err := h.Groups.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}
	if group == nil {
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	}

	members := make([]memberSummary, 0)
	admins := make([]memberSummary, 0)
	for _, membership := range group.Memberships {
		if !membership.Active {
			continue
		}
		summary := memberSummary{ID: membership.UserID, FullName: membership.User.FullName()}
		members = append(members, summary)
		if membership.Role == models.GroupRoleAdmin {
			admins = append(admins, summary)
		}
	}

	return utils.Success(c, fiber.StatusOK, "Group retrieved successfully", fiber.Map{
		"name":        group.Name,
		"description": group.Description,
		"slug":        group.Slug,
		"createdBy":   group.CreatedBy.FullName(),
		"admins":      admins,
		"members":     members,
	})
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update renames or re-describes a group. Admin-only; the slug never
// changes after creation.
func (h *GroupsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	slug := c.Params("slug")
	group, err := h.Groups.GetBySlug(c.Context(), slug)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}
	if group == nil {
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	}

	if !h.Access.IsGroupAdmin(c.Context(), currentUser.ID, slug) {
		return utils.Error(c, fiber.StatusForbidden, "Permission denied")
	}

	var req updateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.Groups.Update(c.Context(), group, updates); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating group")
	}

	return utils.Success(c, fiber.StatusOK, "Group updated successfully", fiber.Map{
		"name":        group.Name,
		"description": group.Description,
		"slug":        group.Slug,
	})
}

// Deactivate takes a group out of service. Staff only; members keep their
// rows but nobody new can join.
func (h *GroupsHandler) Deactivate(c *fiber.Ctx) error {
	switch err := h.Groups.Deactivate(c.Context(), c.Params("slug")); {
	case errors.Is(err, services.ErrGroupNotFound):
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed deactivating group")
	}

	return utils.Success(c, fiber.StatusOK, "Group deactivated successfully", nil)
}

// Join adds the caller to the group, reactivating a prior membership when
// one exists.
func (h *GroupsHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	group, err := h.Groups.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}
	if group == nil {
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	}

	switch err := h.Memberships.Join(c.Context(), currentUser, group); {
	case errors.Is(err, services.ErrGroupInactive):
		return utils.Error(c, fiber.StatusBadRequest, "Group is inactive")
	case errors.Is(err, services.ErrAlreadyMember):
		return utils.Error(c, fiber.StatusBadRequest, "You are already a member of this group")
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed joining group")
	}

	return utils.Success(c, fiber.StatusCreated, "Joined group successfully", nil)
}

func (h *GroupsHandler) Leave(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	group, err := h.Groups.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}
	if group == nil {
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	}

	switch err := h.Memberships.Leave(c.Context(), currentUser, group); {
	case errors.Is(err, services.ErrNotAMember):
		return utils.Error(c, fiber.StatusBadRequest, "You are not a member of this group")
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed leaving group")
	}

	return utils.Success(c, fiber.StatusOK, "Left group successfully", nil)
}

// RemoveMember lets a group admin deactivate another member's membership.
func (h *GroupsHandler) RemoveMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	slug := c.Params("slug")
	memberID, err := uuid.Parse(c.Params("memberId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid member id")
	}

	group, err := h.Groups.GetBySlug(c.Context(), slug)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}
	if group == nil {
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	}

	if !h.Access.IsGroupAdmin(c.Context(), currentUser.ID, slug) {
		return utils.Error(c, fiber.StatusForbidden, "Permission denied")
	}

	switch err := h.Memberships.Remove(c.Context(), group, memberID); {
	case errors.Is(err, services.ErrMemberNotFound):
		return utils.Error(c, fiber.StatusNotFound, "Member not found")
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed removing member")
	}

	return utils.Success(c, fiber.StatusOK, "Removed user from group successfully", nil)
}

type assignAdminRequest struct {
	GroupSlug string    `json:"groupSlug"`
	MemberID  uuid.UUID `json:"memberId"`
}

// AssignAdmin promotes an active member to admin of the group named in the
// request body. The caller must be an active admin of that same group.
func (h *GroupsHandler) AssignAdmin(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req assignAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.GroupSlug == "" || req.MemberID == uuid.Nil {
		return utils.Error(c, fiber.StatusBadRequest, "groupSlug and memberId are required")
	}

	group, err := h.Groups.GetBySlug(c.Context(), req.GroupSlug)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}
	if group == nil {
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	}

	if !h.Access.IsGroupAdmin(c.Context(), currentUser.ID, req.GroupSlug) {
		return utils.Error(c, fiber.StatusForbidden, "Permission denied")
	}

	switch err := h.Memberships.AssignAdmin(c.Context(), group, req.MemberID); {
	case errors.Is(err, services.ErrMemberNotFound):
		return utils.Error(c, fiber.StatusNotFound, "Member not found")
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed assigning admin")
	}

	return utils.Success(c, fiber.StatusOK, "Assigned admin successfully", nil)
}
