package service

import (
	"context"
	"fmt"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/notification"
	"github.com/hisaab-app/hisaab-backend/internal/workflow"
)

// ============================================
// Group Service
// ============================================

type GroupService interface {
	Create(ctx context.Context, name, description string, owner models.Member) (*models.Group, error)
	List(ctx context.Context, mobile string) ([]models.Group, error)
	Get(ctx context.Context, groupID, mobile string) (*models.Group, error)
	UpdateInfo(ctx context.Context, groupID string, actor models.Member, name, description string) error
	Propose(ctx context.Context, groupID string, req models.Request) error
	Approve(ctx context.Context, groupID string, kind models.RequestKind, subject string, approver models.Member) error
	Reject(ctx context.Context, groupID string, kind models.RequestKind, subject string, rejecter models.Member) error
	DismissNotification(ctx context.Context, groupID, mobile, notificationID string) error
}

type groupService struct {
	gw       gateway.Gateway
	engine   *workflow.Engine
	notifier *notification.Service
}

func NewGroupService(gw gateway.Gateway, engine *workflow.Engine, notifier *notification.Service) GroupService {
	return &groupService{gw: gw, engine: engine, notifier: notifier}
}

// Create makes a group with the creator as owner and sole member. Group ids
// are millisecond timestamps, so listings come out in creation order.
func (s *groupService) Create(ctx context.Context, name, description string, owner models.Member) (*models.Group, error) {
	name = models.NormalizeName(name)
	if name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if err := models.ValidateMobile("owner", owner.Mobile); err != nil {
		return nil, err
	}

	g := models.Group{
		ID:          models.NewGroupID(),
		Name:        name,
		Description: description,
		OwnerMobile: owner.Mobile,
		Members:     []models.Member{owner},
		CreatedAt:   models.NowISO(),
	}
	if err := s.gw.Write(ctx, models.GroupPath(g.ID), g); err != nil {
		return nil, err
	}
	return &g, nil
}

// List returns the groups mobile belongs to.
func (s *groupService) List(ctx context.Context, mobile string) ([]models.Group, error) {
	return groupsOf(ctx, s.gw, mobile)
}

// Get loads one group. Non-members are refused.
func (s *groupService) Get(ctx context.Context, groupID, mobile string) (*models.Group, error) {
	g, err := readGroup(ctx, s.gw, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(mobile) {
		return nil, apperr.NotAuthorized("not a member of this group")
	}
	return g, nil
}

// UpdateInfo edits the group's name and description directly. Info-only
// edits need no approval; members are told after the fact. Member changes go
// through the edit request workflow instead.
func (s *groupService) UpdateInfo(ctx context.Context, groupID string, actor models.Member, name, description string) error {
	g, err := readGroup(ctx, s.gw, groupID)
	if err != nil {
		return err
	}
	if !g.HasMember(actor.Mobile) {
		return apperr.NotAuthorized("not a member of this group")
	}

	fields := make(map[string]any)
	if name != "" {
		name = models.NormalizeName(name)
		fields["name"] = name
	}
	if description != "" {
		fields["description"] = description
	}
	if len(fields) == 0 {
		return apperr.Validation("name", "nothing to update")
	}
	if err := s.gw.Merge(ctx, models.GroupPath(groupID), fields); err != nil {
		return err
	}

	recipients := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m.Mobile != actor.Mobile {
			recipients = append(recipients, m.Mobile)
		}
	}
	displayName := g.Name
	if name != "" {
		displayName = name
	}
	s.notifier.Notify(ctx, models.GroupPath(groupID), recipients,
		models.NoticeGroupUpdated,
		fmt.Sprintf("%s updated %s", actor.Name, displayName), actor.Name)
	return nil
}

func (s *groupService) Propose(ctx context.Context, groupID string, req models.Request) error {
	return s.engine.ProposeGroup(ctx, groupID, req)
}

func (s *groupService) Approve(ctx context.Context, groupID string, kind models.RequestKind, subject string, approver models.Member) error {
	return s.engine.ApproveGroup(ctx, groupID, kind, subject, approver)
}

func (s *groupService) Reject(ctx context.Context, groupID string, kind models.RequestKind, subject string, rejecter models.Member) error {
	return s.engine.RejectGroup(ctx, groupID, kind, subject, rejecter)
}

func (s *groupService) DismissNotification(ctx context.Context, groupID, mobile, notificationID string) error {
	return s.notifier.Dismiss(ctx, models.GroupPath(groupID), mobile, notificationID)
}
