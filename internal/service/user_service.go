package service

import (
	"context"
	"sort"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/workflow"
)

// ============================================
// User Service
// ============================================

// UserView is a directory entry. Mobiles of people who share no group with
// the viewer are masked.
type UserView struct {
	Mobile  string `json:"mobile"`
	Name    string `json:"name"`
	AddedBy string `json:"addedBy,omitempty"`
	Masked  bool   `json:"masked,omitempty"`
}

type UserService interface {
	List(ctx context.Context, viewer string) ([]UserView, error)
	Get(ctx context.Context, mobile string) (*models.User, error)
	Save(ctx context.Context, name, mobile, addedBy string) (*models.User, error)
	ResetLoginCode(ctx context.Context, mobile string) error
	RequestUpdate(ctx context.Context, requester models.Member, newName string) error
	RequestDelete(ctx context.Context, requester models.Member) error
	ApproveRequest(ctx context.Context, mobile string, kind models.RequestKind, approver models.Member) error
	RejectRequest(ctx context.Context, mobile string, kind models.RequestKind, rejecter models.Member) error
}

type userService struct {
	gw     gateway.Gateway
	engine *workflow.Engine
}

func NewUserService(gw gateway.Gateway, engine *workflow.Engine) UserService {
	return &userService{gw: gw, engine: engine}
}

func (s *userService) List(ctx context.Context, viewer string) ([]UserView, error) {
	data, err := s.gw.Read(ctx, models.RootUsers)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var raw map[string]models.User
	if err := decode(data, &raw); err != nil {
		return nil, err
	}

	groupmates, err := s.groupmatesOf(ctx, viewer)
	if err != nil {
		return nil, err
	}

	out := make([]UserView, 0, len(raw))
	for mobile, u := range raw {
		view := UserView{Mobile: mobile, Name: u.Name, AddedBy: u.AddedBy}
		if mobile != viewer {
			if _, shared := groupmates[mobile]; !shared {
				view.Mobile = models.MaskMobile(mobile)
				view.Masked = true
			}
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *userService) Get(ctx context.Context, mobile string) (*models.User, error) {
	data, err := s.gw.Read(ctx, models.UserPath(mobile))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apperr.NotFound("user " + mobile)
	}
	var u models.User
	if err := decode(data, &u); err != nil {
		return nil, err
	}
	u.Mobile = mobile
	// The login code hash never leaves the service layer.
	u.LoginCode = nil
	u.RecoveryCodes = nil
	return &u, nil
}

// Save creates a user on someone else's behalf, recording who added them.
func (s *userService) Save(ctx context.Context, name, mobile, addedBy string) (*models.User, error) {
	if err := models.ValidateMobile("mobile", mobile); err != nil {
		return nil, err
	}
	name = models.NormalizeName(name)
	if err := models.ValidateName("name", name); err != nil {
		return nil, err
	}

	existing, err := s.gw.Read(ctx, models.UserPath(mobile))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Validation("mobile", "already registered")
	}

	user := models.User{Mobile: mobile, Name: name, AddedBy: addedBy}
	if err := s.gw.Write(ctx, models.UserPath(mobile), user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ResetLoginCode clears the login code and recovery passcodes so the next
// login claims the account again.
func (s *userService) ResetLoginCode(ctx context.Context, mobile string) error {
	data, err := s.gw.Read(ctx, models.UserPath(mobile))
	if err != nil {
		return err
	}
	if data == nil {
		return apperr.NotFound("user " + mobile)
	}
	return s.gw.Merge(ctx, models.UserPath(mobile), map[string]any{
		"loginCode":     nil,
		"recoveryCodes": nil,
	})
}

// RequestUpdate opens a name-change request. The owners of the requester's
// groups must approve; with no groups the change is immediate.
func (s *userService) RequestUpdate(ctx context.Context, requester models.Member, newName string) error {
	approvers, err := s.ownerApprovers(ctx, requester.Mobile)
	if err != nil {
		return err
	}
	return s.engine.ProposeUser(ctx, requester.Mobile, models.Request{
		Kind:              models.KindUserUpdate,
		RequestedBy:       requester.Mobile,
		RequestedByName:   requester.Name,
		NewName:           newName,
		RequiredApprovals: approvers,
	})
}

// RequestDelete opens an account-deletion request under the same approval
// rule as RequestUpdate.
func (s *userService) RequestDelete(ctx context.Context, requester models.Member) error {
	approvers, err := s.ownerApprovers(ctx, requester.Mobile)
	if err != nil {
		return err
	}
	return s.engine.ProposeUser(ctx, requester.Mobile, models.Request{
		Kind:              models.KindUserDelete,
		RequestedBy:       requester.Mobile,
		RequestedByName:   requester.Name,
		RequiredApprovals: approvers,
	})
}

func (s *userService) ApproveRequest(ctx context.Context, mobile string, kind models.RequestKind, approver models.Member) error {
	return s.engine.ApproveUser(ctx, mobile, kind, approver)
}

func (s *userService) RejectRequest(ctx context.Context, mobile string, kind models.RequestKind, rejecter models.Member) error {
	return s.engine.RejectUser(ctx, mobile, kind, rejecter)
}

// ownerApprovers collects the owner mobiles of the user's groups,
// deduplicated and excluding the user themselves.
func (s *userService) ownerApprovers(ctx context.Context, mobile string) ([]string, error) {
	groups, err := groupsOf(ctx, s.gw, mobile)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, g := range groups {
		if g.OwnerMobile == "" || g.OwnerMobile == mobile {
			continue
		}
		if _, ok := seen[g.OwnerMobile]; ok {
			continue
		}
		seen[g.OwnerMobile] = struct{}{}
		out = append(out, g.OwnerMobile)
	}
	return out, nil
}

// groupmatesOf returns the set of mobiles sharing at least one group with
// viewer.
func (s *userService) groupmatesOf(ctx context.Context, viewer string) (map[string]struct{}, error) {
	groups, err := groupsOf(ctx, s.gw, viewer)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for _, g := range groups {
		for _, m := range g.Members {
			out[m.Mobile] = struct{}{}
		}
	}
	return out, nil
}
