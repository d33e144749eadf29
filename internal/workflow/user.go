package workflow

import (
	"context"
	"fmt"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

// ProposeUser opens an account delete or update request. RequiredApprovals
// pins the approver set (the owners of the user's groups, resolved by the
// caller); an empty set means nobody is affected and the request executes
// immediately.
func (e *Engine) ProposeUser(ctx context.Context, mobile string, req models.Request) error {
	field, err := userRequestSlot(req.Kind)
	if err != nil {
		return err
	}

	u, err := e.loadUser(ctx, mobile)
	if err != nil {
		return err
	}
	if userRequest(u, req.Kind) != nil {
		return apperr.ErrAlreadyPending
	}
	if req.Kind == models.KindUserUpdate {
		name := models.NormalizeName(req.NewName)
		if err := models.ValidateName("newName", name); err != nil {
			return err
		}
		req.NewName = name
	}

	if req.RequestedAt == "" {
		req.RequestedAt = models.NowISO()
	}
	if req.Approvals == nil {
		req.Approvals = []models.Approval{}
	}

	if len(req.RequiredApprovals) == 0 {
		actor := models.Member{Mobile: req.RequestedBy, Name: req.RequestedByName}
		return e.finalizeUser(ctx, u, &req, actor)
	}

	if err := e.gw.Write(ctx, models.UserPath(mobile)+"/"+field, req); err != nil {
		return err
	}
	return nil
}

// ApproveUser records an approval from one of the pinned approvers.
func (e *Engine) ApproveUser(ctx context.Context, mobile string, kind models.RequestKind, approver models.Member) error {
	field, err := userRequestSlot(kind)
	if err != nil {
		return err
	}

	u, err := e.loadUser(ctx, mobile)
	if err != nil {
		return err
	}
	req := userRequest(u, kind)
	if req == nil {
		return apperr.NotFound("pending " + kindLabel(kind) + " request")
	}
	req.Kind = kind

	required := requiredUserApprovers(req)
	if !memberIn(required, approver.Mobile) {
		return apperr.NotAuthorized("not an approver for this request")
	}
	if err := addApproval(req, approver); err != nil {
		return err
	}
	if err := e.gw.Write(ctx, models.UserPath(mobile)+"/"+field, req); err != nil {
		return err
	}

	if quorumMet(req, required) {
		return e.finalizeUser(ctx, u, req, approver)
	}
	return nil
}

// RejectUser clears a pending account request and tells the account holder,
// unless they cancelled it themselves.
func (e *Engine) RejectUser(ctx context.Context, mobile string, kind models.RequestKind, rejecter models.Member) error {
	field, err := userRequestSlot(kind)
	if err != nil {
		return err
	}

	u, err := e.loadUser(ctx, mobile)
	if err != nil {
		return err
	}
	req := userRequest(u, kind)
	if req == nil {
		return apperr.NotFound("pending " + kindLabel(kind) + " request")
	}

	cancelled := rejecter.Mobile == req.RequestedBy
	if !cancelled && !memberIn(requiredUserApprovers(req), rejecter.Mobile) {
		return apperr.NotAuthorized("not an approver for this request")
	}

	if err := e.gw.Remove(ctx, models.UserPath(mobile)+"/"+field); err != nil {
		return err
	}
	if !cancelled {
		e.notify(ctx, models.UserPath(mobile), []string{mobile},
			models.NoticeRejected,
			fmt.Sprintf("%s rejected your %s request", rejecter.Name, kindLabel(kind)),
			rejecter.Name)
	}
	return nil
}

func (e *Engine) finalizeUser(ctx context.Context, u *models.User, req *models.Request, actor models.Member) error {
	switch req.Kind {
	case models.KindUserDelete:
		return e.gw.Remove(ctx, models.UserPath(u.Mobile))

	case models.KindUserUpdate:
		if err := e.gw.Write(ctx, models.UserPath(u.Mobile)+"/name", req.NewName); err != nil {
			return err
		}
		if err := e.gw.Remove(ctx, models.UserPath(u.Mobile)+"/updateRequest"); err != nil {
			return err
		}
		if actor.Mobile != u.Mobile {
			e.notify(ctx, models.UserPath(u.Mobile), []string{u.Mobile},
				models.NoticeApproved,
				fmt.Sprintf("Your name change to %s was approved", req.NewName),
				actor.Name)
		}
		return nil

	default:
		return apperr.Validation("kind", "not a user request kind")
	}
}

func userRequest(u *models.User, kind models.RequestKind) *models.Request {
	switch kind {
	case models.KindUserDelete:
		return u.DeleteRequest
	case models.KindUserUpdate:
		return u.UpdateRequest
	default:
		return nil
	}
}
