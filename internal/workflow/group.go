package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

func groupField(groupID, field string) string {
	return models.GroupPath(groupID) + "/" + field
}

// ProposeGroup opens a group-scoped request. If the required approver set is
// already satisfied (small groups, self-excluding kinds), the request
// finalizes immediately.
func (e *Engine) ProposeGroup(ctx context.Context, groupID string, req models.Request) error {
	field, list, err := groupRequestSlot(req.Kind)
	if err != nil {
		return err
	}

	g, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}

	if err := e.checkGroupProposal(g, &req); err != nil {
		return err
	}

	if req.RequestedAt == "" {
		req.RequestedAt = models.NowISO()
	}
	if req.Approvals == nil {
		req.Approvals = []models.Approval{}
	}
	// Adding a member or asking to settle carries the requester's implicit
	// consent; in a one-member group a settlement finalizes on the spot.
	if req.Kind == models.KindAddMember || req.Kind == models.KindSettlement {
		_ = addApproval(&req, models.Member{Mobile: req.RequestedBy, Name: req.RequestedByName})
	}

	if list {
		existing := groupRequestList(g, req.Kind)
		for _, pending := range existing {
			if pending.Subject == req.Subject {
				return apperr.ErrAlreadyPending
			}
		}
		if err := e.gw.Write(ctx, groupField(groupID, field), append(existing, req)); err != nil {
			return err
		}
	} else {
		if groupRequestSingle(g, req.Kind) != nil {
			return apperr.ErrAlreadyPending
		}
		if err := e.gw.Write(ctx, groupField(groupID, field), req); err != nil {
			return err
		}
	}

	if quorumMet(&req, requiredGroupApprovers(g, &req)) {
		actor := models.Member{Mobile: req.RequestedBy, Name: req.RequestedByName}
		return e.finalizeGroup(ctx, g, &req, actor)
	}
	return nil
}

// ApproveGroup records one approval and finalizes when the quorum derived
// from the group's current membership is complete. Subject selects the
// pending entry for the list-shaped kinds (leave, join).
func (e *Engine) ApproveGroup(ctx context.Context, groupID string, kind models.RequestKind, subject string, approver models.Member) error {
	field, list, err := groupRequestSlot(kind)
	if err != nil {
		return err
	}

	g, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	req, err := findGroupRequest(g, kind, subject)
	if err != nil {
		return err
	}

	required := requiredGroupApprovers(g, req)
	if !memberIn(required, approver.Mobile) {
		return apperr.NotAuthorized("not an approver for this request")
	}
	if err := addApproval(req, approver); err != nil {
		return err
	}

	if list {
		if err := e.gw.Write(ctx, groupField(groupID, field), groupRequestList(g, kind)); err != nil {
			return err
		}
	} else {
		if err := e.gw.Write(ctx, groupField(groupID, field), req); err != nil {
			return err
		}
	}

	if quorumMet(req, required) {
		return e.finalizeGroup(ctx, g, req, approver)
	}
	return nil
}

// RejectGroup clears a pending request without mutating anything else. The
// proposer may cancel their own request silently; any required approver may
// reject, which notifies the other affected members.
func (e *Engine) RejectGroup(ctx context.Context, groupID string, kind models.RequestKind, subject string, rejecter models.Member) error {
	g, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	req, err := findGroupRequest(g, kind, subject)
	if err != nil {
		return err
	}

	cancelled := rejecter.Mobile == req.RequestedBy
	if !cancelled && !memberIn(requiredGroupApprovers(g, req), rejecter.Mobile) {
		return apperr.NotAuthorized("not an approver for this request")
	}

	if err := e.clearGroupSlot(ctx, g, req); err != nil {
		return err
	}
	if !cancelled {
		e.notify(ctx, models.GroupPath(groupID), mobiles(g.Members, rejecter.Mobile),
			models.NoticeRejected,
			fmt.Sprintf("%s rejected the %s request in %s", rejecter.Name, kindLabel(kind), g.Name),
			rejecter.Name)
	}
	return nil
}

// checkGroupProposal validates who may open which kind of request.
func (e *Engine) checkGroupProposal(g *models.Group, req *models.Request) error {
	switch req.Kind {
	case models.KindJoin:
		if req.Subject == "" {
			req.Subject = req.RequestedBy
			req.SubjectName = req.RequestedByName
		}
		if g.HasMember(req.Subject) {
			return apperr.Validation("subject", "already a member")
		}
	case models.KindLeave:
		if req.Subject == "" {
			req.Subject = req.RequestedBy
			req.SubjectName = req.RequestedByName
		}
		if !g.HasMember(req.Subject) {
			return apperr.NotFound("member " + req.Subject)
		}
	case models.KindAddMember:
		if req.NewMember == nil {
			return apperr.Validation("newMember", "is required")
		}
		if g.HasMember(req.NewMember.Mobile) {
			return apperr.Validation("newMember", "already a member")
		}
		if !g.HasMember(req.RequestedBy) {
			return apperr.NotAuthorized("only members can add members")
		}
	case models.KindGroupEdit:
		if !g.HasMember(req.RequestedBy) {
			return apperr.NotAuthorized("only members can request this")
		}
		if req.Name == "" && len(req.NewMembers) == 0 {
			return apperr.Validation("newMembers", "nothing to change")
		}
		// Derive the membership delta when the proposer only sent the new
		// list. The delta widens the approver set to everyone affected.
		if len(req.NewMembers) > 0 && req.AddedMembers == nil && req.RemovedMembers == nil {
			current := make(map[string]struct{}, len(g.Members))
			for _, m := range g.Members {
				current[m.Mobile] = struct{}{}
			}
			next := make(map[string]struct{}, len(req.NewMembers))
			for _, m := range req.NewMembers {
				next[m.Mobile] = struct{}{}
				if _, ok := current[m.Mobile]; !ok {
					req.AddedMembers = append(req.AddedMembers, m)
				}
			}
			for _, m := range g.Members {
				if _, ok := next[m.Mobile]; !ok {
					req.RemovedMembers = append(req.RemovedMembers, m)
				}
			}
		}
	case models.KindTransferOwnership:
		if !g.HasMember(req.RequestedBy) {
			return apperr.NotAuthorized("only members can request this")
		}
		if !g.HasMember(req.NewOwner) {
			return apperr.Validation("newOwner", "must be a current member")
		}
	case models.KindSettlement:
		if !g.HasMember(req.RequestedBy) {
			return apperr.NotAuthorized("only members can request this")
		}
		if !models.ValidMonth(req.Month) {
			return apperr.Validation("month", "must be YYYY-MM")
		}
	default:
		if !g.HasMember(req.RequestedBy) {
			return apperr.NotAuthorized("only members can request this")
		}
	}
	return nil
}

// finalizeGroup executes the request's mutation, clears the request slot and
// fans out completion notifications. Runs at most once per request: the slot
// is cleared in the same pass, so a second finalize finds nothing.
func (e *Engine) finalizeGroup(ctx context.Context, g *models.Group, req *models.Request, actor models.Member) error {
	groupID := g.ID
	switch req.Kind {
	case models.KindGroupDelete:
		// The group document is going away, so completion lands on the
		// members' user entities instead.
		for _, m := range g.Members {
			if m.Mobile == actor.Mobile {
				continue
			}
			e.notify(ctx, models.UserPath(m.Mobile), []string{m.Mobile},
				models.NoticeApproved,
				fmt.Sprintf("Group %s was deleted", g.Name), actor.Name)
		}
		for _, path := range []string{
			models.GroupPath(groupID),
			models.ScopePath(models.RootPayments, groupID),
			models.ScopePath(models.RootLoans, groupID),
			models.ScopePath(models.RootPaymentsBackup, groupID),
		} {
			if err := e.gw.Remove(ctx, path); err != nil {
				return err
			}
		}
		return nil

	case models.KindGroupEdit:
		if req.Name != "" {
			if err := e.gw.Write(ctx, groupField(groupID, "name"), req.Name); err != nil {
				return err
			}
			g.Name = req.Name
		}
		if len(req.NewMembers) > 0 {
			if err := e.gw.Write(ctx, groupField(groupID, "members"), req.NewMembers); err != nil {
				return err
			}
			g.Members = req.NewMembers
		}
		if err := e.clearGroupSlot(ctx, g, req); err != nil {
			return err
		}
		e.notify(ctx, models.GroupPath(groupID), mobiles(g.Members, actor.Mobile),
			models.NoticeGroupUpdated,
			fmt.Sprintf("Group %s was updated", g.Name), actor.Name)
		return nil

	case models.KindAddMember:
		members := append(append([]models.Member(nil), g.Members...), *req.NewMember)
		if err := e.gw.Write(ctx, groupField(groupID, "members"), members); err != nil {
			return err
		}
		g.Members = members
		if err := e.clearGroupSlot(ctx, g, req); err != nil {
			return err
		}
		e.notify(ctx, models.GroupPath(groupID), mobiles(g.Members, actor.Mobile),
			models.NoticeApproved,
			fmt.Sprintf("%s joined %s", req.NewMember.Name, g.Name), actor.Name)
		return nil

	case models.KindLeave:
		members := membersExcept(g.Members, req.Subject)
		if err := e.gw.Write(ctx, groupField(groupID, "members"), members); err != nil {
			return err
		}
		g.Members = members
		if req.Subject == g.OwnerMobile {
			// Ownership is left vacant until someone joins or a transfer
			// request resolves it.
			logger.L().Warnw("group owner left, ownership vacant",
				"group", groupID, "owner", req.Subject)
		}
		if err := e.clearGroupSlot(ctx, g, req); err != nil {
			return err
		}
		e.notify(ctx, models.GroupPath(groupID), mobiles(g.Members, actor.Mobile),
			models.NoticeApproved,
			fmt.Sprintf("%s left %s", req.SubjectName, g.Name), actor.Name)
		return nil

	case models.KindJoin:
		members := append(append([]models.Member(nil), g.Members...),
			models.Member{Mobile: req.Subject, Name: req.SubjectName})
		if err := e.gw.Write(ctx, groupField(groupID, "members"), members); err != nil {
			return err
		}
		g.Members = members
		if !g.HasMember(g.OwnerMobile) {
			// Joining a group whose owner already left fills the vacancy.
			if err := e.gw.Write(ctx, groupField(groupID, "ownerMobile"), req.Subject); err != nil {
				return err
			}
			g.OwnerMobile = req.Subject
		}
		if err := e.clearGroupSlot(ctx, g, req); err != nil {
			return err
		}
		e.notify(ctx, models.GroupPath(groupID), mobiles(g.Members, actor.Mobile),
			models.NoticeApproved,
			fmt.Sprintf("%s joined %s", req.SubjectName, g.Name), actor.Name)
		return nil

	case models.KindTransferOwnership:
		if err := e.gw.Write(ctx, groupField(groupID, "ownerMobile"), req.NewOwner); err != nil {
			return err
		}
		g.OwnerMobile = req.NewOwner
		if err := e.clearGroupSlot(ctx, g, req); err != nil {
			return err
		}
		e.notify(ctx, models.GroupPath(groupID), mobiles(g.Members, actor.Mobile),
			models.NoticeApproved,
			fmt.Sprintf("%s now owns %s", g.MemberName(req.NewOwner), g.Name), actor.Name)
		return nil

	case models.KindSettlement:
		if err := e.archiveMonth(ctx, groupID, req.Month); err != nil {
			return err
		}
		if err := e.clearGroupSlot(ctx, g, req); err != nil {
			return err
		}
		e.notify(ctx, models.GroupPath(groupID), mobiles(g.Members, actor.Mobile),
			models.NoticeApproved,
			fmt.Sprintf("Settlement for %s completed in %s", req.Month, g.Name), actor.Name)
		return nil

	default:
		return apperr.Validation("kind", "not a group request kind")
	}
}

// archiveMonth moves a month's payment records into the backup tree. Backup
// entries merge with any previous settlement of the same month; record keys
// are globally unique so nothing collides.
func (e *Engine) archiveMonth(ctx context.Context, groupID, month string) error {
	src := models.MonthPath(models.RootPayments, groupID, month)
	dst := models.MonthPath(models.RootPaymentsBackup, groupID, month)

	data, err := e.gw.Read(ctx, src)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode month %s: %w", src, err)
	}

	merged := make(map[string]any, len(records))
	if prev, err := e.gw.Read(ctx, dst); err != nil {
		return err
	} else if prev != nil {
		if err := json.Unmarshal(prev, &merged); err != nil {
			return fmt.Errorf("decode backup %s: %w", dst, err)
		}
	}
	for k, v := range records {
		merged[k] = v
	}

	if err := e.gw.Write(ctx, dst, merged); err != nil {
		return err
	}
	return e.gw.Remove(ctx, src)
}

// clearGroupSlot removes a finalized or rejected request from its slot. The
// field ends up absent, never null; an emptied list is removed entirely.
func (e *Engine) clearGroupSlot(ctx context.Context, g *models.Group, req *models.Request) error {
	field, list, err := groupRequestSlot(req.Kind)
	if err != nil {
		return err
	}
	if !list {
		return e.gw.Remove(ctx, groupField(g.ID, field))
	}

	var remaining []models.Request
	for _, pending := range groupRequestList(g, req.Kind) {
		if pending.Subject != req.Subject {
			remaining = append(remaining, pending)
		}
	}
	if len(remaining) == 0 {
		return e.gw.Remove(ctx, groupField(g.ID, field))
	}
	return e.gw.Write(ctx, groupField(g.ID, field), remaining)
}

func groupRequestSingle(g *models.Group, kind models.RequestKind) *models.Request {
	switch kind {
	case models.KindGroupDelete:
		return g.DeleteRequest
	case models.KindGroupEdit:
		return g.EditRequest
	case models.KindAddMember:
		return g.AddMemberRequest
	case models.KindTransferOwnership:
		return g.TransferOwnershipRequest
	case models.KindSettlement:
		return g.SettlementRequest
	default:
		return nil
	}
}

func groupRequestList(g *models.Group, kind models.RequestKind) []models.Request {
	switch kind {
	case models.KindLeave:
		return g.LeaveRequests
	case models.KindJoin:
		return g.JoinRequests
	default:
		return nil
	}
}

// findGroupRequest locates the pending request for kind (and subject, for
// list kinds) on the loaded group. The returned pointer aliases the group's
// own slice entry so approvals persist through a list write.
func findGroupRequest(g *models.Group, kind models.RequestKind, subject string) (*models.Request, error) {
	_, list, err := groupRequestSlot(kind)
	if err != nil {
		return nil, err
	}
	if !list {
		req := groupRequestSingle(g, kind)
		if req == nil {
			return nil, apperr.NotFound("pending " + kindLabel(kind) + " request")
		}
		req.Kind = kind
		return req, nil
	}

	pending := groupRequestList(g, kind)
	for i := range pending {
		if pending[i].Subject == subject {
			pending[i].Kind = kind
			return &pending[i], nil
		}
	}
	return nil, apperr.NotFound("pending " + kindLabel(kind) + " request")
}

func memberIn(members []models.Member, mobile string) bool {
	for _, m := range members {
		if m.Mobile == mobile {
			return true
		}
	}
	return false
}

func kindLabel(kind models.RequestKind) string {
	switch kind {
	case models.KindGroupDelete:
		return "group deletion"
	case models.KindGroupEdit:
		return "group edit"
	case models.KindAddMember:
		return "add member"
	case models.KindLeave:
		return "leave"
	case models.KindJoin:
		return "join"
	case models.KindTransferOwnership:
		return "ownership transfer"
	case models.KindSettlement:
		return "settlement"
	case models.KindRecordDelete:
		return "record deletion"
	case models.KindRecordUpdate:
		return "record update"
	case models.KindUserDelete:
		return "account deletion"
	case models.KindUserUpdate:
		return "account update"
	default:
		return string(kind)
	}
}
