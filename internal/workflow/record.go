package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

// recordApprovers derives the approver set for a record request. Records in a
// group's scope answer to the group's current membership, not just the
// record's participants; records outside any group (global scope, personal
// loans) fall back to the participant set.
func (e *Engine) recordApprovers(ctx context.Context, loc RecordLoc, rec *models.Record) ([]models.Member, error) {
	if loc.Scope == models.GlobalScope || loc.Root == models.RootPersonalLoans {
		return recordParticipants(rec), nil
	}
	g, err := e.loadGroup(ctx, loc.Scope)
	if err != nil {
		return nil, err
	}
	return append([]models.Member(nil), g.Members...), nil
}

// ProposeRecord opens a delete or update request on a record. The requester's
// consent is implicit, so a record with a single required approver finalizes
// immediately.
func (e *Engine) ProposeRecord(ctx context.Context, loc RecordLoc, req models.Request) error {
	field, err := recordRequestSlot(req.Kind)
	if err != nil {
		return err
	}

	rec, err := e.loadRecord(ctx, loc)
	if err != nil {
		return err
	}

	required, err := e.recordApprovers(ctx, loc, rec)
	if err != nil {
		return err
	}
	if !memberIn(required, req.RequestedBy) {
		return apperr.NotAuthorized("not an approver for this record")
	}
	if req.Kind == models.KindRecordDelete && rec.DeleteRequest != nil {
		return apperr.ErrAlreadyPending
	}
	if req.Kind == models.KindRecordUpdate && rec.UpdateRequest != nil {
		return apperr.ErrAlreadyPending
	}
	if req.Kind == models.KindRecordUpdate && req.Changes == nil {
		return apperr.Validation("changes", "is required")
	}

	if req.RequestedAt == "" {
		req.RequestedAt = models.NowISO()
	}
	if req.Approvals == nil {
		req.Approvals = []models.Approval{}
	}
	_ = addApproval(&req, models.Member{Mobile: req.RequestedBy, Name: req.RequestedByName})

	if err := e.gw.Write(ctx, loc.Path()+"/"+field, req); err != nil {
		return err
	}

	if quorumMet(&req, required) {
		actor := models.Member{Mobile: req.RequestedBy, Name: req.RequestedByName}
		return e.finalizeRecord(ctx, loc, rec, &req, actor)
	}
	return nil
}

// ApproveRecord records one approval and finalizes when every required
// approver has consented.
func (e *Engine) ApproveRecord(ctx context.Context, loc RecordLoc, kind models.RequestKind, approver models.Member) error {
	field, err := recordRequestSlot(kind)
	if err != nil {
		return err
	}

	rec, err := e.loadRecord(ctx, loc)
	if err != nil {
		return err
	}
	req := recordRequest(rec, kind)
	if req == nil {
		return apperr.NotFound("pending " + kindLabel(kind) + " request")
	}
	req.Kind = kind

	required, err := e.recordApprovers(ctx, loc, rec)
	if err != nil {
		return err
	}
	if !memberIn(required, approver.Mobile) {
		return apperr.NotAuthorized("not an approver for this request")
	}
	if err := addApproval(req, approver); err != nil {
		return err
	}
	if err := e.gw.Write(ctx, loc.Path()+"/"+field, req); err != nil {
		return err
	}

	if quorumMet(req, required) {
		return e.finalizeRecord(ctx, loc, rec, req, approver)
	}
	return nil
}

// RejectRecord clears a pending record request. The requester learns about
// the rejection; a requester cancelling their own request stays silent.
func (e *Engine) RejectRecord(ctx context.Context, loc RecordLoc, kind models.RequestKind, rejecter models.Member) error {
	field, err := recordRequestSlot(kind)
	if err != nil {
		return err
	}

	rec, err := e.loadRecord(ctx, loc)
	if err != nil {
		return err
	}
	req := recordRequest(rec, kind)
	if req == nil {
		return apperr.NotFound("pending " + kindLabel(kind) + " request")
	}

	cancelled := rejecter.Mobile == req.RequestedBy
	if !cancelled {
		required, err := e.recordApprovers(ctx, loc, rec)
		if err != nil {
			return err
		}
		if !memberIn(required, rejecter.Mobile) {
			return apperr.NotAuthorized("not an approver for this request")
		}
	}

	if err := e.gw.Remove(ctx, loc.Path()+"/"+field); err != nil {
		return err
	}
	if !cancelled {
		e.notify(ctx, loc.Path(), []string{req.RequestedBy},
			models.NoticeRejected,
			fmt.Sprintf("%s rejected your %s request", rejecter.Name, kindLabel(kind)),
			rejecter.Name)
	}
	return nil
}

func (e *Engine) finalizeRecord(ctx context.Context, loc RecordLoc, rec *models.Record, req *models.Request, actor models.Member) error {
	switch req.Kind {
	case models.KindRecordDelete:
		if err := e.gw.Remove(ctx, loc.Path()); err != nil {
			return err
		}
		if actor.Mobile != req.RequestedBy {
			// The record is gone; completion lands on the requester's
			// user entity.
			e.notify(ctx, models.UserPath(req.RequestedBy), []string{req.RequestedBy},
				models.NoticeApproved,
				fmt.Sprintf("Your request to delete %q was approved", rec.Description),
				actor.Name)
		}
		return nil

	case models.KindRecordUpdate:
		// Merge the changed fields over the stored record: fields the
		// proposer never touched keep their values. Approving an update
		// settles both pending request slots with it.
		merged, err := mergeRecord(rec, req.Changes)
		if err != nil {
			return err
		}
		delete(merged, "deleteRequest")
		delete(merged, "updateRequest")
		if err := e.gw.Write(ctx, loc.Path(), merged); err != nil {
			return err
		}
		if actor.Mobile != req.RequestedBy {
			e.notify(ctx, loc.Path(), []string{req.RequestedBy},
				models.NoticeApproved,
				fmt.Sprintf("Your update to %q was approved", rec.Description),
				actor.Name)
		}
		return nil

	default:
		return apperr.Validation("kind", "not a record request kind")
	}
}

// mergeRecord overlays the changed fields on the stored record, field by
// field. Request slots and inboxes on the changes payload are ignored; only
// the engine writes those.
func mergeRecord(rec *models.Record, changes *models.Record) (map[string]json.RawMessage, error) {
	base := make(map[string]json.RawMessage)
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	overlay := make(map[string]json.RawMessage)
	data, err = json.Marshal(changes)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, err
	}
	delete(overlay, "id")
	delete(overlay, "deleteRequest")
	delete(overlay, "updateRequest")
	delete(overlay, "notifications")

	for k, v := range overlay {
		base[k] = v
	}
	return base, nil
}

func recordRequest(rec *models.Record, kind models.RequestKind) *models.Request {
	switch kind {
	case models.KindRecordDelete:
		return rec.DeleteRequest
	case models.KindRecordUpdate:
		return rec.UpdateRequest
	default:
		return nil
	}
}
