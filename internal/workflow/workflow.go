// Package workflow implements the multi-party approval engine. A request is
// proposed on an entity (group, record or user), collects named approvals,
// and finalizes exactly once when every member of the required approver set
// has consented. The required set is re-derived from current state at every
// check, so membership changes between propose and approve move the quorum.
//
// Request state is written at narrow paths (<entity>/<field>), never by
// whole-entity writeback, so concurrent edits to sibling fields survive.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

// Notifier posts a notification into an entity's per-recipient inboxes.
// Implementations must tolerate a missing entity (fan-out is best effort and
// never fails a finalized workflow).
type Notifier interface {
	Notify(ctx context.Context, entityPath string, recipients []string, typ, message, byName string)
}

// RecordLoc addresses one record: collection root, scope (group id, "global"
// or a mobile for personal loans), calendar month and record id.
type RecordLoc struct {
	Root  string
	Scope string
	Month string
	ID    string
}

// Path returns the record's document path.
func (l RecordLoc) Path() string {
	return models.RecordPath(l.Root, l.Scope, l.Month, l.ID)
}

// Engine runs approval workflows over the document gateway.
type Engine struct {
	gw       gateway.Gateway
	notifier Notifier
}

// New builds an engine. notifier may be nil (no fan-out, used by some tests).
func New(gw gateway.Gateway, notifier Notifier) *Engine {
	return &Engine{gw: gw, notifier: notifier}
}

func (e *Engine) notify(ctx context.Context, entityPath string, recipients []string, typ, message, byName string) {
	if e.notifier == nil || len(recipients) == 0 {
		return
	}
	e.notifier.Notify(ctx, entityPath, recipients, typ, message, byName)
}

// quorumMet reports whether every required approver has approved.
func quorumMet(req *models.Request, required []models.Member) bool {
	for _, m := range required {
		if !req.HasApproval(m.Mobile) {
			return false
		}
	}
	return true
}

// addApproval appends a stamped approval, or returns ErrAlreadyApproved.
func addApproval(req *models.Request, approver models.Member) error {
	if req.HasApproval(approver.Mobile) {
		return apperr.ErrAlreadyApproved
	}
	req.Approvals = append(req.Approvals, models.Approval{
		Mobile:     approver.Mobile,
		Name:       approver.Name,
		ApprovedAt: models.NowISO(),
	})
	return nil
}

// mobiles projects members to their mobile numbers, skipping exclude.
func mobiles(members []models.Member, exclude string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m.Mobile == exclude {
			continue
		}
		out = append(out, m.Mobile)
	}
	return out
}

func (e *Engine) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	data, err := e.gw.Read(ctx, models.GroupPath(groupID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apperr.NotFound("group " + groupID)
	}
	var g models.Group
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", groupID, err)
	}
	g.ID = groupID
	return &g, nil
}

func (e *Engine) loadRecord(ctx context.Context, loc RecordLoc) (*models.Record, error) {
	data, err := e.gw.Read(ctx, loc.Path())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apperr.NotFound("record " + loc.ID)
	}
	var r models.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", loc.ID, err)
	}
	r.ID = loc.ID
	return &r, nil
}

func (e *Engine) loadUser(ctx context.Context, mobile string) (*models.User, error) {
	data, err := e.gw.Read(ctx, models.UserPath(mobile))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apperr.NotFound("user " + mobile)
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", mobile, err)
	}
	u.Mobile = mobile
	return &u, nil
}
