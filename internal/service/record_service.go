package service

import (
	"context"
	"math"
	"sort"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/calculator"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/workflow"
)

// ============================================
// Record Service
// ============================================

type RecordService interface {
	Create(ctx context.Context, root, scope, month string, input models.Record, actor models.Member) (*models.Record, error)
	List(ctx context.Context, root, scope, month, viewer string) ([]models.Record, error)
	Get(ctx context.Context, loc workflow.RecordLoc, viewer string) (*models.Record, error)
	Months(ctx context.Context, root, scope, viewer string) ([]string, error)
	RequestDelete(ctx context.Context, loc workflow.RecordLoc, requester models.Member) error
	RequestUpdate(ctx context.Context, loc workflow.RecordLoc, changes models.Record, requester models.Member) error
	ApproveRequest(ctx context.Context, loc workflow.RecordLoc, kind models.RequestKind, approver models.Member) error
	RejectRequest(ctx context.Context, loc workflow.RecordLoc, kind models.RequestKind, rejecter models.Member) error
}

type recordService struct {
	gw     gateway.Gateway
	engine *workflow.Engine
}

func NewRecordService(gw gateway.Gateway, engine *workflow.Engine) RecordService {
	return &recordService{gw: gw, engine: engine}
}

// Create validates the record, computes its split server-side and appends it
// under the month with a generated ordered key.
func (s *recordService) Create(ctx context.Context, root, scope, month string, input models.Record, actor models.Member) (*models.Record, error) {
	if !models.ValidMonth(month) {
		return nil, apperr.Validation("month", "must be YYYY-MM")
	}
	if err := requireRecordAccess(ctx, s.gw, root, scope, actor.Mobile); err != nil {
		return nil, err
	}
	if err := models.ValidateAmount("amount", input.Amount); err != nil {
		return nil, err
	}
	if err := s.checkPayers(&input); err != nil {
		return nil, err
	}

	split, err := calculator.ComputeSplit(&input)
	if err != nil {
		return nil, err
	}
	input.Split = split

	if scope != models.GlobalScope {
		s.fillNames(ctx, scope, &input)
	}

	input.WhoAdded = actor.Mobile
	input.WhenAdded = models.NowISO()
	if input.Date == "" {
		input.Date = models.NowISO()
	}
	// These fields never arrive from a client.
	input.DeleteRequest = nil
	input.UpdateRequest = nil
	input.Notifications = nil

	id, err := s.gw.Append(ctx, models.MonthPath(root, scope, month), input)
	if err != nil {
		return nil, err
	}
	input.ID = id
	return &input, nil
}

func (s *recordService) List(ctx context.Context, root, scope, month, viewer string) ([]models.Record, error) {
	if err := requireRecordAccess(ctx, s.gw, root, scope, viewer); err != nil {
		return nil, err
	}
	data, err := s.gw.Read(ctx, models.MonthPath(root, scope, month))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var raw map[string]models.Record
	if err := decode(data, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(raw))
	for id, r := range raw {
		r.ID = id
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *recordService) Get(ctx context.Context, loc workflow.RecordLoc, viewer string) (*models.Record, error) {
	if err := requireRecordAccess(ctx, s.gw, loc.Root, loc.Scope, viewer); err != nil {
		return nil, err
	}
	data, err := s.gw.Read(ctx, loc.Path())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apperr.NotFound("record " + loc.ID)
	}
	var r models.Record
	if err := decode(data, &r); err != nil {
		return nil, err
	}
	r.ID = loc.ID
	return &r, nil
}

func (s *recordService) Months(ctx context.Context, root, scope, viewer string) ([]string, error) {
	if err := requireRecordAccess(ctx, s.gw, root, scope, viewer); err != nil {
		return nil, err
	}
	return s.gw.ListChildKeys(ctx, models.ScopePath(root, scope))
}

func (s *recordService) RequestDelete(ctx context.Context, loc workflow.RecordLoc, requester models.Member) error {
	return s.engine.ProposeRecord(ctx, loc, models.Request{
		Kind:            models.KindRecordDelete,
		RequestedBy:     requester.Mobile,
		RequestedByName: requester.Name,
	})
}

// RequestUpdate validates the proposed changes the same way Create does, so
// an approved update can never apply a malformed record.
func (s *recordService) RequestUpdate(ctx context.Context, loc workflow.RecordLoc, changes models.Record, requester models.Member) error {
	if err := models.ValidateAmount("amount", changes.Amount); err != nil {
		return err
	}
	if err := s.checkPayers(&changes); err != nil {
		return err
	}
	split, err := calculator.ComputeSplit(&changes)
	if err != nil {
		return err
	}
	changes.Split = split
	if loc.Scope != models.GlobalScope {
		s.fillNames(ctx, loc.Scope, &changes)
	}

	return s.engine.ProposeRecord(ctx, loc, models.Request{
		Kind:            models.KindRecordUpdate,
		RequestedBy:     requester.Mobile,
		RequestedByName: requester.Name,
		Changes:         &changes,
	})
}

func (s *recordService) ApproveRequest(ctx context.Context, loc workflow.RecordLoc, kind models.RequestKind, approver models.Member) error {
	return s.engine.ApproveRecord(ctx, loc, kind, approver)
}

func (s *recordService) RejectRequest(ctx context.Context, loc workflow.RecordLoc, kind models.RequestKind, rejecter models.Member) error {
	return s.engine.RejectRecord(ctx, loc, kind, rejecter)
}

// checkPayers validates the payer side of a record. In multiple-payer mode
// the contributions must sum to the record amount to the cent.
func (s *recordService) checkPayers(r *models.Record) error {
	switch r.PayerMode {
	case models.PayerMultiple:
		if len(r.Payers) == 0 {
			return apperr.Validation("payers", "at least one payer is required")
		}
		sum := 0.0
		for _, p := range r.Payers {
			if p.Amount <= 0 {
				return apperr.Validation("payers", "each contribution must be positive")
			}
			sum += p.Amount
		}
		if math.Abs(sum-r.Amount) > 0.009 {
			return apperr.Validation("payers", "contributions must sum to the amount")
		}
	case models.PayerSingle, "":
		if r.Payer == "" {
			return apperr.Validation("payer", "is required")
		}
	default:
		return apperr.Validation("payerMode", "must be single or multiple")
	}
	return nil
}

// fillNames resolves display names on splits and payers from the group's
// member list. Best effort: an unknown mobile keeps its mobile as name.
func (s *recordService) fillNames(ctx context.Context, groupID string, r *models.Record) {
	g, err := readGroup(ctx, s.gw, groupID)
	if err != nil {
		return
	}
	for i := range r.Split {
		r.Split[i].Name = g.MemberName(r.Split[i].Mobile)
	}
	for i := range r.Payers {
		r.Payers[i].Name = g.MemberName(r.Payers[i].Mobile)
	}
}
