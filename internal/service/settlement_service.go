package service

import (
	"context"

	"github.com/hisaab-app/hisaab-backend/internal/calculator"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/workflow"
)

// ============================================
// Settlement Service
// ============================================

// Settlement is the computed view for one group and month: who stands where
// and which transfers would zero everyone out.
type Settlement struct {
	GroupID   string                `json:"groupId"`
	Month     string                `json:"month"`
	Balances  []calculator.Balance  `json:"balances"`
	Transfers []calculator.Transfer `json:"transfers"`
}

type SettlementService interface {
	Compute(ctx context.Context, groupID, month, viewer string) (*Settlement, error)
	Request(ctx context.Context, groupID, month string, requester models.Member) error
	Approve(ctx context.Context, groupID string, approver models.Member) error
	Reject(ctx context.Context, groupID string, rejecter models.Member) error
}

type settlementService struct {
	gw      gateway.Gateway
	engine  *workflow.Engine
	records RecordService
}

func NewSettlementService(gw gateway.Gateway, engine *workflow.Engine, records RecordService) SettlementService {
	return &settlementService{gw: gw, engine: engine, records: records}
}

// Compute derives balances and the settling transfer plan from the month's
// payment records. Only the group's members may look.
func (s *settlementService) Compute(ctx context.Context, groupID, month, viewer string) (*Settlement, error) {
	records, err := s.records.List(ctx, models.RootPayments, groupID, month, viewer)
	if err != nil {
		return nil, err
	}

	balances := calculator.ComputeBalances(records)
	return &Settlement{
		GroupID:   groupID,
		Month:     month,
		Balances:  balances,
		Transfers: calculator.SettlingTransfers(balances),
	}, nil
}

// Request opens the settlement approval workflow. Finalizing moves the
// month's records into the backup tree.
func (s *settlementService) Request(ctx context.Context, groupID, month string, requester models.Member) error {
	return s.engine.ProposeGroup(ctx, groupID, models.Request{
		Kind:            models.KindSettlement,
		RequestedBy:     requester.Mobile,
		RequestedByName: requester.Name,
		Month:           month,
	})
}

func (s *settlementService) Approve(ctx context.Context, groupID string, approver models.Member) error {
	return s.engine.ApproveGroup(ctx, groupID, models.KindSettlement, "", approver)
}

func (s *settlementService) Reject(ctx context.Context, groupID string, rejecter models.Member) error {
	return s.engine.RejectGroup(ctx, groupID, models.KindSettlement, "", rejecter)
}
