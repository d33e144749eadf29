package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/workflow"
)

var (
	insider  = models.Member{Mobile: "03001111111", Name: "Ali"}
	partner  = models.Member{Mobile: "03002222222", Name: "Bina"}
	outsider = models.Member{Mobile: "03009999999", Name: "Zara"}
)

func newTestRecords(t *testing.T) (RecordService, gateway.Gateway) {
	t.Helper()
	gw := gateway.NewMemory()
	engine := workflow.New(gw, nil)

	g := models.Group{
		ID:          "100",
		Name:        "Flat",
		OwnerMobile: insider.Mobile,
		Members:     []models.Member{insider, partner},
	}
	if err := gw.Write(context.Background(), models.GroupPath(g.ID), g); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return NewRecordService(gw, engine), gw
}

func paymentInput() models.Record {
	return models.Record{
		Amount:       40,
		Description:  "groceries",
		PayerMode:    models.PayerSingle,
		Payer:        insider.Mobile,
		SplitMode:    models.SplitEqual,
		Participants: []string{insider.Mobile, partner.Mobile},
	}
}

// Group-scoped records are visible and writable only to the group's current
// members.
func TestRecordAccessRequiresMembership(t *testing.T) {
	svc, _ := newTestRecords(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.RootPayments, "100", "2026-08", paymentInput(), insider)
	if err != nil {
		t.Fatalf("member create: %v", err)
	}

	input := paymentInput()
	input.Payer = outsider.Mobile
	if _, err := svc.Create(ctx, models.RootPayments, "100", "2026-08", input, outsider); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("outsider create: expected ErrNotAuthorized, got %v", err)
	}

	if _, err := svc.List(ctx, models.RootPayments, "100", "2026-08", outsider.Mobile); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("outsider list: expected ErrNotAuthorized, got %v", err)
	}
	records, err := svc.List(ctx, models.RootPayments, "100", "2026-08", partner.Mobile)
	if err != nil {
		t.Fatalf("member list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}

	loc := workflow.RecordLoc{Root: models.RootPayments, Scope: "100", Month: "2026-08", ID: created.ID}
	if _, err := svc.Get(ctx, loc, outsider.Mobile); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("outsider get: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.Get(ctx, loc, insider.Mobile); err != nil {
		t.Errorf("member get: %v", err)
	}

	if _, err := svc.Months(ctx, models.RootPayments, "100", outsider.Mobile); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("outsider months: expected ErrNotAuthorized, got %v", err)
	}
}

func TestPersonalLoansAnswerOnlyToOwner(t *testing.T) {
	svc, _ := newTestRecords(t)
	ctx := context.Background()

	input := models.Record{
		Amount:       15,
		Description:  "lunch loan",
		Payer:        insider.Mobile,
		Participants: []string{insider.Mobile},
	}
	if _, err := svc.Create(ctx, models.RootPersonalLoans, insider.Mobile, "2026-08", input, insider); err != nil {
		t.Fatalf("owner create: %v", err)
	}

	if _, err := svc.List(ctx, models.RootPersonalLoans, insider.Mobile, "2026-08", partner.Mobile); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.List(ctx, models.RootPersonalLoans, insider.Mobile, "2026-08", insider.Mobile); err != nil {
		t.Errorf("owner list: %v", err)
	}
}

func TestGlobalRecordsOpenToSignedInUsers(t *testing.T) {
	svc, _ := newTestRecords(t)
	ctx := context.Background()

	input := models.Record{
		Amount:       25,
		Description:  "loan",
		Payer:        insider.Mobile,
		Participants: []string{insider.Mobile, outsider.Mobile},
	}
	if _, err := svc.Create(ctx, models.RootLoans, models.GlobalScope, "2026-08", input, insider); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.List(ctx, models.RootLoans, models.GlobalScope, "2026-08", outsider.Mobile); err != nil {
		t.Errorf("global list should be open, got %v", err)
	}
}
