package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

type fanout struct {
	EntityPath string
	Recipients []string
	Type       string
}

type stubNotifier struct {
	sent []fanout
}

func (s *stubNotifier) Notify(ctx context.Context, entityPath string, recipients []string, typ, message, byName string) {
	s.sent = append(s.sent, fanout{EntityPath: entityPath, Recipients: recipients, Type: typ})
}

var (
	ali   = models.Member{Mobile: "03001111111", Name: "Ali"}
	bina  = models.Member{Mobile: "03002222222", Name: "Bina"}
	chand = models.Member{Mobile: "03003333333", Name: "Chand"}
	dara  = models.Member{Mobile: "03004444444", Name: "Dara"}
)

func seedGroup(t *testing.T, gw *gateway.Memory, members ...models.Member) models.Group {
	t.Helper()
	g := models.Group{
		ID:          "100",
		Name:        "Trip",
		OwnerMobile: members[0].Mobile,
		Members:     members,
	}
	if err := gw.Write(context.Background(), models.GroupPath(g.ID), g); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return g
}

func readGroup(t *testing.T, gw *gateway.Memory) (*models.Group, json.RawMessage) {
	t.Helper()
	data, err := gw.Read(context.Background(), models.GroupPath("100"))
	if err != nil {
		t.Fatalf("read group: %v", err)
	}
	if data == nil {
		return nil, nil
	}
	var g models.Group
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("decode group: %v", err)
	}
	g.ID = "100"
	return &g, data
}

func deleteRequest(by models.Member) models.Request {
	return models.Request{
		Kind:            models.KindGroupDelete,
		RequestedBy:     by.Mobile,
		RequestedByName: by.Name,
	}
}

func TestGroupDeleteNeedsEveryMember(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, &stubNotifier{})
	ctx := context.Background()
	seedGroup(t, gw, ali, bina, chand)

	if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if g, _ := readGroup(t, gw); g == nil {
		t.Fatal("group deleted before quorum")
	}

	for _, approver := range []models.Member{ali, bina} {
		if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", approver); err != nil {
			t.Fatalf("approve %s: %v", approver.Name, err)
		}
		if g, _ := readGroup(t, gw); g == nil {
			t.Fatalf("group deleted after only %s approved", approver.Name)
		}
	}

	if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", chand); err != nil {
		t.Fatalf("final approve: %v", err)
	}
	if g, _ := readGroup(t, gw); g != nil {
		t.Fatal("group should be deleted once every member approved")
	}
}

func TestApprovalOrderDoesNotMatter(t *testing.T) {
	orders := [][]models.Member{
		{ali, bina, chand},
		{chand, ali, bina},
		{bina, chand, ali},
	}
	for _, order := range orders {
		gw := gateway.NewMemory()
		e := New(gw, nil)
		ctx := context.Background()
		seedGroup(t, gw, ali, bina, chand)

		if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
			t.Fatalf("propose: %v", err)
		}
		for _, approver := range order {
			if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", approver); err != nil {
				t.Fatalf("approve %s: %v", approver.Name, err)
			}
		}
		if g, _ := readGroup(t, gw); g != nil {
			t.Errorf("order %v: group not deleted", order)
		}
	}
}

func TestApprovalIsIdempotent(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", ali); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", ali)
	if !errors.Is(err, apperr.ErrAlreadyApproved) {
		t.Fatalf("expected ErrAlreadyApproved, got %v", err)
	}

	g, _ := readGroup(t, gw)
	if n := len(g.DeleteRequest.Approvals); n != 1 {
		t.Errorf("expected 1 approval, got %d", n)
	}
}

func TestDuplicateProposeRejected(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
		t.Fatalf("propose: %v", err)
	}
	err := e.ProposeGroup(ctx, "100", deleteRequest(bina))
	if !errors.Is(err, apperr.ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
}

func TestQuorumFollowsCurrentMembership(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", ali); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// A member joins while the deletion is pending; the quorum grows.
	g, _ := readGroup(t, gw)
	members := append(g.Members, chand)
	if err := gw.Write(ctx, models.GroupPath("100")+"/members", members); err != nil {
		t.Fatalf("grow membership: %v", err)
	}

	if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", bina); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if g, _ := readGroup(t, gw); g == nil {
		t.Fatal("deleted before the new member approved")
	}

	if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", chand); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if g, _ := readGroup(t, gw); g != nil {
		t.Fatal("not deleted after the full current membership approved")
	}
}

func TestNonMemberCannotApprove(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
		t.Fatalf("propose: %v", err)
	}
	err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", dara)
	if !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

// Two approvals racing from the same loaded state must never leave the
// persisted request null or truncated. One approval may lose the race, but
// the stored document always decodes with a well-formed approvals array.
func TestConcurrentApprovalsKeepRequestWellFormed(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina, chand, dara)

	if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
		t.Fatalf("propose: %v", err)
	}

	var wg sync.WaitGroup
	for _, approver := range []models.Member{bina, chand} {
		wg.Add(1)
		go func(m models.Member) {
			defer wg.Done()
			if err := e.ApproveGroup(ctx, "100", models.KindGroupDelete, "", m); err != nil {
				t.Errorf("approve %s: %v", m.Name, err)
			}
		}(approver)
	}
	wg.Wait()

	g, raw := readGroup(t, gw)
	if g == nil {
		t.Fatal("group deleted before quorum")
	}
	if g.DeleteRequest == nil {
		t.Fatal("pending request lost")
	}
	if g.DeleteRequest.Approvals == nil {
		t.Fatal("approvals array must never be null")
	}
	for _, a := range g.DeleteRequest.Approvals {
		if a.Mobile == "" || a.ApprovedAt == "" {
			t.Errorf("malformed approval persisted: %+v", a)
		}
	}
	// The raw document must stay decodable as-is.
	var check map[string]json.RawMessage
	if err := json.Unmarshal(raw, &check); err != nil {
		t.Fatalf("persisted group no longer decodes: %v", err)
	}
}

func TestAddMemberCarriesRequesterConsent(t *testing.T) {
	gw := gateway.NewMemory()
	notifier := &stubNotifier{}
	e := New(gw, notifier)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	req := models.Request{
		Kind:            models.KindAddMember,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
		NewMember:       &chand,
	}
	if err := e.ProposeGroup(ctx, "100", req); err != nil {
		t.Fatalf("propose: %v", err)
	}

	g, _ := readGroup(t, gw)
	if g.AddMemberRequest == nil {
		t.Fatal("request not pending")
	}
	if !g.AddMemberRequest.HasApproval(ali.Mobile) {
		t.Error("requester consent should be recorded at propose")
	}
	if len(g.Members) != 2 {
		t.Fatal("member added before the other member approved")
	}

	if err := e.ApproveGroup(ctx, "100", models.KindAddMember, "", bina); err != nil {
		t.Fatalf("approve: %v", err)
	}

	g, _ = readGroup(t, gw)
	if !g.HasMember(chand.Mobile) {
		t.Fatal("member not added after quorum")
	}
	if g.AddMemberRequest != nil {
		t.Error("request field should be absent after finalize")
	}
	if len(notifier.sent) == 0 {
		t.Error("expected completion notifications")
	}
}

func TestAddMemberImmediateInSoloGroup(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali)

	req := models.Request{
		Kind:            models.KindAddMember,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
		NewMember:       &bina,
	}
	if err := e.ProposeGroup(ctx, "100", req); err != nil {
		t.Fatalf("propose: %v", err)
	}

	g, _ := readGroup(t, gw)
	if !g.HasMember(bina.Mobile) {
		t.Fatal("solo-group add should finalize at propose")
	}
	if g.AddMemberRequest != nil {
		t.Error("request field should be absent")
	}
}

func TestRejectionClearsWithoutMutating(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	req := models.Request{
		Kind:            models.KindGroupEdit,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
		Name:            "Renamed",
		NewMembers:      []models.Member{ali},
		RemovedMembers:  []models.Member{bina},
	}
	if err := e.ProposeGroup(ctx, "100", req); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := e.RejectGroup(ctx, "100", models.KindGroupEdit, "", bina); err != nil {
		t.Fatalf("reject: %v", err)
	}

	g, _ := readGroup(t, gw)
	if g.EditRequest != nil {
		t.Error("request field should be absent after rejection")
	}
	if g.Name != "Trip" || len(g.Members) != 2 {
		t.Error("rejection must not mutate the group")
	}
}

func TestLeaveExcludesLeaverAndKeepsOwnerVacancy(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina, chand) // ali owns

	req := models.Request{
		Kind:            models.KindLeave,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
	}
	if err := e.ProposeGroup(ctx, "100", req); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// The leaver is not part of the quorum.
	err := e.ApproveGroup(ctx, "100", models.KindLeave, ali.Mobile, ali)
	if !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Fatalf("leaver approval should be refused, got %v", err)
	}

	for _, approver := range []models.Member{bina, chand} {
		if err := e.ApproveGroup(ctx, "100", models.KindLeave, ali.Mobile, approver); err != nil {
			t.Fatalf("approve %s: %v", approver.Name, err)
		}
	}

	g, _ := readGroup(t, gw)
	if g.HasMember(ali.Mobile) {
		t.Fatal("leaver still a member")
	}
	if len(g.LeaveRequests) != 0 {
		t.Error("leave request should be cleared")
	}
	// Ownership is not reassigned; the vacancy persists.
	if g.OwnerMobile != ali.Mobile {
		t.Errorf("ownership should stay vacant, got %s", g.OwnerMobile)
	}
}

func TestJoinFillsOwnershipVacancy(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()

	g := models.Group{
		ID:          "100",
		Name:        "Trip",
		OwnerMobile: ali.Mobile, // departed owner
		Members:     []models.Member{bina},
	}
	if err := gw.Write(ctx, models.GroupPath("100"), g); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := models.Request{
		Kind:            models.KindJoin,
		RequestedBy:     chand.Mobile,
		RequestedByName: chand.Name,
	}
	if err := e.ProposeGroup(ctx, "100", req); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := e.ApproveGroup(ctx, "100", models.KindJoin, chand.Mobile, bina); err != nil {
		t.Fatalf("approve: %v", err)
	}

	got, _ := readGroup(t, gw)
	if !got.HasMember(chand.Mobile) {
		t.Fatal("joiner not added")
	}
	if got.OwnerMobile != chand.Mobile {
		t.Errorf("joiner should fill the ownership vacancy, owner=%s", got.OwnerMobile)
	}
}

func TestProposeDoesNotClobberSiblingFields(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	// Another actor renames the group; the rename must survive the
	// narrow request write below.
	if err := gw.Write(ctx, models.GroupPath("100")+"/name", "Renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if err := e.ProposeGroup(ctx, "100", deleteRequest(ali)); err != nil {
		t.Fatalf("propose: %v", err)
	}

	g, _ := readGroup(t, gw)
	if g.Name != "Renamed" {
		t.Error("narrow request write clobbered a sibling field")
	}
	if g.DeleteRequest == nil {
		t.Error("request missing")
	}
}

func TestSettlementArchivesMonth(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)

	for _, id := range []string{"r1", "r2"} {
		path := models.RecordPath(models.RootPayments, "100", "2026-08", id)
		if err := gw.Write(ctx, path, models.Record{Amount: 10, Description: id}); err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	req := models.Request{
		Kind:            models.KindSettlement,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
		Month:           "2026-08",
	}
	if err := e.ProposeGroup(ctx, "100", req); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// The proposer's consent is implicit; only bina is outstanding.
	g, _ := readGroup(t, gw)
	if g.SettlementRequest == nil || !g.SettlementRequest.HasApproval(ali.Mobile) {
		t.Fatal("proposer consent should be recorded at propose")
	}
	if err := e.ApproveGroup(ctx, "100", models.KindSettlement, "", bina); err != nil {
		t.Fatalf("approve: %v", err)
	}

	live, err := gw.Read(ctx, models.MonthPath(models.RootPayments, "100", "2026-08"))
	if err != nil {
		t.Fatalf("read live: %v", err)
	}
	if live != nil {
		t.Error("live records should be cleared after settlement")
	}

	backup, err := gw.Read(ctx, models.MonthPath(models.RootPaymentsBackup, "100", "2026-08"))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var archived map[string]models.Record
	if err := json.Unmarshal(backup, &archived); err != nil {
		t.Fatalf("decode backup: %v", err)
	}
	if len(archived) != 2 {
		t.Errorf("expected 2 archived records, got %d", len(archived))
	}

	g, _ = readGroup(t, gw)
	if g.SettlementRequest != nil {
		t.Error("settlement request should be cleared")
	}
}

func TestSettlementImmediateInSoloGroup(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali)

	path := models.RecordPath(models.RootPayments, "100", "2026-08", "r1")
	if err := gw.Write(ctx, path, models.Record{Amount: 10, Description: "r1"}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	req := models.Request{
		Kind:            models.KindSettlement,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
		Month:           "2026-08",
	}
	if err := e.ProposeGroup(ctx, "100", req); err != nil {
		t.Fatalf("propose: %v", err)
	}

	live, _ := gw.Read(ctx, models.MonthPath(models.RootPayments, "100", "2026-08"))
	if live != nil {
		t.Error("solo-group settlement should finalize at propose")
	}
	g, _ := readGroup(t, gw)
	if g.SettlementRequest != nil {
		t.Error("settlement request should be cleared")
	}
}

func seedRecord(t *testing.T, gw *gateway.Memory, loc RecordLoc, participants ...models.Member) {
	t.Helper()
	rec := models.Record{
		Amount:      30,
		Description: "dinner",
		Date:        "2026-08-10",
		WhoAdded:    participants[0].Mobile,
		WhenAdded:   "2026-08-10T12:00:00Z",
		Payer:       participants[0].Mobile,
	}
	for _, p := range participants {
		rec.Participants = append(rec.Participants, p.Mobile)
		rec.Split = append(rec.Split, models.SplitShare{
			Mobile: p.Mobile, Name: p.Name, Amount: 30 / float64(len(participants)),
		})
	}
	if err := gw.Write(context.Background(), loc.Path(), rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

// Deleting a group-scoped record needs every current group member's consent,
// not just the record's participants.
func TestRecordDeleteNeedsAllGroupMembers(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina, chand)
	loc := RecordLoc{Root: models.RootPayments, Scope: "100", Month: "2026-08", ID: "r1"}
	seedRecord(t, gw, loc, ali, bina)

	req := models.Request{
		Kind:            models.KindRecordDelete,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
	}
	if err := e.ProposeRecord(ctx, loc, req); err != nil {
		t.Fatalf("propose: %v", err)
	}

	if data, _ := gw.Read(ctx, loc.Path()); data == nil {
		t.Fatal("record deleted before quorum")
	}

	// Both participants have consented, but chand is a group member too.
	if err := e.ApproveRecord(ctx, loc, models.KindRecordDelete, bina); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if data, _ := gw.Read(ctx, loc.Path()); data == nil {
		t.Fatal("record deleted before every group member approved")
	}

	if err := e.ApproveRecord(ctx, loc, models.KindRecordDelete, chand); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if data, _ := gw.Read(ctx, loc.Path()); data != nil {
		t.Fatal("record should be deleted after all group members approved")
	}
}

// Globally scoped records have no group; the participant set is the quorum.
func TestGlobalRecordDeleteNeedsParticipants(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	loc := RecordLoc{Root: models.RootLoans, Scope: models.GlobalScope, Month: "2026-08", ID: "r1"}
	seedRecord(t, gw, loc, ali, bina)

	req := models.Request{
		Kind:            models.KindRecordDelete,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
	}
	if err := e.ProposeRecord(ctx, loc, req); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := e.ApproveRecord(ctx, loc, models.KindRecordDelete, bina); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if data, _ := gw.Read(ctx, loc.Path()); data != nil {
		t.Fatal("record should be deleted after all participants approved")
	}
}

func TestRecordUpdateMergesChanges(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()
	seedGroup(t, gw, ali, bina)
	loc := RecordLoc{Root: models.RootPayments, Scope: "100", Month: "2026-08", ID: "r1"}
	seedRecord(t, gw, loc, ali, bina)

	// Changes touch amount, description and the split only.
	changes := models.Record{
		Amount:       50,
		Description:  "dinner and dessert",
		Payer:        ali.Mobile,
		Participants: []string{ali.Mobile, bina.Mobile},
		Split: []models.SplitShare{
			{Mobile: ali.Mobile, Amount: 25},
			{Mobile: bina.Mobile, Amount: 25},
		},
	}
	req := models.Request{
		Kind:            models.KindRecordUpdate,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
		Changes:         &changes,
	}
	if err := e.ProposeRecord(ctx, loc, req); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := e.ApproveRecord(ctx, loc, models.KindRecordUpdate, bina); err != nil {
		t.Fatalf("approve: %v", err)
	}

	data, _ := gw.Read(ctx, loc.Path())
	var got models.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Amount != 50 || got.Description != "dinner and dessert" {
		t.Errorf("changes not applied: %+v", got)
	}
	// Fields absent from the changes keep their stored values.
	if got.Date != "2026-08-10" || got.WhoAdded != ali.Mobile || got.WhenAdded != "2026-08-10T12:00:00Z" {
		t.Errorf("untouched fields dropped by the update: %+v", got)
	}
	if got.UpdateRequest != nil || got.DeleteRequest != nil {
		t.Error("request fields should be absent after finalize")
	}
}

func TestUserUpdateImmediateWithoutApprovers(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()

	if err := gw.Write(ctx, models.UserPath(ali.Mobile), models.User{Name: "Ali"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := models.Request{
		Kind:            models.KindUserUpdate,
		RequestedBy:     ali.Mobile,
		RequestedByName: ali.Name,
		NewName:         "Ali Khan",
	}
	if err := e.ProposeUser(ctx, ali.Mobile, req); err != nil {
		t.Fatalf("propose: %v", err)
	}

	data, _ := gw.Read(ctx, models.UserPath(ali.Mobile))
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Name != "Ali Khan" {
		t.Errorf("name not updated: %q", u.Name)
	}
	if u.UpdateRequest != nil {
		t.Error("no request should be pending")
	}
}

func TestUserDeleteWaitsForPinnedApprovers(t *testing.T) {
	gw := gateway.NewMemory()
	e := New(gw, nil)
	ctx := context.Background()

	if err := gw.Write(ctx, models.UserPath(ali.Mobile), models.User{Name: "Ali"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := models.Request{
		Kind:              models.KindUserDelete,
		RequestedBy:       ali.Mobile,
		RequestedByName:   ali.Name,
		RequiredApprovals: []string{bina.Mobile, chand.Mobile},
	}
	if err := e.ProposeUser(ctx, ali.Mobile, req); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if data, _ := gw.Read(ctx, models.UserPath(ali.Mobile)); data == nil {
		t.Fatal("user deleted before approvals")
	}

	if err := e.ApproveUser(ctx, ali.Mobile, models.KindUserDelete, bina); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := e.ApproveUser(ctx, ali.Mobile, models.KindUserDelete, chand); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if data, _ := gw.Read(ctx, models.UserPath(ali.Mobile)); data != nil {
		t.Fatal("user should be deleted after all pinned approvers consent")
	}
}
