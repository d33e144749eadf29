package sync

import (
	"context"
	"testing"

	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/store"
)

func newSyncer(t *testing.T) (*Syncer, *gateway.Memory, *store.Store) {
	t.Helper()
	gw := gateway.NewMemory()
	st := store.New()
	s := New(gw, st)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Close)
	return s, gw, st
}

func TestSyncerMirrorsUsersAndGroups(t *testing.T) {
	_, gw, st := newSyncer(t)
	ctx := context.Background()

	if err := gw.Write(ctx, "users/03001234567", models.User{Name: "Ali"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := gw.Write(ctx, "groups/100", models.Group{Name: "Trip", OwnerMobile: "03001234567"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	u, ok := st.User("03001234567")
	if !ok || u.Name != "Ali" {
		t.Errorf("user not mirrored: %+v ok=%v", u, ok)
	}
	if u.Mobile != "03001234567" {
		t.Errorf("child key not injected as mobile: %q", u.Mobile)
	}

	g, ok := st.Group("100")
	if !ok || g.Name != "Trip" {
		t.Errorf("group not mirrored: %+v ok=%v", g, ok)
	}
}

func TestSetScopeMirrorsRecords(t *testing.T) {
	s, gw, st := newSyncer(t)
	ctx := context.Background()

	if err := gw.Write(ctx, "payments/100/2026-08/rec1", models.Record{Amount: 50}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := s.SetScope(ctx, Scope{GroupID: "100", Month: "2026-08"}); err != nil {
		t.Fatalf("set scope: %v", err)
	}

	recs := st.Records(models.RootPayments)
	if len(recs) != 1 || recs[0].Amount != 50 || recs[0].ID != "rec1" {
		t.Fatalf("records not mirrored: %+v", recs)
	}

	// New records in scope keep flowing.
	if err := gw.Write(ctx, "payments/100/2026-08/rec2", models.Record{Amount: 75}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(st.Records(models.RootPayments)) != 2 {
		t.Error("expected live updates for the active scope")
	}
}

func TestSetScopeTearsDownOldScope(t *testing.T) {
	s, gw, st := newSyncer(t)
	ctx := context.Background()

	if err := s.SetScope(ctx, Scope{GroupID: "100", Month: "2026-08"}); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	if err := gw.Write(ctx, "payments/100/2026-08/rec1", models.Record{Amount: 50}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := s.SetScope(ctx, Scope{GroupID: "200", Month: "2026-08"}); err != nil {
		t.Fatalf("set scope: %v", err)
	}

	if len(st.Records(models.RootPayments)) != 0 {
		t.Error("expected old scope records cleared")
	}

	// Writes to the old scope must not leak into the new one.
	if err := gw.Write(ctx, "payments/100/2026-08/rec2", models.Record{Amount: 75}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(st.Records(models.RootPayments)) != 0 {
		t.Error("old scope delivery leaked after teardown")
	}
}

func TestGlobalScopeUsesGlobalKey(t *testing.T) {
	s, gw, st := newSyncer(t)
	ctx := context.Background()

	if err := gw.Write(ctx, "payments/global/2026-08/rec1", models.Record{Amount: 10}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.SetScope(ctx, Scope{Month: "2026-08"}); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	if len(st.Records(models.RootPayments)) != 1 {
		t.Error("global scope records not mirrored")
	}
}

func TestMonths(t *testing.T) {
	s, gw, _ := newSyncer(t)
	ctx := context.Background()

	for _, month := range []string{"2026-07", "2026-08"} {
		if err := gw.Write(ctx, "payments/100/"+month+"/r", models.Record{Amount: 1}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	months, err := s.Months(ctx, models.RootPayments, "100")
	if err != nil {
		t.Fatalf("months: %v", err)
	}
	if len(months) != 2 || months[0] != "2026-07" || months[1] != "2026-08" {
		t.Errorf("unexpected months: %v", months)
	}
}
