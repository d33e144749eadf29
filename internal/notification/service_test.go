package notification

import (
	"context"
	"testing"

	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

type recordedPush struct {
	recipient string
	n         models.Notification
}

type stubPusher struct {
	pushes []recordedPush
}

func (p *stubPusher) PushNotification(recipient string, n models.Notification) {
	p.pushes = append(p.pushes, recordedPush{recipient, n})
}

func TestNotifyAndDismiss(t *testing.T) {
	gw := gateway.NewMemory()
	pusher := &stubPusher{}
	svc := NewService(gw, pusher)
	ctx := context.Background()

	entity := "groups/100"
	if err := gw.Write(ctx, entity, map[string]any{"name": "Trip"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Absent key reads as empty.
	inbox, err := svc.List(ctx, entity, "03001111111")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inbox) != 0 {
		t.Fatalf("expected empty inbox, got %+v", inbox)
	}

	svc.Notify(ctx, entity, []string{"03001111111", "03002222222"},
		models.NoticeApproved, "Bina joined Trip", "Ali")

	inbox, err = svc.List(ctx, entity, "03001111111")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inbox) != 1 || inbox[0].Message != "Bina joined Trip" {
		t.Fatalf("unexpected inbox: %+v", inbox)
	}
	if inbox[0].ID == "" || inbox[0].Timestamp == 0 {
		t.Error("notification missing id or timestamp")
	}
	if len(pusher.pushes) != 2 {
		t.Errorf("expected 2 realtime pushes, got %d", len(pusher.pushes))
	}

	// Dismissing the only entry removes the key entirely.
	if err := svc.Dismiss(ctx, entity, "03001111111", inbox[0].ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	data, err := gw.Read(ctx, entity+"/notifications/03001111111")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if data != nil {
		t.Error("expected inbox key removed when emptied")
	}

	// The other recipient's inbox is untouched.
	other, _ := svc.List(ctx, entity, "03002222222")
	if len(other) != 1 {
		t.Errorf("other inbox affected: %+v", other)
	}
}

func TestDismissUnknownIDIsNoop(t *testing.T) {
	gw := gateway.NewMemory()
	svc := NewService(gw, nil)
	ctx := context.Background()

	entity := "groups/100"
	svc.Notify(ctx, entity, []string{"03001111111"}, models.NoticeReminder, "pending request", "")

	if err := svc.Dismiss(ctx, entity, "03001111111", "no-such-id"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	inbox, _ := svc.List(ctx, entity, "03001111111")
	if len(inbox) != 1 {
		t.Errorf("inbox changed by unknown dismiss: %+v", inbox)
	}
}

func TestDismissKeepsRemaining(t *testing.T) {
	gw := gateway.NewMemory()
	svc := NewService(gw, nil)
	ctx := context.Background()

	entity := "users/03001111111"
	svc.Notify(ctx, entity, []string{"03001111111"}, models.NoticeApproved, "first", "")
	svc.Notify(ctx, entity, []string{"03001111111"}, models.NoticeRejected, "second", "")

	inbox, _ := svc.List(ctx, entity, "03001111111")
	if len(inbox) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(inbox))
	}

	if err := svc.Dismiss(ctx, entity, "03001111111", inbox[0].ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	inbox, _ = svc.List(ctx, entity, "03001111111")
	if len(inbox) != 1 || inbox[0].Message != "second" {
		t.Errorf("unexpected inbox after dismiss: %+v", inbox)
	}
}
