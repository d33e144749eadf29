// Package notification appends per-recipient notifications onto entities and
// pushes realtime copies to connected clients. An entity's inbox map lives at
// <entity>/notifications/<mobile>; an absent key is an empty inbox.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

// Pusher delivers a realtime copy to a connected recipient. Implemented by
// the websocket broadcaster; nil disables pushes.
type Pusher interface {
	PushNotification(recipient string, n models.Notification)
}

// Service owns notification fan-out and dismissal.
type Service struct {
	gw     gateway.Gateway
	pusher Pusher
}

// NewService builds a notification service. pusher may be nil.
func NewService(gw gateway.Gateway, pusher Pusher) *Service {
	return &Service{gw: gw, pusher: pusher}
}

// NewID mints a notification id: millisecond epoch plus a random tiebreaker.
func NewID() string {
	return fmt.Sprintf("%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

func inboxPath(entityPath, mobile string) string {
	return entityPath + "/notifications/" + mobile
}

// Notify appends one notification to each recipient's inbox on the entity
// and pushes it to connected clients. Fan-out is best effort: a failed inbox
// write is logged and skipped, never surfaced to the workflow that fired it.
func (s *Service) Notify(ctx context.Context, entityPath string, recipients []string, typ, message, byName string) {
	n := models.Notification{
		ID:        NewID(),
		Type:      typ,
		Message:   message,
		ByName:    byName,
		Timestamp: time.Now().UnixMilli(),
	}

	for _, mobile := range recipients {
		inbox, err := s.List(ctx, entityPath, mobile)
		if err != nil {
			logger.L().Warnw("failed to read inbox", "entity", entityPath, "recipient", mobile, "error", err)
			continue
		}
		inbox = append(inbox, n)
		if err := s.gw.Write(ctx, inboxPath(entityPath, mobile), inbox); err != nil {
			logger.L().Warnw("failed to append notification", "entity", entityPath, "recipient", mobile, "error", err)
			continue
		}
		if s.pusher != nil {
			s.pusher.PushNotification(mobile, n)
		}
	}
}

// List returns a recipient's inbox on the entity. Absent paths yield an
// empty inbox.
func (s *Service) List(ctx context.Context, entityPath, mobile string) ([]models.Notification, error) {
	data, err := s.gw.Read(ctx, inboxPath(entityPath, mobile))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var inbox []models.Notification
	if err := json.Unmarshal(data, &inbox); err != nil {
		return nil, fmt.Errorf("decode inbox %s: %w", inboxPath(entityPath, mobile), err)
	}
	return inbox, nil
}

// Dismiss removes one notification by id. Dismissing the last entry removes
// the recipient's key entirely, so the inbox reads as absent again.
// Dismissing an unknown id is a no-op.
func (s *Service) Dismiss(ctx context.Context, entityPath, mobile, id string) error {
	inbox, err := s.List(ctx, entityPath, mobile)
	if err != nil {
		return err
	}

	remaining := inbox[:0]
	for _, n := range inbox {
		if n.ID != id {
			remaining = append(remaining, n)
		}
	}
	if len(remaining) == len(inbox) {
		return nil
	}
	if len(remaining) == 0 {
		return s.gw.Remove(ctx, inboxPath(entityPath, mobile))
	}
	return s.gw.Write(ctx, inboxPath(entityPath, mobile), remaining)
}
