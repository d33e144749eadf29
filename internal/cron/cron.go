// Package cron runs the scheduled background jobs: reminders for stale
// approval requests and month-end notices ahead of settlement time.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/notification"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

// A request older than this earns its approvers a daily reminder.
const staleAfter = 72 * time.Hour

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	gw       gateway.Gateway
	notifier *notification.Service
}

// NewScheduler creates a new scheduler
func NewScheduler(gw gateway.Gateway, notifier *notification.Service) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		gw:       gw,
		notifier: notifier,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Run every day at 9 AM - stale request reminders
	s.cron.AddFunc("0 9 * * *", func() {
		logger.L().Info("cron: stale request reminder check")
		s.remindStaleRequests()
	})

	// Run at 8 AM mid-month and on the last day - month-end notices
	s.cron.AddFunc("0 8 15,28-31 * *", func() {
		now := time.Now()
		if now.Day() != 15 && !isLastDayOfMonth(now) {
			return
		}
		logger.L().Info("cron: month-end notices")
		s.sendMonthEndNotices()
	})

	s.cron.Start()
	logger.L().Info("cron scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logger.L().Info("cron scheduler stopped")
}

// remindStaleRequests nudges the members whose approval a pending request is
// still waiting on once the request is older than staleAfter.
func (s *Scheduler) remindStaleRequests() {
	ctx := context.Background()

	groups, err := s.loadGroups(ctx)
	if err != nil {
		logger.L().Errorw("cron: load groups", "error", err)
		return
	}

	cutoff := time.Now().Add(-staleAfter)
	for _, g := range groups {
		var pending []models.Request
		for _, r := range []*models.Request{
			g.DeleteRequest, g.EditRequest, g.AddMemberRequest,
			g.TransferOwnershipRequest, g.SettlementRequest,
		} {
			if r != nil {
				pending = append(pending, *r)
			}
		}
		pending = append(pending, g.JoinRequests...)
		pending = append(pending, g.LeaveRequests...)

		for _, req := range pending {
			requestedAt, err := time.Parse(time.RFC3339, req.RequestedAt)
			if err != nil || requestedAt.After(cutoff) {
				continue
			}

			// Members who have not approved yet.
			var waiting []string
			for _, m := range g.Members {
				if m.Mobile == req.RequestedBy || req.HasApproval(m.Mobile) {
					continue
				}
				waiting = append(waiting, m.Mobile)
			}
			if len(waiting) == 0 {
				continue
			}

			s.notifier.Notify(ctx, models.GroupPath(g.ID), waiting,
				models.NoticeReminder,
				fmt.Sprintf("A request by %s in %s is waiting for your approval", req.RequestedByName, g.Name),
				req.RequestedByName)
		}
	}
}

// sendMonthEndNotices tells every group's members that the month is closing,
// so someone can open a settlement request.
func (s *Scheduler) sendMonthEndNotices() {
	ctx := context.Background()

	groups, err := s.loadGroups(ctx)
	if err != nil {
		logger.L().Errorw("cron: load groups", "error", err)
		return
	}

	month := models.CurrentMonth()
	for _, g := range groups {
		data, err := s.gw.Read(ctx, models.MonthPath(models.RootPayments, g.ID, month))
		if err != nil || data == nil {
			// Nothing recorded this month, nothing to settle.
			continue
		}

		recipients := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			recipients = append(recipients, m.Mobile)
		}
		s.notifier.Notify(ctx, models.GroupPath(g.ID), recipients,
			models.NoticeMonthEnd,
			fmt.Sprintf("%s is ending, time to settle %s", month, g.Name), "")
	}
}

func (s *Scheduler) loadGroups(ctx context.Context) ([]models.Group, error) {
	data, err := s.gw.Read(ctx, models.RootGroups)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var raw map[string]models.Group
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Group, 0, len(raw))
	for id, g := range raw {
		g.ID = id
		out = append(out, g)
	}
	return out, nil
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}
