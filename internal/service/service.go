// Package service holds the application services: auth, users, groups,
// records and settlement. Services validate input, read entities through the
// document gateway, and drive mutations through the approval workflow
// engine; they never write request state themselves.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
)

func decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// readGroup loads a group document, or ErrNotFound.
func readGroup(ctx context.Context, gw gateway.Gateway, groupID string) (*models.Group, error) {
	data, err := gw.Read(ctx, models.GroupPath(groupID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, apperr.NotFound("group " + groupID)
	}
	var g models.Group
	if err := decode(data, &g); err != nil {
		return nil, err
	}
	g.ID = groupID
	return &g, nil
}

// requireRecordAccess guards record reads and writes by scope. Global
// records are open to every signed-in user; personal loans answer only to
// their owner; group-scoped records need current membership.
func requireRecordAccess(ctx context.Context, gw gateway.Gateway, root, scope, mobile string) error {
	if scope == models.GlobalScope {
		return nil
	}
	if root == models.RootPersonalLoans {
		if scope != mobile {
			return apperr.NotAuthorized("not your personal records")
		}
		return nil
	}
	g, err := readGroup(ctx, gw, scope)
	if err != nil {
		return err
	}
	if !g.HasMember(mobile) {
		return apperr.NotAuthorized("not a member of this group")
	}
	return nil
}

// readAllGroups loads every group, sorted by id.
func readAllGroups(ctx context.Context, gw gateway.Gateway) ([]models.Group, error) {
	data, err := gw.Read(ctx, models.RootGroups)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var raw map[string]models.Group
	if err := decode(data, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Group, 0, len(raw))
	for id, g := range raw {
		g.ID = id
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// groupsOf returns the groups mobile belongs to.
func groupsOf(ctx context.Context, gw gateway.Gateway, mobile string) ([]models.Group, error) {
	all, err := readAllGroups(ctx, gw)
	if err != nil {
		return nil, err
	}
	var out []models.Group
	for _, g := range all {
		if g.HasMember(mobile) {
			out = append(out, g)
		}
	}
	return out, nil
}
